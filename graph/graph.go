package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/skillsenselab/dreamflow/component"
	"github.com/skillsenselab/dreamflow/dataset"
	apperrors "github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/logger"
	"github.com/skillsenselab/dreamflow/node"
	"github.com/skillsenselab/dreamflow/security"
)

// Dataset backends.
const (
	BackendMemory = "memory"
	BackendKafka  = "kafka"
)

const defaultStartTimeout = 30 * time.Second

// Options configures graph construction.
type Options struct {
	// Registry resolves node implementation references to handlers.
	Registry *node.Registry
	// KafkaBrokers backs datasets declared with the kafka backend.
	KafkaBrokers []string
	// KafkaTLS secures the broker transport. Nil means plaintext.
	KafkaTLS *security.TLSConfig
	// StartTimeout bounds how long Start waits for every node to reach
	// Running before giving up.
	StartTimeout time.Duration
	// Log is the parent logger.
	Log *logger.Logger
}

// Graph is the built, immutable pipeline: one dataset handle per
// declaration and one node runtime per node definition. It implements
// component.Component; Start launches every runtime concurrently and
// reports healthy only once all of them are Running.
type Graph struct {
	name     string
	datasets map[string]*dataset.Dataset
	runtimes []*node.Runtime
	gateway  GatewayDef
	timeout  time.Duration
	lg       *logger.Logger
}

// Build validates the topology and instantiates the graph. Cycles and
// multiple producers per dataset are legal; every node consumer gets its
// own independent cursor. Validation failures are fatal: the process
// should not start on a bad topology.
func Build(t *Topology, opts Options) (*Graph, error) {
	if opts.Registry == nil {
		return nil, apperrors.Validation("graph: node registry is required")
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	lg := opts.Log.WithComponent("graph")

	defs := make(map[string]DatasetDef, len(t.Datasets))
	for _, d := range t.Datasets {
		if _, dup := defs[d.Name]; dup {
			return nil, apperrors.Validation(fmt.Sprintf("duplicate dataset %q", d.Name))
		}
		defs[d.Name] = d
	}

	seen := make(map[string]bool, len(t.Nodes))
	produced := make(map[string]bool, len(defs))
	for _, n := range t.Nodes {
		if seen[n.ID] {
			return nil, apperrors.Validation(fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true

		for _, in := range n.Inputs {
			if _, ok := defs[in]; !ok {
				return nil, apperrors.UnknownDataset(n.ID, in)
			}
		}
		for _, out := range n.Outputs {
			if _, ok := defs[out]; !ok {
				return nil, apperrors.UnknownDataset(n.ID, out)
			}
			produced[out] = true
		}
	}
	for _, ref := range gatewayRefs(t.Gateway) {
		if _, ok := defs[ref]; !ok {
			return nil, apperrors.UnknownDataset("gateway", ref)
		}
	}
	for _, d := range t.Datasets {
		if !d.Entry && !produced[d.Name] {
			return nil, apperrors.OrphanDataset(d.Name)
		}
	}

	g := &Graph{
		name:     t.Name,
		datasets: make(map[string]*dataset.Dataset, len(defs)),
		gateway:  t.Gateway,
		timeout:  opts.StartTimeout,
		lg:       lg,
	}
	for _, d := range t.Datasets {
		log, err := newLog(d, opts, lg)
		if err != nil {
			return nil, err
		}
		g.datasets[d.Name] = dataset.New(d.Name, log, opts.Log)
	}

	for _, n := range t.Nodes {
		handler, ok := opts.Registry.New(n.Implementation)
		if !ok {
			return nil, apperrors.Validation(
				fmt.Sprintf("node %q: unknown implementation %q", n.ID, n.Implementation))
		}

		inputs := make([]node.Input, 0, len(n.Inputs))
		for _, in := range n.Inputs {
			inputs = append(inputs, node.Input{
				Name:   in,
				Cursor: g.datasets[in].Cursor(n.ID),
			})
		}
		outputs := make(map[string]*dataset.Dataset, len(n.Outputs))
		for _, out := range n.Outputs {
			outputs[out] = g.datasets[out]
		}

		rt, err := node.NewRuntime(node.Config{
			Name:        n.ID,
			Handler:     handler,
			Params:      node.Params(n.Params),
			Inputs:      inputs,
			Outputs:     outputs,
			ErrorOutput: n.ErrorOutput,
			Interval:    n.Interval,
			PollWait:    t.NodeDefaults.PollWait,
			CPUWeight:   n.CPU,
			OnShutdown:  g.Drain,
			Log:         opts.Log,
		})
		if err != nil {
			return nil, err
		}
		g.runtimes = append(g.runtimes, rt)
	}

	return g, nil
}

func gatewayRefs(gw GatewayDef) []string {
	var refs []string
	if gw.Entry != "" {
		refs = append(refs, gw.Entry)
	}
	if gw.Result != "" {
		refs = append(refs, gw.Result)
	}
	refs = append(refs, gw.Errors...)
	return refs
}

func newLog(d DatasetDef, opts Options, lg *logger.Logger) (dataset.Log, error) {
	switch d.Backend {
	case BackendKafka:
		if len(opts.KafkaBrokers) == 0 {
			return nil, apperrors.Validation(
				fmt.Sprintf("dataset %q: kafka backend requires brokers", d.Name))
		}
		return dataset.NewKafkaLog(dataset.KafkaConfig{
			Brokers: opts.KafkaBrokers,
			Topic:   d.Topic,
			TLS:     opts.KafkaTLS,
		}, lg)
	case BackendMemory, "":
		return dataset.NewMemoryLog(), nil
	default:
		return nil, apperrors.Validation(
			fmt.Sprintf("dataset %q: unknown backend %q", d.Name, d.Backend))
	}
}

// Name implements component.Component.
func (g *Graph) Name() string { return "graph." + g.name }

// Dataset returns the handle for a declared dataset.
func (g *Graph) Dataset(name string) (*dataset.Dataset, bool) {
	ds, ok := g.datasets[name]
	return ds, ok
}

// Gateway returns the topology's gateway binding.
func (g *Graph) Gateway() GatewayDef { return g.gateway }

// Nodes returns the node runtimes in definition order.
func (g *Graph) Nodes() []*node.Runtime { return g.runtimes }

// Start launches all node runtimes concurrently and waits until every
// one of them reaches Running. A node that faults during init aborts
// the start.
func (g *Graph) Start(ctx context.Context) error {
	g.lg.Info("starting pipeline graph", map[string]any{
		"pipeline": g.name,
		"nodes":    len(g.runtimes),
		"datasets": len(g.datasets),
	})
	for _, rt := range g.runtimes {
		rt.Start(ctx)
	}

	deadline := time.NewTimer(g.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		running := 0
		for _, rt := range g.runtimes {
			switch rt.State() {
			case node.StateRunning:
				running++
			case node.StateFaulted, node.StateTerminated:
				return apperrors.NodeFaulted(rt.Name(), rt.Err())
			}
		}
		if running == len(g.runtimes) {
			g.lg.Info("pipeline graph running", map[string]any{"pipeline": g.name})
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return apperrors.Timeout("graph start")
		case <-tick.C:
		}
	}
}

// Drain broadcasts a cooperative shutdown to every node. Each runtime
// finishes its in-flight record and terminates; no new input is
// accepted once draining begins.
func (g *Graph) Drain() {
	g.lg.Info("draining pipeline graph", map[string]any{"pipeline": g.name})
	for _, rt := range g.runtimes {
		rt.Drain()
	}
}

// Stop drains the graph, waits for every runtime to terminate, then
// closes the dataset backends.
func (g *Graph) Stop(ctx context.Context) error {
	g.Drain()
	for _, rt := range g.runtimes {
		select {
		case <-rt.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for name, ds := range g.datasets {
		if err := ds.Close(); err != nil {
			g.lg.WithError(err).Warn("closing dataset", map[string]any{"dataset": name})
		}
	}
	return nil
}

// Health reports healthy when every node is Running, degraded when some
// nodes have faulted or terminated, unhealthy when none are Running.
func (g *Graph) Health(ctx context.Context) component.Health {
	running, stopped := 0, 0
	var failed []string
	for _, rt := range g.runtimes {
		switch rt.State() {
		case node.StateRunning, node.StateDraining:
			running++
		case node.StateFaulted, node.StateTerminated:
			stopped++
			if rt.Err() != nil {
				failed = append(failed, rt.Name())
			}
		}
	}

	h := component.Health{Name: g.Name(), Status: component.StatusHealthy}
	switch {
	case running == 0 && len(g.runtimes) > 0:
		h.Status = component.StatusUnhealthy
		h.Message = "no nodes running"
	case stopped > 0:
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d of %d nodes stopped, faulted: %v",
			stopped, len(g.runtimes), failed)
	}
	return h
}
