package node

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillsenselab/dreamflow/dataset"
	apperrors "github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/logger"
	"github.com/skillsenselab/dreamflow/observability"
)

const (
	defaultPollWait = 100 * time.Millisecond
	defaultInterval = time.Second
)

// Input binds one input dataset to the cursor this runtime owns on it.
type Input struct {
	Name   string
	Cursor *dataset.Cursor
}

// Config configures a node runtime.
type Config struct {
	// Name is the node identifier from the topology.
	Name string
	// Handler is the processing implementation.
	Handler Handler
	// Params is the topology parameter bag passed to Init.
	Params Params
	// Inputs are the bound input datasets, polled round-robin.
	Inputs []Input
	// Outputs maps output dataset names to handles.
	Outputs map[string]*dataset.Dataset
	// ErrorOutput names the dataset (in Outputs) that receives forwarded
	// step failures. Empty means a step failure faults the node.
	ErrorOutput string
	// Interval is the timer period. A node with zero inputs runs purely
	// on this timer; a node with inputs additionally gets a recordless
	// step each period (for periodic refresh work) when set.
	Interval time.Duration
	// PollWait bounds how long one input is polled before the loop moves
	// to the next input (and rechecks drain).
	PollWait time.Duration
	// CPUWeight is the node's fractional CPU budget. Informational only;
	// the Go scheduler is not bound by it.
	CPUWeight float64
	// OnShutdown is invoked when the handler requests a pipeline-wide
	// drain. The graph wires this to broadcast the drain to peer nodes.
	OnShutdown func()
	// Log is the parent logger.
	Log *logger.Logger
}

// Runtime supervises one handler: lifecycle, input polling, key
// propagation, and the per-record failure policy.
type Runtime struct {
	name        string
	handler     Handler
	params      Params
	inputs      []Input
	outputs     map[string]*dataset.Dataset
	errorOutput *dataset.Dataset
	interval    time.Duration
	pollWait    time.Duration
	cpuWeight   float64
	onShutdown  func()
	lg          *logger.Logger

	state atomic.Int32

	mu       sync.Mutex
	faultErr error

	drainOnce sync.Once
	draining  chan struct{}
	done      chan struct{}
}

// NewRuntime creates a runtime in the Created state.
func NewRuntime(cfg Config) (*Runtime, error) {
	var errOut *dataset.Dataset
	if cfg.ErrorOutput != "" {
		ds, ok := cfg.Outputs[cfg.ErrorOutput]
		if !ok {
			return nil, apperrors.UnknownDataset(cfg.Name, cfg.ErrorOutput)
		}
		errOut = ds
	}
	if cfg.PollWait <= 0 {
		cfg.PollWait = defaultPollWait
	}
	if cfg.Interval <= 0 && len(cfg.Inputs) == 0 {
		cfg.Interval = defaultInterval
	}

	r := &Runtime{
		name:        cfg.Name,
		handler:     cfg.Handler,
		params:      cfg.Params,
		inputs:      cfg.Inputs,
		outputs:     cfg.Outputs,
		errorOutput: errOut,
		interval:    cfg.Interval,
		pollWait:    cfg.PollWait,
		cpuWeight:   cfg.CPUWeight,
		onShutdown:  cfg.OnShutdown,
		lg:          cfg.Log.WithComponent("node." + cfg.Name),
		draining:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	r.state.Store(int32(StateCreated))
	return r, nil
}

// Name returns the node identifier.
func (r *Runtime) Name() string { return r.name }

// State returns the current lifecycle state.
func (r *Runtime) State() State { return State(r.state.Load()) }

// Err returns the fault that stopped this node, or nil.
func (r *Runtime) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.faultErr
}

// Done is closed when the runtime has terminated.
func (r *Runtime) Done() <-chan struct{} { return r.done }

// Start launches the runtime's goroutine. The context governs the whole
// lifetime: cancelling it behaves like a drain without the grace period.
func (r *Runtime) Start(ctx context.Context) {
	go r.run(ctx)
}

// Drain asks the runtime to finish its in-flight record and terminate.
// No new input is accepted once draining begins.
func (r *Runtime) Drain() {
	r.drainOnce.Do(func() {
		close(r.draining)
	})
}

// Stop drains and waits for termination or ctx expiry.
func (r *Runtime) Stop(ctx context.Context) error {
	r.Drain()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) run(ctx context.Context) {
	defer close(r.done)
	defer r.closeHandler()

	r.setState(StateInitializing)
	if err := r.handler.Init(ctx, r.params); err != nil {
		r.fault(apperrors.NodeFaulted(r.name, err))
		return
	}

	r.setState(StateRunning)
	r.lg.Info("Node running", logger.Fields(
		"inputs", len(r.inputs),
		"cpu_weight", r.cpuWeight,
	))

	var fatal error
	if len(r.inputs) == 0 {
		fatal = r.timerLoop(ctx)
	} else {
		fatal = r.consumeLoop(ctx)
	}

	if fatal != nil {
		r.fault(fatal)
		return
	}

	r.setState(StateDraining)
	r.setState(StateTerminated)
	r.lg.Info("Node terminated")
}

// consumeLoop polls bound inputs round-robin until drain or cancellation.
// When an interval is configured it also delivers a recordless step each
// period, so a consuming node can do time-based work between records.
func (r *Runtime) consumeLoop(ctx context.Context) error {
	idx := 0
	// Seeded one interval in the past so periodic work (such as the
	// initial documentation fetch) runs immediately, not a full
	// interval after start.
	lastTick := time.Now().Add(-r.interval)
	for {
		if r.stopRequested(ctx) {
			return nil
		}

		if r.interval > 0 && time.Since(lastTick) >= r.interval {
			lastTick = time.Now()
			if fatal := r.step(ctx, nil, ""); fatal != nil {
				return fatal
			}
		}

		in := r.inputs[idx]
		idx = (idx + 1) % len(r.inputs)

		rec, ok, err := in.Cursor.Poll(ctx, r.pollWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Transient read failure: log and keep polling.
			r.lg.Warn("Input read failed", logger.ErrorFields("read "+in.Name, err))
			continue
		}
		if !ok {
			continue
		}

		if fatal := r.process(ctx, in, rec); fatal != nil {
			return fatal
		}
	}
}

// timerLoop drives a zero-input node on a fixed interval. The first
// step runs immediately.
func (r *Runtime) timerLoop(ctx context.Context) error {
	if fatal := r.step(ctx, nil, ""); fatal != nil {
		return fatal
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.draining:
			return nil
		case <-ticker.C:
			if fatal := r.step(ctx, nil, ""); fatal != nil {
				return fatal
			}
		}
	}
}

// process runs one record through the handler and applies the failure
// policy. The cursor advances on success and on forwarded errors alike:
// one delivery attempt per record, then forward-as-error.
func (r *Runtime) process(ctx context.Context, in Input, rec dataset.Record) error {
	if fatal := r.step(ctx, &rec, in.Name); fatal != nil {
		return fatal
	}
	in.Cursor.Commit()
	return nil
}

func (r *Runtime) step(ctx context.Context, rec *dataset.Record, source string) error {
	stepCtx, span := observability.StartSpan(ctx, "node.step")
	defer span.End()
	observability.SetSpanAttribute(stepCtx, observability.AttrNode, r.name)

	key := ""
	if rec != nil {
		key = rec.Key
		observability.SetSpanAttribute(stepCtx, observability.AttrDataset, source)
		observability.SetSpanAttribute(stepCtx, observability.AttrOffset, rec.Offset)
		observability.SetSpanAttribute(stepCtx, observability.AttrCorrelationID, key)
	}

	sc := &StepContext{
		Record: rec,
		Source: source,
		Log:    r.lg.WithCorrelation(key),
		rt:     r,
	}

	err := r.handler.Step(stepCtx, sc)
	if err == nil {
		return nil
	}

	observability.SetSpanError(stepCtx, err)
	sc.Log.Error("Step failed", logger.Fields(
		logger.FieldDataset, source,
		logger.FieldError, err.Error(),
	))

	if r.errorOutput == nil {
		return apperrors.NodeFaulted(r.name, err)
	}

	event := newErrorEvent(key, r.name, err)
	if _, aerr := r.errorOutput.AppendJSON(ctx, key, event); aerr != nil {
		// Losing the error record would strand the correlation entry
		// until the sweep; treat it as fatal for this node.
		return apperrors.NodeFaulted(r.name, aerr)
	}
	return nil
}

func newErrorEvent(key, stage string, err error) ErrorEvent {
	event := ErrorEvent{
		CorrelationID: key,
		Stage:         stage,
		Message:       err.Error(),
		Timestamp:     time.Now(),
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		event.Message = appErr.Message
		if appErr.Cause != nil {
			event.Cause = appErr.Cause.Error()
		}
	}
	return event
}

func (r *Runtime) requestShutdown() {
	r.lg.Info("Shutdown requested by handler")
	if r.onShutdown != nil {
		r.onShutdown()
		return
	}
	r.Drain()
}

func (r *Runtime) stopRequested(ctx context.Context) bool {
	select {
	case <-r.draining:
		return true
	default:
	}
	return ctx.Err() != nil
}

func (r *Runtime) setState(s State) {
	r.state.Store(int32(s))
}

func (r *Runtime) fault(err error) {
	r.mu.Lock()
	r.faultErr = err
	r.mu.Unlock()

	r.setState(StateFaulted)
	r.lg.Error("Node faulted", logger.ErrorFields("run", err))
	r.setState(StateTerminated)
}

func (r *Runtime) closeHandler() {
	if closer, ok := r.handler.(Closer); ok {
		if err := closer.Close(); err != nil {
			r.lg.Warn("Handler close failed", logger.ErrorFields("close", err))
		}
	}
}
