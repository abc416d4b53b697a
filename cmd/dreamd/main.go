// Command dreamd runs a dream pipeline service: it loads a topology,
// builds the graph with its durable datasets and node runtimes, and
// serves the synchronous HTTP gateway in front of it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/skillsenselab/dreamflow/bootstrap"
	"github.com/skillsenselab/dreamflow/component"
	"github.com/skillsenselab/dreamflow/config"
	"github.com/skillsenselab/dreamflow/correlation"
	"github.com/skillsenselab/dreamflow/dataset"
	"github.com/skillsenselab/dreamflow/di"
	"github.com/skillsenselab/dreamflow/gateway"
	"github.com/skillsenselab/dreamflow/graph"
	"github.com/skillsenselab/dreamflow/node"
	"github.com/skillsenselab/dreamflow/nodes"
	"github.com/skillsenselab/dreamflow/observability"
	"github.com/skillsenselab/dreamflow/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dreamd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := config.Load("dreamd", &cfg); err != nil {
		return err
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(context.Background(), cfg.Tracing)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		app.OnStop(func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		})
	}

	registry := node.NewRegistry()
	nodes.Register(registry)

	if err := app.Container.RegisterSingleton(di.Names.Config, &cfg); err != nil {
		return err
	}
	if err := app.Container.RegisterSingleton(di.Names.NodeRegistry, registry); err != nil {
		return err
	}
	err = app.Container.Register(di.Names.Topology, func() (*graph.Topology, error) {
		if cfg.Pipeline.File != "" {
			return graph.LoadTopologyFile(cfg.Pipeline.File)
		}
		return graph.NewFileTopologyLoader(cfg.Pipeline.SearchPaths...).Load(cfg.Pipeline.Name)
	})
	if err != nil {
		return err
	}

	topo, err := di.Resolve[*graph.Topology](app.Container, di.Names.Topology)
	if err != nil {
		return err
	}

	g, err := graph.Build(topo, graph.Options{
		Registry:     registry,
		KafkaBrokers: cfg.Kafka.Brokers,
		KafkaTLS:     cfg.Kafka.TLS,
		Log:          app.Logger,
	})
	if err != nil {
		return err
	}

	// The topology's gateway binding overrides the service-level
	// request timeout when it sets one.
	binding := g.Gateway()
	if binding.Timeout > 0 {
		cfg.Gateway.SetRequestTimeout(binding.Timeout)
	}

	cache := correlation.NewCache(correlation.Config{
		CleanupInterval: binding.CleanupInterval,
		Log:             app.Logger,
	})

	entry, ok := g.Dataset(binding.Entry)
	if !ok {
		return fmt.Errorf("gateway entry dataset %q not in graph", binding.Entry)
	}
	result, ok := g.Dataset(binding.Result)
	if !ok {
		return fmt.Errorf("gateway result dataset %q not in graph", binding.Result)
	}
	errDatasets := make([]*dataset.Dataset, 0, len(binding.Errors))
	for _, name := range util.Unique(binding.Errors) {
		ds, ok := g.Dataset(name)
		if !ok {
			return fmt.Errorf("gateway error dataset %q not in graph", name)
		}
		errDatasets = append(errDatasets, ds)
	}

	resolver := gateway.NewResolver(cache, result, errDatasets, app.Logger)
	server := gateway.NewServer(cfg.Gateway, app.Logger)
	api := gateway.NewAPI(entry, cache, app.Components, cfg.Gateway, app.Logger)
	api.Register(server.Engine())

	// Start order: graph first so node runtimes are consuming before
	// the gateway accepts traffic; shutdown runs in reverse.
	for _, c := range []component.Component{g, cache, resolver, server} {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	for _, d := range topo.Datasets {
		app.Summary.TrackDataset(d.Name, d.Backend, d.Entry)
	}
	for _, n := range topo.Nodes {
		app.Summary.TrackNode(n.ID, n.Implementation, n.Inputs, n.Outputs)
	}
	app.Summary.TrackRoute("POST", "/v1/dream", "dream")
	app.Summary.TrackRoute("GET", "/healthz", "health")
	app.Summary.TrackRoute("GET", "/version", "version")

	return app.Run(context.Background())
}
