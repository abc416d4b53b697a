// Package di provides a small dependency injection container used to
// assemble a dream pipeline service at startup.
//
// It supports eager, lazy, and singleton registration modes with
// type-safe resolution helpers. Lazy constructors run through the
// resilience package, so a flaky backend constructor is retried with
// backoff and fenced by a circuit breaker.
//
// # Registration
//
//	c.RegisterSingleton(di.Names.Cache, cache)
//	c.Register(di.Names.Topology, func() (*graph.Topology, error) {
//	    return graph.LoadTopologyFile(path)
//	})
//
// # Resolution
//
//	topo := di.MustResolve[*graph.Topology](c, di.Names.Topology)
package di
