// Package bootstrap orchestrates the lifecycle of a dream pipeline
// service: configuration validation, logger setup, component startup in
// registration order, readiness checks, signal handling, and graceful
// shutdown in reverse order.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.RegisterComponent(pipeline)
//	app.RegisterComponent(cache)
//	app.RegisterComponent(server)
//	if err := app.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
