// Package bootstrap wires configuration, logging, storage and the HTTP API
// into a runnable service.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := app.WaitForShutdown(); err != nil {
//	    log.Print(err)
//	}
package bootstrap
