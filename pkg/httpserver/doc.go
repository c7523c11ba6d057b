// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts, and health-check handlers for the cookiekeeper daemon's
// operational endpoints.
//
// Run starts the server and blocks until the context is cancelled or an
// interrupt/TERM signal arrives, then drains in-flight requests through
// http.Server.Shutdown with a configurable deadline. Construction goes
// through New with functional options or NewFromConfig with an env-tagged
// Config.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
//
//	srv := httpserver.New(
//	    httpserver.WithAddr(":8080"),
//	    httpserver.WithLogger(log),
//	)
//	if err := srv.Run(ctx, r); err != nil {
//	    log.Error("server stopped", logger.Error(err))
//	}
//
// Run wraps listen errors with ErrStart and Shutdown wraps shutdown errors
// with ErrShutdown; inspect with errors.Is.
package httpserver
