// Package logger builds configured log/slog loggers for cookiekeeper
// components. It standardizes output format (JSON for production log
// aggregation, text for development), level and static attributes behind a
// small options API, plus attribute helpers shared across packages.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithDevelopment("cookiekeeperd"),
//	)
//	log.Info("starting", slog.String("store", "file"))
//
// Components receive a *slog.Logger through their own options (for example
// keeper.WithLogger) rather than reading a global, so tests can capture
// output and libraries stay silent by default.
package logger
