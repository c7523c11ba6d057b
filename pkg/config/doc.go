// Package config loads cookiekeeper configuration from environment variables
// into typed structs, with optional .env file support for local development.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11 behind a
// small API:
//
//   - LoadEnv loads one or more .env files (no arguments loads the default
//     .env in the working directory).
//   - Load parses the environment into any struct using `env` field tags and
//     caches the result, so each configuration type is parsed at most once
//     per process.
//   - MustLoad and MustLoadEnv panic on failure for configuration the daemon
//     cannot start without.
//   - ResetCache and ForceReloadConfig exist for tests that mutate the
//     process environment between loads.
//
// # Usage
//
//	type KeeperEnv struct {
//	    StorePath string `env:"COOKIE_STORE_PATH" envDefault:"cookies.json"`
//	    CheckIvl  time.Duration `env:"COOKIE_CHECK_INTERVAL" envDefault:"10m"`
//	}
//
//	func main() {
//	    _ = config.LoadEnv() // .env is optional
//	    var cfg KeeperEnv
//	    config.MustLoad(&cfg)
//	}
//
// # Error Handling
//
// Sentinel errors compare with errors.Is:
//
//   - ErrParsingConfig: env vars could not be parsed into the struct.
//   - ErrConfigNotLoaded: cache lookup failed after parsing.
//   - ErrNilPointer: nil pointer passed to Load.
package config
