// Package redis provides a small connection helper around the go-redis
// client for deployments that persist the session credential in Redis
// instead of a local file (see credential.RedisStore).
//
// It adds a Connect function that retries until the server is reachable and
// a health-check helper for liveness probes. Configuration comes from the
// Config struct, whose fields can be populated from environment variables
// via github.com/caarlos0/env.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // redis never became ready, terminate
//	}
//	defer client.Close()
//
//	store := credential.NewRedisStore(client)
//
// # Errors
//
// Sentinel errors (ErrRedisNotReady, ErrFailedToParseConnString,
// ErrHealthcheckFailed) wrap the underlying go-redis errors with errors.Join
// for easy comparison and unwrapping.
package redis
