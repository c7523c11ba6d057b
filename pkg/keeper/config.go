package keeper

import "time"

// Config holds keeper timing policy.
type Config struct {
	// CheckInterval is how often the background loop probes validity.
	CheckInterval time.Duration `env:"KEEPER_CHECK_INTERVAL" envDefault:"10m"`

	// ExpiryThreshold is the proactive-refresh policy: a record older than
	// this is treated as due for refresh even while the validator still
	// accepts it.
	ExpiryThreshold time.Duration `env:"KEEPER_EXPIRY_THRESHOLD" envDefault:"3h"`

	// ErrorBackoff replaces the regular interval after a panicking iteration.
	ErrorBackoff time.Duration `env:"KEEPER_ERROR_BACKOFF" envDefault:"60s"`

	// StopTimeout bounds how long StopAutoRefresh waits for the loop to exit.
	StopTimeout time.Duration `env:"KEEPER_STOP_TIMEOUT" envDefault:"5s"`

	// UserIDCookie names the cookie whose value identifies the user; the
	// device id is re-derived from it after a refresh.
	UserIDCookie string `env:"COOKIES_USER_ID_KEY" envDefault:"unb"`
}

// DefaultConfig returns the default keeper policy.
func DefaultConfig() Config {
	return Config{
		CheckInterval:   10 * time.Minute,
		ExpiryThreshold: 3 * time.Hour,
		ErrorBackoff:    60 * time.Second,
		StopTimeout:     5 * time.Second,
		UserIDCookie:    "unb",
	}
}

// withDefaults fills zero fields so a partially populated Config stays usable.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CheckInterval <= 0 {
		c.CheckInterval = def.CheckInterval
	}
	if c.ExpiryThreshold <= 0 {
		c.ExpiryThreshold = def.ExpiryThreshold
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = def.ErrorBackoff
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = def.StopTimeout
	}
	if c.UserIDCookie == "" {
		c.UserIDCookie = def.UserIDCookie
	}
	return c
}
