package credential

// EnvConfig describes the environment fallback used when no persisted record
// exists yet: a raw cookie string captured from a logged-in browser session.
type EnvConfig struct {
	// CookiesStr is the raw "name=value; ..." cookie string.
	CookiesStr string `env:"COOKIES_STR"`

	// UserIDCookie names the cookie whose value identifies the user; the
	// device id is derived from it.
	UserIDCookie string `env:"COOKIES_USER_ID_KEY" envDefault:"unb"`
}

// FromEnv builds a record from an environment-supplied cookie string.
// Returns ErrNoEnvCredentials when the variable is unset or empty.
func FromEnv(cfg EnvConfig) (*Record, error) {
	if cfg.CookiesStr == "" {
		return nil, ErrNoEnvCredentials
	}
	userIDCookie := cfg.UserIDCookie
	if userIDCookie == "" {
		userIDCookie = "unb"
	}
	return FromRaw(cfg.CookiesStr, userIDCookie)
}
