package keeper

import "errors"

var (
	// ErrLoginRequired indicates the browser replay found no logged-in
	// marker cookie: the session is beyond automated recovery and a human
	// must log in manually. Strategies return it instead of retrying.
	ErrLoginRequired = errors.New("keeper: manual login required")

	// ErrNoSetCookie indicates the passive refresh response carried no
	// Set-Cookie header at all, so there is nothing to merge.
	ErrNoSetCookie = errors.New("keeper: response has no set-cookie headers")

	// ErrTokenInvalid indicates the marketplace token API rejected the session.
	ErrTokenInvalid = errors.New("keeper: token check rejected session")

	// ErrInvalidConfig indicates a misconfigured constructor argument.
	ErrInvalidConfig = errors.New("keeper: invalid configuration")
)
