package httpserver

import "errors"

var (
	// ErrStart indicates the ops listener could not be started or failed
	// while serving.
	ErrStart = errors.New("httpserver: failed to start ops listener")

	// ErrShutdown indicates graceful shutdown did not complete cleanly.
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
