package alert

import "errors"

var (
	// ErrInvalidConfig indicates a misconfigured alerter constructor argument.
	ErrInvalidConfig = errors.New("alert: invalid configuration")

	// ErrDeliveryFailed indicates the event could not be delivered after retries.
	ErrDeliveryFailed = errors.New("alert: delivery failed")
)
