package alert

import (
	"context"
	"errors"
	"time"
)

// Kind classifies what happened.
type Kind string

const (
	// KindLoginRequired means automated refresh cannot recover the session;
	// a human must log in and capture a new cookie string.
	KindLoginRequired Kind = "login_required"

	// KindRefreshFailed means a refresh attempt failed for a transient
	// reason (network, unexpected response); the keeper will retry on its
	// own schedule.
	KindRefreshFailed Kind = "refresh_failed"
)

// Event describes a single keeper incident.
type Event struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Alerter delivers keeper incidents to an operator channel.
type Alerter interface {
	Alert(ctx context.Context, event Event) error
}

// multi fans events out to every configured alerter.
type multi []Alerter

// Multi combines several alerters into one. Every alerter receives the
// event; delivery errors are collected with errors.Join rather than
// short-circuiting, so one broken channel does not silence the rest.
func Multi(alerters ...Alerter) Alerter {
	flat := make(multi, 0, len(alerters))
	for _, a := range alerters {
		if a != nil {
			flat = append(flat, a)
		}
	}
	return flat
}

func (m multi) Alert(ctx context.Context, event Event) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
