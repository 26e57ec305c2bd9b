// Package service runs the warranty lifecycle operations against the store:
// load, authorize, apply the model transition, save with a version check and
// hand the resulting history records to the audit sink.
package service

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const claimNumberAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Option configures a service.
type Option func(*options)

type options struct {
	now         func() time.Time
	claimNumber func() (string, error)
}

func defaultOptions() options {
	return options{
		now:         func() time.Time { return time.Now().UTC() },
		claimNumber: newClaimNumber,
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithClaimNumbers replaces the claim number generator.
func WithClaimNumbers(gen func() (string, error)) Option {
	return func(o *options) { o.claimNumber = gen }
}

func newClaimNumber() (string, error) {
	id, err := gonanoid.Generate(claimNumberAlphabet, 10)
	if err != nil {
		return "", fmt.Errorf("generate claim number: %w", err)
	}
	return "CLM-" + id, nil
}
