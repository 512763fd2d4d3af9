package provider

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Breaker guards a remote API with a circuit breaker. Only errors the
// classifier marks as server-side count as failures.
type Breaker struct {
	cb       *gobreaker.CircuitBreaker
	tripping func(error) bool
	logger   *logrus.Logger
}

// NewBreaker creates a breaker named after the API it protects.
func NewBreaker(name string, logger *logrus.Logger, tripping func(error) bool) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var pass *passThroughError
			return err == nil || errors.As(err, &pass)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			}
		},
	}
	return &Breaker{
		cb:       gobreaker.NewCircuitBreaker(settings),
		tripping: tripping,
		logger:   logger,
	}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(op string, fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if b.tripping != nil && !b.tripping(err) {
				return nil, &passThroughError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})

	var pass *passThroughError
	if errors.As(err, &pass) {
		return pass.err
	}
	if err != nil && b.logger != nil {
		b.logger.WithFields(logrus.Fields{
			"op":    op,
			"state": b.cb.State().String(),
		}).WithError(err).Debug("Breaker call failed")
	}
	return err
}

// Open reports whether calls currently fail fast.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// passThroughError carries client-side errors past the failure counter.
type passThroughError struct {
	err error
}

func (e *passThroughError) Error() string {
	return e.err.Error()
}

// TripsOnStatus reports whether an HTTP status should count against the breaker.
func TripsOnStatus(code int) bool {
	switch {
	case code == 429:
		return true
	case code >= 500:
		return true
	}
	return false
}
