// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package intercept

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/callx/callx"
	"github.com/callx/callx/request"
)

// BreakerConfig tunes a Breaker. The zero value gives a breaker that
// opens after 5 consecutive failures, stays open for 30 seconds, and
// counts only transport failures (not response status codes).
type BreakerConfig struct {
	// Name labels the breaker in state change notifications.
	Name string

	// ConsecutiveFailures is the number of consecutive failures that
	// opens the breaker. Zero means 5.
	ConsecutiveFailures uint32

	// OpenFor is how long the breaker stays open before admitting a
	// probe request. Zero means 30 seconds.
	OpenFor time.Duration

	// TripOn, when non-nil, classifies delivered responses: returning
	// true counts the exchange as a failure even though the caller
	// still receives the response. Use it to trip on 5xx statuses from
	// an unhealthy upstream.
	TripOn func(*request.Response) bool

	// OnStateChange, when non-nil, is notified of breaker state
	// transitions.
	OnStateChange func(name string, from, to gobreaker.State)
}

// A Breaker is an interceptor that short-circuits calls while the
// downstream host is failing. While open it fails calls immediately
// with gobreaker.ErrOpenState, without running the rest of the
// pipeline. Install it after any logging interceptor so rejected calls
// still get logged.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker[*request.Response]
	tripOn func(*request.Response) bool
}

// tripError carries a response the breaker counts as a failure but the
// caller should still receive.
type tripError struct {
	resp *request.Response
}

func (e *tripError) Error() string { return "intercept: response tripped breaker" }

// NewBreaker returns a circuit breaker interceptor.
func NewBreaker(cfg BreakerConfig) *Breaker {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	openFor := cfg.OpenFor
	if openFor == 0 {
		openFor = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about downstream health.
			return err == nil || errors.Is(err, callx.ErrCanceled)
		},
	}
	return &Breaker{
		cb:     gobreaker.NewCircuitBreaker[*request.Response](settings),
		tripOn: cfg.TripOn,
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Intercept implements callx.Interceptor.
func (b *Breaker) Intercept(chain callx.Chain) (*request.Response, error) {
	resp, err := b.cb.Execute(func() (*request.Response, error) {
		resp, err := chain.Proceed(chain.Request())
		if err != nil {
			return nil, err
		}
		if b.tripOn != nil && b.tripOn(resp) {
			return nil, &tripError{resp: resp}
		}
		return resp, nil
	})
	var trip *tripError
	if errors.As(err, &trip) {
		// Counted against the breaker, but still a delivered response.
		return trip.resp, nil
	}
	return resp, err
}
