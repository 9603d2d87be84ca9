// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"github.com/callx/callx/request"
)

// A Callback receives the terminal outcome of an asynchronous call.
// For every enqueued call, exactly one of OnResponse or OnFailure is
// invoked, exactly once, on a dispatcher-managed goroutine.
//
// OnFailure receives the best-known request at the time of failure:
// the request in flight if a network attempt was underway (which after
// follow-ups may differ from the original), otherwise the call's
// original request.
type Callback interface {
	OnResponse(c *Call, resp *request.Response)
	OnFailure(c *Call, req *request.Request, err error)
}

// CallbackFuncs adapts ordinary functions to the Callback interface.
// A nil field is simply not invoked for its outcome.
type CallbackFuncs struct {
	Response func(c *Call, resp *request.Response)
	Failure  func(c *Call, req *request.Request, err error)
}

// OnResponse calls the Response func if it is non-nil.
func (f CallbackFuncs) OnResponse(c *Call, resp *request.Response) {
	if f.Response != nil {
		f.Response(c, resp)
	}
}

// OnFailure calls the Failure func if it is non-nil.
func (f CallbackFuncs) OnFailure(c *Call, req *request.Request, err error) {
	if f.Failure != nil {
		f.Failure(c, req, err)
	}
}

// An AsyncCall is the unit of work a dispatcher schedules for an
// enqueued call: the call itself plus the callback that will receive
// its outcome. Dispatchers invoke Run exactly once, on whatever
// goroutine they choose, and are notified through FinishedAsync when
// it returns.
type AsyncCall struct {
	call     *Call
	callback Callback
}

// Call returns the underlying call.
func (ac *AsyncCall) Call() *Call { return ac.call }

// Request returns the underlying call's original request.
func (ac *AsyncCall) Request() *request.Request { return ac.call.original }

// Host returns the hostname targeted by the call, which dispatchers
// use for per-host concurrency accounting.
func (ac *AsyncCall) Host() string { return ac.call.original.URL().Hostname() }

// Cancel cancels the underlying call.
func (ac *AsyncCall) Cancel() { ac.call.Cancel() }

// Run executes the call and delivers its outcome to the callback.
//
// The callback is invoked exactly once. A panic out of the callback
// itself, the only way a failure can arise after the outcome has been
// delivered, is swallowed and logged through the client's logger
// rather than re-delivered, because a callback must never be invoked
// twice for one call. A panic from an interceptor, which occurs before
// delivery, is allowed to propagate: it is a programming error the
// process should not silently absorb.
func (ac *AsyncCall) Run() {
	c := ac.call
	signaled := false
	defer c.cfg.dispatcher.FinishedAsync(ac)
	defer func() {
		if r := recover(); r != nil {
			if !signaled {
				panic(r)
			}
			// Do not signal the callback twice.
			c.cfg.log().Warn().
				Interface("panic", r).
				Msg("callback failure for " + c.loggable())
		}
	}()

	resp, err := c.chainResponse()
	switch {
	case err == nil && c.Canceled():
		// The response arrived, but the caller had already withdrawn
		// interest. Deliver the cancellation, not the response.
		signaled = true
		ac.callback.OnFailure(c, c.original, wrapError(c.original, ErrCanceled))
	case err == nil:
		signaled = true
		ac.callback.OnResponse(c, resp)
	default:
		req := c.original
		if eng := c.activeEngine(); eng != nil {
			req = eng.Request()
		}
		signaled = true
		ac.callback.OnFailure(c, req, err)
	}
}
