// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/callx/callx/engine"
	"github.com/callx/callx/request"
)

// MaxFollowUps is the fixed bound on redirect and authentication
// follow-ups for one call. A server that keeps demanding follow-ups
// fails the call with ErrTooManyFollowUps after exactly this many.
//
// How many redirects and auth challenges should we accept? Chrome
// follows 21, Firefox, curl, and wget follow 20, Safari 16, and
// HTTP/1.0 recommended 5.
const MaxFollowUps = 20

// A Call is a request that has been prepared for execution. A call can
// be canceled. As a call represents a single request/response pair, it
// cannot be executed twice.
//
// Obtain calls from Client.NewCall. A Call is safe for concurrent use
// in the narrow sense the API implies: Execute/Enqueue race safely
// (exactly one wins), and Cancel and Canceled may be invoked from any
// goroutine at any time.
type Call struct {
	cfg       clientConfig
	ctx       context.Context
	original  *request.Request
	streaming bool

	executed atomic.Bool
	canceled atomic.Bool

	// engineMu guards the active engine slot. The slot is written only
	// by the goroutine driving the attempt loop; Cancel reads it from
	// any goroutine. A cancellation racing an engine swap may disconnect
	// the outgoing engine, which is harmless: its connection is torn
	// down or released regardless.
	engineMu sync.Mutex
	engine   engine.Engine
}

// Request returns the call's original request, unadulterated by
// redirects or authentication headers.
func (c *Call) Request() *request.Request { return c.original }

// Context returns the context the call was created with. It is never
// nil.
func (c *Call) Context() context.Context { return c.ctx }

// Tag returns the tag of the call's original request, or nil. Tags
// identify groups of calls for bulk cancellation.
func (c *Call) Tag() interface{} { return c.original.Tag() }

// Execute invokes the request immediately and blocks until the
// response is available or the call fails, including any interceptor
// work, recoveries, and follow-ups in between.
//
// Note that transport-layer success (receiving a status code, headers,
// and body) does not necessarily indicate application-layer success:
// the response may still carry an unhappy status code like 404 or 500.
//
// Execute returns ErrAlreadyExecuted if the call has already been
// executed, and an error satisfying errors.Is(err, ErrCanceled) if the
// call was canceled.
func (c *Call) Execute() (*request.Response, error) {
	if err := c.markExecuted(); err != nil {
		return nil, err
	}
	c.cfg.dispatcher.Executed(c)
	defer c.cfg.dispatcher.Finished(c)
	return c.chainResponse()
}

// Enqueue schedules the request to be executed at some point in the
// future. The client's dispatcher defines when the call runs: usually
// immediately, unless other calls are currently occupying its capacity.
// Enqueue never blocks.
//
// The callback is invoked with either the response or a failure,
// exactly once, on a dispatcher-managed goroutine. Canceling the call
// before it completes delivers the failure path with an error
// satisfying errors.Is(err, ErrCanceled).
//
// Enqueue returns ErrAlreadyExecuted, without scheduling anything, if
// the call has already been executed.
func (c *Call) Enqueue(cb Callback) error {
	if cb == nil {
		panic("callx: nil callback")
	}
	if err := c.markExecuted(); err != nil {
		return err
	}
	c.cfg.dispatcher.Enqueue(&AsyncCall{call: c, callback: cb})
	return nil
}

// Cancel cancels the call, if possible: it marks the call canceled and
// force-disconnects any in-flight transport so that blocked I/O
// unblocks. Calls that have already completed cannot be canceled and
// Cancel is then a no-op. Cancel is idempotent and safe to invoke from
// any goroutine.
func (c *Call) Cancel() {
	c.canceled.Store(true)
	if eng := c.activeEngine(); eng != nil {
		eng.Disconnect()
	}
}

// Canceled reports whether the call has been canceled. The read is a
// point-in-time snapshot: true is observed no earlier than the
// corresponding Cancel call returns.
func (c *Call) Canceled() bool {
	return c.canceled.Load()
}

func (c *Call) markExecuted() error {
	if !c.executed.CompareAndSwap(false, true) {
		return ErrAlreadyExecuted
	}
	return nil
}

func (c *Call) activeEngine() engine.Engine {
	c.engineMu.Lock()
	defer c.engineMu.Unlock()
	return c.engine
}

func (c *Call) setEngine(eng engine.Engine) {
	c.engineMu.Lock()
	c.engine = eng
	c.engineMu.Unlock()
}

// chainResponse runs the call through the interceptor chain, seeded at
// position zero with the original request.
func (c *Call) chainResponse() (*request.Response, error) {
	link := &chainLink{call: c, index: 0, req: c.original}
	return link.Proceed(c.original)
}

// chainLink is one position in the interceptor pipeline. Each link,
// when asked to proceed, constructs the next link and invokes the
// corresponding interceptor with it, or delegates to the network
// attempt loop once the interceptor list is exhausted.
type chainLink struct {
	call  *Call
	index int
	req   *request.Request
}

func (l *chainLink) Request() *request.Request { return l.req }

func (l *chainLink) Connection() engine.Connection {
	eng := l.call.activeEngine()
	if eng == nil {
		return nil
	}
	return eng.Connection()
}

func (l *chainLink) Proceed(req *request.Request) (*request.Response, error) {
	if req == nil {
		panic("callx: nil request passed to Proceed")
	}

	if l.index < len(l.call.cfg.interceptors) {
		in := l.call.cfg.interceptors[l.index]
		next := &chainLink{call: l.call, index: l.index + 1, req: req}
		resp, err := in.Intercept(next)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, &InterceptorError{Index: l.index, Interceptor: in}
		}
		return resp, nil
	}

	// No more interceptors. Do HTTP.
	return l.call.getResponse(req)
}

// getResponse performs the network attempt loop: normalize body
// metadata once, then attempt, recover, and follow up until a terminal
// outcome is reached.
func (c *Call) getResponse(req *request.Request) (*request.Response, error) {
	// Copy body metadata to the appropriate request headers. A known
	// length travels as Content-Length, an unknown length as chunked
	// transfer encoding; the two markers are mutually exclusive.
	if body := req.Body(); body != nil {
		if ct := body.ContentType(); ct != "" {
			req = req.WithHeader("Content-Type", ct)
		}
		if n := body.ContentLength(); n >= 0 {
			req = req.WithHeader("Content-Length", strconv.FormatInt(n, 10)).
				WithoutHeader("Transfer-Encoding")
		} else {
			req = req.WithHeader("Transfer-Encoding", "chunked").
				WithoutHeader("Content-Length")
		}
	}

	// Retries and follow-ups each get a brand-new engine so that stale
	// per-attempt state never leaks into the next attempt.
	eng := c.cfg.engines.New(c.ctx, c.cfg.engineOpts, req, nil, nil)
	c.setEngine(eng)

	followUps := 0
	for {
		if c.Canceled() {
			eng.ReleaseConnection()
			return nil, wrapError(req, ErrCanceled)
		}

		err := eng.SendRequest()
		if err == nil {
			err = eng.ReadResponse()
		}
		if err != nil {
			var reqErr *engine.RequestError
			if errors.As(err, &reqErr) {
				// The request itself could not be interpreted into a
				// transport exchange. Give up; this is a caller error.
				return nil, wrapError(req, err)
			}
			var routeErr *engine.RouteError
			forRoute := errors.As(err, &routeErr)
			if next := eng.Recover(err, forRoute); next != nil {
				eng = next
				c.setEngine(eng)
				continue
			}
			if c.Canceled() && errors.Is(err, context.Canceled) {
				err = ErrCanceled
			}
			return nil, wrapError(req, err)
		}

		resp := eng.Response()
		followUp, err := eng.FollowUp()
		if err != nil {
			return nil, wrapError(req, err)
		}

		if followUp == nil {
			if !c.streaming {
				eng.ReleaseConnection()
			}
			return resp, nil
		}

		followUps++
		if followUps > MaxFollowUps {
			return nil, wrapError(req, fmt.Errorf("%w: %d", ErrTooManyFollowUps, followUps))
		}

		if !eng.SameConnection(followUp.URL()) {
			eng.ReleaseConnection()
		}
		conn := eng.Close()

		req = followUp
		eng = c.cfg.engines.New(c.ctx, c.cfg.engineOpts, req, conn, resp)
		c.setEngine(eng)
	}
}

// loggable describes the call without its full URL, which might
// contain sensitive information.
func (c *Call) loggable() string {
	u := *c.original.URL()
	u.Path = "/..."
	u.RawQuery = ""
	u.Fragment = ""
	kind := "call"
	if c.Canceled() {
		kind = "canceled call"
	}
	return kind + " to " + u.String()
}
