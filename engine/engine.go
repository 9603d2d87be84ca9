// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"net"
	"net/http"
	urlpkg "net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/callx/callx/recovery"
	"github.com/callx/callx/request"
)

// An Engine performs one attempt's worth of work for a call: it sends a
// single request, reads a single response, and afterward reports
// whether the exchange demands a follow-up request or whether a failure
// can be recovered.
//
// Engines are single-use. The call's execution loop replaces the whole
// engine on every retry and follow-up so that per-attempt state never
// leaks into the next attempt. An engine is owned by its call; the only
// method that may be invoked from another goroutine is Disconnect,
// which a concurrent cancellation uses to interrupt blocked I/O.
type Engine interface {
	// Request returns the request this engine is bound to.
	Request() *request.Request

	// SendRequest prepares the bound request for transmission. An error
	// from SendRequest means the request itself could not be
	// interpreted into a transport exchange, is of type *RequestError,
	// and is never retried.
	SendRequest() error

	// ReadResponse performs the network exchange and buffers the
	// response. A *RouteError indicates no connection could be
	// established and the request was never sent; any other error
	// indicates the request may have partially reached the server.
	ReadResponse() error

	// Response returns the response produced by ReadResponse, or nil
	// before a successful exchange.
	Response() *request.Response

	// FollowUp inspects the response and returns the request that must
	// be issued next to satisfy a redirect or authentication challenge,
	// or nil if the response is the terminal result.
	FollowUp() (*request.Request, error)

	// Recover constructs a replacement engine to retry after the given
	// failure, or returns nil if recovery is not possible. forRoute
	// indicates the failure occurred before any connection was
	// established.
	Recover(err error, forRoute bool) Engine

	// SameConnection reports whether the given follow-up target is
	// reachable over the logical connection used by this engine.
	SameConnection(u *urlpkg.URL) bool

	// ReleaseConnection returns the engine's connection to the pool for
	// reuse by other calls.
	ReleaseConnection()

	// Close ends the engine's use of its connection and returns a
	// descriptor that may be handed to the next engine as a reuse hint,
	// or nil if no connection was bound.
	Close() Connection

	// Connection returns a descriptor of the connection currently bound
	// to the engine, or nil before one is established.
	Connection() Connection

	// Disconnect force-closes the engine's in-flight transport,
	// unblocking any blocked read or write. It is safe to invoke from
	// any goroutine at any time, including after the engine finished.
	Disconnect()
}

// A Connection describes the transport connection an engine performed
// its exchange over. It is informational: application interceptors run
// before a connection is bound and observe nil.
type Connection interface {
	// LocalAddr returns the local address of the connection.
	LocalAddr() net.Addr
	// RemoteAddr returns the remote address of the connection.
	RemoteAddr() net.Addr
	// Reused reports whether the connection had already carried a
	// previous exchange when this engine obtained it.
	Reused() bool
}

// A Factory constructs engines. The call's execution loop asks the
// factory for a fresh engine before the first attempt and for every
// follow-up.
//
// The conn argument is a reuse hint: the connection descriptor returned
// by the previous engine's Close when the follow-up target is reachable
// over the same logical connection, or nil. prior is the response that
// triggered the follow-up, or nil on the first attempt; engines use it
// to record redirect history and to let authenticators see the
// challenge they are answering.
type Factory interface {
	New(ctx context.Context, opts *Options, req *request.Request, conn Connection, prior *request.Response) Engine
}

// The FactoryFunc type is an adapter to allow the use of ordinary
// functions as engine factories.
type FactoryFunc func(ctx context.Context, opts *Options, req *request.Request, conn Connection, prior *request.Response) Engine

// New calls f.
func (f FactoryFunc) New(ctx context.Context, opts *Options, req *request.Request, conn Connection, prior *request.Response) Engine {
	return f(ctx, opts, req, conn, prior)
}

// Options is the client configuration snapshot an engine consumes. The
// zero value is a valid configuration: a shared default transport,
// redirects followed, default recovery policy, no attempt timeout, and
// no response size cap.
type Options struct {
	// Transport performs the wire-level exchange. If nil, a shared
	// transport derived from http.DefaultTransport is used.
	Transport http.RoundTripper

	// Authenticator answers 401 challenges. If nil, a 401 response is
	// returned to the caller as-is.
	Authenticator Authenticator

	// ProxyAuthenticator answers 407 challenges. If nil, a 407 response
	// is returned to the caller as-is.
	ProxyAuthenticator Authenticator

	// Recovery decides whether a failed attempt is retried on a fresh
	// connection. If nil, recovery.DefaultPolicy is used.
	Recovery recovery.Policy

	// Backoff returns the wait sequence applied between recovery
	// attempts. If nil, recovery.NewBackoff is used. The factory is
	// invoked once per call so that backoff state is never shared.
	Backoff func() retry.Backoff

	// AttemptTimeout bounds each individual attempt, including
	// connection establishment and body buffering. Zero means no
	// attempt-level bound. Deadlines on the call's context still apply.
	AttemptTimeout time.Duration

	// MaxResponseBytes caps the buffered response body size. A response
	// body larger than the cap fails the attempt. Zero means no cap.
	MaxResponseBytes int64

	// DisableRedirects stops the engine from computing follow-ups for
	// 3xx responses; they are returned to the caller as-is.
	// Authentication follow-ups are unaffected.
	DisableRedirects bool

	// EnableHTTP2 configures HTTP/2 support on the engine's own default
	// transport. It has no effect when Transport is set; configure that
	// transport directly instead.
	EnableHTTP2 bool
}

func (o *Options) recoveryPolicy() recovery.Policy {
	if o == nil || o.Recovery == nil {
		return recovery.DefaultPolicy
	}
	return o.Recovery
}

func (o *Options) backoff() retry.Backoff {
	if o == nil || o.Backoff == nil {
		return recovery.NewBackoff()
	}
	return o.Backoff()
}

// A RequestError reports that a request could not be interpreted into a
// transport-level exchange. It is a caller error, not a transport
// error, and is never retried.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return "callx/engine: bad request: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

// A RouteError reports that no connection could be established for an
// attempt. The request was never sent, so recovery over a different
// route or connection is safe even for non-idempotent requests.
type RouteError struct {
	Err error
}

func (e *RouteError) Error() string {
	return "callx/engine: connect: " + e.Err.Error()
}

func (e *RouteError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying connection failure was a
// timeout, satisfying the convention used by net.Error.
func (e *RouteError) Timeout() bool {
	t, ok := e.Err.(interface{ Timeout() bool })
	return ok && t.Timeout()
}
