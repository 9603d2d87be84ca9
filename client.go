// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/callx/callx/engine"
	"github.com/callx/callx/request"
)

// Client is a factory for calls. Configure a client once, share it
// everywhere: every call it creates snapshots the configuration at
// creation time, so later mutation of the client never perturbs calls
// already in flight.
//
// The zero value is a working client that uses no interceptors, the
// built-in network engine, the shared default dispatcher, and default
// engine options. Client is safe for concurrent use by multiple
// goroutines once it has stopped being mutated.
type Client struct {
	// Interceptors is the ordered list of application interceptors.
	// Each call runs through them in slice order on the way out and in
	// reverse order on the way back.
	Interceptors []Interceptor

	// Engines constructs the per-attempt engines that perform network
	// exchanges. If nil, engine.DefaultFactory is used. Substitute a
	// factory to stub out the network entirely, for example in tests.
	Engines engine.Factory

	// Dispatcher schedules asynchronous calls and accounts for running
	// ones. If nil, a shared package-level DefaultDispatcher is used.
	Dispatcher Dispatcher

	// EngineOptions tunes the transport behavior of the engines the
	// client creates: redirect policy, authenticators, recovery policy
	// and backoff, attempt timeout, and response size limit. If nil,
	// defaults apply throughout.
	EngineOptions *engine.Options

	// Log receives diagnostics the client cannot surface any other way,
	// such as a callback panicking after its outcome was delivered. If
	// nil, diagnostics are discarded.
	Log *zerolog.Logger
}

// clientConfig is the per-call snapshot of a Client's configuration.
// Every field is resolved to a usable value at snapshot time so call
// code never has to nil-check.
type clientConfig struct {
	interceptors []Interceptor
	engines      engine.Factory
	dispatcher   Dispatcher
	engineOpts   *engine.Options
	logger       *zerolog.Logger
}

var nopLogger = zerolog.Nop()

func (cfg *clientConfig) log() *zerolog.Logger {
	return cfg.logger
}

func (c *Client) snapshot() clientConfig {
	cfg := clientConfig{
		interceptors: c.Interceptors,
		engines:      c.Engines,
		dispatcher:   c.Dispatcher,
		engineOpts:   c.EngineOptions,
		logger:       c.Log,
	}
	if cfg.engines == nil {
		cfg.engines = engine.DefaultFactory
	}
	if cfg.dispatcher == nil {
		cfg.dispatcher = defaultDispatcher
	}
	if cfg.logger == nil {
		cfg.logger = &nopLogger
	}
	return cfg
}

// NewCall prepares a request for execution with a background context.
func (c *Client) NewCall(req *request.Request) *Call {
	return c.NewCallContext(context.Background(), req)
}

// NewCallContext prepares a request for execution. The context bounds
// the whole call, including every retry and follow-up; when it expires
// or is canceled, in-flight transport work is torn down and the call
// fails.
//
// The returned call has not started. Start it with Execute or Enqueue,
// at most once.
func (c *Client) NewCallContext(ctx context.Context, req *request.Request) *Call {
	if ctx == nil {
		panic("callx: nil context")
	}
	if req == nil {
		panic("callx: nil request")
	}
	return &Call{
		cfg:      c.snapshot(),
		ctx:      ctx,
		original: req,
	}
}

// NewStreamingCall prepares a request whose response body the caller
// will consume incrementally. The connection stays bound to the call
// until the caller finishes with the response, instead of being
// released when the call completes.
func (c *Client) NewStreamingCall(ctx context.Context, req *request.Request) *Call {
	call := c.NewCallContext(ctx, req)
	call.streaming = true
	return call
}

// Do executes req synchronously and returns the outcome. It is
// shorthand for NewCallContext followed by Execute.
func (c *Client) Do(ctx context.Context, req *request.Request) (*request.Response, error) {
	return c.NewCallContext(ctx, req).Execute()
}

// Get executes a GET of url with no body.
func (c *Client) Get(ctx context.Context, url string) (*request.Response, error) {
	req, err := request.New("GET", url)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Post executes a POST of body to url. The body may be nil, a string,
// a []byte, an io.Reader, or a request.Body; see request.BodyOf for
// the conversion rules. Note that a plain io.Reader cannot be replayed
// across retries or redirects.
func (c *Client) Post(ctx context.Context, url, contentType string, body interface{}) (*request.Response, error) {
	b, err := request.BodyOf(contentType, body)
	if err != nil {
		return nil, err
	}
	req, err := request.NewWithBody("POST", url, b)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// CloseIdleConnections closes idle pooled connections held by the
// shared transports. It does not interrupt connections in active use.
func CloseIdleConnections() {
	engine.CloseIdleConnections()
}
