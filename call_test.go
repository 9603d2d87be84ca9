// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"context"
	"errors"
	"net"
	"net/http"
	urlpkg "net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callx/callx/engine"
	"github.com/callx/callx/request"
)

func TestCall(t *testing.T) {
	t.Run("happy path", testCallHappyPath)
	t.Run("single use", testCallSingleUse)
	t.Run("concurrent start", testCallConcurrentStart)
	t.Run("body metadata", testCallBodyMetadata)
	t.Run("request error", testCallRequestError)
	t.Run("recovery", testCallRecovery)
	t.Run("recovery exhausted", testCallRecoveryExhausted)
	t.Run("follow-up", testCallFollowUp)
	t.Run("follow-up bound", testCallFollowUpBound)
	t.Run("cancel", testCallCancel)
	t.Run("streaming", testCallStreaming)
}

func TestInterceptors(t *testing.T) {
	t.Run("ordering", testInterceptorOrdering)
	t.Run("request rewrite", testInterceptorRewrite)
	t.Run("short circuit", testInterceptorShortCircuit)
	t.Run("error passthrough", testInterceptorError)
	t.Run("nil response", testInterceptorNilResponse)
}

func TestWrapError(t *testing.T) {
	req := testRequest(t, "PUT", "http://test.invalid/x")
	cause := errors.New("ka-boom")
	err := wrapError(req, cause)
	var urlErr *urlpkg.Error
	require.ErrorAs(t, err, &urlErr)
	assert.Equal(t, "Put", urlErr.Op)
	assert.Equal(t, "http://test.invalid/x", urlErr.URL)
	assert.Same(t, cause, urlErr.Err)
	// Already-wrapped errors pass through untouched.
	assert.Same(t, err, wrapError(req, err))
}

func testCallHappyPath(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/hello")
	eng := &fakeEngine{resp: testResponse(req, 200)}
	f := newFakeFactory(eng)
	client := &Client{Engines: f}

	resp, err := client.NewCall(req).Execute()

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, 1, f.news)
	assert.Equal(t, 1, eng.sendCalls)
	assert.Equal(t, 1, eng.readCalls)
	assert.True(t, eng.released, "connection must be released on completion")
}

func testCallSingleUse(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	f := newFakeFactory(&fakeEngine{resp: testResponse(req, 200)})
	client := &Client{Engines: f}

	call := client.NewCall(req)
	_, err := call.Execute()
	require.NoError(t, err)

	_, err = call.Execute()
	assert.ErrorIs(t, err, ErrAlreadyExecuted)
	err = call.Enqueue(CallbackFuncs{})
	assert.ErrorIs(t, err, ErrAlreadyExecuted)
	assert.Equal(t, 1, f.news, "no engine may be built for a rejected start")
}

func testCallConcurrentStart(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	f := newFakeFactory(&fakeEngine{resp: testResponse(req, 200)})
	client := &Client{Engines: f}
	call := client.NewCall(req)

	const n = 16
	var wg sync.WaitGroup
	var rejected int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := call.Execute(); errors.Is(err, ErrAlreadyExecuted) {
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n-1), rejected, "exactly one starter may win")
	assert.Equal(t, 1, f.news)
}

func testCallBodyMetadata(t *testing.T) {
	t.Parallel()
	t.Run("known length", func(t *testing.T) {
		t.Parallel()
		req, err := request.NewWithBody("POST", "http://test.invalid/up",
			request.StringBody("text/plain", "hello"))
		require.NoError(t, err)
		f := newFakeFactory(&fakeEngine{resp: testResponse(req, 200)})
		client := &Client{Engines: f}

		_, err = client.NewCall(req).Execute()

		require.NoError(t, err)
		sent := f.reqs[0]
		assert.Equal(t, "text/plain", sent.Header("Content-Type"))
		assert.Equal(t, "5", sent.Header("Content-Length"))
		assert.Empty(t, sent.Header("Transfer-Encoding"))
		// The original request is never mutated.
		assert.Empty(t, req.Header("Content-Length"))
	})
	t.Run("unknown length", func(t *testing.T) {
		t.Parallel()
		pr, _ := net.Pipe()
		defer pr.Close()
		req, err := request.NewWithBody("POST", "http://test.invalid/up",
			request.ReaderBody("application/octet-stream", pr))
		require.NoError(t, err)
		f := newFakeFactory(&fakeEngine{resp: testResponse(req, 200)})
		client := &Client{Engines: f}

		_, err = client.NewCall(req).Execute()

		require.NoError(t, err)
		sent := f.reqs[0]
		assert.Equal(t, "chunked", sent.Header("Transfer-Encoding"))
		assert.Empty(t, sent.Header("Content-Length"))
	})
}

func testCallRequestError(t *testing.T) {
	t.Parallel()
	cause := errors.New("unresolvable header")
	eng := &fakeEngine{sendErr: &engine.RequestError{Err: cause}}
	f := newFakeFactory(eng)
	client := &Client{Engines: f}

	_, err := client.NewCall(testRequest(t, "GET", "http://test.invalid/")).Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, eng.recoverCalls, "caller errors are never retried")
}

func testCallRecovery(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	second := &fakeEngine{resp: testResponse(req, 200)}
	first := &fakeEngine{
		readErr:     &engine.RouteError{Err: errors.New("connection refused")},
		recoverWith: second,
	}
	f := newFakeFactory(first)
	client := &Client{Engines: f}

	resp, err := client.NewCall(req).Execute()

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, 1, f.news, "recovery replaces the engine, not the call")
	assert.Equal(t, 1, first.recoverCalls)
	assert.True(t, first.recoverForRoute, "route failures recover forRoute")
}

func testCallRecoveryExhausted(t *testing.T) {
	t.Parallel()
	cause := errors.New("broken pipe")
	eng := &fakeEngine{readErr: cause}
	f := newFakeFactory(eng)
	client := &Client{Engines: f}

	_, err := client.NewCall(testRequest(t, "GET", "http://test.invalid/")).Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, eng.recoverCalls)
	assert.False(t, eng.recoverForRoute, "post-send failures recover with forRoute false")
}

func testCallFollowUp(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/a")
	target := testRequest(t, "GET", "http://elsewhere.invalid/b")
	redirect := testResponse(req, 302, "Location", "http://elsewhere.invalid/b")
	conn := &fakeConn{}
	first := &fakeEngine{resp: redirect, followUp: target, conn: conn}
	second := &fakeEngine{resp: testResponse(target, 200)}
	f := newFakeFactory(first, second)
	client := &Client{Engines: f}

	resp, err := client.NewCall(req).Execute()

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode())
	require.Equal(t, 2, f.news)
	assert.Same(t, target, f.reqs[1], "follow-up request drives the next engine")
	assert.Same(t, redirect, f.priors[1], "triggering response rides along")
	assert.Same(t, conn, f.conns[1], "closed connection is offered for reuse")
	assert.True(t, first.released, "cross-host follow-up releases the connection")
	assert.True(t, first.closed)
}

func testCallFollowUpBound(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/loop")
	f := newFakeFactory()
	f.build = func(eng *fakeEngine, req *request.Request) {
		eng.resp = testResponse(req, 302, "Location", "http://test.invalid/loop")
		eng.followUp = req
		eng.sameConn = true
	}
	client := &Client{Engines: f}

	_, err := client.NewCall(req).Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyFollowUps)
	// The original attempt plus exactly MaxFollowUps follow-ups ran.
	assert.Equal(t, MaxFollowUps+1, f.news)
}

func testCallCancel(t *testing.T) {
	t.Parallel()
	t.Run("before execute", func(t *testing.T) {
		t.Parallel()
		eng := &fakeEngine{}
		f := newFakeFactory(eng)
		client := &Client{Engines: f}
		call := client.NewCall(testRequest(t, "GET", "http://test.invalid/"))

		call.Cancel()
		_, err := call.Execute()

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCanceled)
		assert.Equal(t, 0, eng.sendCalls, "canceled calls never reach the network")
		assert.True(t, call.Canceled())
	})
	t.Run("during attempt", func(t *testing.T) {
		t.Parallel()
		var call *Call
		eng := &fakeEngine{}
		eng.onRead = func() error {
			call.Cancel()
			return context.Canceled
		}
		f := newFakeFactory(eng)
		client := &Client{Engines: f}
		call = client.NewCall(testRequest(t, "GET", "http://test.invalid/"))

		_, err := call.Execute()

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCanceled)
		assert.True(t, eng.disconnected.Load(), "cancel must tear down in-flight transport")
	})
	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		client := &Client{Engines: newFakeFactory()}
		call := client.NewCall(testRequest(t, "GET", "http://test.invalid/"))
		call.Cancel()
		call.Cancel()
		assert.True(t, call.Canceled())
	})
}

func testCallStreaming(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/stream")
	eng := &fakeEngine{resp: testResponse(req, 200)}
	client := &Client{Engines: newFakeFactory(eng)}

	resp, err := client.NewStreamingCall(context.Background(), req).Execute()

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode())
	assert.False(t, eng.released, "streaming calls keep the connection bound")
}

func testInterceptorOrdering(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	client := &Client{Engines: newFakeFactory(&fakeEngine{resp: testResponse(req, 200)})}
	var order []string
	tap := func(name string) Interceptor {
		return InterceptorFunc(func(chain Chain) (*request.Response, error) {
			order = append(order, name+" out")
			resp, err := chain.Proceed(chain.Request())
			order = append(order, name+" in")
			return resp, err
		})
	}
	client.Interceptors = []Interceptor{tap("a"), tap("b")}

	_, err := client.NewCall(req).Execute()

	require.NoError(t, err)
	assert.Equal(t, []string{"a out", "b out", "b in", "a in"}, order)
}

func testInterceptorRewrite(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	f := newFakeFactory(&fakeEngine{resp: testResponse(req, 200)})
	client := &Client{Engines: f}
	var seen string
	client.Interceptors = []Interceptor{
		InterceptorFunc(func(chain Chain) (*request.Response, error) {
			return chain.Proceed(chain.Request().WithHeader("X-Trace", "1"))
		}),
		InterceptorFunc(func(chain Chain) (*request.Response, error) {
			seen = chain.Request().Header("X-Trace")
			return chain.Proceed(chain.Request())
		}),
	}

	_, err := client.NewCall(req).Execute()

	require.NoError(t, err)
	assert.Equal(t, "1", seen, "later interceptors observe earlier rewrites")
	assert.Equal(t, "1", f.reqs[0].Header("X-Trace"))
	assert.Empty(t, req.Header("X-Trace"), "the original request is never mutated")
}

func testInterceptorShortCircuit(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	canned := testResponse(req, 204)
	f := newFakeFactory()
	client := &Client{
		Engines: f,
		Interceptors: []Interceptor{
			InterceptorFunc(func(chain Chain) (*request.Response, error) {
				return canned, nil
			}),
			InterceptorFunc(func(chain Chain) (*request.Response, error) {
				t.Fatal("short-circuited interceptor must not run")
				return nil, nil
			}),
		},
	}

	resp, err := client.NewCall(req).Execute()

	require.NoError(t, err)
	assert.Same(t, canned, resp)
	assert.Equal(t, 0, f.news, "no network attempt after a short circuit")
}

func testInterceptorError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	f := newFakeFactory()
	client := &Client{
		Engines: f,
		Interceptors: []Interceptor{
			InterceptorFunc(func(chain Chain) (*request.Response, error) {
				return nil, boom
			}),
		},
	}

	_, err := client.NewCall(testRequest(t, "GET", "http://test.invalid/")).Execute()

	assert.Same(t, boom, err, "interceptor errors pass through unwrapped")
	assert.Equal(t, 0, f.news)
}

func testInterceptorNilResponse(t *testing.T) {
	t.Parallel()
	bad := InterceptorFunc(func(chain Chain) (*request.Response, error) {
		return nil, nil
	})
	client := &Client{
		Engines:      newFakeFactory(),
		Interceptors: []Interceptor{InterceptorFunc(passThrough), bad},
	}

	_, err := client.NewCall(testRequest(t, "GET", "http://test.invalid/")).Execute()

	var ie *InterceptorError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Index)
	assert.Contains(t, err.Error(), "neither response nor error")
}

func passThrough(chain Chain) (*request.Response, error) {
	return chain.Proceed(chain.Request())
}

// testRequest builds a request or fails the test.
func testRequest(t *testing.T, method, url string) *request.Request {
	t.Helper()
	req, err := request.New(method, url)
	require.NoError(t, err)
	return req
}

// testResponse builds a response with optional header name/value pairs.
func testResponse(req *request.Request, statusCode int, nv ...string) *request.Response {
	h := http.Header{}
	for i := 0; i+1 < len(nv); i += 2 {
		h.Set(nv[i], nv[i+1])
	}
	return request.NewResponse(req, statusCode, h, nil)
}

// fakeEngine is a scripted engine: set the outcome fields before the
// attempt and inspect the counters afterward.
type fakeEngine struct {
	req             *request.Request
	sendErr         error
	readErr         error
	onRead          func() error
	resp            *request.Response
	followUp        *request.Request
	followErr       error
	recoverWith     engine.Engine
	sameConn        bool
	conn            engine.Connection
	sendCalls       int
	readCalls       int
	recoverCalls    int
	recoverForRoute bool
	released        bool
	closed          bool
	disconnected    atomic.Bool
}

var _ engine.Engine = (*fakeEngine)(nil)

func (e *fakeEngine) Request() *request.Request { return e.req }

func (e *fakeEngine) SendRequest() error {
	e.sendCalls++
	return e.sendErr
}

func (e *fakeEngine) ReadResponse() error {
	e.readCalls++
	if e.onRead != nil {
		return e.onRead()
	}
	return e.readErr
}

func (e *fakeEngine) Response() *request.Response { return e.resp }

func (e *fakeEngine) FollowUp() (*request.Request, error) {
	return e.followUp, e.followErr
}

func (e *fakeEngine) Recover(err error, forRoute bool) engine.Engine {
	e.recoverCalls++
	e.recoverForRoute = forRoute
	return e.recoverWith
}

func (e *fakeEngine) SameConnection(u *urlpkg.URL) bool { return e.sameConn }
func (e *fakeEngine) ReleaseConnection()                { e.released = true }

func (e *fakeEngine) Close() engine.Connection {
	e.closed = true
	return e.conn
}

func (e *fakeEngine) Connection() engine.Connection { return e.conn }
func (e *fakeEngine) Disconnect()                   { e.disconnected.Store(true) }

type fakeConn struct{}

func (fakeConn) LocalAddr() net.Addr  { return nil }
func (fakeConn) RemoteAddr() net.Addr { return nil }
func (fakeConn) Reused() bool         { return false }

// fakeFactory hands out scripted engines in order, recording the
// arguments of every New invocation. When the script runs out it
// builds fresh engines, configured by the build hook if one is set.
type fakeFactory struct {
	mu      sync.Mutex
	engines []*fakeEngine
	build   func(eng *fakeEngine, req *request.Request)
	news    int
	reqs    []*request.Request
	conns   []engine.Connection
	priors  []*request.Response
}

var _ engine.Factory = (*fakeFactory)(nil)

func newFakeFactory(engines ...*fakeEngine) *fakeFactory {
	return &fakeFactory{engines: engines}
}

func (f *fakeFactory) New(ctx context.Context, opts *engine.Options, req *request.Request, conn engine.Connection, prior *request.Response) engine.Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	var eng *fakeEngine
	if f.news < len(f.engines) {
		eng = f.engines[f.news]
	} else {
		eng = &fakeEngine{}
		if f.build != nil {
			f.build(eng, req)
		}
	}
	eng.req = req
	f.news++
	f.reqs = append(f.reqs, req)
	f.conns = append(f.conns, conn)
	f.priors = append(f.priors, prior)
	return eng
}
