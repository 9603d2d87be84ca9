// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callx/callx/request"
)

func TestAsyncCall(t *testing.T) {
	t.Run("response delivery", testAsyncResponse)
	t.Run("failure delivery", testAsyncFailure)
	t.Run("cancel before run", testAsyncCancelBeforeRun)
	t.Run("cancel racing response", testAsyncCancelRacingResponse)
	t.Run("callback panic", testAsyncCallbackPanic)
	t.Run("interceptor panic", testAsyncInterceptorPanic)
	t.Run("nil callback", testAsyncNilCallback)
}

// syncDispatcher runs enqueued calls inline, which makes callback
// tests deterministic.
type syncDispatcher struct {
	finished int
}

func (d *syncDispatcher) Executed(*Call) {}
func (d *syncDispatcher) Finished(*Call) {}
func (d *syncDispatcher) Enqueue(ac *AsyncCall) {
	ac.Run()
}
func (d *syncDispatcher) FinishedAsync(*AsyncCall) {
	d.finished++
}

func testAsyncResponse(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	disp := &syncDispatcher{}
	client := &Client{
		Engines:    newFakeFactory(&fakeEngine{resp: testResponse(req, 200)}),
		Dispatcher: disp,
	}

	var responses, failures int
	err := client.NewCall(req).Enqueue(CallbackFuncs{
		Response: func(c *Call, resp *request.Response) {
			responses++
			assert.Equal(t, 200, resp.StatusCode())
		},
		Failure: func(c *Call, req *request.Request, err error) {
			failures++
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, responses, "exactly one delivery")
	assert.Equal(t, 0, failures)
	assert.Equal(t, 1, disp.finished, "dispatcher must learn the call finished")
}

func testAsyncFailure(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection reset")
	req := testRequest(t, "GET", "http://test.invalid/")
	client := &Client{
		Engines:    newFakeFactory(&fakeEngine{readErr: cause}),
		Dispatcher: &syncDispatcher{},
	}

	var failures int
	err := client.NewCall(req).Enqueue(CallbackFuncs{
		Response: func(c *Call, resp *request.Response) {
			t.Error("no response delivery on failure")
		},
		Failure: func(c *Call, freq *request.Request, ferr error) {
			failures++
			assert.ErrorIs(t, ferr, cause)
			assert.NotNil(t, freq)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, failures)
}

func testAsyncCancelBeforeRun(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	eng := &fakeEngine{resp: testResponse(req, 200)}
	client := &Client{
		Engines:    newFakeFactory(eng),
		Dispatcher: &syncDispatcher{},
	}
	call := client.NewCall(req)
	call.Cancel()

	var failures int
	err := call.Enqueue(CallbackFuncs{
		Response: func(c *Call, resp *request.Response) {
			t.Error("canceled call must not deliver a response")
		},
		Failure: func(c *Call, freq *request.Request, ferr error) {
			failures++
			assert.ErrorIs(t, ferr, ErrCanceled)
			assert.Same(t, req, freq)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	assert.Equal(t, 0, eng.sendCalls)
}

func testAsyncCancelRacingResponse(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	var call *Call
	eng := &fakeEngine{resp: testResponse(req, 200)}
	eng.onRead = func() error {
		// The response wins the exchange, but the caller cancels
		// before delivery.
		call.Cancel()
		return nil
	}
	client := &Client{
		Engines:    newFakeFactory(eng),
		Dispatcher: &syncDispatcher{},
	}
	call = client.NewCall(req)

	var failures int
	err := call.Enqueue(CallbackFuncs{
		Response: func(c *Call, resp *request.Response) {
			t.Error("canceled call must not deliver a response")
		},
		Failure: func(c *Call, freq *request.Request, ferr error) {
			failures++
			assert.ErrorIs(t, ferr, ErrCanceled)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, failures)
}

func testAsyncCallbackPanic(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	disp := &syncDispatcher{}
	client := &Client{
		Engines:    newFakeFactory(&fakeEngine{resp: testResponse(req, 200)}),
		Dispatcher: disp,
		Log:        &log,
	}

	var responses int
	err := client.NewCall(req).Enqueue(CallbackFuncs{
		Response: func(c *Call, resp *request.Response) {
			responses++
			panic("callback exploded")
		},
		Failure: func(c *Call, freq *request.Request, ferr error) {
			t.Error("a post-delivery panic must not be re-delivered")
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, responses)
	assert.Equal(t, 1, disp.finished, "dispatcher accounting survives a callback panic")
	assert.Contains(t, buf.String(), "callback failure")
}

func testAsyncInterceptorPanic(t *testing.T) {
	t.Parallel()
	req := testRequest(t, "GET", "http://test.invalid/")
	client := &Client{
		Engines:    newFakeFactory(),
		Dispatcher: &syncDispatcher{},
		Interceptors: []Interceptor{
			InterceptorFunc(func(chain Chain) (*request.Response, error) {
				panic("interceptor bug")
			}),
		},
	}

	assert.PanicsWithValue(t, "interceptor bug", func() {
		_ = client.NewCall(req).Enqueue(CallbackFuncs{})
	}, "pre-delivery panics are programming errors and must propagate")
}

func testAsyncNilCallback(t *testing.T) {
	t.Parallel()
	client := &Client{Engines: newFakeFactory()}
	call := client.NewCall(testRequest(t, "GET", "http://test.invalid/"))
	assert.Panics(t, func() {
		_ = call.Enqueue(nil)
	})
}
