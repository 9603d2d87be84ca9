// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package callx provides an HTTP request execution core built around
calls: single-use request/response pairs with interceptors, automatic
recovery from transient failures, redirect and authentication
follow-up, and asynchronous dispatch.

Create a Client to begin making requests.

	client := &callx.Client{}
	resp, err := client.Get(ctx, "https://www.example.com")
	...
	req, err := request.New("GET", "https://www.example.com/profile")
	...
	resp, err := client.NewCallContext(ctx, req).Execute()

For asynchronous execution, enqueue the call with a callback. The
client's dispatcher runs it on a managed goroutine and invokes the
callback exactly once:

	call := client.NewCall(req)
	err := call.Enqueue(callx.CallbackFuncs{
		Response: func(c *callx.Call, resp *request.Response) {
			log.Info().Str("status", resp.Status()).Msg("done")
		},
		Failure: func(c *callx.Call, req *request.Request, err error) {
			log.Warn().Err(err).Msg("failed")
		},
	})

A call in either mode can be canceled from any goroutine with Cancel,
which tears down in-flight transport work. Bulk cancellation by tag is
available through DefaultDispatcher.CancelTag.

To observe, transform, or short-circuit requests and responses, install
interceptors. Each interceptor wraps the invocation of the next, so
registration order is outbound order:

	client := &callx.Client{
		Interceptors: []callx.Interceptor{
			intercept.NewLogger(log),
			myAuthDecorator,
		},
	}

For control over recovery decisions and timing, redirect policy,
authentication, and per-attempt timeouts, set EngineOptions using
components from the recovery and engine packages:

	client := &callx.Client{
		EngineOptions: &engine.Options{
			Recovery:       recovery.Limit(5).And(recovery.Transient),
			Backoff:        recovery.NewBackoff,
			AttemptTimeout: 10 * time.Second,
			Authenticator:  engine.BasicAuth("Authorization", user, pass),
		},
	}

To substitute the network layer entirely, install a custom
engine.Factory. The execution core drives whatever the factory builds,
which is how the package's own tests run without a network.
*/
package callx
