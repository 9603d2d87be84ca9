// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"github.com/callx/callx/engine"
	"github.com/callx/callx/request"
)

// An Interceptor observes, transforms, and potentially short-circuits
// requests going out and the corresponding responses coming back in.
// Typically interceptors add, remove, or transform headers on the
// request or response.
//
// An interceptor receives the remainder of the pipeline as a Chain. It
// may call chain.Proceed at most once, passing the request it wants the
// rest of the pipeline to see, and must return either a response or an
// error: returning neither is a contract violation that fails the call
// with an *InterceptorError naming the interceptor. An interceptor that
// returns a response without calling Proceed short-circuits the call:
// no later interceptor runs and no network attempt is made.
//
// Interceptors run in registration order on the way out and in reverse
// order on the way back, because each wraps the invocation of the next.
// Implementations must be safe for concurrent use by multiple
// goroutines, as one interceptor instance serves every call made
// through its client.
type Interceptor interface {
	Intercept(chain Chain) (*request.Response, error)
}

// The InterceptorFunc type is an adapter to allow the use of ordinary
// functions as interceptors. If f is a function with the appropriate
// signature, InterceptorFunc(f) is an Interceptor that calls f.
type InterceptorFunc func(chain Chain) (*request.Response, error)

// Intercept calls f(chain).
func (f InterceptorFunc) Intercept(chain Chain) (*request.Response, error) {
	return f(chain)
}

// A Chain is the continuation an interceptor uses to run the remainder
// of the pipeline. Each link in the chain is valid only for the single
// Intercept invocation it was passed to.
type Chain interface {
	// Request returns the request as visible at this stage of the
	// pipeline, reflecting the transformations of earlier interceptors.
	Request() *request.Request

	// Proceed runs the rest of the pipeline, meaning any later
	// interceptors and finally the network attempt loop, with the
	// given request, and returns the resulting response.
	Proceed(req *request.Request) (*request.Response, error)

	// Connection returns a descriptor of the transport connection the
	// call is currently bound to, or nil when none is bound yet.
	// Application interceptors run before connection assignment and
	// always observe nil.
	Connection() engine.Connection
}
