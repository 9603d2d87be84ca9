// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/callx/callx/request"
)

var (
	// ErrCanceled marks a failure caused by cancellation of the call
	// rather than by the transport. Callers that cancel intentionally
	// can test for it with errors.Is and suppress user-facing error
	// reporting.
	ErrCanceled = errors.New("callx: canceled")

	// ErrAlreadyExecuted is returned by Execute and Enqueue when the
	// call has already been executed. A call represents a single
	// request/response pair and cannot be executed twice.
	ErrAlreadyExecuted = errors.New("callx: call already executed")

	// ErrTooManyFollowUps marks a call that was terminated because the
	// server demanded more redirect or authentication follow-ups than
	// MaxFollowUps allows.
	ErrTooManyFollowUps = errors.New("callx: too many follow-up requests")
)

// An InterceptorError reports an interceptor that violated the chain
// contract by returning neither a response nor an error. It identifies
// the offending interceptor by its registration index and dynamic type.
type InterceptorError struct {
	Index       int
	Interceptor Interceptor
}

func (e *InterceptorError) Error() string {
	return fmt.Sprintf("callx: interceptor %d (%T) returned neither response nor error", e.Index, e.Interceptor)
}

// wrapError puts terminal failures into the *url.Error shape callers
// of net/http already know how to handle. Errors that are already
// *url.Error pass through untouched.
func wrapError(req *request.Request, err error) error {
	if _, ok := err.(*url.Error); ok {
		return err
	}
	return &url.Error{
		Op:  urlErrorOp(req.Method()),
		URL: req.URL().String(),
		Err: err,
	}
}

// urlErrorOp is lifted verbatim from net/http/client.go
func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
