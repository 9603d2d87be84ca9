// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
	"strconv"
)

// A Response describes the result of one HTTP exchange.
//
// Like Request, a Response is immutable. Interceptors that want to
// rewrite a response on the way back to the caller derive a variant
// using the With methods rather than modifying the response they were
// given.
//
// The body is fully buffered by the time a Response is visible to
// interceptors or callers, which is what makes it safe to release the
// underlying connection before the terminal result is delivered.
type Response struct {
	request    *Request
	statusCode int
	header     http.Header
	body       []byte
	prior      *Response
}

// NewResponse returns a Response for the given request with the given
// status code, headers, and fully-buffered body. The header map is
// cloned; nil stands for an empty header. A nil body is treated as an
// empty body.
func NewResponse(req *Request, statusCode int, header http.Header, body []byte) *Response {
	if req == nil {
		panic("callx/request: nil request")
	}
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	return &Response{
		request:    req,
		statusCode: statusCode,
		header:     h,
		body:       body,
	}
}

// Request returns the request that produced this response. After a
// redirect or authentication follow-up this is the follow-up request,
// not the original one.
func (r *Response) Request() *Request { return r.request }

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int { return r.statusCode }

// Status returns the textual form of the status, for example
// "200 OK".
func (r *Response) Status() string {
	text := http.StatusText(r.statusCode)
	if text == "" {
		return strconv.Itoa(r.statusCode)
	}
	return strconv.Itoa(r.statusCode) + " " + text
}

// Header returns the first value associated with the given response
// header name, or the empty string if the header is not present.
func (r *Response) Header(name string) string { return r.header.Get(name) }

// HeaderValues returns all values associated with the given response
// header name.
func (r *Response) HeaderValues(name string) []string { return r.header.Values(name) }

// Headers returns a copy of the response headers. Modifying the
// returned map does not affect the response.
func (r *Response) Headers() http.Header { return r.header.Clone() }

// Body returns the buffered response body. The returned slice must be
// treated as read-only. It may be empty but is never nil on a response
// produced by a completed exchange.
func (r *Response) Body() []byte { return r.body }

// Prior returns the response that triggered the follow-up which
// produced this response, or nil if this response concluded the first
// exchange. Walking Prior yields the whole redirect/authentication
// history, most recent first.
func (r *Response) Prior() *Response { return r.prior }

// Success reports whether the status code is in the 2xx range. A
// successful exchange at the transport level may still carry a non-2xx
// status; callers decide what that means at the application level.
func (r *Response) Success() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

// IsRedirect reports whether the status code indicates a redirect for
// which a Location header is meaningful.
func (r *Response) IsRedirect() bool {
	switch r.statusCode {
	case http.StatusMultipleChoices, http.StatusMovedPermanently,
		http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// WithHeader returns a copy of r in which the given header is set to
// value, replacing any existing values.
func (r *Response) WithHeader(name, value string) *Response {
	checkHeader(name, value)
	r2 := r.clone()
	r2.header.Set(name, value)
	return r2
}

// WithoutHeader returns a copy of r with all values of the given header
// removed.
func (r *Response) WithoutHeader(name string) *Response {
	r2 := r.clone()
	r2.header.Del(name)
	return r2
}

// WithBody returns a copy of r carrying the given buffered body.
func (r *Response) WithBody(body []byte) *Response {
	r2 := r.clone()
	r2.body = body
	return r2
}

// WithRequest returns a copy of r attributed to the given request.
func (r *Response) WithRequest(req *Request) *Response {
	if req == nil {
		panic("callx/request: nil request")
	}
	r2 := r.clone()
	r2.request = req
	return r2
}

// WithPrior returns a copy of r whose Prior chain starts at prior. The
// prior response's own body is typically discarded before it is
// recorded here; only its status and headers matter for history.
func (r *Response) WithPrior(prior *Response) *Response {
	r2 := r.clone()
	r2.prior = prior
	return r2
}

func (r *Response) clone() *Response {
	r2 := new(Response)
	*r2 = *r
	r2.header = r.header.Clone()
	return r2
}
