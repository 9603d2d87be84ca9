// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"fmt"
	"net/http"
	urlpkg "net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// A Request describes a logical HTTP request to be executed by a call.
//
// A Request is immutable: the execution logic never modifies one in
// place, and neither should interceptors or other callers. To derive a
// variant, use the With methods, which return a copy with the requested
// modification applied. The original request held by a call is never
// overwritten by redirects or authentication follow-ups; each follow-up
// is a fresh Request derived from its predecessor.
//
// The zero value is not useful; construct requests with New or
// NewWithBody.
type Request struct {
	method string
	url    *urlpkg.URL
	header http.Header
	body   Body
	host   string
	tag    interface{}
}

// New returns a Request for the given method and URL with no body and
// an empty header. An empty method means GET.
//
// The method must be a valid HTTP token and the URL must parse.
func New(method, url string) (*Request, error) {
	return NewWithBody(method, url, nil)
}

// NewWithBody returns a Request for the given method, URL, and body.
// An empty method means GET, and a nil body means no request body will
// be sent.
func NewWithBody(method, url string, body Body) (*Request, error) {
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("callx/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("callx/request: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("callx/request: missing host")
	}
	u.Host = removeEmptyPort(u.Host)
	return &Request{
		method: method,
		url:    u,
		header: make(http.Header),
		body:   body,
		host:   u.Host,
	}, nil
}

// Method returns the HTTP method, which is never empty.
func (r *Request) Method() string { return r.method }

// URL returns the request URL. Callers must treat the returned value as
// read-only; to change the target, use WithURL.
func (r *Request) URL() *urlpkg.URL { return r.url }

// Header returns the first value associated with the given header name,
// or the empty string if the header is not present. The name is
// canonicalized per net/http conventions.
func (r *Request) Header(name string) string { return r.header.Get(name) }

// HeaderValues returns all values associated with the given header name
// in the order they were added.
func (r *Request) HeaderValues(name string) []string { return r.header.Values(name) }

// Headers returns a copy of the request headers. Modifying the returned
// map does not affect the request.
func (r *Request) Headers() http.Header { return r.header.Clone() }

// Body returns the request body, or nil if the request has none.
func (r *Request) Body() Body { return r.body }

// Host returns the Host header value to send. It defaults to the URL
// host.
func (r *Request) Host() string { return r.host }

// Tag returns the opaque tag attached to the request, or nil. Tags
// identify groups of calls for bulk cancellation through a dispatcher.
func (r *Request) Tag() interface{} { return r.tag }

// WithHeader returns a copy of r in which the given header is set to
// value, replacing any existing values. It panics if the name or value
// is not a valid header field per RFC 7230.
func (r *Request) WithHeader(name, value string) *Request {
	checkHeader(name, value)
	r2 := r.clone()
	r2.header.Set(name, value)
	return r2
}

// WithAddedHeader returns a copy of r in which value is appended to any
// existing values of the given header.
func (r *Request) WithAddedHeader(name, value string) *Request {
	checkHeader(name, value)
	r2 := r.clone()
	r2.header.Add(name, value)
	return r2
}

// WithoutHeader returns a copy of r with all values of the given header
// removed. If the header is not present, the copy is still made.
func (r *Request) WithoutHeader(name string) *Request {
	r2 := r.clone()
	r2.header.Del(name)
	return r2
}

// WithBody returns a copy of r carrying the given body. A nil body
// removes any existing body.
func (r *Request) WithBody(body Body) *Request {
	r2 := r.clone()
	r2.body = body
	return r2
}

// WithMethod returns a copy of r using the given HTTP method. An empty
// method means GET. It panics if the method is not a valid HTTP token.
func (r *Request) WithMethod(method string) *Request {
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		panic(fmt.Sprintf("callx/request: invalid method %q", method))
	}
	r2 := r.clone()
	r2.method = method
	return r2
}

// WithURL returns a copy of r targeting u. The Host header tracks the
// new URL host. It panics if u is nil.
func (r *Request) WithURL(u *urlpkg.URL) *Request {
	if u == nil {
		panic("callx/request: nil url")
	}
	r2 := r.clone()
	u2 := *u
	u2.Host = removeEmptyPort(u2.Host)
	r2.url = &u2
	r2.host = u2.Host
	return r2
}

// WithTag returns a copy of r carrying the given opaque tag.
func (r *Request) WithTag(tag interface{}) *Request {
	r2 := r.clone()
	r2.tag = tag
	return r2
}

// WithBasicAuth returns a copy of r whose Authorization header uses
// HTTP Basic Authentication with the provided username and password.
//
// With HTTP Basic Authentication the provided username and password are
// not encrypted.
func (r *Request) WithBasicAuth(username, password string) *Request {
	return r.WithHeader("Authorization", "Basic "+basicAuth(username, password))
}

// WithCookie returns a copy of r with the cookie appended to any Cookie
// header already present. Per RFC 6265 section 5.4 all cookies are
// written into a single header line separated by semicolons.
func (r *Request) WithCookie(c *http.Cookie) *Request {
	c2 := &http.Cookie{Name: c.Name, Value: c.Value}
	s := c2.String()
	if h := r.header.Get("Cookie"); h != "" {
		s = h + "; " + s
	}
	return r.WithHeader("Cookie", s)
}

func (r *Request) clone() *Request {
	r2 := new(Request)
	*r2 = *r
	r2.header = r.header.Clone()
	return r2
}

func checkHeader(name, value string) {
	if !httpguts.ValidHeaderFieldName(name) {
		panic(fmt.Sprintf("callx/request: invalid header field name %q", name))
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		panic(fmt.Sprintf("callx/request: invalid header field value for %q", name))
	}
}

// validMethod checks the method against the token production in RFC
// 7230 section 3.2.6. The empty string is never passed in because it is
// interpreted as GET before validation.
func validMethod(method string) bool {
	return strings.IndexFunc(method, func(r rune) bool {
		return !httpguts.IsTokenRune(r)
	}) == -1
}

// hasPort is lifted verbatim from net/http/http.go
//
// Given a string of the form "host", "host:port", or "[ipv6::address]:port",
// return true if the string includes a port.
func hasPort(s string) bool { return strings.LastIndex(s, ":") > strings.LastIndex(s, "]") }

// removeEmptyPort is lifted verbatim from net/http/http.go
//
// removeEmptyPort strips the empty port in ":port" to ""
// as mandated by RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if hasPort(host) {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
