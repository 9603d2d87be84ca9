// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"context"
	"net/url"

	"github.com/callx/callx/request"
)

// Doer is the interface that wraps the basic Do method.
//
// Do executes a request and returns the terminal response (and error,
// if any). Client implements the Doer interface, and any other Doer
// implementation must behave substantially the same as Client.Do.
//
// Any Doer can be converted into an Executor via the Inflate function.
type Doer interface {
	Do(ctx context.Context, req *request.Request) (*request.Response, error)
}

// Getter is the interface that wraps the basic Get method.
//
// Get issues a GET to the specified URL and returns the terminal
// response. Client implements the Getter interface.
//
// Any Doer can be used to emulate a Getter via the Get function.
type Getter interface {
	Get(ctx context.Context, url string) (*request.Response, error)
}

// Poster is the interface that wraps the basic Post method.
//
// Post issues a POST of body to the specified URL. The body parameter
// may be nil for an empty body, or any of the types supported by
// request.BodyOf: string, []byte, io.Reader, or request.Body. Client
// implements the Poster interface.
//
// Any Doer can be used to emulate a Poster via the Post function.
type Poster interface {
	Post(ctx context.Context, url, contentType string, body interface{}) (*request.Response, error)
}

// Executor is the interface that groups the basic Do, Get, and Post
// methods.
//
// Any Doer can be converted into an Executor via the Inflate function.
type Executor interface {
	Doer
	Getter
	Poster
}

var (
	_ Executor = (*Client)(nil)
)

// Get uses the specified Doer to issue a GET to the specified URL,
// using the same policies as d.Do.
//
// To send custom headers, build the request with package request and
// use d.Do.
func Get(ctx context.Context, d Doer, url string) (*request.Response, error) {
	req, err := request.New("GET", url)
	if err != nil {
		return nil, err
	}
	return d.Do(ctx, req)
}

// Head uses the specified Doer to issue a HEAD to the specified URL,
// using the same policies as d.Do.
func Head(ctx context.Context, d Doer, url string) (*request.Response, error) {
	req, err := request.New("HEAD", url)
	if err != nil {
		return nil, err
	}
	return d.Do(ctx, req)
}

// Post uses the specified Doer to issue a POST to the specified URL,
// using the same policies as d.Do.
//
// The body parameter may be nil for an empty body, or any of the types
// supported by request.BodyOf: string, []byte, io.Reader, or
// request.Body.
func Post(ctx context.Context, d Doer, url, contentType string, body interface{}) (*request.Response, error) {
	b, err := request.BodyOf(contentType, body)
	if err != nil {
		return nil, err
	}
	req, err := request.NewWithBody("POST", url, b)
	if err != nil {
		return nil, err
	}
	return d.Do(ctx, req)
}

// PostForm uses the specified Doer to issue a POST to the specified
// URL, with data's keys and values URL-encoded as the request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
func PostForm(ctx context.Context, d Doer, url string, data url.Values) (*request.Response, error) {
	req, err := request.NewWithBody("POST", url, request.FormBody(data))
	if err != nil {
		return nil, err
	}
	return d.Do(ctx, req)
}

// Inflate converts any non-nil Doer into an Executor. This may be
// helpful for interop across library boundaries, i.e. if code that only
// has access to a Doer needs to call a function that requires an
// Executor.
func Inflate(d Doer) Executor {
	if d == nil {
		panic("callx: nil doer")
	}

	if e, ok := d.(Executor); ok {
		return e
	}

	return inflated{d}
}

type inflated struct {
	doer Doer
}

func (i inflated) Do(ctx context.Context, req *request.Request) (*request.Response, error) {
	return i.doer.Do(ctx, req)
}

func (i inflated) Get(ctx context.Context, url string) (*request.Response, error) {
	return Get(ctx, i.doer, url)
}

func (i inflated) Post(ctx context.Context, url, contentType string, body interface{}) (*request.Response, error) {
	return Post(ctx, i.doer, url, contentType, body)
}
