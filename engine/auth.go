// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/base64"

	"github.com/callx/callx/request"
)

// An Authenticator reacts to an authentication challenge (a 401 or 407
// response) by returning a request that satisfies the challenge, or nil
// to give up and let the challenge response stand as the terminal
// result.
//
// The response passed to Authenticate carries the request that was
// refused; a typical implementation derives the follow-up from it with
// WithHeader. Returning a request identical in credentials to the one
// that was just refused creates a follow-up loop, which the execution
// core cuts off at its fixed follow-up bound; well-behaved
// authenticators give up on their own when they see their credentials
// were already tried.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Authenticator interface {
	Authenticate(resp *request.Response) (*request.Request, error)
}

// The AuthenticatorFunc type is an adapter to allow the use of ordinary
// functions as authenticators.
type AuthenticatorFunc func(resp *request.Response) (*request.Request, error)

// Authenticate calls f(resp).
func (f AuthenticatorFunc) Authenticate(resp *request.Response) (*request.Request, error) {
	return f(resp)
}

// BasicAuth returns an Authenticator that answers a challenge with HTTP
// Basic credentials in the given header, typically "Authorization" for
// 401 challenges or "Proxy-Authorization" for 407 challenges. It gives
// up if the refused request already carried the same credentials, so a
// wrong password fails after one follow-up instead of looping to the
// follow-up bound.
func BasicAuth(header, username, password string) Authenticator {
	credential := "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	return AuthenticatorFunc(func(resp *request.Response) (*request.Request, error) {
		if resp.Request().Header(header) == credential {
			return nil, nil
		}
		return resp.Request().WithHeader(header, credential), nil
	})
}
