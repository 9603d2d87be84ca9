// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package recovery

import (
	"github.com/callx/callx/request"
	"github.com/callx/callx/transient"
)

// An Attempt describes one failed network attempt for the benefit of a
// recovery Policy. The engine constructs an Attempt whenever an attempt
// fails in a way that might be recoverable, and builds a replacement
// engine only if the policy allows it.
type Attempt struct {
	// Request is the request that was in flight when the failure
	// occurred. For a follow-up this is the follow-up request, not the
	// call's original request.
	Request *request.Request

	// Err is the failure that ended the attempt. It is never nil.
	Err error

	// Sent indicates whether any part of the request may have reached
	// the server before the failure. It is false for route-connection
	// failures, where no connection was ever established.
	Sent bool

	// ForRoute indicates the failure occurred while establishing a
	// route or connection, before the request could be written.
	ForRoute bool

	// Recoveries is the number of recovery engines already constructed
	// for the call, zero on the first failure.
	Recoveries int
}

// A Policy decides whether a failed network attempt should be recovered
// by constructing a replacement engine and retrying on a fresh
// connection.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
//
// Use the built-in policies DefaultPolicy or Never, or compose your own
// from PolicyFunc predicates using And and Or.
type Policy interface {
	Allow(a *Attempt) bool
}

// The PolicyFunc type is an adapter to allow the use of ordinary
// functions as recovery policies. It implements the Policy interface,
// and also provides the logical composition methods And and Or.
//
// Every PolicyFunc must be safe for concurrent use by multiple
// goroutines.
type PolicyFunc func(a *Attempt) bool

// DefaultLimit is the number of recovery engines DefaultPolicy will
// construct for one call before giving up.
const DefaultLimit = 3

// DefaultPolicy is a general-purpose recovery policy suitable for
// common use cases. It allows up to DefaultLimit recoveries per call,
// requires the failure to be transient, and refuses to recover when a
// request body that may already have been sent cannot be replayed.
var DefaultPolicy Policy = Limit(DefaultLimit).And(Transient).And(ReplayableBody)

// Never is a policy that never recovers. Every attempt failure
// propagates directly to the caller.
var Never Policy = PolicyFunc(func(*Attempt) bool { return false })

// Allow returns true if the failed attempt should be recovered, and
// false otherwise.
func (f PolicyFunc) Allow(a *Attempt) bool {
	return f(a)
}

// And composes two recovery policies into a new policy which allows
// recovery only if both sub-policies allow it.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f PolicyFunc) And(g PolicyFunc) PolicyFunc {
	return func(a *Attempt) bool {
		return f(a) && g(a)
	}
}

// Or composes two recovery policies into a new policy which allows
// recovery if either sub-policy allows it.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f PolicyFunc) Or(g PolicyFunc) PolicyFunc {
	return func(a *Attempt) bool {
		return f(a) || g(a)
	}
}

// Limit constructs a recovery policy which allows up to n recoveries
// per call. The returned policy returns true while a.Recoveries is less
// than n, and false afterward.
func Limit(n int) PolicyFunc {
	return func(a *Attempt) bool {
		return a.Recoveries < n
	}
}

// Transient is a policy that allows recovery if the failure is
// recoverable according to transient.Recoverable, taking into account
// whether the request may have reached the server.
var Transient PolicyFunc = func(a *Attempt) bool {
	return transient.Recoverable(a.Err, a.Sent)
}

// ReplayableBody is a policy that refuses recovery when the request
// carries a one-shot body that may already have been partially sent.
// Compose it with other policies to avoid resending a body the library
// cannot reproduce.
var ReplayableBody PolicyFunc = func(a *Attempt) bool {
	if !a.Sent || a.Request == nil {
		return true
	}
	return request.Replayable(a.Request.Body())
}
