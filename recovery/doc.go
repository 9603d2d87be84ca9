// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package recovery decides whether a failed network attempt should be
// retried on a fresh connection, and how long to wait before doing so.
//
// A recovery Policy examines a failed Attempt (the error, whether the
// request reached the server, how many recoveries the call has already
// consumed) and returns a verdict. Simple PolicyFunc predicates compose
// into complex decision trees using And and Or:
//
//	p := recovery.Limit(5).And(recovery.Transient.Or(myPredicate))
//
// Waits between recoveries come from a jittered exponential backoff
// sequence built on the sethvargo/go-retry package.
package recovery
