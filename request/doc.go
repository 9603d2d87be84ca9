// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core value types Request (describes an
outgoing HTTP request) and Response (describes the outcome of one HTTP
exchange). These two types flow through every stage of a callx call.

Both types are immutable. The execution core never modifies a Request
or Response in place, and neither should interceptors or other callers.
To derive a variant, use the With methods, which return a copy with the
requested modification applied:

	req, err := request.New("GET", "https://example.com")
	...
	req = req.WithHeader("Accept", "application/json")

Immutability is what lets a single request value be observed
concurrently by interceptors, the dispatcher, and cancellation logic
without synchronization, and what guarantees the original request held
by a call is never corrupted by redirects or authentication headers.

Request bodies are modeled by the Body interface, which declares its
own media type and length. A Body backed by bytes can be replayed
across retries and follow-ups; a Body streaming from a reader is
one-shot, is sent with chunked transfer encoding, and makes any failure
after it starts streaming non-recoverable.
*/
package request
