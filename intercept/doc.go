// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package intercept provides stock interceptors for the callx client:
// structured request/response logging backed by zerolog, and a circuit
// breaker backed by sony/gobreaker.
//
// Both are ordinary callx.Interceptor values. Install them in
// Client.Interceptors in the order they should see outbound requests.
package intercept
