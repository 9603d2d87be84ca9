// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package engine defines the network engine contract consumed by the
callx execution core, and provides the default implementation backed by
net/http transports.

An Engine owns one attempt's worth of connection and transport state:
it sends a single request, reads and buffers a single response, and
afterward answers two questions for the execution loop: can this
failure be recovered on a fresh connection, and does this response
demand a follow-up request (a redirect or an authentication
challenge)? The loop replaces the engine wholesale on every recovery
and follow-up, which is what keeps stale per-attempt state from
leaking into the next attempt.

The default factory performs exchanges over a pooled net/http
transport. Connection identity is observed through net/http/httptrace,
recovery decisions delegate to the recovery and transient packages,
and HTTP/2 support is configured through golang.org/x/net/http2.

Most users never touch this package directly; a callx.Client wires the
default factory in. Install a custom Factory to substitute a different
transport entirely, for example in tests.
*/
package engine
