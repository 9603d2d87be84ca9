// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"syscall"
)

// A Category is the transience category of a particular error, as
// reported by function Categorize().
//
// The category Not means the error is not transient from the
// perspective of completing an HTTP exchange successfully, or in other
// words that a new attempt after encountering this error is very
// unlikely to succeed.
//
// All other categories indicate some prospect of success on a new
// attempt, typically over a fresh connection.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout. The server may be going
	// through a temporary period of slowness, or the client may succeed
	// on a future attempt waiting longer (increasing its timeout).
	//
	// Function Categorize() will return Timeout if the error or any of
	// its wrapped causes has a Timeout() function that reports true.
	Timeout
	// ConnRefused indicates the remote host refused the connection,
	// and corresponds to the POSIX error code ECONNREFUSED.
	//
	// Although connection refusal may be a permanent condition, it is
	// classified as transient because it can happen while the service
	// on the remote host is starting or restarting and not yet
	// listening on the target port.
	ConnRefused
	// ConnReset indicates the remote host returned an RST packet on a
	// previously active TCP connection, and corresponds to the POSIX
	// error code ECONNRESET.
	//
	// A reset is common when a server or load balancer drops a
	// connection it considers stale, in which case a new attempt over a
	// fresh connection has a high probability of success.
	ConnReset
	// BrokenPipe indicates a write on a connection the remote host had
	// already closed, and corresponds to the POSIX error code EPIPE. As
	// with ConnReset, a fresh connection tends to succeed.
	BrokenPipe
)

// Categorize returns the transience category of the given error. All
// non-nil transient errors result in a transience category other than
// Not. A nil error, and an error that is not transient from the
// perspective of completing an HTTP exchange, both produce the return
// value Not.
//
// In assessing transience, Categorize looks at wrapped cause errors
// contained within err, not just err itself. However, Categorize never
// checks whether an error has a Temporary() function, as the semantics
// of Temporary() aren't entirely clear.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET:
			return ConnReset
		case syscall.ECONNREFUSED:
			return ConnRefused
		case syscall.EPIPE:
			return BrokenPipe
		}
	}

	return Not
}

// Recoverable reports whether an HTTP request attempt that failed with
// err can meaningfully be retried on a new connection. sent indicates
// whether any part of the request may have reached the server before
// the failure.
//
// Recoverable is stricter than Categorize: a transient error is not
// recoverable when the failure is really a verdict on the request or
// its destination rather than on the connection that carried it. An
// error wrapping context.Canceled is not recoverable, because the
// caller has withdrawn the request. A certificate verification failure
// is not recoverable, because a new connection to the same host will
// fail the same way.
//
// A timeout is recoverable here because an attempt-level timeout has a
// prospect of success on retry. Recoverable cannot tell an attempt
// timeout apart from an exhausted overall deadline, so callers with an
// overall deadline must additionally consult their own context before
// retrying.
//
// An abrupt end of stream (io.EOF or io.ErrUnexpectedEOF) is treated as
// recoverable only when the request had already been sent: it means the
// server accepted a connection and then dropped it mid-exchange, which
// is the same situation as a connection reset.
func Recoverable(err error, sent bool) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var unknownAuthority x509.UnknownAuthorityError
	var invalidCert x509.CertificateInvalidError
	var hostnameErr x509.HostnameError
	if errors.As(err, &unknownAuthority) || errors.As(err, &invalidCert) || errors.As(err, &hostnameErr) {
		return false
	}

	switch Categorize(err) {
	case Timeout, ConnRefused, ConnReset, BrokenPipe:
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return sent
	}

	return false
}

type hasTimeout interface {
	Timeout() bool
}
