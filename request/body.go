// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"net/url"
	"sync"
)

// A Body describes the payload of an outgoing HTTP request.
//
// A Body declares its own media type and length, and the execution logic
// propagates both into the request headers before the first network
// attempt: a known length produces a Content-Length header, an unknown
// length produces chunked transfer encoding.
//
// Open is called once per request attempt, so a Body backed by a byte
// slice can be replayed safely across retries and follow-ups, while a
// Body backed by a one-shot stream will fail the second Open. The
// recovery logic treats an unreplayable body as a non-recoverable
// condition.
type Body interface {
	// ContentType returns the media type of the body, or the empty
	// string if no media type is declared.
	ContentType() string
	// ContentLength returns the length of the body in bytes, or -1 if
	// the length is not known in advance.
	ContentLength() int64
	// Open returns a fresh reader positioned at the start of the body
	// content.
	Open() (io.ReadCloser, error)
}

// ErrBodyNotReplayable is returned by Open when a one-shot Body is
// opened a second time, for example when a retry or redirect needs to
// resend a streamed body that has already been consumed.
var ErrBodyNotReplayable = errors.New("callx/request: body is not replayable")

// BytesBody returns a replayable Body backed by b with the given media
// type. Pass an empty contentType to leave the media type undeclared.
//
// The returned Body does not copy b; the caller must not modify b after
// the call.
func BytesBody(contentType string, b []byte) Body {
	return &bytesBody{contentType: contentType, b: b}
}

// StringBody returns a replayable Body backed by s with the given media
// type.
func StringBody(contentType, s string) Body {
	return &bytesBody{contentType: contentType, b: []byte(s)}
}

// FormBody returns a replayable Body containing data's keys and values
// URL-encoded, with the media type application/x-www-form-urlencoded.
func FormBody(data url.Values) Body {
	return StringBody("application/x-www-form-urlencoded", data.Encode())
}

// JSONBody returns a replayable Body backed by b with the media type
// application/json. The bytes are assumed to already contain encoded
// JSON; no validation is performed.
func JSONBody(b []byte) Body {
	return &bytesBody{contentType: "application/json", b: b}
}

// ReaderBody returns a one-shot Body of unknown length that streams
// from r. If r is an io.ReadCloser it is closed when the attempt
// finishes reading it.
//
// Because the length is unknown, a request carrying a ReaderBody is
// sent with chunked transfer encoding. Because the body cannot be
// replayed, a failure after the body has started streaming is not
// recoverable, and a redirect that must resend the body fails.
func ReaderBody(contentType string, r io.Reader) Body {
	return &readerBody{contentType: contentType, r: r}
}

type bytesBody struct {
	contentType string
	b           []byte
}

func (b *bytesBody) ContentType() string { return b.contentType }
func (b *bytesBody) ContentLength() int64 { return int64(len(b.b)) }
func (b *bytesBody) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.b)), nil
}

type readerBody struct {
	contentType string

	mu     sync.Mutex
	r      io.Reader
	opened bool
}

func (b *readerBody) ContentType() string { return b.contentType }
func (b *readerBody) ContentLength() int64 { return -1 }

func (b *readerBody) Open() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return nil, ErrBodyNotReplayable
	}
	b.opened = true
	if rc, ok := b.r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(b.r), nil
}

// Replayable reports whether body can be opened more than once. A nil
// body is trivially replayable.
func Replayable(body Body) bool {
	if body == nil {
		return true
	}
	_, oneShot := body.(*readerBody)
	return !oneShot
}

// BodyOf converts an arbitrary value into a Body. It accepts nil (no
// body), a Body (returned unchanged), a string, a []byte, or an
// io.Reader. The contentType applies to the converted body when the
// value is not already a Body.
func BodyOf(contentType string, v interface{}) (Body, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case Body:
		return b, nil
	case string:
		return StringBody(contentType, b), nil
	case []byte:
		return BytesBody(contentType, b), nil
	case io.Reader:
		return ReaderBody(contentType, b), nil
	default:
		return nil, errors.New("callx/request: unsupported body type")
	}
}

// basicAuth is lifted verbatim from net/http/client.go.
//
// See 2 (end of page 4) https://www.ietf.org/rfc/rfc2617.txt
// "To receive authorization, the client sends the userid and password,
// separated by a single colon (":") character, within a base64
// encoded string in the credentials."
// It is not meant to be urlencoded.
func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}
