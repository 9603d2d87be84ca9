// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package intercept

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/callx/callx"
	"github.com/callx/callx/request"
)

// A Logger is an interceptor that logs one event per call: method,
// host, path, outcome, and elapsed time, measured around the rest of
// the pipeline. Because interceptors wrap the invocation of the next,
// installing the logger first times everything downstream of it,
// including recoveries and follow-ups.
type Logger struct {
	log *zerolog.Logger

	// RedactPath suppresses the request path and query from log
	// events, leaving only scheme and host.
	RedactPath bool

	// RedactQuery suppresses only the query string. It has no effect
	// when RedactPath is set.
	RedactQuery bool
}

// NewLogger returns a logging interceptor writing to log. A nil log
// panics.
func NewLogger(log *zerolog.Logger) *Logger {
	if log == nil {
		panic("intercept: nil logger")
	}
	return &Logger{log: log, RedactQuery: true}
}

// Intercept implements callx.Interceptor.
func (l *Logger) Intercept(chain callx.Chain) (*request.Response, error) {
	req := chain.Request()
	start := time.Now()
	resp, err := chain.Proceed(req)
	elapsed := time.Since(start)

	if err != nil {
		l.log.Warn().
			Str("method", req.Method()).
			Str("url", l.target(req)).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("call failed")
		return nil, err
	}

	ev := l.log.Info()
	if !resp.Success() {
		ev = l.log.Warn()
	}
	ev.Str("method", req.Method()).
		Str("url", l.target(req)).
		Int("status", resp.StatusCode()).
		Dur("elapsed", elapsed).
		Msg("call complete")
	return resp, nil
}

func (l *Logger) target(req *request.Request) string {
	u := *req.URL()
	u.User = nil
	u.Fragment = ""
	if l.RedactPath {
		u.Path = ""
		u.RawPath = ""
		u.RawQuery = ""
	} else if l.RedactQuery {
		u.RawQuery = ""
	}
	return u.String()
}
