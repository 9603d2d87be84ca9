// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	urlpkg "net/url"
	"strconv"
	"sync"

	"github.com/sethvargo/go-retry"
	"golang.org/x/net/http2"

	"github.com/callx/callx/recovery"
	"github.com/callx/callx/request"
)

// DefaultFactory constructs engines that perform their exchanges over
// net/http transports. It is the factory used when a client does not
// install its own.
var DefaultFactory Factory = FactoryFunc(func(ctx context.Context, opts *Options, req *request.Request, conn Connection, prior *request.Response) Engine {
	return &netEngine{
		ctx:     ctx,
		opts:    opts,
		req:     req,
		carried: conn,
		prior:   prior,
		backoff: opts.backoff(),
	}
})

// netEngine is one attempt's worth of state over a net/http transport.
// The pooling transport owns the actual sockets; the engine tracks
// which connection carried its exchange via httptrace and uses the
// attempt context to interrupt blocked I/O on Disconnect.
type netEngine struct {
	ctx     context.Context
	opts    *Options
	req     *request.Request
	prior   *request.Response
	carried Connection

	httpReq *http.Request
	resp    *request.Response

	recoveries int
	backoff    retry.Backoff

	mu            sync.Mutex
	attemptCancel context.CancelFunc
	disconnected  bool
	released      bool
	sent          bool
	conn          *connInfo
}

func (e *netEngine) Request() *request.Request { return e.req }

func (e *netEngine) SendRequest() error {
	u := e.req.URL()
	if u == nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &RequestError{Err: fmt.Errorf("unusable url %v", u)}
	}

	ctx := e.ctx
	var cancel context.CancelFunc
	if e.opts != nil && e.opts.AttemptTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.opts.AttemptTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	e.mu.Lock()
	if e.disconnected {
		e.mu.Unlock()
		cancel()
		return context.Canceled
	}
	e.attemptCancel = cancel
	e.mu.Unlock()

	trace := &httptrace.ClientTrace{
		GotConn: func(ci httptrace.GotConnInfo) {
			e.mu.Lock()
			e.conn = &connInfo{
				local:  ci.Conn.LocalAddr(),
				remote: ci.Conn.RemoteAddr(),
				reused: ci.Reused,
			}
			e.mu.Unlock()
		},
		WroteHeaders: func() {
			e.mu.Lock()
			e.sent = true
			e.mu.Unlock()
		},
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	hr, err := http.NewRequestWithContext(ctx, e.req.Method(), u.String(), nil)
	if err != nil {
		e.finishAttempt()
		return &RequestError{Err: err}
	}
	hr.Header = e.req.Headers()
	hr.Host = e.req.Host()

	// Framing is communicated through the request fields; the transport
	// rejects these as literal headers.
	hr.Header.Del("Content-Length")
	hr.Header.Del("Transfer-Encoding")

	if body := e.req.Body(); body != nil {
		rc, err := body.Open()
		if err != nil {
			e.finishAttempt()
			return &RequestError{Err: err}
		}
		hr.Body = rc
		if n := body.ContentLength(); n >= 0 {
			hr.ContentLength = n
			if request.Replayable(body) {
				hr.GetBody = func() (io.ReadCloser, error) { return body.Open() }
			}
		} else {
			hr.ContentLength = -1
		}
	}

	e.httpReq = hr
	return nil
}

func (e *netEngine) ReadResponse() error {
	if e.httpReq == nil {
		return &RequestError{Err: errors.New("read before send")}
	}

	hresp, err := e.transport().RoundTrip(e.httpReq)
	if err != nil {
		e.finishAttempt()
		e.mu.Lock()
		routed := e.conn != nil || e.sent
		e.mu.Unlock()
		if !routed {
			return &RouteError{Err: err}
		}
		return err
	}

	var body []byte
	if limit := e.maxResponseBytes(); limit > 0 {
		body, err = io.ReadAll(io.LimitReader(hresp.Body, limit+1))
		if err == nil && int64(len(body)) > limit {
			err = fmt.Errorf("callx/engine: response body exceeds %d bytes", limit)
		}
	} else {
		body, err = io.ReadAll(hresp.Body)
	}
	cerr := hresp.Body.Close()
	e.finishAttempt()
	if err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	resp := request.NewResponse(e.req, hresp.StatusCode, hresp.Header, body)
	if e.prior != nil {
		resp = resp.WithPrior(e.prior)
	}
	e.resp = resp
	return nil
}

func (e *netEngine) Response() *request.Response { return e.resp }

func (e *netEngine) FollowUp() (*request.Request, error) {
	resp := e.resp
	if resp == nil {
		return nil, nil
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		if a := e.authenticator(); a != nil {
			return a.Authenticate(resp)
		}
		return nil, nil

	case http.StatusProxyAuthRequired:
		if a := e.proxyAuthenticator(); a != nil {
			return a.Authenticate(resp)
		}
		return nil, nil

	case http.StatusRequestTimeout:
		// The server gave up waiting; replay the identical request on a
		// fresh exchange, unless the body cannot be resent or the
		// previous exchange was itself a 408.
		if !request.Replayable(e.req.Body()) {
			return nil, nil
		}
		if prior := resp.Prior(); prior != nil && prior.StatusCode() == http.StatusRequestTimeout {
			return nil, nil
		}
		return e.req, nil

	case http.StatusMultipleChoices, http.StatusMovedPermanently,
		http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return e.redirect(resp)
	}

	return nil, nil
}

func (e *netEngine) redirect(resp *request.Response) (*request.Request, error) {
	if e.opts != nil && e.opts.DisableRedirects {
		return nil, nil
	}
	loc := resp.Header("Location")
	if loc == "" {
		return nil, nil
	}
	u, err := e.req.URL().Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("callx/engine: invalid redirect location %q: %v", loc, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, nil
	}

	next := e.req.WithURL(u)

	method := e.req.Method()
	if method != "GET" && method != "HEAD" {
		code := resp.StatusCode()
		rewrite := code == http.StatusSeeOther ||
			((code == http.StatusMovedPermanently || code == http.StatusFound) && method == "POST")
		switch {
		case rewrite:
			next = next.WithMethod("GET").
				WithBody(nil).
				WithoutHeader("Content-Length").
				WithoutHeader("Content-Type").
				WithoutHeader("Transfer-Encoding")
		case code == http.StatusTemporaryRedirect || code == http.StatusPermanentRedirect:
			if !request.Replayable(e.req.Body()) {
				return nil, nil
			}
		}
	}

	// Never forward credentials to a different host.
	if u.Hostname() != e.req.URL().Hostname() {
		next = next.WithoutHeader("Authorization")
	}
	return next, nil
}

func (e *netEngine) Recover(err error, forRoute bool) Engine {
	if err == nil || e.ctx.Err() != nil {
		return nil
	}

	e.mu.Lock()
	sent := e.sent
	e.mu.Unlock()
	if forRoute {
		sent = false
	}

	a := &recovery.Attempt{
		Request:    e.req,
		Err:        err,
		Sent:       sent,
		ForRoute:   forRoute,
		Recoveries: e.recoveries,
	}
	if !e.opts.recoveryPolicy().Allow(a) {
		return nil
	}
	if waitErr := recovery.Wait(e.ctx, e.backoff); waitErr != nil {
		return nil
	}

	return &netEngine{
		ctx:        e.ctx,
		opts:       e.opts,
		req:        e.req,
		prior:      e.prior,
		recoveries: e.recoveries + 1,
		backoff:    e.backoff,
	}
}

func (e *netEngine) SameConnection(u *urlpkg.URL) bool {
	cur := e.req.URL()
	return u.Scheme == cur.Scheme &&
		u.Hostname() == cur.Hostname() &&
		effectivePort(u) == effectivePort(cur)
}

// ReleaseConnection records that the engine no longer holds its
// connection. With a pooling net/http transport the socket went back to
// the pool when the response body was drained and closed; there is
// nothing further to return.
func (e *netEngine) ReleaseConnection() {
	e.mu.Lock()
	e.released = true
	e.mu.Unlock()
}

func (e *netEngine) Close() Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return e.carried
	}
	return e.conn
}

func (e *netEngine) Connection() Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return e.carried
	}
	return e.conn
}

func (e *netEngine) Disconnect() {
	e.mu.Lock()
	cancel := e.attemptCancel
	e.disconnected = true
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *netEngine) finishAttempt() {
	e.mu.Lock()
	cancel := e.attemptCancel
	e.attemptCancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *netEngine) transport() http.RoundTripper {
	if e.opts != nil && e.opts.Transport != nil {
		return e.opts.Transport
	}
	return sharedTransport(e.opts != nil && e.opts.EnableHTTP2)
}

func (e *netEngine) authenticator() Authenticator {
	if e.opts == nil {
		return nil
	}
	return e.opts.Authenticator
}

func (e *netEngine) proxyAuthenticator() Authenticator {
	if e.opts == nil {
		return nil
	}
	return e.opts.ProxyAuthenticator
}

func (e *netEngine) maxResponseBytes() int64 {
	if e.opts == nil {
		return 0
	}
	return e.opts.MaxResponseBytes
}

type connInfo struct {
	local  net.Addr
	remote net.Addr
	reused bool
}

func (c *connInfo) LocalAddr() net.Addr  { return c.local }
func (c *connInfo) RemoteAddr() net.Addr { return c.remote }
func (c *connInfo) Reused() bool         { return c.reused }

func effectivePort(u *urlpkg.URL) int {
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err == nil {
			return n
		}
	}
	if u.Scheme == "https" {
		return 443
	}
	return 80
}

var (
	transportMu sync.Mutex
	h1Transport *http.Transport
	h2Transport *http.Transport
)

func sharedTransport(enableHTTP2 bool) http.RoundTripper {
	transportMu.Lock()
	defer transportMu.Unlock()
	if enableHTTP2 {
		if h2Transport == nil {
			h2Transport = newTransport()
			// ConfigureTransport only fails when the transport has
			// already been customized in a conflicting way, which a
			// freshly built transport has not.
			_ = http2.ConfigureTransport(h2Transport)
		}
		return h2Transport
	}
	if h1Transport == nil {
		h1Transport = newTransport()
	}
	return h1Transport
}

func newTransport() *http.Transport {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		return t.Clone()
	}
	return &http.Transport{Proxy: http.ProxyFromEnvironment}
}

// CloseIdleConnections closes idle pooled connections held by the
// shared transports. Connections in active use are unaffected.
func CloseIdleConnections() {
	transportMu.Lock()
	h1, h2 := h1Transport, h2Transport
	transportMu.Unlock()
	if h1 != nil {
		h1.CloseIdleConnections()
	}
	if h2 != nil {
		h2.CloseIdleConnections()
	}
}
