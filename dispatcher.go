// Copyright 2026 The callx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package callx

import (
	"sync"
)

// A Dispatcher schedules asynchronous calls and accounts for running
// ones. The execution core requires only this contract: a notification
// when a synchronous call starts and finishes, acceptance of an
// asynchronous unit of work, and a notification when that unit
// finishes. Everything else, such as worker policy, queue limits, and
// ordering, belongs to the dispatcher implementation.
//
// Implementations must be safe for concurrent use by multiple
// goroutines, and must guarantee that Run is invoked exactly once for
// every enqueued AsyncCall.
type Dispatcher interface {
	// Executed records that a synchronous call has begun executing on
	// its caller's goroutine.
	Executed(c *Call)

	// Finished records that a synchronous call has completed,
	// successfully or not. It is invoked exactly once for every
	// Executed notification.
	Finished(c *Call)

	// Enqueue accepts an asynchronous call for execution at some point
	// in the future. It must not block the caller.
	Enqueue(ac *AsyncCall)

	// FinishedAsync records that an asynchronous call's Run has
	// returned. It is invoked exactly once for every enqueued call.
	FinishedAsync(ac *AsyncCall)
}

// DefaultDispatcher runs each asynchronous call on its own goroutine,
// bounded by a maximum number of concurrently running calls overall
// and per host. Calls beyond the bounds wait in a FIFO ready queue and
// are promoted as capacity frees up.
//
// The zero value is a valid dispatcher with the default limits. All
// clients that do not install their own dispatcher share a single
// package-level instance, so their calls are accounted together.
type DefaultDispatcher struct {
	mu           sync.Mutex
	maxCalls     int
	maxPerHost   int
	idleFunc     func()
	ready        []*AsyncCall
	runningAsync map[*AsyncCall]struct{}
	runningSync  map[*Call]struct{}
	perHost      map[string]int
}

// DefaultMaxCalls is the default bound on concurrently running
// asynchronous calls across all hosts.
const DefaultMaxCalls = 64

// DefaultMaxCallsPerHost is the default bound on concurrently running
// asynchronous calls to any single host.
const DefaultMaxCallsPerHost = 5

var defaultDispatcher = &DefaultDispatcher{}

// SetMaxCalls changes the bound on concurrently running asynchronous
// calls. Lowering the bound does not interrupt running calls; it takes
// effect as they finish. n < 1 panics.
func (d *DefaultDispatcher) SetMaxCalls(n int) {
	if n < 1 {
		panic("callx: max calls must be positive")
	}
	d.mu.Lock()
	d.maxCalls = n
	starting := d.promoteLocked()
	d.mu.Unlock()
	start(starting)
}

// SetMaxCallsPerHost changes the bound on concurrently running
// asynchronous calls to any single host. n < 1 panics.
func (d *DefaultDispatcher) SetMaxCallsPerHost(n int) {
	if n < 1 {
		panic("callx: max calls per host must be positive")
	}
	d.mu.Lock()
	d.maxPerHost = n
	starting := d.promoteLocked()
	d.mu.Unlock()
	start(starting)
}

// SetIdleFunc installs a function invoked each time the dispatcher
// becomes idle: no running calls, synchronous or asynchronous, and an
// empty ready queue. The function runs on the goroutine that completed
// the last call.
func (d *DefaultDispatcher) SetIdleFunc(f func()) {
	d.mu.Lock()
	d.idleFunc = f
	d.mu.Unlock()
}

// Executed implements Dispatcher.
func (d *DefaultDispatcher) Executed(c *Call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.runningSync == nil {
		d.runningSync = make(map[*Call]struct{})
	}
	d.runningSync[c] = struct{}{}
}

// Finished implements Dispatcher.
func (d *DefaultDispatcher) Finished(c *Call) {
	d.mu.Lock()
	delete(d.runningSync, c)
	idle := d.idleLocked()
	d.mu.Unlock()
	if idle != nil {
		idle()
	}
}

// Enqueue implements Dispatcher.
func (d *DefaultDispatcher) Enqueue(ac *AsyncCall) {
	d.mu.Lock()
	d.ready = append(d.ready, ac)
	starting := d.promoteLocked()
	d.mu.Unlock()
	start(starting)
}

// FinishedAsync implements Dispatcher.
func (d *DefaultDispatcher) FinishedAsync(ac *AsyncCall) {
	d.mu.Lock()
	if _, ok := d.runningAsync[ac]; ok {
		delete(d.runningAsync, ac)
		host := ac.Host()
		if d.perHost[host] <= 1 {
			delete(d.perHost, host)
		} else {
			d.perHost[host]--
		}
	}
	starting := d.promoteLocked()
	idle := d.idleLocked()
	d.mu.Unlock()
	start(starting)
	if idle != nil {
		idle()
	}
}

// RunningCalls returns the number of currently running calls,
// synchronous and asynchronous.
func (d *DefaultDispatcher) RunningCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.runningAsync) + len(d.runningSync)
}

// QueuedCalls returns the number of asynchronous calls waiting to run.
func (d *DefaultDispatcher) QueuedCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ready)
}

// CancelAll cancels every queued and running call. Queued calls still
// run, immediately failing with a canceled condition, so that every
// callback is delivered exactly once.
func (d *DefaultDispatcher) CancelAll() {
	d.cancelIf(func(*Call) bool { return true })
}

// CancelTag cancels every queued and running call whose request
// carries the given tag. Tags are compared with ==.
func (d *DefaultDispatcher) CancelTag(tag interface{}) {
	if tag == nil {
		return
	}
	d.cancelIf(func(c *Call) bool { return c.Tag() == tag })
}

func (d *DefaultDispatcher) cancelIf(match func(*Call) bool) {
	d.mu.Lock()
	var calls []*Call
	for _, ac := range d.ready {
		if match(ac.call) {
			calls = append(calls, ac.call)
		}
	}
	for ac := range d.runningAsync {
		if match(ac.call) {
			calls = append(calls, ac.call)
		}
	}
	for c := range d.runningSync {
		if match(c) {
			calls = append(calls, c)
		}
	}
	d.mu.Unlock()
	for _, c := range calls {
		c.Cancel()
	}
}

// promoteLocked moves ready calls into the running set up to the
// dispatcher's bounds and returns them for starting outside the lock.
func (d *DefaultDispatcher) promoteLocked() []*AsyncCall {
	maxCalls := d.maxCalls
	if maxCalls == 0 {
		maxCalls = DefaultMaxCalls
	}
	maxPerHost := d.maxPerHost
	if maxPerHost == 0 {
		maxPerHost = DefaultMaxCallsPerHost
	}

	var starting []*AsyncCall
	remaining := d.ready[:0]
	for i, ac := range d.ready {
		if len(d.runningAsync) >= maxCalls {
			remaining = append(remaining, d.ready[i:]...)
			break
		}
		host := ac.Host()
		if d.perHost[host] >= maxPerHost {
			remaining = append(remaining, ac)
			continue
		}
		if d.runningAsync == nil {
			d.runningAsync = make(map[*AsyncCall]struct{})
		}
		if d.perHost == nil {
			d.perHost = make(map[string]int)
		}
		d.runningAsync[ac] = struct{}{}
		d.perHost[host]++
		starting = append(starting, ac)
	}
	d.ready = remaining
	return starting
}

func (d *DefaultDispatcher) idleLocked() func() {
	if d.idleFunc != nil && len(d.runningAsync) == 0 && len(d.runningSync) == 0 && len(d.ready) == 0 {
		return d.idleFunc
	}
	return nil
}

func start(calls []*AsyncCall) {
	for _, ac := range calls {
		go ac.Run()
	}
}
