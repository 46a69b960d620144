// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package flow

import (
	"sync"

	"github.com/xtaci/flowgraph/xform"
)

// Executor runs stream continuations. The zero value (nil) means "run
// inline on the resolving goroutine", matching most combinator usage; a
// GoExecutor dedicates a fresh goroutine per continuation, the way the
// teacher dedicates session.recvLoop/sendLoop goroutines per session
// rather than running I/O callbacks inline.
type Executor interface {
	Execute(func())
}

// GoExecutor runs every continuation on its own goroutine.
type GoExecutor struct{}

// Execute implements Executor.
func (GoExecutor) Execute(f func()) { go f() }

// StreamOptions configures NewStream.
type StreamOptions struct {
	// Permanent, if true, makes Close a no-op.
	Permanent bool
	// BufferSize is 0 (rendezvous: a put only accepts once a matching take
	// arrives) or n>0 (up to n buffered messages, puts resolve immediately
	// while under capacity).
	BufferSize int
	// Description, if set, receives the stream's base description and its
	// result is returned in place of it.
	Description func(base map[string]any) map[string]any
	// Executor, if set, runs every continuation scheduled from this
	// stream's returned deferreds.
	Executor Executor
	// Xform, if set, is applied to every accepted Put before it reaches the
	// buffer/take side (see xform.Transducer's doc for the exact contract).
	Xform xform.Transducer
}

type pendingPut struct {
	value any
	d     *Deferred
}

type pendingTake struct {
	d          *Deferred
	defaultVal any
}

// defaultStream is the buffered FIFO stream implementation shared by all
// public constructors.
type defaultStream struct {
	mu sync.Mutex

	opts StreamOptions

	items       []any
	blockedPuts []pendingPut
	blockedTake []pendingTake

	closed        bool
	drained       bool
	xformComplete bool

	onClosedCbs  []func()
	onDrainedCbs []func()

	handle *Handle
}

// NewStream constructs a buffered default stream and returns it spliced
// into a single Stream value satisfying both IEventSink and IEventSource.
func NewStream(opts StreamOptions) *Stream {
	s := &defaultStream{opts: opts, handle: NewHandle()}
	return &Stream{IEventSink: s, IEventSource: s}
}

func (s *defaultStream) run(f func()) {
	if s.opts.Executor != nil {
		s.opts.Executor.Execute(f)
	} else {
		f()
	}
}

func (s *defaultStream) resolveSuccess(d *Deferred, v any) {
	s.run(func() { Success(d, v) })
}

// Description implements IEventStream.
func (s *defaultStream) Description() map[string]any {
	s.mu.Lock()
	base := map[string]any{
		"type":        "default-stream",
		"buffer-size": s.opts.BufferSize,
		"buffered":    len(s.items),
		"closed":      s.closed,
		"drained":     s.drained,
		"permanent":   s.opts.Permanent,
	}
	s.mu.Unlock()
	if s.opts.Description != nil {
		return s.opts.Description(base)
	}
	return base
}

// IsSynchronous implements IEventStream: the default stream's backpressure
// is realized entirely through deferreds, never by blocking a caller.
func (s *defaultStream) IsSynchronous() bool { return false }

// Close implements IEventStream/IEventSink.
func (s *defaultStream) Close() {
	s.mu.Lock()
	if s.opts.Permanent || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	rejected := s.blockedPuts
	s.blockedPuts = nil

	s.completeXformLocked()

	becameDrained := false
	var toDrain []pendingTake
	if len(s.items) == 0 {
		toDrain = s.blockedTake
		s.blockedTake = nil
		if !s.drained {
			s.drained = true
			becameDrained = true
		}
	}
	closedCbs := append([]func(){}, s.onClosedCbs...)
	var drainedCbs []func()
	if becameDrained {
		drainedCbs = append([]func(){}, s.onDrainedCbs...)
	}
	s.mu.Unlock()

	for _, p := range rejected {
		s.resolveSuccess(p.d, false)
	}
	for _, t := range toDrain {
		s.resolveSuccess(t.d, t.defaultVal)
	}
	for _, cb := range closedCbs {
		s.run(cb)
	}
	for _, cb := range drainedCbs {
		s.run(cb)
	}
}

// completeXformLocked flushes a transducer's terminal state. Caller holds
// s.mu.
func (s *defaultStream) completeXformLocked() {
	if s.opts.Xform == nil || s.xformComplete {
		return
	}
	s.xformComplete = true
	s.opts.Xform.Complete(func(v any) bool {
		s.forceEnqueueLocked(v)
		return true
	})
}

// WeakHandle implements IEventStream.
func (s *defaultStream) WeakHandle() *Handle { return s.handle }

// IsClosed implements IEventSink.
func (s *defaultStream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// OnClosed implements IEventSink.
func (s *defaultStream) OnClosed(cb func()) {
	s.mu.Lock()
	if !s.closed {
		s.onClosedCbs = append(s.onClosedCbs, cb)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.run(cb)
}

// IsDrained implements IEventSource.
func (s *defaultStream) IsDrained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drained
}

// OnDrained implements IEventSource.
func (s *defaultStream) OnDrained(cb func()) {
	s.mu.Lock()
	if !s.drained {
		s.onDrainedCbs = append(s.onDrainedCbs, cb)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.run(cb)
}

// Connector implements IEventSource: the default stream has no adapter-
// optimized transfer path.
func (s *defaultStream) Connector(sink IEventSink) func() { return nil }

// forceEnqueueLocked matches v directly with the oldest blocked take if one
// exists, else pushes it into items regardless of capacity. Used by the
// transducer path, which does not gate acceptance on buffer capacity: if a
// transducer produces multiple outputs for one input, they all enqueue.
// Caller holds s.mu.
func (s *defaultStream) forceEnqueueLocked(v any) {
	if len(s.blockedTake) > 0 {
		t := s.blockedTake[0]
		s.blockedTake = s.blockedTake[1:]
		s.mu.Unlock()
		s.resolveSuccess(t.d, v)
		s.mu.Lock()
		return
	}
	s.items = append(s.items, v)
}

// Put implements IEventSink.
func (s *defaultStream) Put(x any, blocking bool) *Deferred {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Resolved(false)
	}

	if s.opts.Xform != nil {
		stop := s.opts.Xform.Step(func(v any) bool {
			s.forceEnqueueLocked(v)
			return true
		}, x)
		s.mu.Unlock()
		if stop {
			s.Close()
		}
		return Resolved(true)
	}

	if len(s.blockedTake) > 0 {
		t := s.blockedTake[0]
		s.blockedTake = s.blockedTake[1:]
		s.mu.Unlock()
		s.resolveSuccess(t.d, x)
		return Resolved(true)
	}

	if s.opts.BufferSize > 0 && len(s.items) < s.opts.BufferSize {
		s.items = append(s.items, x)
		s.mu.Unlock()
		return Resolved(true)
	}

	d := NewDeferred()
	s.blockedPuts = append(s.blockedPuts, pendingPut{value: x, d: d})
	s.mu.Unlock()
	return d
}

// PutTimeout implements IEventSink.
func (s *defaultStream) PutTimeout(x any, blocking bool, ms Millis, timeoutVal any) *Deferred {
	return Timeout(s.Put(x, blocking), ms, timeoutVal, true)
}

// Take implements IEventSource.
func (s *defaultStream) Take(defaultVal any, blocking bool) *Deferred {
	s.mu.Lock()

	if len(s.items) > 0 {
		v := s.items[0]
		s.items = s.items[1:]

		if len(s.blockedPuts) > 0 {
			p := s.blockedPuts[0]
			s.blockedPuts = s.blockedPuts[1:]
			s.items = append(s.items, p.value)
			s.mu.Unlock()
			s.resolveSuccess(p.d, true)
			return Resolved(v)
		}

		becameDrained := false
		var drainedCbs []func()
		if s.closed && len(s.items) == 0 && !s.drained {
			s.drained = true
			becameDrained = true
			drainedCbs = append([]func(){}, s.onDrainedCbs...)
		}
		s.mu.Unlock()
		if becameDrained {
			for _, cb := range drainedCbs {
				s.run(cb)
			}
		}
		return Resolved(v)
	}

	if len(s.blockedPuts) > 0 {
		p := s.blockedPuts[0]
		s.blockedPuts = s.blockedPuts[1:]
		s.mu.Unlock()
		s.resolveSuccess(p.d, true)
		return Resolved(p.value)
	}

	if s.closed {
		if !s.drained {
			s.drained = true
			cbs := append([]func(){}, s.onDrainedCbs...)
			s.mu.Unlock()
			for _, cb := range cbs {
				s.run(cb)
			}
			return Resolved(defaultVal)
		}
		s.mu.Unlock()
		return Resolved(defaultVal)
	}

	d := NewDeferred()
	s.blockedTake = append(s.blockedTake, pendingTake{d: d, defaultVal: defaultVal})
	s.mu.Unlock()
	return d
}

// TakeTimeout implements IEventSource.
func (s *defaultStream) TakeTimeout(defaultVal any, blocking bool, ms Millis, timeoutVal any) *Deferred {
	return Timeout(s.Take(defaultVal, blocking), ms, timeoutVal, true)
}
