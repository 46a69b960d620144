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
	"context"
	"sync"
	"time"
)

// Metric prices a message for BufferedStream/Buffer: byte length, a fixed
// 1-per-message cost, whatever the caller's backpressure budget is in terms
// of.
type Metric func(any) int64

type costItem struct {
	value any
	cost  int64
}

// bufferedStream is an elastic, cost-priced queue: a put is accepted if the
// running total including its cost stays at or under limit, and also whenever the queue is
// currently empty, so a single oversized message can never deadlock the
// producer. That means the limit is a soft cap, exceeded by at most the
// cost of one in-flight message, not a hard ceiling.
type bufferedStream struct {
	mu     sync.Mutex
	metric Metric
	limit  int64
	total  int64

	items       []costItem
	blockedPuts []pendingPut
	blockedTake []pendingTake

	closed  bool
	drained bool

	onClosedCbs  []func()
	onDrainedCbs []func()

	handle *Handle
}

// BufferedStream constructs a Stream whose capacity is priced by metric
// rather than counted in messages, gated at limit.
func BufferedStream(limit int64, metric Metric) *Stream {
	s := &bufferedStream{metric: metric, limit: limit, handle: NewHandle()}
	return &Stream{IEventSink: s, IEventSource: s}
}

// Buffer pipes s through a freshly constructed BufferedStream.
func Buffer(limit int64, metric Metric, s IEventSource) *Stream {
	out := BufferedStream(limit, metric)
	Connect(s, out, DefaultConnectOptions())
	return out
}

func (s *bufferedStream) Description() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"type":    "buffered-stream",
		"limit":   s.limit,
		"total":   s.total,
		"closed":  s.closed,
		"drained": s.drained,
	}
}

func (s *bufferedStream) IsSynchronous() bool { return false }

func (s *bufferedStream) WeakHandle() *Handle { return s.handle }

func (s *bufferedStream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *bufferedStream) OnClosed(cb func()) {
	s.mu.Lock()
	if !s.closed {
		s.onClosedCbs = append(s.onClosedCbs, cb)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	cb()
}

func (s *bufferedStream) IsDrained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drained
}

func (s *bufferedStream) OnDrained(cb func()) {
	s.mu.Lock()
	if !s.drained {
		s.onDrainedCbs = append(s.onDrainedCbs, cb)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	cb()
}

func (s *bufferedStream) Connector(sink IEventSink) func() { return nil }

func (s *bufferedStream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	rejected := s.blockedPuts
	s.blockedPuts = nil

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
		Success(p.d, false)
	}
	for _, t := range toDrain {
		Success(t.d, t.defaultVal)
	}
	for _, cb := range closedCbs {
		cb()
	}
	for _, cb := range drainedCbs {
		cb()
	}
}

// Put implements IEventSink.
func (s *bufferedStream) Put(x any, blocking bool) *Deferred {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Resolved(false)
	}
	if len(s.blockedTake) > 0 {
		t := s.blockedTake[0]
		s.blockedTake = s.blockedTake[1:]
		s.mu.Unlock()
		Success(t.d, x)
		return Resolved(true)
	}
	if cost := s.metric(x); s.total+cost <= s.limit || len(s.items) == 0 {
		s.items = append(s.items, costItem{x, cost})
		s.total += cost
		s.mu.Unlock()
		return Resolved(true)
	}
	d := NewDeferred()
	s.blockedPuts = append(s.blockedPuts, pendingPut{value: x, d: d})
	s.mu.Unlock()
	return d
}

// PutTimeout implements IEventSink. The returned Deferred resolves to
// timeoutVal after ms, but a put still waiting for capacity stays queued
// and is admitted once takes free enough room.
func (s *bufferedStream) PutTimeout(x any, blocking bool, ms Millis, timeoutVal any) *Deferred {
	return Timeout(s.Put(x, blocking), ms, timeoutVal, true)
}

// Take implements IEventSource.
func (s *bufferedStream) Take(defaultVal any, blocking bool) *Deferred {
	s.mu.Lock()
	if len(s.items) > 0 {
		it := s.items[0]
		s.items = s.items[1:]
		s.total -= it.cost

		var admitted []pendingPut
		for len(s.blockedPuts) > 0 {
			p := s.blockedPuts[0]
			cost := s.metric(p.value)
			if s.total+cost > s.limit && len(s.items) > 0 {
				break
			}
			s.blockedPuts = s.blockedPuts[1:]
			s.items = append(s.items, costItem{p.value, cost})
			s.total += cost
			admitted = append(admitted, p)
		}

		becameDrained := false
		var drainedCbs []func()
		if s.closed && len(s.items) == 0 && !s.drained {
			s.drained = true
			becameDrained = true
			drainedCbs = append([]func(){}, s.onDrainedCbs...)
		}
		s.mu.Unlock()

		for _, p := range admitted {
			Success(p.d, true)
		}
		if becameDrained {
			for _, cb := range drainedCbs {
				cb()
			}
		}
		return Resolved(it.value)
	}

	if len(s.blockedPuts) > 0 {
		p := s.blockedPuts[0]
		s.blockedPuts = s.blockedPuts[1:]
		s.mu.Unlock()
		Success(p.d, true)
		return Resolved(p.value)
	}

	if s.closed {
		becameDrained := false
		var drainedCbs []func()
		if !s.drained {
			s.drained = true
			becameDrained = true
			drainedCbs = append([]func(){}, s.onDrainedCbs...)
		}
		s.mu.Unlock()
		if becameDrained {
			for _, cb := range drainedCbs {
				cb()
			}
		}
		return Resolved(defaultVal)
	}

	d := NewDeferred()
	s.blockedTake = append(s.blockedTake, pendingTake{d: d, defaultVal: defaultVal})
	s.mu.Unlock()
	return d
}

// TakeTimeout implements IEventSource.
func (s *bufferedStream) TakeTimeout(defaultVal any, blocking bool, ms Millis, timeoutVal any) *Deferred {
	return Timeout(s.Take(defaultVal, blocking), ms, timeoutVal, true)
}

// timedOut is the sentinel Batch hands to TakeTimeout, kept distinct from
// the package's drained sentinel so a latency flush can't be confused with
// the source actually draining.
var timedOut = &struct{ name string }{"batch-timed-out"}

// Batch accumulates s's values into []any slices, emitting a batch once it
// reaches maxSize or once maxLatency has elapsed since the first value of
// the batch was buffered (whichever comes first). A non-empty partial
// batch is flushed once the source drains.
func Batch(maxSize int, maxLatency Millis, s IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	go func() {
		ctx := context.Background()
		var batch []any
		var earliestMs Millis
		for {
			var v any
			var err error
			if len(batch) > 0 && maxLatency > 0 {
				elapsed := Millis(time.Now().UnixMilli()) - earliestMs
				remaining := maxLatency - elapsed
				if remaining < 0 {
					remaining = 0
				}
				v, err = Wait(ctx, s.TakeTimeout(drained, true, remaining, timedOut))
			} else {
				v, err = Wait(ctx, s.Take(drained, true))
			}
			if err != nil {
				if len(batch) > 0 {
					Wait(ctx, out.Put(batch, true))
				}
				out.Close()
				return
			}
			if v == timedOut {
				ok, _ := Wait(ctx, out.Put(batch, true))
				batch = nil
				if ok == false {
					s.Close()
					return
				}
				continue
			}
			if v == drained {
				if len(batch) > 0 {
					Wait(ctx, out.Put(batch, true))
				}
				out.Close()
				return
			}
			if len(batch) == 0 {
				earliestMs = Millis(time.Now().UnixMilli())
			}
			batch = append(batch, v)
			if maxSize > 0 && len(batch) >= maxSize {
				ok, _ := Wait(ctx, out.Put(batch, true))
				batch = nil
				if ok == false {
					s.Close()
					return
				}
			}
		}
	}()
	return out
}

// Throttle forwards s's values at up to permitsPerSecond, smoothed over a
// token bucket of the given burst size, in the style of smux's shaper/
// bucket rate limiting generalized from byte quotas to arbitrary messages.
func Throttle(permitsPerSecond float64, burst int, s IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	if burst < 1 {
		burst = 1
	}
	go func() {
		ctx := context.Background()
		var mu sync.Mutex
		tokens := float64(burst)
		last := time.Now()

		acquire := func() {
			for {
				mu.Lock()
				now := time.Now()
				tokens += now.Sub(last).Seconds() * permitsPerSecond
				last = now
				if tokens > float64(burst) {
					tokens = float64(burst)
				}
				if tokens >= 1 {
					tokens--
					mu.Unlock()
					return
				}
				wait := (1 - tokens) / permitsPerSecond
				mu.Unlock()
				time.Sleep(time.Duration(wait * float64(time.Second)))
			}
		}

		for {
			v, err := Wait(ctx, s.Take(drained, true))
			if err != nil || v == drained {
				out.Close()
				return
			}
			acquire()
			ok, _ := Wait(ctx, out.Put(v, true))
			if ok == false {
				s.Close()
				return
			}
		}
	}()
	return out
}
