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

package clock

import (
	"runtime"
	"sync"
	"time"
)

// Ticket is a cancellable handle returned by In/Every/At. Cancel is
// idempotent: calling it twice, or after the ticket already fired, is safe
// and returns false on the second/later call.
type Ticket interface {
	Cancel() bool
}

type ticket struct {
	mu     sync.Mutex
	cancel func()
	done   bool
}

func (t *ticket) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	if t.cancel != nil {
		t.cancel()
	}
	return true
}

func (t *ticket) markDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Scheduler is a shared timer pool. The zero value is not ready for use;
// construct with NewScheduler or use Default(), mirroring session.go's
// keepalive ticker loop generalized from one fixed interval to arbitrary
// one-shot/fixed-rate callers.
type Scheduler struct {
	parallelism int
}

// NewScheduler constructs a Scheduler sized by runtime.GOMAXPROCS, leaning
// on the Go scheduler rather than a hand-rolled timer pool.
func NewScheduler() *Scheduler {
	return &Scheduler{parallelism: runtime.GOMAXPROCS(0)}
}

var (
	defaultOnce sync.Once
	defaultSch  *Scheduler
)

// Default returns the process-wide lazily-constructed Scheduler singleton.
func Default() *Scheduler {
	defaultOnce.Do(func() { defaultSch = NewScheduler() })
	return defaultSch
}

// In schedules f to run once after delay, on its own goroutine. A panic in
// f is not recovered here.
func (s *Scheduler) In(delay Millis, f func()) Ticket {
	t := &ticket{}
	timer := time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		if t.markDone() {
			f()
		}
	})
	t.cancel = func() { timer.Stop() }
	return t
}

// At schedules f to run at the given timestamp; it is equivalent to
// In(max(0, ts-now), f).
func (s *Scheduler) At(ts time.Time, f func()) Ticket {
	delay := Millis(time.Until(ts) / time.Millisecond)
	if delay < 0 {
		delay = 0
	}
	return s.In(delay, f)
}

// Every schedules f at a fixed rate: period between the start of
// consecutive calls, with an optional initialDelay before the first call.
// If f panics, the ticket auto-cancels and does not reschedule.
func (s *Scheduler) Every(period, initialDelay Millis, f func()) Ticket {
	t := &ticket{}
	var timer *time.Timer
	var tick func()
	tick = func() {
		t.mu.Lock()
		done := t.done
		t.mu.Unlock()
		if done {
			return
		}
		start := time.Now()
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Cancel()
				}
			}()
			f()
		}()
		t.mu.Lock()
		cancelled := t.done
		t.mu.Unlock()
		if cancelled {
			return
		}
		next := time.Duration(period)*time.Millisecond - time.Since(start)
		if next < 0 {
			next = 0
		}
		timer = time.AfterFunc(next, tick)
		t.mu.Lock()
		t.cancel = func() { timer.Stop() }
		t.mu.Unlock()
	}
	timer = time.AfterFunc(time.Duration(initialDelay)*time.Millisecond, tick)
	t.cancel = func() { timer.Stop() }
	return t
}
