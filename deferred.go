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

// Package flow implements a push-based, backpressure-aware event stream
// abstraction on top of a single-assignment deferred (promise) primitive.
package flow

import (
	"context"
	"sync"
	"time"
)

type state int32

const (
	statePending state = iota
	stateSuccess
	stateError
)

// TimeoutError is returned by Timeout when a Deferred does not resolve
// within the allotted duration and no default value was supplied.
type TimeoutError struct{}

func (TimeoutError) Error() string { return "deferred: timeout" }

// continuation is one registered (onSuccess, onError) pair. Exactly one of
// the two fires, exactly once, in the order continuations were registered.
type continuation struct {
	onSuccess func(any)
	onError   func(error)
}

// Deferred is a write-once cell holding {pending, success(v), error(e)}.
// It is safe for concurrent use: Success/Error race freely with Chain/Catch
// registrations, and a continuation registered after resolution runs
// immediately on the caller's goroutine.
type Deferred struct {
	mu    sync.Mutex
	st    state
	val   any
	err   error
	conts []continuation

	timer *time.Timer
}

// NewDeferred returns a fresh, unresolved Deferred.
func NewDeferred() *Deferred {
	return &Deferred{}
}

// Success resolves d to v. Returns false if d was already resolved.
func Success(d *Deferred, v any) bool {
	return d.resolve(stateSuccess, v, nil)
}

// Error resolves d to err. Returns false if d was already resolved.
func Error(d *Deferred, err error) bool {
	return d.resolve(stateError, nil, err)
}

func (d *Deferred) resolve(st state, v any, err error) bool {
	d.mu.Lock()
	if d.st != statePending {
		d.mu.Unlock()
		return false
	}
	d.st = st
	d.val = v
	d.err = err
	conts := d.conts
	d.conts = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	for _, c := range conts {
		invoke(c, st, v, err)
	}
	return true
}

func invoke(c continuation, st state, v any, err error) {
	switch st {
	case stateSuccess:
		if c.onSuccess != nil {
			c.onSuccess(v)
		}
	case stateError:
		if c.onError != nil {
			c.onError(err)
		}
	}
}

// onResolve registers a continuation, invoking it immediately if d is
// already resolved, closing the register-vs-resolve race.
func (d *Deferred) onResolve(onSuccess func(any), onError func(error)) {
	d.mu.Lock()
	if d.st == statePending {
		d.conts = append(d.conts, continuation{onSuccess, onError})
		d.mu.Unlock()
		return
	}
	st, v, err := d.st, d.val, d.err
	d.mu.Unlock()
	invoke(continuation{onSuccess, onError}, st, v, err)
}

// peek returns the current state without blocking.
func (d *Deferred) peek() (state, any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.st, d.val, d.err
}

// IsRealized reports whether d has resolved (success or error).
func (d *Deferred) IsRealized() bool {
	st, _, _ := d.peek()
	return st != statePending
}

// Chain applies f1, f2, ... in sequence once d resolves to a value: the
// result of each step feeds the next. If a step returns a *Deferred, the
// chain waits for it before continuing. Any returned/thrown error
// short-circuits the remainder of the chain and resolves the returned
// Deferred to that error.
func Chain(d *Deferred, fs ...func(any) (any, error)) *Deferred {
	out := NewDeferred()
	if len(fs) == 0 {
		d.onResolve(func(v any) { Success(out, v) }, func(e error) { Error(out, e) })
		return out
	}
	chainStep(d, fs, 0, out)
	return out
}

func chainStep(d *Deferred, fs []func(any) (any, error), i int, out *Deferred) {
	d.onResolve(func(v any) {
		result, err := safeApply(fs[i], v)
		if err != nil {
			Error(out, err)
			return
		}
		next := i + 1
		if nd, ok := result.(*Deferred); ok {
			if next == len(fs) {
				nd.onResolve(func(v any) { Success(out, v) }, func(e error) { Error(out, e) })
				return
			}
			chainStep(nd, fs, next, out)
			return
		}
		if next == len(fs) {
			Success(out, result)
			return
		}
		chainStep(Resolved(result), fs, next, out)
	}, func(e error) {
		Error(out, e)
	})
}

func safeApply(f func(any) (any, error), v any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return f(v)
}

// Resolved returns a Deferred already resolved to v.
func Resolved(v any) *Deferred {
	d := NewDeferred()
	Success(d, v)
	return d
}

// Failed returns a Deferred already resolved to err.
func Failed(err error) *Deferred {
	d := NewDeferred()
	Error(d, err)
	return d
}

// Catch intercepts an error resolution of d. If pred is non-nil and
// pred(err) is false, the error is passed through unchanged. Otherwise
// handler(err) supplies the new (possibly still erroring) value.
func Catch(d *Deferred, pred func(error) bool, handler func(error) (any, error)) *Deferred {
	out := NewDeferred()
	d.onResolve(func(v any) {
		Success(out, v)
	}, func(e error) {
		if pred != nil && !pred(e) {
			Error(out, e)
			return
		}
		v, herr := safeApplyErr(handler, e)
		if herr != nil {
			Error(out, herr)
			return
		}
		Success(out, v)
	})
	return out
}

func safeApplyErr(f func(error) (any, error), e error) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return f(e)
}

// ZipDeferreds resolves to the slice of all component values once every d
// in ds has resolved successfully, or to the first error observed. (Named
// distinctly from the stream combinator Zip in combinators.go, since Go has
// no overloading.)
func ZipDeferreds(ds ...*Deferred) *Deferred {
	out := NewDeferred()
	if len(ds) == 0 {
		Success(out, []any{})
		return out
	}
	vals := make([]any, len(ds))
	var mu sync.Mutex
	remaining := len(ds)
	for i, d := range ds {
		i := i
		d.onResolve(func(v any) {
			mu.Lock()
			vals[i] = v
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				Success(out, vals)
			}
		}, func(e error) {
			Error(out, e)
		})
	}
	return out
}

// Timeout arms a timer: if d has not resolved within ms, the returned
// Deferred resolves to defaultVal when useDefault is true, or to a
// TimeoutError when it is false.
// If d resolves first, its result is forwarded and the timer is disarmed.
func Timeout(d *Deferred, ms Millis, defaultVal any, useDefault bool) *Deferred {
	out := NewDeferred()
	if ms <= 0 {
		if st, v, err := d.peek(); st != statePending {
			if st == stateSuccess {
				Success(out, v)
			} else {
				Error(out, err)
			}
			return out
		}
	}
	var once sync.Once
	d.onResolve(func(v any) {
		once.Do(func() { Success(out, v) })
	}, func(e error) {
		once.Do(func() { Error(out, e) })
	})
	timer := time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		once.Do(func() {
			if useDefault {
				Success(out, defaultVal)
			} else {
				Error(out, TimeoutError{})
			}
		})
	})
	d.mu.Lock()
	if d.st == statePending {
		d.timer = timer
	} else {
		timer.Stop()
	}
	d.mu.Unlock()
	return out
}

// Recur wraps the next seed value for Loop to continue iterating.
type Recur struct{ Value any }

// Loop trampolines f: each call either returns a terminal value (any
// non-Recur, non-error result) or a Recur to keep iterating, without
// growing the call stack across either synchronous iterations or async
// hops. f may itself return a *Deferred, in which case Loop waits for it
// before feeding its value back into f; if that Deferred is already
// resolved, its value is picked up in the same loop iteration rather than
// through a recursive callback.
func Loop(initial any, f func(any) (any, error)) *Deferred {
	out := NewDeferred()
	var step func(any)
	step = func(seed any) {
		for {
			result, err := safeApply(f, seed)
			if err != nil {
				Error(out, err)
				return
			}
			if nd, ok := result.(*Deferred); ok {
				st, v, derr := nd.peek()
				if st == statePending {
					nd.onResolve(func(v any) {
						advance(v, step, out)
					}, func(e error) {
						Error(out, e)
					})
					return
				}
				if st == stateError {
					Error(out, derr)
					return
				}
				result = v
			}
			r, ok := result.(Recur)
			if !ok {
				Success(out, result)
				return
			}
			seed = r.Value
		}
	}
	step(initial)
	return out
}

func advance(v any, step func(any), out *Deferred) {
	if r, ok := v.(Recur); ok {
		step(r.Value)
		return
	}
	Success(out, v)
}

// Wait blocks the calling goroutine until d resolves or ctx is done.
func Wait(ctx context.Context, d *Deferred) (any, error) {
	ch := make(chan struct{})
	var v any
	var err error
	d.onResolve(func(val any) {
		v = val
		close(ch)
	}, func(e error) {
		err = e
		close(ch)
	})
	select {
	case <-ch:
		return v, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func panicToError(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return &panicError{r}
}

type panicError struct{ v any }

func (p *panicError) Error() string { return "flow: recovered panic" }
func (p *panicError) Unwrap() error { return nil }
