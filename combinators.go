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
	"reflect"
	"time"

	"github.com/xtaci/flowgraph/clock"
	"github.com/xtaci/flowgraph/internal/logutil"
	"github.com/xtaci/flowgraph/xform"
)

// NoInitial is passed as the init argument to Reductions/Reduce to signal
// that no initial value was supplied: the first value taken from the
// source becomes the starting accumulator instead.
type NoInitial struct{}

func hasInit(init any) (any, bool) {
	if _, ok := init.(NoInitial); ok {
		return nil, false
	}
	return init, true
}

// guard runs f, converting a panic into an error instead of propagating it.
func guard(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	f()
	return nil
}

// putAll puts each value into out in order, short-circuiting (and
// resolving false) the first time out rejects one. Resolves true
// immediately for an empty slice, matching "if the transducer/callback
// produces no outputs, the put still resolves true".
func putAll(out IEventSink, values []any) *Deferred {
	final := NewDeferred()
	var step func(i int)
	step = func(i int) {
		if i == len(values) {
			Success(final, true)
			return
		}
		d := out.Put(values[i], false)
		d.onResolve(func(v any) {
			if v == false {
				Success(final, false)
				return
			}
			step(i + 1)
		}, func(e error) {
			Error(final, e)
		})
	}
	step(0)
	return final
}

// Map applies f to every value of s.
func Map(f func(any) any, s IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	ConnectVia(func(x any) *Deferred {
		var result any
		if err := guard(func() { result = f(x) }); err != nil {
			logutil.Errorf("map: callback panicked: %v", err)
			out.Close()
			return Resolved(false)
		}
		return out.Put(result, false)
	}, s, out, DefaultConnectOptions())
	return out
}

// MapN is map(f, s1..sn) = Map(apply(f), Zip(s1..sn)): f receives the
// tuple of the n sources' next values as a []any.
func MapN(f func([]any) any, streams ...IEventSource) *Stream {
	return Map(func(x any) any { return f(x.([]any)) }, Zip(streams...))
}

// Filter passes through only values for which pred returns true.
func Filter(pred func(any) bool, s IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	ConnectVia(func(x any) *Deferred {
		var keep bool
		if err := guard(func() { keep = pred(x) }); err != nil {
			logutil.Errorf("filter: callback panicked: %v", err)
			out.Close()
			return Resolved(false)
		}
		if !keep {
			return Resolved(true)
		}
		return out.Put(x, false)
	}, s, out, DefaultConnectOptions())
	return out
}

// MapCat applies f to each value, flattening its returned slice of zero or
// more outputs into the result stream.
func MapCat(f func(any) []any, s IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	ConnectVia(func(x any) *Deferred {
		var vals []any
		if err := guard(func() { vals = f(x) }); err != nil {
			logutil.Errorf("mapcat: callback panicked: %v", err)
			out.Close()
			return Resolved(false)
		}
		return putAll(out, vals)
	}, s, out, DefaultConnectOptions())
	return out
}

// Zip takes one value from each of streams per round and emits the tuple
// (as a []any) until any one of them drains.
func Zip(streams ...IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	if len(streams) == 0 {
		out.Close()
		return out
	}
	var loop func()
	loop = func() {
		takes := make([]*Deferred, len(streams))
		for i, s := range streams {
			takes[i] = s.Take(drained, false)
		}
		zipped := ZipDeferreds(takes...)
		zipped.onResolve(func(v any) {
			vals := v.([]any)
			for _, val := range vals {
				if val == drained {
					out.Close()
					return
				}
			}
			putD := out.Put(vals, false)
			putD.onResolve(func(pv any) {
				if pv == false {
					out.Close()
					return
				}
				loop()
			}, func(e error) { out.Close() })
		}, func(e error) {
			out.Close()
		})
	}
	loop()
	return out
}

// Reductions emits init (if supplied via hasInit/NoInitial) followed by the
// running accumulator of f over s's values.
func Reductions(f func(acc, x any) any, init any, s IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	acc, started := hasInit(init)

	cb := func(x any) *Deferred {
		if !started {
			acc = x
			started = true
			return out.Put(acc, false)
		}
		var next any
		if err := guard(func() { next = f(acc, x) }); err != nil {
			logutil.Errorf("reductions: callback panicked: %v", err)
			out.Close()
			return Resolved(false)
		}
		acc = next
		return out.Put(acc, false)
	}

	if started {
		out.Put(acc, false)
	}
	ConnectVia(cb, s, out, DefaultConnectOptions())
	return out
}

// Reduce returns a Deferred of the final accumulator once s drains. A
// panic in f resolves the Deferred to the last good accumulator rather
// than to an error, so a reducer blowing up on one message doesn't lose
// everything already folded.
func Reduce(f func(acc, x any) any, init any, s IEventSource) *Deferred {
	out := NewDeferred()
	acc, started := hasInit(init)

	var consume func()
	consume = func() {
		t := s.Take(drained, false)
		t.onResolve(func(v any) {
			if v == drained {
				Success(out, acc)
				return
			}
			if !started {
				acc = v
				started = true
				consume()
				return
			}
			if err := guard(func() { acc = f(acc, v) }); err != nil {
				logutil.Errorf("reduce: callback panicked, returning last accumulator: %v", err)
				Success(out, acc)
				return
			}
			consume()
		}, func(e error) {
			Error(out, e)
		})
	}
	consume()
	return out
}

// Transform installs xf on a fresh stream of the given buffer size and
// connects s into it.
func Transform(xf xform.Transducer, bufferSize int, s IEventSource) *Stream {
	out := NewStream(StreamOptions{BufferSize: bufferSize, Xform: xf})
	Connect(s, out, DefaultConnectOptions())
	return out
}

// RealizeEach unwraps each value of s, which must itself be a *Deferred, in
// order. A message that errors is logged and closes the output.
func RealizeEach(s IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	ConnectVia(func(x any) *Deferred {
		d, ok := x.(*Deferred)
		if !ok {
			return out.Put(x, false)
		}
		result := NewDeferred()
		d.onResolve(func(v any) {
			pd := out.Put(v, false)
			pd.onResolve(func(pv any) { Success(result, pv) }, func(e error) { Error(result, e) })
		}, func(e error) {
			logutil.Errorf("realize-each: message errored: %v", e)
			out.Close()
			Success(result, false)
		})
		return result
	}, s, out, DefaultConnectOptions())
	return out
}

// Concat flattens a stream of streams, exhausting each sub-stream before
// taking the next. A put on the output that resolves false closes whatever
// source is currently feeding it.
func Concat(ss IEventSource) *Stream {
	out := NewStream(StreamOptions{})
	var pump func()
	var drainSub func(sub IEventSource)
	drainSub = func(sub IEventSource) {
		t := sub.Take(drained, false)
		t.onResolve(func(v any) {
			if v == drained {
				pump()
				return
			}
			pd := out.Put(v, false)
			pd.onResolve(func(pv any) {
				if pv == false {
					sub.Close()
					return
				}
				drainSub(sub)
			}, func(e error) { sub.Close() })
		}, func(e error) {
			pump()
		})
	}
	pump = func() {
		t := ss.Take(drained, false)
		t.onResolve(func(v any) {
			if v == drained {
				out.Close()
				return
			}
			sub, ok := v.(IEventSource)
			if !ok {
				logutil.Errorf("concat: value is not an IEventSource")
				ss.Close()
				out.Close()
				return
			}
			drainSub(sub)
		}, func(e error) {
			out.Close()
		})
	}
	pump()
	return out
}

// LazilyPartitionBy partitions s into sub-streams wherever f(prev) !=
// f(curr); back-pressure is carried by the outer stream's rendezvous
// discipline (bufferSize 0), so the next sub-stream is not emitted until
// the consumer has advanced past the previous one.
func LazilyPartitionBy(f func(any) any, s IEventSource) *Stream {
	outer := NewStream(StreamOptions{})
	go func() {
		var cur *Stream
		var curKey any
		haveKey := false
		closeCur := func() {
			if cur != nil {
				cur.Close()
				cur = nil
			}
		}
		for {
			v, err := Wait(context.Background(), s.Take(drained, true))
			if err != nil || v == drained {
				closeCur()
				outer.Close()
				return
			}
			var key any
			if perr := guard(func() { key = f(v) }); perr != nil {
				logutil.Errorf("lazily-partition-by: callback panicked: %v", perr)
				closeCur()
				outer.Close()
				s.Close()
				return
			}
			if !haveKey || !reflect.DeepEqual(key, curKey) {
				closeCur()
				cur = NewStream(StreamOptions{})
				haveKey = true
				curKey = key
				ok, _ := Wait(context.Background(), outer.Put(cur, true))
				if ok == false {
					cur.Close()
					s.Close()
					return
				}
			}
			Wait(context.Background(), cur.Put(v, true))
		}
	}()
	return outer
}

// StreamToSeq returns a pull iterator over s's values, Go's idiomatic
// substitute for a lazy sequence. ok is false once s drains, or once
// timeout elapses between values when hasTimeout is true.
func StreamToSeq(s IEventSource, timeout Millis, hasTimeout bool) func() (any, bool) {
	return func() (any, bool) {
		var d *Deferred
		if hasTimeout {
			d = s.TakeTimeout(drained, true, timeout, drained)
		} else {
			d = s.Take(drained, true)
		}
		v, err := Wait(context.Background(), d)
		if err != nil || v == drained {
			return nil, false
		}
		return v, true
	}
}

// Periodically emits f() every period into a size-1 buffered stream. If a
// put cannot complete immediately, the next tick is realigned to the next
// period boundary after the put completes; a put resolving false cancels
// the scheduler ticket and closes the stream; a panic in f logs, cancels,
// and closes.
func Periodically(period, initialDelay Millis, f func() any) *Stream {
	out := NewStream(StreamOptions{BufferSize: 1})
	sched := clock.Default()
	var currentTicket clock.Ticket

	cancelAndClose := func() {
		if currentTicket != nil {
			currentTicket.Cancel()
		}
		out.Close()
	}

	var scheduleNext func(delay Millis)
	var tick func()

	nextBoundary := func() Millis {
		now := Millis(time.Now().UnixMilli())
		if period <= 0 {
			return 0
		}
		mod := now % period
		if mod == 0 {
			return period
		}
		return period - mod
	}

	tick = func() {
		var v any
		if err := guard(func() { v = f() }); err != nil {
			logutil.Errorf("periodically: callback panicked: %v", err)
			cancelAndClose()
			return
		}
		putD := out.Put(v, false)
		realizedImmediately := putD.IsRealized()
		putD.onResolve(func(pv any) {
			if pv == false {
				cancelAndClose()
				return
			}
			if realizedImmediately {
				scheduleNext(period)
			} else {
				scheduleNext(nextBoundary())
			}
		}, func(e error) {
			cancelAndClose()
		})
	}
	scheduleNext = func(delay Millis) {
		currentTicket = sched.In(delay, tick)
	}

	scheduleNext(initialDelay)
	return out
}
