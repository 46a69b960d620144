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

// Package xform provides a compositional stateful-reducer interface,
// invoked between a stream's put and its take. A Transducer may emit zero,
// one, or many outputs per input, and may signal a terminating reduction
// that closes the stream it's installed on.
package xform

// Transducer is a stateful reduction step installed on a default stream.
// Step is invoked once per accepted Put; it may call emit any number of
// times (zero for a filtered-out input, more than once for a fan-out
// input) and returns stop=true for a terminating reduction (the stream
// closes after Complete runs). Complete is invoked once, on stream close,
// to flush any buffered state (e.g. a batching transducer's partial
// batch); it too may emit.
type Transducer interface {
	Step(emit func(any) bool, input any) (stop bool)
	Complete(emit func(any) bool)
}

// Map returns a Transducer that applies f to every input.
func Map(f func(any) any) Transducer {
	return &mapXform{f: f}
}

type mapXform struct{ f func(any) any }

func (m *mapXform) Step(emit func(any) bool, input any) bool {
	emit(m.f(input))
	return false
}
func (m *mapXform) Complete(emit func(any) bool) {}

// Filter returns a Transducer that passes through only inputs for which
// pred returns true.
func Filter(pred func(any) bool) Transducer {
	return &filterXform{pred: pred}
}

type filterXform struct{ pred func(any) bool }

func (f *filterXform) Step(emit func(any) bool, input any) bool {
	if f.pred(input) {
		emit(input)
	}
	return false
}
func (f *filterXform) Complete(emit func(any) bool) {}

// Take returns a Transducer that passes through the first n inputs and
// then signals a terminating reduction.
func Take(n int) Transducer {
	return &takeXform{remaining: n}
}

type takeXform struct{ remaining int }

func (t *takeXform) Step(emit func(any) bool, input any) bool {
	if t.remaining <= 0 {
		return true
	}
	emit(input)
	t.remaining--
	return t.remaining <= 0
}
func (t *takeXform) Complete(emit func(any) bool) {}

// Compose chains transducers left to right: the output of ts[0] feeds
// ts[1], and so on.
func Compose(ts ...Transducer) Transducer {
	return &composeXform{ts: ts}
}

type composeXform struct{ ts []Transducer }

func (c *composeXform) Step(emit func(any) bool, input any) bool {
	return c.stepAt(0, emit, input)
}

func (c *composeXform) stepAt(i int, emit func(any) bool, input any) bool {
	if i == len(c.ts) {
		return !emit(input)
	}
	stopped := false
	if c.ts[i].Step(func(v any) bool {
		if c.stepAt(i+1, emit, v) {
			stopped = true
		}
		return !stopped
	}, input) {
		stopped = true
	}
	return stopped
}

func (c *composeXform) Complete(emit func(any) bool) {
	for i, t := range c.ts {
		i := i
		t.Complete(func(v any) bool { return !c.stepAt(i+1, emit, v) })
	}
}
