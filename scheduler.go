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
	"time"

	"github.com/xtaci/flowgraph/clock"
	"github.com/xtaci/flowgraph/internal/logutil"
)

// In schedules f to run once after delay, on the shared clock.Default()
// scheduler, and returns a Deferred of its result.
func In(delay Millis, f func() (any, error)) *Deferred {
	d := NewDeferred()
	clock.Default().In(delay, func() {
		v, err := safeCall(f)
		if err != nil {
			Error(d, err)
			return
		}
		Success(d, v)
	})
	return d
}

// At is In(max(0, ts-now), f).
func At(ts time.Time, f func() (any, error)) *Deferred {
	d := NewDeferred()
	clock.Default().At(ts, func() {
		v, err := safeCall(f)
		if err != nil {
			Error(d, err)
			return
		}
		Success(d, v)
	})
	return d
}

// Every schedules f at a fixed rate starting after initialDelay. An error
// returned by f is logged and cancels the ticket.
func Every(period, initialDelay Millis, f func() error) clock.Ticket {
	return clock.Default().Every(period, initialDelay, func() {
		if err := f(); err != nil {
			logutil.Errorf("every: callback error, cancelling: %v", err)
			panic(err)
		}
	})
}

func safeCall(f func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return f()
}
