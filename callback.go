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

import "sync"

// CallbackSink is a sink that invokes a user function per Put whose
// returned Deferred gates when Connect will issue the next Take: this is
// the backpressure primitive every combinator in combinators.go builds on,
// grounded on session.go's writeFrameInternal, whose caller blocks on
// req.result until sendLoop finishes the previous write.
type CallbackSink struct {
	mu         sync.Mutex
	f          func(any) *Deferred
	downstream IEventSink
	closed     bool
	onClosed   []func()
}

// NewCallbackSink constructs a CallbackSink. downstream may be nil.
func NewCallbackSink(f func(any) *Deferred, downstream IEventSink) *CallbackSink {
	return &CallbackSink{f: f, downstream: downstream}
}

// Description implements IEventStream.
func (c *CallbackSink) Description() map[string]any {
	return map[string]any{"type": "callback-sink"}
}

// IsSynchronous implements IEventStream: a callback sink is never
// synchronous — its backpressure is entirely the deferred f returns.
func (c *CallbackSink) IsSynchronous() bool { return false }

// Close implements IEventStream/IEventSink. It also closes the downstream
// sink, if any.
func (c *CallbackSink) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cbs := append([]func(){}, c.onClosed...)
	c.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
	if c.downstream != nil {
		c.downstream.Close()
	}
}

// WeakHandle implements IEventStream. Per DESIGN.md's resolution of the
// "weakHandle on a Callback without downstream" open question, a callback
// with no downstream degenerates to an always-live handle instead of
// panicking; one with a downstream delegates to it.
func (c *CallbackSink) WeakHandle() *Handle {
	if c.downstream != nil {
		return c.downstream.WeakHandle()
	}
	return liveHandle()
}

// IsClosed implements IEventSink.
func (c *CallbackSink) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// OnClosed implements IEventSink.
func (c *CallbackSink) OnClosed(cb func()) {
	c.mu.Lock()
	if !c.closed {
		c.onClosed = append(c.onClosed, cb)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	cb()
}

// Put implements IEventSink: invoking f and returning its deferred,
// unless the sink is closed or f itself panics.
func (c *CallbackSink) Put(x any, blocking bool) *Deferred {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Resolved(false)
	}
	c.mu.Unlock()

	var result *Deferred
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.Close()
				result = Resolved(false)
			}
		}()
		result = c.f(x)
	}()
	return result
}

// PutTimeout implements IEventSink.
func (c *CallbackSink) PutTimeout(x any, blocking bool, ms Millis, timeoutVal any) *Deferred {
	return Timeout(c.Put(x, blocking), ms, timeoutVal, true)
}

// ConnectVia wires src into a CallbackSink built from f (with dst as its
// optional downstream) via Connect, so the deferred f returns gates the
// next Take from src.
func ConnectVia(f func(any) *Deferred, src IEventSource, dst IEventSink, opts ConnectOptions) *Handle {
	sink := NewCallbackSink(f, dst)
	return Connect(src, sink, opts)
}

// Consume wires source into a fire-and-forget CallbackSink whose Put
// always resolves true.
func Consume(cb func(any), source IEventSource) *Handle {
	sink := NewCallbackSink(func(x any) *Deferred {
		cb(x)
		return Resolved(true)
	}, nil)
	return Connect(source, sink, DefaultConnectOptions())
}

// connectViaProxy connects src through f into an intermediate proxy, then
// connects proxy to dst, holding the proxy open (downstream=false on the
// first leg) until src itself drains.
func connectViaProxy(f func(any) *Deferred, src IEventSource, proxy *Stream, dst IEventSink) {
	firstLeg := DefaultConnectOptions()
	firstLeg.Downstream = false
	ConnectVia(f, src, proxy, firstLeg)
	Connect(proxy, dst, DefaultConnectOptions())
	src.OnDrained(func() { proxy.Close() })
}
