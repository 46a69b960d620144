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

// none is the process-wide sentinel used internally to mean "no value was
// supplied"; compared by identity, never exposed across the API boundary.
var none = &struct{ name string }{"none"}

// drained is the sentinel fed to a waiting take when its source has no more
// values and will never produce any (closed + empty).
var drained = &struct{ name string }{"drained"}

// IEventStream is the capability every stream implements regardless of
// which half (sink, source, or both) it exposes.
type IEventStream interface {
	// Description returns a human-readable/structured description of the
	// stream, merging base properties supplied at construction.
	Description() map[string]any
	// IsSynchronous is true for adapters whose backpressure is realized by
	// blocking a calling thread (e.g. a queue-backed adapter) rather than by
	// deferred backpressure.
	IsSynchronous() bool
	// Close closes the stream. Closing a permanent stream is a no-op.
	Close()
	// WeakHandle returns a handle usable by the connection graph to track
	// this stream without pinning it from collection. See DESIGN.md's Open
	// Question on weak references for why this is an explicit registry
	// handle rather than a true weak reference.
	WeakHandle() *Handle
}

// IEventSink accepts values.
type IEventSink interface {
	IEventStream
	// Put offers x to the sink. blocking only documents caller intent; Put
	// itself never blocks. Returns a Deferred of true (accepted), false
	// (sink closed).
	Put(x any, blocking bool) *Deferred
	// PutTimeout is the timed variant: if the put can't complete within ms,
	// the Deferred resolves to timeoutVal instead.
	PutTimeout(x any, blocking bool, ms Millis, timeoutVal any) *Deferred
	IsClosed() bool
	OnClosed(cb func())
}

// IEventSource produces values.
type IEventSource interface {
	IEventStream
	// Take requests the next value. Resolves to defaultVal if the source is
	// drained.
	Take(defaultVal any, blocking bool) *Deferred
	// TakeTimeout is the timed variant.
	TakeTimeout(defaultVal any, blocking bool, ms Millis, timeoutVal any) *Deferred
	IsDrained() bool
	OnDrained(cb func())
	// Connector optionally returns a custom transfer function used by
	// Connect instead of the default take/put loop, allowing adapter-
	// optimized transfer paths (e.g. batched reads).
	Connector(sink IEventSink) func()
}

// Stream is a full sink+source pair.
type Stream struct {
	IEventSink
	IEventSource
}

// Close closes both halves exactly once.
func (s *Stream) Close() {
	s.IEventSink.Close()
	s.IEventSource.Close()
}

// IsSynchronous is the disjunction of both halves.
func (s *Stream) IsSynchronous() bool {
	return s.IEventSink.IsSynchronous() || s.IEventSource.IsSynchronous()
}

// Description merges both halves' descriptions, sink keys taking priority.
func (s *Stream) Description() map[string]any {
	out := map[string]any{}
	for k, v := range s.IEventSource.Description() {
		out[k] = v
	}
	for k, v := range s.IEventSink.Description() {
		out[k] = v
	}
	return out
}

// WeakHandle returns the sink half's handle; sink and source of a Splice
// share one underlying stream so either handle observes the same topology.
func (s *Stream) WeakHandle() *Handle {
	return s.IEventSink.WeakHandle()
}

// SinkProxy narrows a Stream (or any IEventSink) to just its sink
// capability, while still forwarding stream-level operations.
type SinkProxy struct {
	IEventSink
}

// SourceProxy narrows a Stream (or any IEventSource) to just its source
// capability.
type SourceProxy struct {
	IEventSource
}

// Splice packages an independently obtained sink half and source half as a
// single Stream.
func Splice(sink IEventSink, source IEventSource) *Stream {
	return &Stream{IEventSink: sink, IEventSource: source}
}
