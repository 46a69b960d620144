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

// Edge is one directed source->sink relationship, as returned by
// DownstreamOf.
type Edge struct {
	Description string
	Sink        IEventSink
}

// Handle is the explicit-registry substitute for a weak reference (see
// DESIGN.md's Open Question). It is held by a source's entry in the global
// graph and by whatever Connect call created it. Connect clears it and
// removes the edge when the source drains, a put is rejected or a put
// times out; a handle cleared any other way drops its edge on the next
// sweep.
type Handle struct {
	mu    sync.Mutex
	alive bool
}

func NewHandle() *Handle {
	return &Handle{alive: true}
}

// liveHandle is returned by WeakHandle implementations for streams that
// have no real topology to track (e.g. a Callback with no downstream) --
// resolving the "weakHandle on a Callback without downstream" open
// question by degenerating to an always-live handle rather than panicking.
func liveHandle() *Handle {
	return &Handle{alive: true}
}

func (h *Handle) clear() {
	h.mu.Lock()
	h.alive = false
	h.mu.Unlock()
}

func (h *Handle) isAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive
}

// edgeRecord is the full bookkeeping record for one Connect call.
type edgeRecord struct {
	handle      *Handle
	source      IEventSource
	sink        IEventSink
	description string
	upstream    bool
	downstream  bool
	timeoutMS   Millis
}

// graph is the process-wide registry of edges, keyed by source identity.
// It plays the role of session.go's streams map + streamLock, generalized
// from one session's child streams to arbitrary source->sink topology.
type graph struct {
	mu    sync.Mutex
	edges map[IEventSource][]*edgeRecord
}

var defaultGraph = &graph{edges: map[IEventSource][]*edgeRecord{}}

func (g *graph) add(rec *edgeRecord) {
	g.mu.Lock()
	g.edges[rec.source] = append(g.edges[rec.source], rec)
	g.mu.Unlock()
}

func (g *graph) remove(rec *edgeRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := g.edges[rec.source]
	for i, r := range list {
		if r == rec {
			g.edges[rec.source] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(g.edges[rec.source]) == 0 {
		delete(g.edges, rec.source)
	}
}

// sweep drops edges whose handle has been cleared, letting their sinks be
// collected even though the map itself still references the source.
func (g *graph) sweep(source IEventSource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := g.edges[source]
	if len(list) == 0 {
		return
	}
	live := list[:0]
	for _, r := range list {
		if r.handle.isAlive() {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		delete(g.edges, source)
	} else {
		g.edges[source] = live
	}
}

// DownstreamOf returns the current edge list for source as (description,
// sink) pairs.
func DownstreamOf(source IEventSource) []Edge {
	defaultGraph.sweep(source)
	defaultGraph.mu.Lock()
	defer defaultGraph.mu.Unlock()
	list := defaultGraph.edges[source]
	out := make([]Edge, 0, len(list))
	for _, r := range list {
		out = append(out, Edge{Description: r.description, Sink: r.sink})
	}
	return out
}

// ConnectOptions configures Connect/ConnectVia.
type ConnectOptions struct {
	// Upstream, if true, closes source when sink closes, even if other
	// sinks remain downstream of source.
	Upstream bool
	// Downstream, if true (the default), closes sink when source drains.
	Downstream bool
	// Timeout bounds each individual put; on elapse the sink is closed to
	// avoid head-of-line blocking. Zero disables the timeout.
	Timeout Millis
	Description string
}

// DefaultConnectOptions is the conservative default: the sink closes when
// the source drains (downstream=true), but a downstream close does not
// propagate back upstream (upstream=false).
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{Downstream: true}
}

// Connect wires source to sink: it repeatedly takes from source and puts
// into sink, propagating closure per opts, until the source drains or the
// sink rejects a put outside of recoverable conditions. If source exposes a
// Connector, that custom transfer path is used instead of the default loop.
func Connect(source IEventSource, sink IEventSink, opts ConnectOptions) *Handle {
	rec := &edgeRecord{
		handle:      NewHandle(),
		source:      source,
		sink:        sink,
		description: opts.Description,
		upstream:    opts.Upstream,
		downstream:  opts.Downstream,
		timeoutMS:   opts.Timeout,
	}
	defaultGraph.add(rec)

	finish := func() {
		rec.handle.clear()
		defaultGraph.remove(rec)
	}

	if custom := source.Connector(sink); custom != nil {
		go func() {
			custom()
			finish()
		}()
		return rec.handle
	}

	var loop func()
	loop = func() {
		takeDeferred := source.Take(drained, false)
		Chain(takeDeferred, func(v any) (any, error) {
			if v == drained {
				if rec.downstream {
					sink.Close()
				}
				finish()
				return nil, nil
			}

			var putDeferred *Deferred
			if rec.timeoutMS > 0 {
				putDeferred = sink.PutTimeout(v, false, rec.timeoutMS, none)
			} else {
				putDeferred = sink.Put(v, false)
			}

			Chain(putDeferred, func(pv any) (any, error) {
				switch pv {
				case none:
					// timed out: close sink to avoid head-of-line blocking.
					sink.Close()
					finish()
				case false:
					if rec.upstream || onlyDownstream(source, sink) {
						source.Close()
					}
					finish()
				default:
					loop()
				}
				return nil, nil
			})
			return nil, nil
		})
	}
	loop()
	return rec.handle
}

func onlyDownstream(source IEventSource, sink IEventSink) bool {
	edges := DownstreamOf(source)
	if len(edges) > 1 {
		return false
	}
	if len(edges) == 1 {
		return edges[0].Sink == sink
	}
	return true
}
