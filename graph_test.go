package flow

import (
	"context"
	"testing"
	"time"
)

func TestConnectTransfersAllValuesInOrder(t *testing.T) {
	src := NewStream(StreamOptions{BufferSize: 8})
	dst := NewStream(StreamOptions{BufferSize: 8})
	for i := 0; i < 5; i++ {
		Wait(context.Background(), src.Put(i, false))
	}
	src.Close()
	Connect(src, dst, DefaultConnectOptions())
	for i := 0; i < 5; i++ {
		v, _ := Wait(context.Background(), dst.Take(nil, false))
		if v != i {
			t.Fatalf("take %d: got %v, want %v", i, v, i)
		}
	}
	if !waitDrained(t, dst) {
		t.Fatalf("dst should drain once src drains with Downstream=true")
	}
}

func TestConnectDownstreamOptionClosesSink(t *testing.T) {
	src := NewStream(StreamOptions{})
	dst := NewStream(StreamOptions{})
	opts := DefaultConnectOptions()
	opts.Downstream = true
	Connect(src, dst, opts)
	src.Close()
	if !waitClosed(t, dst) {
		t.Fatalf("dst should close once src drains")
	}
}

func TestConnectUpstreamOptionClosesSource(t *testing.T) {
	src := NewStream(StreamOptions{})
	dst := NewStream(StreamOptions{})
	opts := DefaultConnectOptions()
	opts.Upstream = true
	Connect(src, dst, opts)
	dst.Close()
	Wait(context.Background(), src.Put("x", false))
	if !waitClosed(t, src) {
		t.Fatalf("src should close once dst closes with Upstream=true")
	}
}

func TestDownstreamOfReportsLiveEdges(t *testing.T) {
	src := NewStream(StreamOptions{})
	dst := NewStream(StreamOptions{})
	h := Connect(src, dst, DefaultConnectOptions())
	edges := DownstreamOf(src)
	if len(edges) != 1 || edges[0].Sink != dst {
		t.Fatalf("expected one edge to dst, got %v", edges)
	}
	h.clear()
	edges = DownstreamOf(src)
	if len(edges) != 0 {
		t.Fatalf("sweep should drop a cleared edge, got %v", edges)
	}
}

func waitClosed(t *testing.T, sink IEventSink) bool {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if sink.IsClosed() {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(time.Millisecond):
		}
	}
}

func waitDrained(t *testing.T, source IEventSource) bool {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if source.IsDrained() {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(time.Millisecond):
		}
	}
}

// waitForCondition polls cond for up to a second, the fixture-free
// substitute for condition variables the combinator/callback tests use to
// observe async state without coupling to internal synchronization.
func waitForCondition(cond func() bool) bool {
	deadline := time.After(time.Second)
	for {
		if cond() {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(time.Millisecond):
		}
	}
}
