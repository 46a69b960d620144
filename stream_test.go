package flow

import (
	"context"
	"testing"
)

func TestDefaultStreamFIFOOrder(t *testing.T) {
	s := NewStream(StreamOptions{BufferSize: 4})
	for i := 0; i < 4; i++ {
		if ok, _ := Wait(context.Background(), s.Put(i, false)); ok != true {
			t.Fatalf("put %d rejected", i)
		}
	}
	for i := 0; i < 4; i++ {
		v, _ := Wait(context.Background(), s.Take(nil, false))
		if v != i {
			t.Fatalf("take %d: got %v, want %v", i, v, i)
		}
	}
}

func TestDefaultStreamBackpressureBlocksUntilCapacity(t *testing.T) {
	s := NewStream(StreamOptions{BufferSize: 1})
	if ok, _ := Wait(context.Background(), s.Put("a", false)); ok != true {
		t.Fatalf("first put should be accepted immediately")
	}
	pending := s.Put("b", false)
	if pending.IsRealized() {
		t.Fatalf("second put should block: buffer is full")
	}
	v, _ := Wait(context.Background(), s.Take(nil, false))
	if v != "a" {
		t.Fatalf("got %v, want a", v)
	}
	ok, _ := Wait(context.Background(), pending)
	if ok != true {
		t.Fatalf("blocked put should resolve true once a slot frees")
	}
	v, _ = Wait(context.Background(), s.Take(nil, false))
	if v != "b" {
		t.Fatalf("got %v, want b", v)
	}
}

func TestDefaultStreamRendezvousNoBuffer(t *testing.T) {
	s := NewStream(StreamOptions{})
	putD := s.Put("x", false)
	if putD.IsRealized() {
		t.Fatalf("rendezvous put should not resolve without a matching take")
	}
	v, _ := Wait(context.Background(), s.Take(nil, false))
	if v != "x" {
		t.Fatalf("got %v, want x", v)
	}
	ok, _ := Wait(context.Background(), putD)
	if ok != true {
		t.Fatalf("put should resolve true once matched")
	}
}

func TestDefaultStreamCloseDrainsOutstandingTakes(t *testing.T) {
	s := NewStream(StreamOptions{})
	takeD := s.Take("eof", false)
	s.Close()
	v, _ := Wait(context.Background(), takeD)
	if v != "eof" {
		t.Fatalf("got %v, want eof", v)
	}
	if !s.IEventSource.IsDrained() {
		t.Fatalf("source should be drained once closed with no buffered items")
	}
}

func TestDefaultStreamCloseRejectsBlockedPuts(t *testing.T) {
	s := NewStream(StreamOptions{})
	putD := s.Put("x", false)
	s.Close()
	ok, _ := Wait(context.Background(), putD)
	if ok != false {
		t.Fatalf("a put blocked at close time should resolve false")
	}
}

func TestDefaultStreamPutAfterCloseResolvesFalse(t *testing.T) {
	s := NewStream(StreamOptions{BufferSize: 1})
	s.Close()
	ok, _ := Wait(context.Background(), s.Put("x", false))
	if ok != false {
		t.Fatalf("put on a closed stream should resolve false")
	}
}

func TestSpliceSharesTopologyHandle(t *testing.T) {
	sink := NewStream(StreamOptions{BufferSize: 1})
	source := NewStream(StreamOptions{BufferSize: 1})
	spliced := Splice(sink, source)
	if spliced.WeakHandle() != sink.WeakHandle() {
		t.Fatalf("Splice's WeakHandle should delegate to the sink half")
	}
}

func TestSpliceCloseClosesBothIndependentHalves(t *testing.T) {
	sink := NewStream(StreamOptions{BufferSize: 1})
	source := NewStream(StreamOptions{BufferSize: 1})
	spliced := Splice(sink, source)

	if ok, _ := Wait(context.Background(), source.Put("x", false)); ok != true {
		t.Fatalf("seeding the independent source should succeed")
	}
	v, _ := Wait(context.Background(), spliced.Take(nil, false))
	if v != "x" {
		t.Fatalf("got %v, want x", v)
	}

	spliced.Close()

	if !sink.IsClosed() {
		t.Fatalf("Splice's sink half should be closed")
	}
	if !source.IEventSource.IsDrained() {
		t.Fatalf("Splice's independent source half should be drained too, not just its sink")
	}
}

func TestOnClosedFiresImmediatelyIfAlreadyClosed(t *testing.T) {
	s := NewStream(StreamOptions{})
	s.Close()
	fired := make(chan struct{})
	s.IEventSink.OnClosed(func() { close(fired) })
	select {
	case <-fired:
	default:
		t.Fatalf("OnClosed registered post-close should fire synchronously")
	}
}
