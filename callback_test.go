package flow

import (
	"context"
	"sync"
	"testing"
)

func TestConsumeInvokesCallbackForEveryValue(t *testing.T) {
	src := NewStream(StreamOptions{BufferSize: 4})
	for i := 0; i < 4; i++ {
		Wait(context.Background(), src.Put(i, false))
	}
	src.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	src.IEventSource.OnDrained(func() { close(done) })
	Consume(func(x any) {
		mu.Lock()
		got = append(got, x.(int))
		mu.Unlock()
	}, src)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 4 {
		t.Fatalf("got %v values, want 4", got)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestConnectViaGatesNextTakeOnReturnedDeferred(t *testing.T) {
	src := NewStream(StreamOptions{BufferSize: 4})
	for i := 0; i < 2; i++ {
		Wait(context.Background(), src.Put(i, false))
	}

	gate := NewDeferred()
	var calls int
	var mu sync.Mutex
	ConnectVia(func(x any) *Deferred {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return gate
		}
		return Resolved(true)
	}, src, NewStream(StreamOptions{Permanent: true}), DefaultConnectOptions())

	mu.Lock()
	n := calls
	mu.Unlock()
	if n != 1 {
		t.Fatalf("second value should not have been taken yet: calls=%d", n)
	}
	Success(gate, true)

	deadlineOK := waitForCondition(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	})
	if !deadlineOK {
		t.Fatalf("gate release should let the second value through")
	}
}

func TestCallbackSinkWeakHandleWithoutDownstreamIsLive(t *testing.T) {
	sink := NewCallbackSink(func(any) *Deferred { return Resolved(true) }, nil)
	h := sink.WeakHandle()
	if !h.isAlive() {
		t.Fatalf("a callback sink with no downstream should report a live handle")
	}
}

func TestCallbackSinkClosesOnPanic(t *testing.T) {
	sink := NewCallbackSink(func(any) *Deferred { panic("boom") }, nil)
	ok, _ := Wait(context.Background(), sink.Put("x", false))
	if ok != false {
		t.Fatalf("a panicking callback should resolve its put false")
	}
	if !sink.IsClosed() {
		t.Fatalf("a panicking callback should close the sink")
	}
}
