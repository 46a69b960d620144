package netstream

import (
	"bytes"
	"context"
	"net"
	"testing"

	flow "github.com/xtaci/flowgraph"
)

func TestNewRoundTripsBytesOverPipe(t *testing.T) {
	left, right := net.Pipe()
	a := New(left, 0)
	b := New(right, 0)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	payload := []byte("hello from a")
	go func() {
		flow.Wait(context.Background(), a.Put(payload, true))
	}()

	v, err := flow.Wait(context.Background(), b.Take(nil, true))
	if err != nil {
		t.Fatalf("take error: %v", err)
	}
	got, ok := v.([]byte)
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("got %v, want %v", v, payload)
	}
}

func TestCloseClosesUnderlyingConn(t *testing.T) {
	left, right := net.Pipe()
	a := New(left, 0)
	b := New(right, 0)
	a.Close()

	v, err := flow.Wait(context.Background(), b.Take(drainedSentinel, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != drainedSentinel {
		t.Fatalf("closing one side should drain the other: got %v", v)
	}
}

var drainedSentinel = &struct{ name string }{"drained"}
