package clock

import (
	"sync"
	"testing"
	"time"
)

func TestInFiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	start := time.Now()
	done := make(chan time.Time, 1)
	s.In(20, func() { done <- time.Now() })
	select {
	case fired := <-done:
		if fired.Sub(start) < 15*time.Millisecond {
			t.Fatalf("fired too early: %v", fired.Sub(start))
		}
	case <-time.After(time.Second):
		t.Fatalf("In never fired")
	}
}

func TestTicketCancelIsIdempotentAndPreventsFiring(t *testing.T) {
	s := NewScheduler()
	fired := make(chan struct{}, 1)
	tk := s.In(20, func() { fired <- struct{}{} })
	if !tk.Cancel() {
		t.Fatalf("first Cancel should return true")
	}
	if tk.Cancel() {
		t.Fatalf("second Cancel should return false")
	}
	select {
	case <-fired:
		t.Fatalf("cancelled ticket should not fire")
	case <-time.After(40 * time.Millisecond):
	}
}

func TestEveryFiresAtFixedRate(t *testing.T) {
	s := NewScheduler()
	var mu sync.Mutex
	var count int
	done := make(chan struct{})
	tk := s.Every(15, 0, func() {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	})
	defer tk.Cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Every did not fire 3 times in time")
	}
	mu.Lock()
	defer mu.Unlock()
	if count < 3 {
		t.Fatalf("got %d firings, want at least 3", count)
	}
}

func TestDefaultReturnsSameSingleton(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Fatalf("Default() should return the same process-wide scheduler")
	}
}
