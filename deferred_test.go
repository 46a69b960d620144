package flow

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestSuccessResolvesOnce(t *testing.T) {
	d := NewDeferred()
	if !Success(d, 1) {
		t.Fatalf("first Success should return true")
	}
	if Success(d, 2) {
		t.Fatalf("second Success should return false")
	}
	if Error(d, errors.New("boom")) {
		t.Fatalf("Error after Success should return false")
	}
	v, err := Wait(context.Background(), d)
	if err != nil || v != 1 {
		t.Fatalf("got (%v, %v), want (1, nil)", v, err)
	}
}

func TestOnResolveAfterResolution(t *testing.T) {
	d := Resolved(42)
	var got any
	done := make(chan struct{})
	d.onResolve(func(v any) {
		got = v
		close(done)
	}, func(error) {})
	<-done
	if got != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestChainShortCircuitsOnError(t *testing.T) {
	boom := errors.New("boom")
	out := Chain(Resolved(1),
		func(v any) (any, error) { return v.(int) + 1, nil },
		func(v any) (any, error) { return nil, boom },
		func(v any) (any, error) { t.Fatalf("should not run after error"); return nil, nil },
	)
	_, err := Wait(context.Background(), out)
	if !errors.Is(err, boom) {
		t.Fatalf("got err %v, want %v", err, boom)
	}
}

func TestChainFlattensReturnedDeferred(t *testing.T) {
	out := Chain(Resolved(1), func(v any) (any, error) {
		return Resolved(v.(int) * 10), nil
	})
	v, err := Wait(context.Background(), out)
	if err != nil || v != 10 {
		t.Fatalf("got (%v, %v), want (10, nil)", v, err)
	}
}

func TestCatchPredicateGating(t *testing.T) {
	target := errors.New("target")
	other := errors.New("other")

	passthrough := Catch(Failed(other), func(e error) bool { return errors.Is(e, target) },
		func(e error) (any, error) { t.Fatalf("handler should not run"); return nil, nil })
	_, err := Wait(context.Background(), passthrough)
	if !errors.Is(err, other) {
		t.Fatalf("got %v, want %v unchanged", err, other)
	}

	recovered := Catch(Failed(target), func(e error) bool { return errors.Is(e, target) },
		func(e error) (any, error) { return "recovered", nil })
	v, err := Wait(context.Background(), recovered)
	if err != nil || v != "recovered" {
		t.Fatalf("got (%v, %v), want (recovered, nil)", v, err)
	}
}

func TestZipDeferredsAllSuccess(t *testing.T) {
	out := ZipDeferreds(Resolved(1), Resolved(2), Resolved(3))
	v, err := Wait(context.Background(), out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vals := v.([]any)
	if len(vals) != 3 || vals[0] != 1 || vals[1] != 2 || vals[2] != 3 {
		t.Fatalf("got %v, want [1 2 3]", vals)
	}
}

func TestZipDeferredsFirstError(t *testing.T) {
	boom := errors.New("boom")
	out := ZipDeferreds(Resolved(1), Failed(boom))
	_, err := Wait(context.Background(), out)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestTimeoutNeverFiresOnceResolved(t *testing.T) {
	d := NewDeferred()
	out := Timeout(d, 50, "late", true)
	Success(d, "early")
	v, err := Wait(context.Background(), out)
	if err != nil || v != "early" {
		t.Fatalf("got (%v, %v), want (early, nil)", v, err)
	}
	// give the (disarmed) timer a chance to misfire before we declare victory.
	time.Sleep(80 * time.Millisecond)
}

func TestTimeoutFiresDefault(t *testing.T) {
	d := NewDeferred()
	out := Timeout(d, 10, "fallback", true)
	v, err := Wait(context.Background(), out)
	if err != nil || v != "fallback" {
		t.Fatalf("got (%v, %v), want (fallback, nil)", v, err)
	}
}

func TestTimeoutFiresErrorWithoutDefault(t *testing.T) {
	d := NewDeferred()
	out := Timeout(d, 10, nil, false)
	_, err := Wait(context.Background(), out)
	if _, ok := err.(TimeoutError); !ok {
		t.Fatalf("got err %v, want TimeoutError", err)
	}
}

func TestLoopTrampolinesWithoutGrowingStack(t *testing.T) {
	const n = 2000000
	out := Loop(0, func(seed any) (any, error) {
		i := seed.(int)
		if i >= n {
			return i, nil
		}
		return Recur{i + 1}, nil
	})
	v, err := Wait(context.Background(), out)
	if err != nil || v != n {
		t.Fatalf("got (%v, %v), want (%d, nil)", v, err, n)
	}
}

// TestLoopStackDepthStaysFlat samples the calling goroutine's stack trace
// size at a handful of iterations spread across a long synchronous Recur
// chain. A real trampoline reuses one stack frame per iteration, so the
// sampled size should stay roughly constant; a mutually-recursive
// step/advance/step stand-in would instead grow the trace linearly with the
// iteration index.
func TestLoopStackDepthStaysFlat(t *testing.T) {
	const n = 200000
	checkpoints := map[int]bool{1: true, n / 2: true, n - 1: true}
	samples := make(map[int]int)

	out := Loop(0, func(seed any) (any, error) {
		i := seed.(int)
		if checkpoints[i] {
			buf := make([]byte, 1<<16)
			samples[i] = runtime.Stack(buf, false)
		}
		if i >= n {
			return i, nil
		}
		return Recur{i + 1}, nil
	})
	v, err := Wait(context.Background(), out)
	if err != nil || v != n {
		t.Fatalf("got (%v, %v), want (%d, nil)", v, err, n)
	}

	first, mid, last := samples[1], samples[n/2], samples[n-1]
	if first == 0 || mid == 0 || last == 0 {
		t.Fatalf("missing stack samples: first=%d mid=%d last=%d", first, mid, last)
	}
	// A generous slack for normal stack-trace jitter (goroutine scheduling
	// frames, GC, etc.) — a linear-in-n stand-in would blow well past this.
	const slack = 4096
	if last-first > slack {
		t.Fatalf("stack trace grew by %d bytes from iteration 1 to %d: Loop is not trampolining", last-first, n-1)
	}
}

func TestLoopFeedsDeferredResults(t *testing.T) {
	out := Loop(0, func(seed any) (any, error) {
		i := seed.(int)
		if i >= 3 {
			return i, nil
		}
		return Resolved(Recur{i + 1}), nil
	})
	v, err := Wait(context.Background(), out)
	if err != nil || v != 3 {
		t.Fatalf("got (%v, %v), want (3, nil)", v, err)
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := Wait(ctx, NewDeferred())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestChainRecoversPanicAsError(t *testing.T) {
	out := Chain(Resolved(1), func(any) (any, error) {
		panic("kaboom")
	})
	_, err := Wait(context.Background(), out)
	if err == nil {
		t.Fatalf("expected an error from the recovered panic")
	}
}
