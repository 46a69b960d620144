package flow

import (
	"context"
	"testing"
)

func sourceOf(vals ...any) *Stream {
	s := NewStream(StreamOptions{BufferSize: len(vals) + 1})
	for _, v := range vals {
		Wait(context.Background(), s.Put(v, false))
	}
	s.Close()
	return s
}

func drainAll(t *testing.T, s IEventSource) []any {
	t.Helper()
	var out []any
	for {
		v, err := Wait(context.Background(), s.Take(drained, false))
		if err != nil {
			t.Fatalf("take error: %v", err)
		}
		if v == drained {
			return out
		}
		out = append(out, v)
	}
}

func TestMapAppliesFunctionInOrder(t *testing.T) {
	out := Map(func(x any) any { return x.(int) * 2 }, sourceOf(1, 2, 3))
	got := drainAll(t, out)
	want := []any{2, 4, 6}
	assertEqualSlice(t, got, want)
}

func TestFilterKeepsOnlyMatching(t *testing.T) {
	out := Filter(func(x any) bool { return x.(int)%2 == 0 }, sourceOf(1, 2, 3, 4, 5))
	got := drainAll(t, out)
	assertEqualSlice(t, got, []any{2, 4})
}

func TestMapCatFlattensOutputs(t *testing.T) {
	out := MapCat(func(x any) []any { n := x.(int); return []any{n, n} }, sourceOf(1, 2))
	got := drainAll(t, out)
	assertEqualSlice(t, got, []any{1, 1, 2, 2})
}

func TestZipStopsAtShortestSource(t *testing.T) {
	a := sourceOf(1, 2, 3)
	b := sourceOf("x", "y")
	out := Zip(a, b)
	got := drainAll(t, out)
	if len(got) != 2 {
		t.Fatalf("got %d tuples, want 2", len(got))
	}
	first := got[0].([]any)
	if first[0] != 1 || first[1] != "x" {
		t.Fatalf("got %v, want [1 x]", first)
	}
}

func TestReductionsEmitsInitThenRunningTotal(t *testing.T) {
	out := Reductions(func(acc, x any) any { return acc.(int) + x.(int) }, 0, sourceOf(1, 2, 3))
	got := drainAll(t, out)
	assertEqualSlice(t, got, []any{0, 1, 3, 6})
}

func TestReductionsNoInitialUsesFirstValue(t *testing.T) {
	out := Reductions(func(acc, x any) any { return acc.(int) + x.(int) }, NoInitial{}, sourceOf(1, 2, 3))
	got := drainAll(t, out)
	assertEqualSlice(t, got, []any{1, 3, 6})
}

func TestReduceFoldsToFinalValue(t *testing.T) {
	out := Reduce(func(acc, x any) any { return acc.(int) + x.(int) }, 0, sourceOf(1, 2, 3, 4))
	v, err := Wait(context.Background(), out)
	if err != nil || v != 10 {
		t.Fatalf("got (%v, %v), want (10, nil)", v, err)
	}
}

func TestReduceKeepsLastAccumulatorOnPanickingCallback(t *testing.T) {
	out := Reduce(func(acc, x any) any {
		if x.(int) == 2 {
			panic("bad element")
		}
		return acc.(int) + x.(int)
	}, 0, sourceOf(1, 2, 3))
	v, err := Wait(context.Background(), out)
	if err != nil {
		t.Fatalf("Reduce should resolve success on a panicking reducer: %v", err)
	}
	if v != 1 {
		t.Fatalf("got %v, want 1 (the last good accumulator)", v)
	}
}

func TestRealizeEachUnwrapsDeferreds(t *testing.T) {
	s := NewStream(StreamOptions{BufferSize: 3})
	Wait(context.Background(), s.Put(Resolved(1), false))
	Wait(context.Background(), s.Put(Resolved(2), false))
	s.Close()
	out := RealizeEach(s)
	got := drainAll(t, out)
	assertEqualSlice(t, got, []any{1, 2})
}

func TestConcatExhaustsEachSubStreamBeforeNext(t *testing.T) {
	subs := sourceOf(IEventSource(sourceOf(1, 2)), IEventSource(sourceOf(3, 4)))
	out := Concat(subs)
	got := drainAll(t, out)
	assertEqualSlice(t, got, []any{1, 2, 3, 4})
}

func TestLazilyPartitionByGroupsConsecutiveEqualKeys(t *testing.T) {
	outer := LazilyPartitionBy(func(x any) any { return x.(int) % 2 }, sourceOf(1, 3, 2, 4, 5))
	var groups [][]any
	for {
		v, err := Wait(context.Background(), outer.Take(drained, true))
		if err != nil {
			t.Fatalf("take error: %v", err)
		}
		if v == drained {
			break
		}
		sub := v.(IEventSource)
		groups = append(groups, drainAll(t, sub))
	}
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3: %v", len(groups), groups)
	}
	assertEqualSlice(t, groups[0], []any{1, 3})
	assertEqualSlice(t, groups[1], []any{2, 4})
	assertEqualSlice(t, groups[2], []any{5})
}

func TestStreamToSeqIteratesUntilDrained(t *testing.T) {
	next := StreamToSeq(sourceOf(1, 2, 3), 0, false)
	var got []any
	for {
		v, ok := next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assertEqualSlice(t, got, []any{1, 2, 3})
}

func TestPeriodicallyEmitsAtLeastRequestedCount(t *testing.T) {
	s := Periodically(5, 0, func() any { return 1 })
	count := 0
	for count < 3 {
		v, err := Wait(context.Background(), s.Take(drained, true))
		if err != nil || v == drained {
			t.Fatalf("periodically stream ended early: v=%v err=%v", v, err)
		}
		count++
	}
	s.Close()
}

func assertEqualSlice(t *testing.T, got, want []any) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %v, want %v (full got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}
