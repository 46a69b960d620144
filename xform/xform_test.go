package xform

import "testing"

func collect(t Transducer, inputs []any) []any {
	var out []any
	emit := func(v any) bool {
		out = append(out, v)
		return true
	}
	for _, in := range inputs {
		if t.Step(emit, in) {
			break
		}
	}
	t.Complete(emit)
	return out
}

func TestMapTransducer(t *testing.T) {
	got := collect(Map(func(x any) any { return x.(int) * 2 }), []any{1, 2, 3})
	want := []any{2, 4, 6}
	assertEqual(t, got, want)
}

func TestFilterTransducer(t *testing.T) {
	got := collect(Filter(func(x any) bool { return x.(int) > 1 }), []any{1, 2, 3})
	assertEqual(t, got, []any{2, 3})
}

func TestTakeTransducerStopsAfterN(t *testing.T) {
	tr := Take(2)
	got := collect(tr, []any{1, 2, 3, 4})
	assertEqual(t, got, []any{1, 2})
}

func TestComposeChainsLeftToRight(t *testing.T) {
	tr := Compose(
		Filter(func(x any) bool { return x.(int)%2 == 0 }),
		Map(func(x any) any { return x.(int) * 10 }),
	)
	got := collect(tr, []any{1, 2, 3, 4, 5})
	assertEqual(t, got, []any{20, 40})
}

func TestComposeStopsWhenInnerTakeExhausts(t *testing.T) {
	tr := Compose(Take(2), Map(func(x any) any { return x }))
	got := collect(tr, []any{1, 2, 3, 4})
	assertEqual(t, got, []any{1, 2})
}

func assertEqual(t *testing.T, got, want []any) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
