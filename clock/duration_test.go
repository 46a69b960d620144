package clock

import "testing"

func TestUnitConversions(t *testing.T) {
	cases := []struct {
		name string
		got  Millis
		want Millis
	}{
		{"seconds", Seconds(2), 2000},
		{"minutes", Minutes(1), 60000},
		{"hours", Hours(1), 3600000},
		{"days", Days(1), 86400000},
		{"hz-10", Hz(10), 100},
		{"hz-zero", Hz(0), 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.got != c.want {
				t.Fatalf("got %d, want %d", c.got, c.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   Millis
		want string
	}{
		{0, "0s"},
		{1000, "1s"},
		{61000, "1m1s"},
		{3661000, "1h1m1s"},
		{90000000, "1d1h"},
		{-1000, "-1s"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.ms); got != c.want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}
