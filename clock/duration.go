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

// Package clock provides duration conversion/formatting and a shared
// scheduler, kept dependency-free so the flow package can sit on top of it
// without an import cycle.
package clock

import "fmt"

// Millis is a duration in milliseconds, the base unit every conversion in
// this package normalizes to.
type Millis int64

// Nanos, Micros, Seconds, Minutes, Hours, Days convert a count of the named
// unit into Millis. Hz converts a frequency (events/sec) into the period
// between events, in Millis.
func Nanos(n int64) Millis   { return Millis(n / 1e6) }
func Micros(n int64) Millis  { return Millis(n / 1e3) }
func MillisN(n int64) Millis { return Millis(n) }
func Seconds(n float64) Millis {
	return Millis(n * 1000)
}
func Minutes(n float64) Millis { return Seconds(n * 60) }
func Hours(n float64) Millis   { return Minutes(n * 60) }
func Days(n float64) Millis    { return Hours(n * 24) }
func Hz(n float64) Millis {
	if n <= 0 {
		return 0
	}
	return Millis(1000 / n)
}

// FormatDuration renders ms as a greatest-unit-first decomposition over
// {d, h, m, s}. Zero renders as "0s".
func FormatDuration(ms Millis) string {
	if ms < 0 {
		return "-" + FormatDuration(-ms)
	}
	total := int64(ms) / 1000
	days := total / 86400
	total -= days * 86400
	hours := total / 3600
	total -= hours * 3600
	mins := total / 60
	secs := total - mins*60

	out := ""
	if days > 0 {
		out += fmt.Sprintf("%dd", days)
	}
	if hours > 0 {
		out += fmt.Sprintf("%dh", hours)
	}
	if mins > 0 {
		out += fmt.Sprintf("%dm", mins)
	}
	if secs > 0 || out == "" {
		out += fmt.Sprintf("%ds", secs)
	}
	return out
}
