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

// Package logutil wraps the standard log package with colored-prefix
// severity levels, for combinator error paths: callback exceptions,
// realization errors, cancelled tickets.
package logutil

import (
	"log"

	"github.com/fatih/color"
)

var (
	warn = color.New(color.FgYellow)
	fail = color.New(color.FgRed)
)

// Warnf logs a recoverable condition (a closed sink, a cancelled ticket).
func Warnf(format string, args ...any) {
	log.Print(warn.Sprintf("[flow] "+format, args...))
}

// Errorf logs a callback exception or realization error.
func Errorf(format string, args ...any) {
	log.Print(fail.Sprintf("[flow] "+format, args...))
}
