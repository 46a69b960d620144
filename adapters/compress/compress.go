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

// Package compress wraps an io.ReadWriteCloser with snappy framing, for
// layering under adapters/netstream the same way std/comp.go layers
// CompStream under a net.Conn. Unlike that teacher wrapper, Stream tracks
// its own compression ratio and exposes it as a flow.Metric so a
// BufferedStream sitting above it can price messages by their wire cost
// rather than their pre-compression size.
package compress

import (
	"io"
	"sync/atomic"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/xtaci/flowgraph"
)

// Stream compresses writes and decompresses reads using snappy's streaming
// frame format, counting bytes on both sides of the wire.
type Stream struct {
	rwc io.ReadWriteCloser
	w   *snappy.Writer
	r   *snappy.Reader
	cw  *countingWriter

	rawWritten int64
}

// countingWriter sits between the snappy.Writer and the wrapped
// io.ReadWriteCloser so Stream can see exactly how many compressed bytes
// actually crossed the wire, independent of snappy's internal buffering.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	atomic.AddInt64(&c.n, int64(n))
	return n, err
}

// New wraps rwc. Every Write is flushed immediately since the stream
// carries discrete flow messages, not a continuous byte pipe.
func New(rwc io.ReadWriteCloser) *Stream {
	cw := &countingWriter{w: rwc}
	return &Stream{
		rwc: rwc,
		w:   snappy.NewBufferedWriter(cw),
		r:   snappy.NewReader(rwc),
		cw:  cw,
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *Stream) Write(p []byte) (int, error) {
	if _, err := s.w.Write(p); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := s.w.Flush(); err != nil {
		return 0, errors.WithStack(err)
	}
	atomic.AddInt64(&s.rawWritten, int64(len(p)))
	return len(p), nil
}

func (s *Stream) Close() error {
	return s.rwc.Close()
}

// Ratio returns the fraction of raw bytes that actually crossed the wire so
// far: 1.0 means snappy bought nothing, 0 means nothing has been written.
func (s *Stream) Ratio() float64 {
	raw := atomic.LoadInt64(&s.rawWritten)
	if raw == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.cw.n)) / float64(raw)
}

// Metric prices a []byte message by the stream's running compression ratio,
// for wiring this adapter underneath flow.BufferedStream: the budget tracks
// wire bytes, not the caller's pre-compression payload size.
func (s *Stream) Metric() flow.Metric {
	return func(x any) int64 {
		b, ok := x.([]byte)
		if !ok {
			return 1
		}
		ratio := s.Ratio()
		if ratio <= 0 {
			ratio = 1
		}
		return int64(float64(len(b)) * ratio)
	}
}
