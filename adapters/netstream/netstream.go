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

// Package netstream bridges an io.ReadWriteCloser (a smux stream, a kcp
// session, a plain net.Conn) onto a flow.Stream of []byte chunks. The read
// side runs on a dedicated goroutine pushed into an internal buffered
// stream, generalizing session.go's recvLoop from smux frames to arbitrary
// readers; the write side issues one Write per Put on a fresh goroutine,
// and Connect's backpressure keeps one write in flight at a time,
// generalizing writeFrameInternal's single in-flight request.
package netstream

import (
	"context"
	"io"

	"github.com/xtaci/flowgraph"
)

// DefaultChunkSize is the read buffer size used when New's chunkSize <= 0.
const DefaultChunkSize = 16 * 1024

// New wraps rwc as a *flow.Stream of []byte messages. Closing the returned
// stream closes rwc.
func New(rwc io.ReadWriteCloser, chunkSize int) *flow.Stream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	internal := flow.NewStream(flow.StreamOptions{BufferSize: 16})

	go func() {
		buf := make([]byte, chunkSize)
		for {
			n, err := rwc.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				ok, waitErr := flow.Wait(context.Background(), internal.Put(chunk, true))
				if waitErr != nil || ok == false {
					internal.Close()
					return
				}
			}
			if err != nil {
				internal.Close()
				return
			}
		}
	}()

	sink := &writeSink{rwc: rwc, source: internal}
	return flow.Splice(sink, internal)
}

// writeSink funnels Put calls to rwc.Write, one at a time per call, and
// delegates every other IEventSink method to the internal stream so
// Description/WeakHandle/IsClosed/OnClosed stay consistent with the source
// half returned by New.
type writeSink struct {
	rwc    io.ReadWriteCloser
	source *flow.Stream
}

func (w *writeSink) Description() map[string]any {
	d := w.source.Description()
	d["type"] = "netstream"
	return d
}

// IsSynchronous is true: Put blocks a dedicated goroutine on rwc.Write
// rather than relying purely on deferred backpressure.
func (w *writeSink) IsSynchronous() bool { return true }

func (w *writeSink) Close() {
	w.rwc.Close()
	w.source.Close()
}

func (w *writeSink) WeakHandle() *flow.Handle { return w.source.WeakHandle() }

func (w *writeSink) IsClosed() bool { return w.source.IsClosed() }

func (w *writeSink) OnClosed(cb func()) { w.source.OnClosed(cb) }

// Put writes x (which must be a []byte) to rwc on a fresh goroutine per
// call, resolving false if x is malformed or the write fails.
func (w *writeSink) Put(x any, blocking bool) *flow.Deferred {
	b, ok := x.([]byte)
	if !ok {
		return flow.Resolved(false)
	}
	d := flow.NewDeferred()
	go func() {
		if _, err := w.rwc.Write(b); err != nil {
			flow.Success(d, false)
			return
		}
		flow.Success(d, true)
	}()
	return d
}

func (w *writeSink) PutTimeout(x any, blocking bool, ms flow.Millis, timeoutVal any) *flow.Deferred {
	return flow.Timeout(w.Put(x, blocking), ms, timeoutVal, true)
}
