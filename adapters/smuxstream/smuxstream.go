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

// Package smuxstream multiplexes flow.Stream sessions over one underlying
// io.ReadWriteCloser via smux, adapted from std/smuxcfg.go's BuildConfig
// and client/main.go's/server/main.go's OpenStream/AcceptStream call
// sites.
package smuxstream

import (
	"io"
	"time"

	"github.com/xtaci/smux"

	flow "github.com/xtaci/flowgraph"
	"github.com/xtaci/flowgraph/adapters/netstream"
)

// BuildConfig mirrors std/smuxcfg.go's defaulting: smux.DefaultConfig()
// overridden by any non-zero fields a caller supplies.
func BuildConfig(version, keepAliveInterval, keepAliveTimeout, maxFrameSize, maxReceiveBuffer, maxStreamBuffer int) *smux.Config {
	c := smux.DefaultConfig()
	if version != 0 {
		c.Version = version
	}
	if keepAliveInterval != 0 {
		c.KeepAliveInterval = time.Duration(keepAliveInterval) * time.Second
	}
	if keepAliveTimeout != 0 {
		c.KeepAliveTimeout = time.Duration(keepAliveTimeout) * time.Second
	}
	if maxFrameSize != 0 {
		c.MaxFrameSize = maxFrameSize
	}
	if maxReceiveBuffer != 0 {
		c.MaxReceiveBuffer = maxReceiveBuffer
	}
	if maxStreamBuffer != 0 {
		c.MaxStreamBuffer = maxStreamBuffer
	}
	return c
}

// Session wraps a smux.Session, handing out flow.Streams per sub-stream
// instead of raw net.Conn-shaped values.
type Session struct {
	sess *smux.Session
}

// Client builds a smux client session over conn — the dialer side, one
// OpenStream call per logical connection.
func Client(conn io.ReadWriteCloser, config *smux.Config) (*Session, error) {
	sess, err := smux.Client(conn, config)
	if err != nil {
		return nil, err
	}
	return &Session{sess: sess}, nil
}

// Server builds a smux server session over conn — the listener side,
// accepting sub-streams opened by the client.
func Server(conn io.ReadWriteCloser, config *smux.Config) (*Session, error) {
	sess, err := smux.Server(conn, config)
	if err != nil {
		return nil, err
	}
	return &Session{sess: sess}, nil
}

// Open opens a new sub-stream and wraps it as a flow.Stream.
func (s *Session) Open(chunkSize int) (*flow.Stream, error) {
	st, err := s.sess.OpenStream()
	if err != nil {
		return nil, err
	}
	return netstream.New(st, chunkSize), nil
}

// Accept blocks for the next sub-stream the peer opens.
func (s *Session) Accept(chunkSize int) (*flow.Stream, error) {
	st, err := s.sess.AcceptStream()
	if err != nil {
		return nil, err
	}
	return netstream.New(st, chunkSize), nil
}

// NumStreams reports the number of open sub-streams.
func (s *Session) NumStreams() int { return s.sess.NumStreams() }

// Close closes the underlying smux session and every sub-stream on it.
func (s *Session) Close() error { return s.sess.Close() }
