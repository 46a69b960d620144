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

// Package kcpstream dials/listens kcp-go sessions and wraps them as
// flow.Streams, adapted from client/main.go's/server/main.go's KCP session
// setup (SetStreamMode/SetNoDelay/SetWindowSize/SetMtu/SetACKNoDelay).
package kcpstream

import (
	kcp "github.com/xtaci/kcp-go/v5"

	flow "github.com/xtaci/flowgraph"
	"github.com/xtaci/flowgraph/adapters/netstream"
)

// Options mirrors the tunable fields client/main.go/server/main.go read off
// their config struct before handing a session to smux.
type Options struct {
	NoDelay      int
	Interval     int
	Resend       int
	NoCongestion int
	SndWnd       int
	RcvWnd       int
	MTU          int
	AckNoDelay   bool
	DataShard    int
	ParityShard  int
}

func tune(conn *kcp.UDPSession, opts Options) {
	conn.SetStreamMode(true)
	conn.SetNoDelay(opts.NoDelay, opts.Interval, opts.Resend, opts.NoCongestion)
	conn.SetWindowSize(opts.SndWnd, opts.RcvWnd)
	conn.SetMtu(opts.MTU)
	conn.SetACKNoDelay(opts.AckNoDelay)
}

// Dial connects to raddr over KCP, applying block (may be nil for no
// encryption) and opts, and returns the session as a flow.Stream of
// []byte chunks.
func Dial(raddr string, block kcp.BlockCrypt, opts Options, chunkSize int) (*flow.Stream, error) {
	conn, err := kcp.DialWithOptions(raddr, block, opts.DataShard, opts.ParityShard)
	if err != nil {
		return nil, err
	}
	tune(conn, opts)
	return netstream.New(conn, chunkSize), nil
}

// Listener accepts inbound KCP sessions, each exposed as a flow.Stream.
type Listener struct {
	lis       *kcp.Listener
	opts      Options
	chunkSize int
}

// Listen starts accepting KCP sessions on laddr.
func Listen(laddr string, block kcp.BlockCrypt, opts Options, chunkSize int) (*Listener, error) {
	lis, err := kcp.ListenWithOptions(laddr, block, opts.DataShard, opts.ParityShard)
	if err != nil {
		return nil, err
	}
	return &Listener{lis: lis, opts: opts, chunkSize: chunkSize}, nil
}

// Accept blocks for the next inbound session.
func (l *Listener) Accept() (*flow.Stream, error) {
	conn, err := l.lis.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tune(conn, l.opts)
	return netstream.New(conn, l.chunkSize), nil
}

// Close stops accepting new sessions.
func (l *Listener) Close() error { return l.lis.Close() }
