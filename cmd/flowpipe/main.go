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

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	kcp "github.com/xtaci/kcp-go/v5"

	flow "github.com/xtaci/flowgraph"
	"github.com/xtaci/flowgraph/adapters/cryptstream"
	"github.com/xtaci/flowgraph/adapters/smuxstream"
	"github.com/xtaci/flowgraph/clock"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

const salt = "flowgraph"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "flowpipe"
	app.Usage = "sample a periodic source, batch it, throttle it, and ship it over a kcp+smux tunnel"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "remoteaddr, r", Value: "127.0.0.1:29900", Usage: "kcp server address"},
		cli.StringFlag{Name: "key", Value: "it's a secret", Usage: "pre-shared tunnel key", EnvVar: "FLOWPIPE_KEY"},
		cli.StringFlag{Name: "crypt", Value: "aes", Usage: fmt.Sprintf("cipher, one of: %v", cryptstream.Methods())},
		cli.IntFlag{Name: "periodms", Value: 200, Usage: "sample period in milliseconds"},
		cli.IntFlag{Name: "batchsize", Value: 32, Usage: "max samples per batch"},
		cli.IntFlag{Name: "batchlatencyms", Value: 500, Usage: "max milliseconds a partial batch waits before flushing"},
		cli.Float64Flag{Name: "rate", Value: 50, Usage: "max batches per second sent over the tunnel"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		color.Red("flowpipe: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	key := cryptstream.DeriveKey(c.String("key"), salt, 32)
	block, effective := cryptstream.SelectBlockCrypt(c.String("crypt"), key)
	color.Green("cipher: %s", effective)

	sample := 0
	source := flow.Periodically(clock.Millis(c.Int("periodms")), 0, func() any {
		sample++
		return sample
	})

	batched := flow.Batch(c.Int("batchsize"), clock.Millis(c.Int("batchlatencyms")), source)
	throttled := flow.Throttle(c.Float64("rate"), c.Int("batchsize"), batched)

	sess, err := dialTunnel(c.String("remoteaddr"), block)
	if err != nil {
		return err
	}
	defer sess.Close()

	tunnel, err := sess.Open(16 * 1024)
	if err != nil {
		return err
	}

	color.Yellow("streaming batches to %s", c.String("remoteaddr"))
	flow.Consume(func(x any) {
		batch := x.([]any)
		wire := tunnel.Put([]byte(fmt.Sprintf("%v", batch)), false)
		flow.Wait(context.Background(), wire)
	}, throttled)

	<-make(chan struct{})
	return nil
}

func dialTunnel(remote string, block kcp.BlockCrypt) (*smuxstream.Session, error) {
	conn, err := kcp.DialWithOptions(remote, block, 0, 0)
	if err != nil {
		return nil, err
	}
	conn.SetStreamMode(true)
	conn.SetNoDelay(1, 20, 2, 1)
	conn.SetWindowSize(128, 512)
	conn.SetMtu(1350)
	conn.SetACKNoDelay(false)

	cfg := smuxstream.BuildConfig(2, 10, 60, 32768, 4194304, 2097152)
	return smuxstream.Client(conn, cfg)
}
