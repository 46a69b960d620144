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

// Package qppstream layers Quantum Permutation Pad obfuscation under
// adapters/netstream, adapted from std/qpp.go's QPPPort. Unlike that fixed
// teacher wrapper, Port supports rekeying its PRNG state mid-session (a
// caller can drive this from a clock.Ticket) and reports the bytes it has
// obfuscated per direction, so callers can reason about how long a given
// seed has been in use.
package qppstream

import (
	"fmt"
	"io"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/xtaci/qpp"
)

// ValidateParams checks a QPP pad count and seed key against the given
// permutation power, returning warnings for weak-but-usable configurations
// and an error only when count itself is nonsensical.
func ValidateParams(count int, key string, power int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("qppstream: pad count must be greater than 0")
	}
	var warnings []string
	if minLen := qpp.QPPMinimumSeedLength(power); len(key) < minLen {
		warnings = append(warnings, fmt.Sprintf("qppstream: key is %d bytes, want at least %d", len(key), minLen))
	}
	if minPads := qpp.QPPMinimumPads(power); count < minPads {
		warnings = append(warnings, fmt.Sprintf("qppstream: pad count %d, want at least %d", count, minPads))
	}
	if new(big.Int).GCD(nil, nil, big.NewInt(int64(count)), big.NewInt(int64(power))).Int64() != 1 {
		warnings = append(warnings, fmt.Sprintf("qppstream: pad count %d should be prime for best security", count))
	}
	return warnings, nil
}

// Port obfuscates reads and writes through a QuantumPermutationPad. A mutex
// guards the PRNG pair so Rekey can run concurrently with in-flight
// Read/Write calls from the netstream read-loop and write-sink goroutines.
type Port struct {
	underlying io.ReadWriteCloser
	pad        *qpp.QuantumPermutationPad

	mu    sync.Mutex
	wprng *qpp.Rand
	rprng *qpp.Rand

	bytesRead    int64
	bytesWritten int64
}

// New builds a Port over underlying using pad, seeded from seed.
func New(underlying io.ReadWriteCloser, pad *qpp.QuantumPermutationPad, seed []byte) *Port {
	return &Port{
		underlying: underlying,
		pad:        pad,
		wprng:      qpp.CreatePRNG(seed),
		rprng:      qpp.CreatePRNG(seed),
	}
}

// Rekey replaces both directions' PRNG state with fresh schedules derived
// from seed. Both peers must call Rekey with the same seed at the same
// logical point in the byte stream or the streams desynchronize.
func (p *Port) Rekey(seed []byte) {
	p.mu.Lock()
	p.wprng = qpp.CreatePRNG(seed)
	p.rprng = qpp.CreatePRNG(seed)
	p.mu.Unlock()
}

// Stats reports the total bytes obfuscated in each direction since New
// (Rekey does not reset the counters).
func (p *Port) Stats() (read, written int64) {
	return atomic.LoadInt64(&p.bytesRead), atomic.LoadInt64(&p.bytesWritten)
}

func (p *Port) Read(buf []byte) (int, error) {
	n, err := p.underlying.Read(buf)
	p.mu.Lock()
	p.pad.DecryptWithPRNG(buf[:n], p.rprng)
	p.mu.Unlock()
	atomic.AddInt64(&p.bytesRead, int64(n))
	return n, err
}

func (p *Port) Write(buf []byte) (int, error) {
	p.mu.Lock()
	p.pad.EncryptWithPRNG(buf, p.wprng)
	p.mu.Unlock()
	n, err := p.underlying.Write(buf)
	atomic.AddInt64(&p.bytesWritten, int64(n))
	return n, err
}

func (p *Port) Close() error {
	return p.underlying.Close()
}
