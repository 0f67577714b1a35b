/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package tagpool provides the command-slot pool backing a host adapter's
// outstanding-command budget, plus a small reserved buffer list kept aside
// for synchronous reset paths that must not fail on allocation.
package tagpool

import (
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/valyala/bytebufferpool"
)

// Policy selects how callers behave when every tag is in flight.
type Policy int

const (
	// PolicyBlocking parks submitters until a tag frees up.
	PolicyBlocking Policy = iota
	// PolicyNonblocking fails submission immediately when the pool is full.
	PolicyNonblocking
)

var (
	// ErrInvalidDepth is returned for a non-positive pool size.
	ErrInvalidDepth = errors.New("tagpool: depth must be positive")
	// ErrReserveExhausted is returned when no reserved buffer is available.
	ErrReserveExhausted = errors.New("tagpool: reserve exhausted")
)

// Pool bounds concurrent command execution to a fixed number of tags.
type Pool struct {
	depth   int
	workers *ants.Pool
}

// New creates a pool with depth tags.
func New(depth int, policy Policy) (*Pool, error) {
	if depth <= 0 {
		return nil, ErrInvalidDepth
	}
	var opts []ants.Option
	if policy == PolicyNonblocking {
		opts = append(opts, ants.WithNonblocking(true))
	}
	workers, err := ants.NewPool(depth, opts...)
	if err != nil {
		return nil, fmt.Errorf("tagpool: %w", err)
	}
	return &Pool{depth: depth, workers: workers}, nil
}

// Run executes task on a free tag, honoring the pool's policy.
func (p *Pool) Run(task func()) error {
	return p.workers.Submit(task)
}

// Depth returns the configured tag count.
func (p *Pool) Depth() int {
	return p.depth
}

// Free returns the number of currently idle tags.
func (p *Pool) Free() int {
	return p.workers.Free()
}

// Destroy releases the pool. In-flight tasks complete; new submissions fail.
func (p *Pool) Destroy() {
	p.workers.Release()
}

// Reserve is a fixed-size last-resort buffer list. Buffers come from the
// shared byte-buffer pool at creation and go back to it at Destroy, so the
// reserve survives memory pressure without allocating on the hot path.
type Reserve struct {
	bufs chan *bytebufferpool.ByteBuffer
}

// NewReserve sets count buffers aside, each grown to at least bufSize bytes.
func NewReserve(count, bufSize int) (*Reserve, error) {
	if count <= 0 {
		return nil, ErrInvalidDepth
	}
	r := &Reserve{bufs: make(chan *bytebufferpool.ByteBuffer, count)}
	for i := 0; i < count; i++ {
		b := bytebufferpool.Get()
		if cap(b.B) < bufSize {
			b.B = append(b.B[:0], make([]byte, bufSize)...)
		}
		b.Reset()
		r.bufs <- b
	}
	return r, nil
}

// Get takes a buffer from the reserve without blocking.
func (r *Reserve) Get() (*bytebufferpool.ByteBuffer, error) {
	select {
	case b := <-r.bufs:
		return b, nil
	default:
		return nil, ErrReserveExhausted
	}
}

// Put returns a buffer taken with Get.
func (r *Reserve) Put(b *bytebufferpool.ByteBuffer) {
	b.Reset()
	select {
	case r.bufs <- b:
	default:
		bytebufferpool.Put(b)
	}
}

// Size reports how many buffers are currently available.
func (r *Reserve) Size() int {
	return len(r.bufs)
}

// Destroy hands every remaining buffer back to the shared pool.
func (r *Reserve) Destroy() {
	for {
		select {
		case b := <-r.bufs:
			bytebufferpool.Put(b)
		default:
			return
		}
	}
}
