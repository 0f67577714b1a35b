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

package tagpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRejectsBadDepth(t *testing.T) {
	for _, depth := range []int{0, -1} {
		p, err := New(depth, PolicyBlocking)
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrInvalidDepth)
	}
}

func TestRunExecutesTasks(t *testing.T) {
	p, err := New(4, PolicyBlocking)
	assert.NoError(t, err)
	defer p.Destroy()

	assert.Equal(t, 4, p.Depth())

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		assert.NoError(t, p.Run(func() {
			ran.Add(1)
			wg.Done()
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(16), ran.Load())
}

func TestNonblockingPolicyFailsWhenFull(t *testing.T) {
	p, err := New(1, PolicyNonblocking)
	assert.NoError(t, err)
	defer p.Destroy()

	release := make(chan struct{})
	started := make(chan struct{})
	assert.NoError(t, p.Run(func() {
		close(started)
		<-release
	}))
	<-started

	assert.Error(t, p.Run(func() {}), "full pool must reject rather than park")
	close(release)
}

func TestFreeTracksIdleTags(t *testing.T) {
	p, err := New(2, PolicyBlocking)
	assert.NoError(t, err)
	defer p.Destroy()

	release := make(chan struct{})
	started := make(chan struct{})
	assert.NoError(t, p.Run(func() {
		close(started)
		<-release
	}))
	<-started
	assert.Equal(t, 1, p.Free())

	close(release)
	assert.Eventually(t, func() bool { return p.Free() == 2 },
		time.Second, 10*time.Millisecond)
}

func TestDestroyedPoolRejectsWork(t *testing.T) {
	p, err := New(2, PolicyBlocking)
	assert.NoError(t, err)
	p.Destroy()
	assert.Error(t, p.Run(func() {}))
}

func TestReserveGetPut(t *testing.T) {
	r, err := NewReserve(2, 64)
	assert.NoError(t, err)
	defer r.Destroy()

	assert.Equal(t, 2, r.Size())

	b1, err := r.Get()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, cap(b1.B), 64)

	b2, err := r.Get()
	assert.NoError(t, err)
	assert.Equal(t, 0, r.Size())

	_, err = r.Get()
	assert.ErrorIs(t, err, ErrReserveExhausted)

	b1.B = append(b1.B, "scratch"...)
	r.Put(b1)
	r.Put(b2)
	assert.Equal(t, 2, r.Size())

	b1, err = r.Get()
	assert.NoError(t, err)
	assert.Equal(t, 0, b1.Len(), "returned buffers come back clean")
	r.Put(b1)
}

func TestReserveRejectsBadCount(t *testing.T) {
	r, err := NewReserve(0, 16)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestReserveDestroyDrains(t *testing.T) {
	r, err := NewReserve(3, 16)
	assert.NoError(t, err)
	r.Destroy()
	assert.Equal(t, 0, r.Size())
}
