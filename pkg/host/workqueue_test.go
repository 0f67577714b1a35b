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

package host

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func workQueueTemplate() *Template {
	tmpl := testTemplate()
	tmpl.Transport = &TransportTemplate{CreateWorkQueue: true}
	return tmpl
}

func TestQueueWorkWithoutQueue(t *testing.T) {
	h, err := Alloc(testTemplate())
	assert.NoError(t, err)
	defer Put(h)
	assert.NoError(t, h.Add(nil, nil))
	defer h.Remove()

	assert.True(t, errors.Is(h.QueueWork(func() {}), ErrNoWorkQueue))
	assert.True(t, errors.Is(h.FlushWork(), ErrNoWorkQueue))
}

func TestQueueWorkRunsInSubmissionOrder(t *testing.T) {
	h, err := Alloc(workQueueTemplate())
	assert.NoError(t, err)
	assert.NoError(t, h.Add(nil, nil))

	var mu sync.Mutex
	var order []int
	const n = 100
	for i := 0; i < n; i++ {
		i := i
		assert.NoError(t, h.QueueWork(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	assert.NoError(t, h.FlushWork())

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, order, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, i, order[i])
	}

	h.Remove()
	Put(h)
}

func TestFlushWorkWaitsForPriorItems(t *testing.T) {
	h, err := Alloc(workQueueTemplate())
	assert.NoError(t, err)
	assert.NoError(t, h.Add(nil, nil))

	var done sync.WaitGroup
	completed := false
	done.Add(1)
	assert.NoError(t, h.QueueWork(func() {
		time.Sleep(100 * time.Millisecond)
		completed = true
		done.Done()
	}))

	assert.NoError(t, h.FlushWork())
	assert.True(t, completed, "flush must return only after earlier items complete")
	done.Wait()

	h.Remove()
	Put(h)
}

func TestWorkQueueNamedFromIdentity(t *testing.T) {
	h, err := Alloc(workQueueTemplate())
	assert.NoError(t, err)
	assert.NoError(t, h.Add(nil, nil))

	assert.Contains(t, h.workQueueName, "host_wq_")
	assert.Contains(t, h.tmfQueue.name, "tmf_")

	h.Remove()
	Put(h)
}

func TestTMFQueueIndependentOfWorkQueue(t *testing.T) {
	h, err := Alloc(testTemplate())
	assert.NoError(t, err)
	assert.NoError(t, h.Add(nil, nil))

	ran := make(chan struct{})
	assert.NoError(t, h.QueueTMFWork(func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("tmf work never ran")
	}

	h.Remove()
	Put(h)
}

func TestWorkQueueRejectsEmptyName(t *testing.T) {
	wq, err := newWorkQueue("")
	assert.Nil(t, wq)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}
