/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
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
	"fmt"
	"sync/atomic"

	queuepkg "github.com/Workiva/go-datastructures/queue"
)

const workQueueSizeHint = 16

// workQueue is an unbounded serial queue drained by a single worker
// goroutine, so items execute one at a time in submission order.
type workQueue struct {
	name     string
	q        *queuepkg.Queue
	done     chan struct{}
	workerID atomic.Int64
}

type workItem struct {
	fn   func()
	done chan struct{}
}

func newWorkQueue(name string) (*workQueue, error) {
	if name == "" {
		return nil, fmt.Errorf("work queue needs a name: %w", ErrInvalidConfiguration)
	}
	wq := &workQueue{
		name: name,
		q:    queuepkg.New(workQueueSizeHint),
		done: make(chan struct{}),
	}
	go wq.run()
	return wq, nil
}

func (wq *workQueue) run() {
	wq.workerID.Store(goid())
	defer close(wq.done)
	for {
		items, err := wq.q.Get(1)
		if err != nil {
			// disposed
			return
		}
		for _, it := range items {
			item := it.(*workItem)
			item.fn()
			close(item.done)
		}
	}
}

func (wq *workQueue) submit(fn func()) (*workItem, error) {
	item := &workItem{fn: fn, done: make(chan struct{})}
	if err := wq.q.Put(item); err != nil {
		return nil, fmt.Errorf("work queue %s: put failed: %w", wq.name, err)
	}
	return item, nil
}

// flush blocks until every item submitted before the call has completed.
// FIFO ordering makes a sentinel item sufficient.
func (wq *workQueue) flush() error {
	item, err := wq.submit(func() {})
	if err != nil {
		return err
	}
	<-item.done
	return nil
}

// destroy drains pending work, stops accepting new items and waits for the
// worker to exit. Called from the worker's own context (an item releasing
// the last host reference) it disposes without waiting on itself.
func (wq *workQueue) destroy() {
	if goid() == wq.workerID.Load() {
		wq.q.Dispose()
		return
	}
	if err := wq.flush(); err != nil {
		internalLogger.warnf("work queue %s: drain on destroy failed: %s", wq.name, err.Error())
	}
	wq.q.Dispose()
	<-wq.done
}

// QueueWork submits an item to the host's dedicated serial work queue.
// Hosts whose transport never requested one reject the call loudly, since
// that indicates a caller programming error.
func (h *Host) QueueWork(fn func()) error {
	if h.workQueue == nil {
		internalLogger.errorf("host%d: attempted to queue host-work when no workqueue created", h.hostNo)
		dumpStack()
		return ErrNoWorkQueue
	}
	_, err := h.workQueue.submit(fn)
	return err
}

// FlushWork blocks until all work queued on the host's dedicated work queue
// before the call has completed.
func (h *Host) FlushWork() error {
	if h.workQueue == nil {
		internalLogger.errorf("host%d: attempted to flush host-work when no workqueue created", h.hostNo)
		dumpStack()
		return ErrNoWorkQueue
	}
	return h.workQueue.flush()
}

// QueueTMFWork submits urgent out-of-band work to the host's permanently
// owned task-management queue.
func (h *Host) QueueTMFWork(fn func()) error {
	_, err := h.tmfQueue.submit(fn)
	return err
}
