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
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ehThread owns the host's dedicated recovery goroutine. The core manages
// only its lifecycle; the recovery logic itself is the supplied handler's.
type ehThread struct {
	name     string
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	workerID atomic.Int64
}

func startRecoveryThread(h *Host, name string, handler RecoveryHandler) (*ehThread, error) {
	if handler == nil {
		handler = defaultRecoveryHandler
	}
	eh := &ehThread{
		name: name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		eh.workerID.Store(goid())
		defer close(eh.done)
		internalLogger.debugf("%s: recovery thread started", eh.name)
		handler(h, eh.stop)
		internalLogger.debugf("%s: recovery thread exiting", eh.name)
	}()
	return eh, nil
}

// stopAndWait signals the handler and waits for it to return. Safe to call
// more than once. Called from the recovery goroutine itself it signals
// without waiting on itself.
func (eh *ehThread) stopAndWait() {
	eh.stopOnce.Do(func() { close(eh.stop) })
	if goid() == eh.workerID.Load() {
		return
	}
	<-eh.done
}

// defaultRecoveryHandler parks until the host is destroyed, polling the host
// state on a backoff-paced ticker so hosts stuck in recovery show up in logs.
func defaultRecoveryHandler(h *Host, stop <-chan struct{}) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	for {
		select {
		case <-stop:
			return
		case <-time.After(b.NextBackOff()):
			if h.State() == StateRecovery {
				internalLogger.warnf("host%d: in recovery with no recovery handler installed", h.hostNo)
				b.Reset()
			}
		}
	}
}

// EnterRecovery moves a running host into the recovery state. Recovery
// contexts never mutate state directly; they signal through here.
func (h *Host) EnterRecovery() error {
	return h.SetState(StateRecovery)
}

// RecoveryCompleted acknowledges the end of a recovery pass. The host
// resumes running, or completes a removal that detoured through the
// recovery-aware cancellation states while recovery was in flight.
func (h *Host) RecoveryCompleted() {
	h.lock.Lock()
	defer h.lock.Unlock()
	var err error
	switch h.state {
	case StateRecovery:
		err = h.setStateLocked(StateRunning)
	case StateCancelRecovery:
		err = h.setStateLocked(StateCancel)
	case StateDelRecovery:
		err = h.setStateLocked(StateDel)
	default:
		internalLogger.warnf("host%d: recovery completion in state %s", h.hostNo, h.state)
		return
	}
	if err != nil {
		internalLogger.errorf("host%d: recovery completion failed: %s", h.hostNo, err.Error())
	}
}

// BlockWhenRecovering parks the caller while the host is in recovery, then
// reports whether it came back running. Submission paths call this so new
// commands never race an in-flight recovery pass.
func (h *Host) BlockWhenRecovering() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	for h.state == StateRecovery || h.state == StateCancelRecovery || h.state == StateDelRecovery {
		h.hostWait.Wait()
	}
	return h.state == StateRunning
}

// RecoveryDeadline returns the recovery deadline captured at allocation
// time, or a negative duration when disabled.
func (h *Host) RecoveryDeadline() time.Duration {
	return h.ehDeadline
}
