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
	"context"
	"fmt"

	"github.com/srediag/hostcore/internal/devmodel"
	"github.com/srediag/hostcore/internal/tagpool"
)

// Add publishes an allocated host: command infrastructure is set up, the
// host is registered with the device model under its identity-derived name
// and transitions to the running state.
//
// Every step's failure unwinds the prior steps in reverse order before
// returning, with one deliberate exception: once the primary device is
// registered the host is already running, so late failures release the
// secondary handle explicitly and leave the parent reference to the release
// callback rather than re-running the full removal sequence.
//
// parent defaults to the platform bus, dmaDev to the resolved parent.
func (h *Host) Add(parent, dmaDev *devmodel.Device) error {
	tmpl := h.tmpl
	transport := tmpl.transport()

	internalLogger.infof("host%d: %s", h.hostNo, h.Info())

	if h.canQueue == 0 {
		internalLogger.errorf("host%d: can_queue = 0 no longer supported", h.hostNo)
		return fmt.Errorf("can_queue = 0: %w", ErrInvalidConfiguration)
	}

	if tmpl.Tracer != nil {
		_, span := tmpl.Tracer.Start(context.Background(), "host.add")
		defer span.End()
	}

	// Unwind runs accumulated releases in reverse on the first failure.
	var unwind []func()
	fail := func(err error) error {
		for i := len(unwind) - 1; i >= 0; i-- {
			unwind[i]()
		}
		return err
	}

	pool, err := tagpool.New(h.canQueue, tmpl.TagAllocPolicy)
	if err != nil {
		return fail(fmt.Errorf("tag pool: %s: %w", err.Error(), ErrResourceExhausted))
	}
	h.tagPool = pool
	unwind = append(unwind, func() {
		h.tagPool.Destroy()
		h.tagPool = nil
	})

	reserve, err := tagpool.NewReserve(reservedResetCommands, int(h.maxCmdLen))
	if err != nil {
		return fail(fmt.Errorf("command reserve: %s: %w", err.Error(), ErrResourceExhausted))
	}
	h.reserve = reserve
	unwind = append(unwind, func() {
		h.reserve.Destroy()
		h.reserve = nil
	})

	if h.gendev.Parent == nil {
		if parent == nil {
			parent = devmodel.PlatformBus()
		}
		h.gendev.Parent = parent
	}
	if dmaDev == nil {
		dmaDev = h.gendev.Parent
	}
	h.dmaDev = dmaDev

	if err := h.gendev.Add(); err != nil {
		return fail(fmt.Errorf("device add %s: %s: %w", h.Name(), err.Error(), ErrRegistrationFailure))
	}
	h.gendev.SetRuntimeActive()
	h.gendev.EnableRuntimePM()

	// Cannot fail: created -> running is always legal here.
	_ = h.SetState(StateRunning)

	// The published host keeps its bus alive; reclaimed by the release
	// callback, never by the unwind below.
	h.gendev.Parent.Get()

	// Reference the primary handle before registering the secondary one, so
	// releasing the secondary cannot free the host prematurely.
	h.gendev.Get()
	unwind = append(unwind, func() {
		// Host state is running, so the secondary handle needs an
		// explicit release before the primary is deleted.
		h.hostDev.Put()
		h.gendev.Del()
	})

	if err := h.hostDev.Add(); err != nil {
		return fail(fmt.Errorf("device add %s: %s: %w", h.hostDev.Name(), err.Error(), ErrRegistrationFailure))
	}
	unwind = append(unwind, func() {
		h.hostDev.Del()
	})

	if transport.HostSize > 0 {
		if !canAllocate(uint64(transport.HostSize)) {
			return fail(fmt.Errorf("transport data size %d: %w", transport.HostSize, ErrResourceExhausted))
		}
		h.hostData = make([]byte, transport.HostSize)
		unwind = append(unwind, func() {
			h.hostData = nil
		})
	}

	if transport.CreateWorkQueue {
		h.workQueueName = fmt.Sprintf("host_wq_%d", h.hostNo)
		wq, err := newWorkQueue(h.workQueueName)
		if err != nil {
			return fail(fmt.Errorf("work queue: %s: %w", err.Error(), ErrInvalidConfiguration))
		}
		h.workQueue = wq
		unwind = append(unwind, func() {
			h.workQueue.destroy()
			h.workQueue = nil
		})
	}

	if transport.Register != nil {
		if err := transport.Register(h); err != nil {
			return fail(fmt.Errorf("transport register: %s: %w", err.Error(), ErrRegistrationFailure))
		}
	}
	diagRegistry.AddHost(h.Name(), h.healthCheck)

	return nil
}

// Remove withdraws a published host: work is drained, child devices are
// forgotten and the host reaches the terminal deleted state. Destruction
// itself still waits for the last reference. Calling Remove on a host that
// is already being removed is a silent no-op.
func (h *Host) Remove() {
	if h.tmpl.Tracer != nil {
		_, span := h.tmpl.Tracer.Start(context.Background(), "host.remove")
		defer span.End()
	}

	h.scanMutex.Lock()
	h.lock.Lock()
	if h.setStateLocked(StateCancel) != nil {
		if h.setStateLocked(StateCancelRecovery) != nil {
			h.lock.Unlock()
			h.scanMutex.Unlock()
			return
		}
	}
	h.lock.Unlock()

	h.gendev.RuntimeResume()
	if err := h.tmfQueue.flush(); err != nil {
		internalLogger.warnf("host%d: tmf queue drain failed: %s", h.hostNo, err.Error())
	}
	if h.tmpl.Discovery != nil {
		h.tmpl.Discovery.ForgetHost(h)
	}
	h.scanMutex.Unlock()

	diagRegistry.RemoveHost(h.Name())

	h.lock.Lock()
	if h.setStateLocked(StateDel) != nil {
		if err := h.setStateLocked(StateDelRecovery); err != nil {
			state := h.state
			h.lock.Unlock()
			panic(fmt.Sprintf("host%d: removal from invalid state %s", h.hostNo, state))
		}
	}
	h.lock.Unlock()

	if t := h.tmpl.transport(); t.Unregister != nil {
		t.Unregister(h)
	}
	// A host cancelled straight from created was never registered; its
	// secondary handle holds no primary reference to give back.
	if h.hostDev.Registered() {
		h.hostDev.Unregister()
	}
	h.gendev.Del()
}
