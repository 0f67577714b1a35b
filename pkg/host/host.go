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

// Package host manages the lifecycle of host adapter objects: allocation,
// publication, removal and reference-counted destruction of controller
// instances that downstream devices are discovered through.
//
// A host is allocated in the created state with its recovery thread and
// task-management queue already running, published with Add, withdrawn with
// Remove, and destroyed when the last reference is put. State only moves
// along a fixed transition table; everything else is rejected.
package host

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srediag/hostcore/internal/devmodel"
	"github.com/srediag/hostcore/internal/diag"
	"github.com/srediag/hostcore/internal/tagpool"
)

// nextHostNo assigns each host a process-unique identity, monotonically
// increasing for the life of the process.
var nextHostNo atomic.Uint32

var diagRegistry = diag.NewRegistry()

// Host is one controller instance. State and transition-adjacent fields are
// guarded by lock; the owned background resources live from allocation
// (recovery thread, tmf queue) or publication (work queue) to destruction.
type Host struct {
	hostNo uint32
	tmpl   *Template

	lock     *sync.Mutex
	hostWait *sync.Cond
	state    State

	// scanMutex serializes the removal sequence against device-discovery
	// scans. Held across the synchronous forget-children call.
	scanMutex sync.Mutex

	gendev  *devmodel.Device
	hostDev *devmodel.Device
	dmaDev  *devmodel.Device

	ehandler *ehThread
	tmfQueue *workQueue

	workQueue     *workQueue
	workQueueName string

	tagPool  *tagpool.Pool
	reserve  *tagpool.Reserve
	hostData []byte
	privData []byte

	ehDeadline time.Duration

	// Capability fields, immutable after allocation.
	canQueue       int
	maxChannel     uint32
	maxID          uint32
	maxLUN         uint64
	maxCmdLen      uint8
	maxSectors     uint32
	dmaBoundary    uint64
	maxHostBlocked int
	activeMode     Mode
}

var hostType = &devmodel.Type{Name: "host_adapter", Release: hostDevRelease}

var hostClass = devmodel.NewClass("host_adapter", hostClsRelease)

// Alloc registers a new host adapter instance. The host is not published
// until Add is called. The returned host holds one reference for the caller.
func Alloc(tmpl *Template) (*Host, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("nil template: %w", ErrInvalidConfiguration)
	}
	if !canAllocate(uint64(tmpl.PrivateDataSize)) {
		return nil, fmt.Errorf("private data size %d: %w", tmpl.PrivateDataSize, ErrResourceExhausted)
	}

	h := &Host{
		tmpl:   tmpl,
		state:  StateCreated,
		hostNo: nextHostNo.Add(1) - 1,
	}
	h.lock = tmpl.SharedLock
	if h.lock == nil {
		h.lock = &sync.Mutex{}
	}
	h.hostWait = sync.NewCond(h.lock)

	if tmpl.PrivateDataSize > 0 {
		h.privData = make([]byte, tmpl.PrivateDataSize)
	}

	// Capability defaults for everything the template leaves unset.
	h.canQueue = tmpl.CanQueue
	h.maxChannel = tmpl.MaxChannel
	h.maxID = tmpl.MaxID
	if h.maxID == 0 {
		h.maxID = DefaultMaxID
	}
	h.maxLUN = tmpl.MaxLUN
	if h.maxLUN == 0 {
		h.maxLUN = DefaultMaxLUN
	}
	h.maxCmdLen = tmpl.MaxCmdLen
	if h.maxCmdLen == 0 {
		h.maxCmdLen = DefaultMaxCmdLen
	}
	h.maxSectors = tmpl.MaxSectors
	if h.maxSectors == 0 {
		h.maxSectors = DefaultMaxSectors
	}
	h.dmaBoundary = tmpl.DMABoundary
	if h.dmaBoundary == 0 {
		h.dmaBoundary = DefaultDMABoundary
	}
	h.maxHostBlocked = tmpl.MaxHostBlocked
	if h.maxHostBlocked == 0 {
		h.maxHostBlocked = DefaultHostBlocked
	}
	h.activeMode = tmpl.SupportedMode
	if h.activeMode == ModeUnknown {
		h.activeMode = ModeInitiator
	}

	h.ehDeadline = recoveryDeadlineFor(h)

	h.gendev = &devmodel.Device{Type: hostType, DriverData: h}
	h.gendev.Initialize()
	h.gendev.SetName(fmt.Sprintf("host%d", h.hostNo))

	h.hostDev = &devmodel.Device{Parent: h.gendev, Class: hostClass, DriverData: h}
	h.hostDev.Initialize()
	h.hostDev.SetName(fmt.Sprintf("host%d", h.hostNo))

	eh, err := startRecoveryThread(h, fmt.Sprintf("host_eh_%d", h.hostNo), tmpl.RecoveryHandler)
	if err != nil {
		internalLogger.warnf("host%d: recovery thread failed to spawn: %s", h.hostNo, err.Error())
		return nil, fmt.Errorf("recovery thread: %w", ErrResourceExhausted)
	}
	h.ehandler = eh

	tq, err := newWorkQueue(fmt.Sprintf("tmf_%d", h.hostNo))
	if err != nil {
		internalLogger.warnf("host%d: failed to create tmf workq", h.hostNo)
		h.ehandler.stopAndWait()
		return nil, fmt.Errorf("tmf queue: %w", ErrResourceExhausted)
	}
	h.tmfQueue = tq

	diagRegistry.AddHostDir(tmpl.Name)
	liveHosts.Inc()
	countAllocation(tmpl)
	return h, nil
}

func countAllocation(tmpl *Template) {
	if tmpl.Meter == nil {
		return
	}
	c, err := tmpl.Meter.Int64Counter("hostcore.host.allocations")
	if err != nil {
		return
	}
	c.Add(context.Background(), 1)
}

// hostDevRelease runs exactly once, when the host's last reference is put.
// Owned resources are torn down in reverse-acquisition order; the parent
// reference taken at publish time is dropped only if publish ever ran.
func hostDevRelease(dev *devmodel.Device) {
	h := dev.DriverData.(*Host)
	parent := h.gendev.Parent

	diagRegistry.RemoveHostDir(h.tmpl.Name)

	if h.tmfQueue != nil {
		h.tmfQueue.destroy()
	}
	if h.ehandler != nil {
		h.ehandler.stopAndWait()
	}
	if h.workQueue != nil {
		h.workQueue.destroy()
	}
	if h.reserve != nil {
		h.reserve.Destroy()
		h.reserve = nil
	}
	if h.tagPool != nil {
		h.tagPool.Destroy()
		h.tagPool = nil
	}
	h.hostData = nil
	h.privData = nil

	if h.State() != StateCreated && parent != nil {
		parent.Put()
	}
	liveHosts.Dec()
}

// hostClsRelease drops the primary-handle reference the secondary metadata
// device holds, so releasing the secondary can never free the host first.
func hostClsRelease(dev *devmodel.Device) {
	h := dev.DriverData.(*Host)
	h.gendev.Put()
}

// HostNo returns the host's immutable numeric identity.
func (h *Host) HostNo() uint32 {
	return h.hostNo
}

// Name returns the host's identity-derived device name.
func (h *Host) Name() string {
	return h.gendev.Name()
}

// Template returns the template the host was allocated from.
func (h *Host) Template() *Template {
	return h.tmpl
}

// PrivateData returns the caller-private storage requested at allocation.
func (h *Host) PrivateData() []byte {
	return h.privData
}

// CanQueue returns the host's outstanding-command budget.
func (h *Host) CanQueue() int {
	return h.canQueue
}

// MaxLUN returns the host's logical-unit addressing limit.
func (h *Host) MaxLUN() uint64 {
	return h.maxLUN
}

// ActiveMode returns the operating mode resolved at allocation.
func (h *Host) ActiveMode() Mode {
	return h.activeMode
}

// Device returns the host's primary device handle.
func (h *Host) Device() *devmodel.Device {
	return h.gendev
}

// DMADevice returns the DMA-capable device resolved at publish time.
func (h *Host) DMADevice() *devmodel.Device {
	return h.dmaDev
}

// TagPool returns the command-tag pool, available once published.
func (h *Host) TagPool() *tagpool.Pool {
	return h.tagPool
}

// ReserveCommandBuffers returns the reset-path buffer reserve, available
// once published.
func (h *Host) ReserveCommandBuffers() *tagpool.Reserve {
	return h.reserve
}

// TransportData returns the transport's auxiliary storage, nil unless the
// transport declared a size and the host is published.
func (h *Host) TransportData() []byte {
	return h.hostData
}

// refCount exposes the primary handle's count to package tests.
func (h *Host) refCount() int64 {
	return h.gendev.RefCount()
}

func (h *Host) healthCheck() error {
	if s := h.State(); s == StateDel || s == StateDelRecovery {
		return fmt.Errorf("host%d is being deleted", h.hostNo)
	}
	return nil
}

// Info returns the publish-time banner: the template's Info hook if set,
// else the template name.
func (h *Host) Info() string {
	if h.tmpl.Info != nil {
		return h.tmpl.Info(h)
	}
	return h.tmpl.Name
}

// Attributes exposes the host's identity, capability fields and current
// state as read-only attributes for external display tools.
func (h *Host) Attributes() map[string]string {
	return map[string]string{
		"host_no":          fmt.Sprintf("%d", h.hostNo),
		"template":         h.tmpl.Name,
		"state":            h.State().String(),
		"active_mode":      fmt.Sprintf("%d", h.activeMode),
		"can_queue":        fmt.Sprintf("%d", h.canQueue),
		"max_channel":      fmt.Sprintf("%d", h.maxChannel),
		"max_id":           fmt.Sprintf("%d", h.maxID),
		"max_lun":          fmt.Sprintf("%d", h.maxLUN),
		"max_cmd_len":      fmt.Sprintf("%d", h.maxCmdLen),
		"max_sectors":      fmt.Sprintf("%d", h.maxSectors),
		"max_host_blocked": fmt.Sprintf("%d", h.maxHostBlocked),
		"dma_boundary":     fmt.Sprintf("%#x", h.dmaBoundary),
	}
}
