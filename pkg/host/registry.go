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
	"net/http"

	"github.com/srediag/hostcore/internal/devmodel"
)

// Lookup returns a new reference to the live host with the given identity.
// The caller must Put the reference Lookup took.
func Lookup(hostNo uint32) (*Host, error) {
	cdev := hostClass.FindDevice(func(d *devmodel.Device) bool {
		return d.DriverData.(*Host).hostNo == hostNo
	})
	if cdev == nil {
		return nil, ErrNotFound
	}
	h, err := Get(cdev.DriverData.(*Host))
	cdev.Put()
	if err != nil {
		return nil, ErrNotFound
	}
	return h, nil
}

// Get increments the host's reference count, unless the host is already in
// the terminal deleted state.
func Get(h *Host) (*Host, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.state == StateDel {
		return nil, ErrAlreadyDeleted
	}
	if h.gendev.Get() == nil {
		return nil, ErrAlreadyDeleted
	}
	return h, nil
}

// Put decrements the host's reference count. The count reaching zero tears
// down every owned resource and releases the host; callers must expect the
// final Put to block for as long as the slowest pending work item.
func Put(h *Host) {
	h.gendev.Put()
}

// IsHostDevice reports whether a generic device is a host's primary handle.
func IsHostDevice(d *devmodel.Device) bool {
	return d != nil && d.Type == hostType
}

// HostFromDevice returns the host owning the given primary handle, or nil.
func HostFromDevice(d *devmodel.Device) *Host {
	if !IsHostDevice(d) {
		return nil
	}
	return d.DriverData.(*Host)
}

// RegisteredHosts reports how many hosts are currently published.
func RegisteredHosts() int {
	return hostClass.Count()
}

// DiagHandler exposes the diagnostics collaborator's liveness endpoint.
func DiagHandler() http.Handler {
	return diagRegistry.Handler()
}
