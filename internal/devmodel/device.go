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

// Package devmodel implements a small reference-counted device model:
// generic devices with a type or class release callback, class collections
// for lookup, and a process-wide platform bus acting as the default parent.
package devmodel

import (
	"errors"
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	// ErrNotInitialized is returned when registering a device that was never initialized.
	ErrNotInitialized = errors.New("devmodel: device not initialized")
	// ErrNoName is returned when registering a device without a name.
	ErrNoName = errors.New("devmodel: device has no name")
	// ErrAlreadyRegistered is returned when registering a device twice.
	ErrAlreadyRegistered = errors.New("devmodel: device already registered")
	// ErrDeviceGone is returned when a reference is requested on a device
	// whose count already reached zero.
	ErrDeviceGone = errors.New("devmodel: device reference count is zero")
)

// ReleaseFunc runs exactly once, when the device's reference count drops to zero.
type ReleaseFunc func(*Device)

// Type identifies a category of devices sharing one release callback.
type Type struct {
	Name    string
	Release ReleaseFunc
}

// Class is a named collection of registered devices of the same kind.
// The class release callback takes precedence over the type one.
type Class struct {
	Name    string
	Release ReleaseFunc

	members cmap.ConcurrentMap[string, *Device]
}

// NewClass returns an empty class collection.
func NewClass(name string, release ReleaseFunc) *Class {
	return &Class{
		Name:    name,
		Release: release,
		members: cmap.New[*Device](),
	}
}

// FindDevice returns the first registered member matching match, holding a
// new reference the caller must put. Returns nil if nothing matches or the
// matched device is already gone.
func (c *Class) FindDevice(match func(*Device) bool) *Device {
	for item := range c.members.IterBuffered() {
		if match(item.Val) {
			if item.Val.Get() == nil {
				return nil
			}
			return item.Val
		}
	}
	return nil
}

// Count reports the number of registered members.
func (c *Class) Count() int {
	return c.members.Count()
}

// Device is a reference-counted node in the device model. Name, Parent,
// Type, Class and DriverData must be set before Add and are immutable after.
type Device struct {
	Parent     *Device
	Type       *Type
	Class      *Class
	DriverData any

	name        string
	refs        atomic.Int64
	initialized atomic.Bool
	registered  atomic.Bool
	parentRef   atomic.Bool
	released    atomic.Bool

	pmActive  atomic.Bool
	pmEnabled atomic.Bool

	mu sync.Mutex
}

// Initialize prepares the device and grants the caller the initial reference.
func (d *Device) Initialize() {
	d.refs.Store(1)
	d.initialized.Store(true)
}

// SetName assigns the device's stable name.
func (d *Device) SetName(name string) {
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
}

// Name returns the device's name.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Get acquires a new reference. Returns nil if the device is nil or its
// count already dropped to zero.
func (d *Device) Get() *Device {
	if d == nil {
		return nil
	}
	for {
		n := d.refs.Load()
		if n <= 0 {
			return nil
		}
		if d.refs.CompareAndSwap(n, n+1) {
			return d
		}
	}
}

// Put drops one reference. The release callback chain fires exactly once,
// when the count reaches zero.
func (d *Device) Put() {
	if d == nil {
		return
	}
	n := d.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		internalLogger.errorf("device %s: reference count underflow", d.Name())
		return
	}
	if d.released.Swap(true) {
		return
	}
	parent := d.Parent
	switch {
	case d.Class != nil && d.Class.Release != nil:
		d.Class.Release(d)
	case d.Type != nil && d.Type.Release != nil:
		d.Type.Release(d)
	}
	if d.parentRef.Load() && parent != nil {
		parent.Put()
	}
}

// RefCount reports the current reference count. Diagnostics only.
func (d *Device) RefCount() int64 {
	return d.refs.Load()
}

// Add registers the device: a parent reference and a registration reference
// are taken, and the device joins its class collection if it has one.
func (d *Device) Add() error {
	if !d.initialized.Load() {
		return ErrNotInitialized
	}
	if d.Name() == "" {
		return ErrNoName
	}
	if d.registered.Load() {
		return ErrAlreadyRegistered
	}
	if d.Parent != nil {
		if d.Parent.Get() == nil {
			return ErrDeviceGone
		}
		d.parentRef.Store(true)
	}
	if d.Get() == nil {
		if d.parentRef.Swap(false) {
			d.Parent.Put()
		}
		return ErrDeviceGone
	}
	d.registered.Store(true)
	if d.Class != nil {
		d.Class.members.Set(d.Name(), d)
	}
	return nil
}

// Del unregisters the device, dropping the registration reference. The
// parent reference is dropped by the release path, not here. Idempotent.
func (d *Device) Del() {
	if !d.registered.Swap(false) {
		return
	}
	if d.Class != nil {
		d.Class.members.Remove(d.Name())
	}
	d.Put()
}

// Unregister combines Del with dropping the caller's reference.
func (d *Device) Unregister() {
	d.Del()
	d.Put()
}

// Registered reports whether the device is currently registered.
func (d *Device) Registered() bool {
	return d.registered.Load()
}

var (
	platformOnce sync.Once
	platformBus  *Device
)

// PlatformBus returns the process-wide default parent device. It is never
// released for the life of the process.
func PlatformBus() *Device {
	platformOnce.Do(func() {
		platformBus = &Device{}
		platformBus.Initialize()
		platformBus.SetName("platform")
	})
	return platformBus
}
