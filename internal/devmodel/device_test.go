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

package devmodel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPutReleaseOnce(t *testing.T) {
	var released atomic.Int32
	typ := &Type{Name: "test", Release: func(*Device) { released.Add(1) }}
	d := &Device{Type: typ}
	d.Initialize()
	d.SetName("dev0")

	assert.Same(t, d, d.Get())
	assert.Equal(t, int64(2), d.RefCount())

	d.Put()
	assert.Equal(t, int32(0), released.Load())
	d.Put()
	assert.Equal(t, int32(1), released.Load())
}

func TestGetOnGoneDevice(t *testing.T) {
	d := &Device{Type: &Type{Name: "test"}}
	d.Initialize()
	d.SetName("dev1")
	d.Put()

	assert.Nil(t, d.Get())
	var nilDev *Device
	assert.Nil(t, nilDev.Get())
}

func TestConcurrentPutReleasesOnce(t *testing.T) {
	var released atomic.Int32
	typ := &Type{Name: "test", Release: func(*Device) { released.Add(1) }}
	d := &Device{Type: typ}
	d.Initialize()
	d.SetName("dev2")

	const extra = 32
	for i := 0; i < extra; i++ {
		assert.NotNil(t, d.Get())
	}

	var wg sync.WaitGroup
	for i := 0; i < extra+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Put()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), released.Load())
}

func TestAddRequiresInitAndName(t *testing.T) {
	d := &Device{}
	assert.ErrorIs(t, d.Add(), ErrNotInitialized)

	d.Initialize()
	assert.ErrorIs(t, d.Add(), ErrNoName)

	d.SetName("dev3")
	assert.NoError(t, d.Add())
	assert.ErrorIs(t, d.Add(), ErrAlreadyRegistered)
	d.Unregister()
}

func TestAddTakesParentReference(t *testing.T) {
	parent := &Device{}
	parent.Initialize()
	parent.SetName("parent")

	d := &Device{Parent: parent}
	d.Initialize()
	d.SetName("child")

	assert.NoError(t, d.Add())
	assert.Equal(t, int64(2), parent.RefCount())

	d.Unregister()
	assert.Equal(t, int64(1), parent.RefCount(), "release must give the parent reference back")
}

func TestClassCollection(t *testing.T) {
	cls := NewClass("things", nil)
	d := &Device{Class: cls}
	d.Initialize()
	d.SetName("thing0")

	assert.NoError(t, d.Add())
	assert.Equal(t, 1, cls.Count())

	found := cls.FindDevice(func(dev *Device) bool { return dev.Name() == "thing0" })
	assert.Same(t, d, found)
	assert.Equal(t, int64(3), d.RefCount(), "find must hold a new reference")
	found.Put()

	assert.Nil(t, cls.FindDevice(func(*Device) bool { return false }))

	d.Unregister()
	assert.Equal(t, 0, cls.Count())
}

func TestClassReleasePreferredOverType(t *testing.T) {
	var clsReleased, typReleased bool
	cls := NewClass("things", func(*Device) { clsReleased = true })
	typ := &Type{Name: "thing", Release: func(*Device) { typReleased = true }}

	d := &Device{Class: cls, Type: typ}
	d.Initialize()
	d.SetName("thing1")
	d.Put()

	assert.True(t, clsReleased)
	assert.False(t, typReleased)
}

func TestPlatformBusSingleton(t *testing.T) {
	assert.Same(t, PlatformBus(), PlatformBus())
	assert.Equal(t, "platform", PlatformBus().Name())
}

func TestRuntimePM(t *testing.T) {
	d := &Device{}
	d.Initialize()
	d.SetName("pm0")

	d.RuntimeResume()
	assert.False(t, d.RuntimeActive(), "resume before enable is a no-op")

	d.SetRuntimeActive()
	d.EnableRuntimePM()
	assert.True(t, d.RuntimeActive())

	d.RuntimeSuspend()
	assert.False(t, d.RuntimeActive())
	d.RuntimeResume()
	assert.True(t, d.RuntimeActive())
}
