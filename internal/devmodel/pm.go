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

// Runtime power-management marks. The model here is intentionally thin:
// suspended devices are resumed synchronously and there is no autosuspend.

// SetRuntimeActive marks the device as powered without invoking callbacks.
func (d *Device) SetRuntimeActive() {
	d.pmActive.Store(true)
}

// EnableRuntimePM allows runtime state changes on the device.
func (d *Device) EnableRuntimePM() {
	d.pmEnabled.Store(true)
}

// RuntimeResume brings a suspended device back to the active state. A no-op
// when runtime PM was never enabled.
func (d *Device) RuntimeResume() {
	if !d.pmEnabled.Load() {
		return
	}
	d.pmActive.Store(true)
}

// RuntimeSuspend marks an enabled device as suspended.
func (d *Device) RuntimeSuspend() {
	if !d.pmEnabled.Load() {
		return
	}
	d.pmActive.Store(false)
}

// RuntimeActive reports whether the device is currently powered.
func (d *Device) RuntimeActive() bool {
	return d.pmActive.Load()
}
