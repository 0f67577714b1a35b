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

import "errors"

var (
	// ErrInvalidConfiguration covers unusable template settings, such as a
	// zero outstanding-command budget or a work queue that cannot be set up.
	ErrInvalidConfiguration = errors.New("hostcore: invalid configuration")

	// ErrResourceExhausted covers allocation, thread and queue creation failures.
	ErrResourceExhausted = errors.New("hostcore: resource exhausted")

	// ErrRegistrationFailure covers device-model or metadata registration failures.
	ErrRegistrationFailure = errors.New("hostcore: registration failed")

	// ErrIllegalStateTransition is returned for a transition outside the
	// host state table. The host's state is left unchanged.
	ErrIllegalStateTransition = errors.New("hostcore: illegal host state transition")

	// ErrAlreadyDeleted is returned when a reference is requested on a host
	// in the terminal deleted state.
	ErrAlreadyDeleted = errors.New("hostcore: host already deleted")

	// ErrNotFound is returned by registry lookups that match no live host.
	ErrNotFound = errors.New("hostcore: host not found")

	// ErrNoWorkQueue is returned when queueing or flushing work on a host
	// whose transport never requested a work queue.
	ErrNoWorkQueue = errors.New("hostcore: no work queue created")
)
