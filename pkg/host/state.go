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

import "fmt"

// State is the host lifecycle state. A host is manually initialized to
// StateCreated at allocation; no transition targets that state.
type State int

const (
	// StateCreated is the initial state, set at allocation.
	StateCreated State = iota
	// StateRunning means the host is published and accepting work.
	StateRunning
	// StateRecovery means the host's error handler owns the host.
	StateRecovery
	// StateCancel means removal started on a host that was not recovering.
	StateCancel
	// StateCancelRecovery means removal started while recovery was running.
	StateCancelRecovery
	// StateDelRecovery means removal finished its teardown while recovery
	// was still pending acknowledgement.
	StateDelRecovery
	// StateDel is the terminal state. No references can be taken past it.
	StateDel
)

var stateNames = map[State]string{
	StateCreated:        "created",
	StateRunning:        "running",
	StateRecovery:       "recovery",
	StateCancel:         "cancel",
	StateCancelRecovery: "cancel/recovery",
	StateDelRecovery:    "del/recovery",
	StateDel:            "deleted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// legalSources maps each transition target to the states it may be entered
// from. StateCreated is absent: nothing transitions back to it. Removal
// requested mid-recovery detours through the *_RECOVERY variants so that it
// cannot race destructively with recovery completion.
var legalSources = map[State][]State{
	StateRunning:        {StateCreated, StateRecovery},
	StateRecovery:       {StateRunning},
	StateCancel:         {StateCreated, StateRunning, StateCancelRecovery},
	StateCancelRecovery: {StateCancel, StateRecovery},
	StateDelRecovery:    {StateCancelRecovery},
	StateDel:            {StateCancel, StateDelRecovery},
}

// setStateLocked takes the host through the state model. The host lock must
// be held. Self-transitions succeed as no-ops; anything outside the table is
// rejected with the state left untouched.
func (h *Host) setStateLocked(target State) error {
	oldstate := h.state
	if target == oldstate {
		return nil
	}

	sources, ok := legalSources[target]
	if ok {
		for _, s := range sources {
			if s == oldstate {
				h.state = target
				h.hostWait.Broadcast()
				stateTransitions.WithLabelValues(oldstate.String(), target.String()).Inc()
				return nil
			}
		}
	}

	illegalTransitions.Inc()
	internalLogger.errorf("host%d: Illegal host state transition %s->%s",
		h.hostNo, oldstate, target)
	return fmt.Errorf("%w: %s->%s", ErrIllegalStateTransition, oldstate, target)
}

// SetState takes the host through the state model under the host lock.
func (h *Host) SetState(target State) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.setStateLocked(target)
}

// State returns the host's current lifecycle state.
func (h *Host) State() State {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.state
}
