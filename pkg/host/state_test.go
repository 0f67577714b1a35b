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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStates = []State{
	StateCreated,
	StateRunning,
	StateRecovery,
	StateCancel,
	StateCancelRecovery,
	StateDelRecovery,
	StateDel,
}

func legalPair(from, to State) bool {
	for _, s := range legalSources[to] {
		if s == from {
			return true
		}
	}
	return false
}

func newBareHost(state State) *Host {
	h := &Host{state: state, lock: &sync.Mutex{}}
	h.hostWait = sync.NewCond(h.lock)
	return h
}

func TestSetStateFullMatrix(t *testing.T) {
	for _, from := range allStates {
		for _, to := range allStates {
			h := newBareHost(from)
			err := h.SetState(to)
			switch {
			case from == to:
				assert.NoError(t, err, "%s->%s must be a no-op success", from, to)
				assert.Equal(t, from, h.State())
			case legalPair(from, to):
				assert.NoError(t, err, "%s->%s must be legal", from, to)
				assert.Equal(t, to, h.State())
			default:
				assert.Error(t, err, "%s->%s must be illegal", from, to)
				assert.True(t, errors.Is(err, ErrIllegalStateTransition))
				assert.Equal(t, from, h.State(), "state must be unchanged after %s->%s", from, to)
			}
		}
	}
}

func TestSetStateNothingReachesCreated(t *testing.T) {
	for _, from := range allStates {
		if from == StateCreated {
			continue
		}
		h := newBareHost(from)
		assert.Error(t, h.SetState(StateCreated))
		assert.Equal(t, from, h.State())
	}
}

func TestSetStateReportsSourceAndTarget(t *testing.T) {
	h := newBareHost(StateDel)
	err := h.SetState(StateRunning)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "deleted")
	assert.Contains(t, err.Error(), "running")
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "cancel/recovery", StateCancelRecovery.String())
	assert.Equal(t, "del/recovery", StateDelRecovery.String())
	assert.Equal(t, "deleted", StateDel.String())
}
