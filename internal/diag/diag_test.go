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

package diag

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostDirRefCounting(t *testing.T) {
	r := NewRegistry()

	r.AddHostDir("mock_adapter")
	r.AddHostDir("mock_adapter")
	assert.True(t, r.HasDir("mock_adapter"))

	r.RemoveHostDir("mock_adapter")
	assert.True(t, r.HasDir("mock_adapter"), "entry survives while other hosts remain")

	r.RemoveHostDir("mock_adapter")
	assert.False(t, r.HasDir("mock_adapter"))
}

func TestRemoveHostDirUnknownTemplate(t *testing.T) {
	r := NewRegistry()
	r.RemoveHostDir("never_added")
	assert.False(t, r.HasDir("never_added"))
}

func TestHostChecks(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.HostCount())

	r.AddHost("host0", func() error { return nil })
	assert.True(t, r.HasHost("host0"))
	assert.Equal(t, 1, r.HostCount())

	r.RemoveHost("host0")
	r.RemoveHost("host0")
	assert.False(t, r.HasHost("host0"))
}

func TestHandlerReflectsHostHealth(t *testing.T) {
	r := NewRegistry()
	r.AddHost("host0", func() error { return nil })

	live := func() int {
		req := httptest.NewRequest(http.MethodGet, "/live", nil)
		rec := httptest.NewRecorder()
		r.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, live())

	r.AddHost("host1", func() error { return errors.New("adapter wedged") })
	assert.Equal(t, http.StatusServiceUnavailable, live())

	r.RemoveHost("host1")
	assert.Equal(t, http.StatusOK, live())
}
