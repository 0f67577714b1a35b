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

// Package diag tracks which host adapters and adapter templates are
// currently visible to external display tools, and exposes them through an
// HTTP liveness endpoint.
package diag

import (
	"fmt"
	"net/http"

	"github.com/heptiolabs/healthcheck"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Check reports whether one registered host is healthy.
type Check func() error

// Registry is the diagnostics/introspection collaborator. Templates own a
// reference-counted directory entry; hosts own a liveness check keyed by
// their identity-derived name.
type Registry struct {
	handler healthcheck.Handler
	dirs    cmap.ConcurrentMap[string, int]
	hosts   cmap.ConcurrentMap[string, Check]
}

// NewRegistry returns an empty registry with a single aggregate liveness
// check covering every registered host.
func NewRegistry() *Registry {
	r := &Registry{
		handler: healthcheck.NewHandler(),
		dirs:    cmap.New[int](),
		hosts:   cmap.New[Check](),
	}
	r.handler.AddLivenessCheck("hosts", r.checkAll)
	return r
}

func (r *Registry) checkAll() error {
	for item := range r.hosts.IterBuffered() {
		if err := item.Val(); err != nil {
			return fmt.Errorf("%s: %w", item.Key, err)
		}
	}
	return nil
}

// AddHostDir records one more host of the named template. The first host of
// a template creates its directory entry.
func (r *Registry) AddHostDir(template string) {
	r.dirs.Upsert(template, 1, func(exist bool, cur, n int) int {
		if exist {
			return cur + n
		}
		return n
	})
}

// RemoveHostDir drops one host of the named template; the directory entry
// disappears with its last host.
func (r *Registry) RemoveHostDir(template string) {
	r.dirs.Upsert(template, 0, func(exist bool, cur, _ int) int {
		if !exist {
			return 0
		}
		return cur - 1
	})
	r.dirs.RemoveCb(template, func(_ string, v int, exists bool) bool {
		return exists && v <= 0
	})
}

// HasDir reports whether the named template still has a directory entry.
func (r *Registry) HasDir(template string) bool {
	return r.dirs.Has(template)
}

// AddHost registers a host's liveness check under its name.
func (r *Registry) AddHost(name string, check Check) {
	r.hosts.Set(name, check)
}

// RemoveHost drops a host's liveness check. Idempotent.
func (r *Registry) RemoveHost(name string) {
	r.hosts.Remove(name)
}

// HasHost reports whether the named host is registered.
func (r *Registry) HasHost(name string) bool {
	return r.hosts.Has(name)
}

// HostCount reports the number of registered hosts.
func (r *Registry) HostCount() int {
	return r.hosts.Count()
}

// Handler exposes the /live and /ready endpoints for external tools.
func (r *Registry) Handler() http.Handler {
	return r.handler
}
