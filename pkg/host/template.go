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
	"math"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/hostcore/internal/tagpool"
)

// Mode is the operating mode a host adapter runs in.
type Mode uint8

const (
	// ModeUnknown means the template did not declare a mode.
	ModeUnknown Mode = 0
	// ModeInitiator is the default operating mode.
	ModeInitiator Mode = 1
	// ModeTarget marks adapters operating as targets.
	ModeTarget Mode = 2
)

// Defaults applied by Alloc for every capability the template leaves unset.
const (
	// DefaultMaxID is the default addressing limit per channel.
	DefaultMaxID = 8
	// DefaultMaxLUN is the default logical-unit limit per target.
	DefaultMaxLUN = 8
	// DefaultMaxCmdLen is the command length every driver must handle.
	DefaultMaxCmdLen = 12
	// DefaultHostBlocked is the default retry budget for a blocked host.
	DefaultHostBlocked = 7
	// DefaultMaxSectors is the default transfer-size limit.
	DefaultMaxSectors = 1024
	// DefaultDMABoundary assumes a 4GB boundary when the template sets none.
	DefaultDMABoundary = 0xffffffff

	// reservedResetCommands is the size of the last-resort command reserve
	// kept for synchronous reset operations.
	reservedResetCommands = 1
)

// Discovery is the device-discovery collaborator. The core only invokes it
// during removal; child enumeration lives outside this package.
type Discovery interface {
	// ForgetHost synchronously removes every child device of the host.
	ForgetHost(h *Host)
}

// RecoveryHandler is the externally supplied entry point of a host's
// dedicated recovery thread. It must return promptly once stop is closed.
type RecoveryHandler func(h *Host, stop <-chan struct{})

// TransportTemplate declares the transport layer's demands on a published
// host: auxiliary metadata storage, an optional dedicated serial work queue,
// and registration hooks for its externally visible metadata.
type TransportTemplate struct {
	// HostSize, when nonzero, is allocated and zeroed at publish time as
	// transport-private auxiliary data.
	HostSize int
	// CreateWorkQueue requests a dedicated serial work queue for the host.
	CreateWorkQueue bool
	// Register exposes the host's transport metadata externally. Optional.
	Register func(h *Host) error
	// Unregister removes the transport metadata. Optional.
	Unregister func(h *Host)
}

var blankTransport = &TransportTemplate{}

// Template describes one kind of host adapter: capabilities, limits and the
// collaborators its hosts use. Immutable once hosts are allocated from it.
type Template struct {
	// Name identifies the template in diagnostics.
	Name string
	// Info, when set, supplies the banner logged at publish time.
	Info func(h *Host) string

	// CanQueue is the maximum number of outstanding commands. Publishing a
	// host with a zero budget is rejected.
	CanQueue int
	// TagAllocPolicy selects the command-tag pool's full-pool behavior.
	TagAllocPolicy tagpool.Policy

	// Addressing and transfer limits; zero values take the defaults above.
	MaxChannel  uint32
	MaxID       uint32
	MaxLUN      uint64
	MaxCmdLen   uint8
	MaxSectors  uint32
	DMABoundary uint64
	// MaxHostBlocked is the blocked-retry budget; zero takes the default.
	MaxHostBlocked int

	// SupportedMode defaults to ModeInitiator when left ModeUnknown.
	SupportedMode Mode

	// PrivateDataSize is extra storage allocated with each host for the
	// caller's private use.
	PrivateDataSize int

	// SharedLock, when set, replaces the host's private lock so related
	// hosts can share one serialization domain.
	SharedLock *sync.Mutex

	// Transport defaults to a blank template requesting nothing.
	Transport *TransportTemplate

	// Discovery is invoked during removal to forget child devices. Optional.
	Discovery Discovery

	// RecoveryHandler runs on the host's dedicated recovery thread. When
	// nil a built-in handler parks until the host is destroyed.
	RecoveryHandler RecoveryHandler

	// ResetHandler gates the recovery deadline: without one the deadline
	// tunable is ignored, matching hosts that cannot be reset anyway.
	ResetHandler func(h *Host) error

	// Meter and Tracer, when set, instrument allocation and lifecycle
	// operations. Both default to off.
	Meter  metric.Meter
	Tracer trace.Tracer
}

func (t *Template) transport() *TransportTemplate {
	if t.Transport == nil {
		return blankTransport
	}
	return t.Transport
}

// recoveryDeadlineSecs is the process-wide recovery deadline in seconds.
// -1 disables the deadline. Settable via SetRecoveryDeadline or the
// HOSTCORE_EH_DEADLINE environment variable.
var recoveryDeadlineSecs atomic.Int64

func init() {
	recoveryDeadlineSecs.Store(-1)
	if v := os.Getenv("HOSTCORE_EH_DEADLINE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			SetRecoveryDeadline(n)
		}
	}
}

// SetRecoveryDeadline configures the process-wide recovery deadline in
// seconds. Negative values disable it.
func SetRecoveryDeadline(seconds int64) {
	if seconds < 0 {
		seconds = -1
	}
	recoveryDeadlineSecs.Store(seconds)
}

// recoveryDeadlineFor converts the tunable to a duration at allocation time,
// clamping to the maximum representable duration with a warning.
func recoveryDeadlineFor(h *Host) time.Duration {
	secs := recoveryDeadlineSecs.Load()
	if secs == -1 || h.tmpl.ResetHandler == nil {
		return -1
	}
	if secs > math.MaxInt64/int64(time.Second) {
		internalLogger.warnf("host%d: eh_deadline %d too large, setting to %d",
			h.hostNo, secs, int64(math.MaxInt64)/int64(time.Second))
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs) * time.Second
}
