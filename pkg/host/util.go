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
	"bytes"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v3/mem"
)

// goid returns the calling goroutine's id, or -1 if it cannot be parsed.
// Owned background contexts record their id so teardown invoked from inside
// one of their own callbacks does not wait on itself.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 1234 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return -1
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// canAllocate reports whether size bytes of private data fit the currently
// available memory. Sizing errors fail open.
func canAllocate(size uint64) bool {
	if size == 0 {
		return true
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return true
	}
	return vm.Available >= size
}

func dumpStack() {
	if !debugMode {
		return
	}
	buf := make([]byte, 16*1024)
	n := runtime.Stack(buf, false)
	internalLogger.errorf("%s", buf[:n])
}
