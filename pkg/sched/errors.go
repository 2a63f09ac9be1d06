// Copyright 2024 The kernel-toolkit Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sched

import "errors"

// errOwnershipUnderflow is returned by ReleaseOwnership when either the
// primitive's or the task's ownership counter is already zero.
var errOwnershipUnderflow = errors.New("sched: ownership counter underflow")

// UnlockResult is the outcome of a Mutex.Unlock call, matching the
// four-way 0/1/2/3 result the original C core returns from
// sched_mutex_unlock.
type UnlockResult int

const (
	// UnlockOK means the mutex was locked by the caller's task and is
	// now unlocked.
	UnlockOK UnlockResult = iota
	// UnlockNotLocked means the mutex was already unlocked.
	UnlockNotLocked
	// UnlockNotOwner means the calling thread's task did not hold the
	// mutex.
	UnlockNotOwner
	// UnlockReleaseError means the ownership counters underflowed
	// while releasing; this should not happen if Lock/Unlock calls
	// are paired correctly.
	UnlockReleaseError
)

func (r UnlockResult) String() string {
	switch r {
	case UnlockOK:
		return "ok"
	case UnlockNotLocked:
		return "not locked"
	case UnlockNotOwner:
		return "not owner"
	case UnlockReleaseError:
		return "release error"
	default:
		return "invalid"
	}
}
