// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framesync

import "fmt"

// State is a phase of the per-frame protocol.
//
//	Idle -> Acquiring -> Recording -> Submitted -> Presenting -> Idle
//	            |                                      |
//	            +------------> Recreating <------------+
type State int

const (
	// StateIdle is the state between frames.
	StateIdle State = iota

	// StateAcquiring covers the slot fence wait and image acquisition.
	StateAcquiring

	// StateRecording is active while recorders fill the command buffer.
	StateRecording

	// StateSubmitted follows a successful queue submission.
	StateSubmitted

	// StatePresenting covers the present call.
	StatePresenting

	// StateRecreating covers swapchain recreation after invalidation.
	StateRecreating
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateAcquiring:  "acquiring",
	StateRecording:  "recording",
	StateSubmitted:  "submitted",
	StatePresenting: "presenting",
	StateRecreating: "recreating",
}

// String returns the lower-case state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// validTransition reports whether the state machine allows from -> to.
func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateAcquiring || to == StateRecreating
	case StateAcquiring:
		return to == StateRecording || to == StateRecreating || to == StateIdle
	case StateRecording:
		return to == StateSubmitted || to == StateIdle
	case StateSubmitted:
		return to == StatePresenting || to == StateIdle
	case StatePresenting:
		return to == StateIdle || to == StateRecreating
	case StateRecreating:
		return to == StateIdle
	}
	return false
}
