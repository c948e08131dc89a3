// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package activitytest provides an in-memory activity recorder for tests.
package activitytest

import (
	"context"
	"sync"

	"github.com/cr0nhq/cr0n/internal/activity"
)

// Recorder keeps every recorded entry.
type Recorder struct {
	mu      sync.Mutex
	entries []activity.Entry
}

// Record implements activity.Recorder.
func (r *Recorder) Record(_ context.Context, entry activity.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of the recorded entries in order.
func (r *Recorder) Entries() []activity.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Actions returns the recorded actions in order.
func (r *Recorder) Actions() []activity.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Action, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

var _ activity.Recorder = (*Recorder)(nil)
