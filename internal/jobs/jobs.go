// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package jobs tracks background processes launched by the shell.
package jobs

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// DefaultCapacity is the number of background jobs tracked at once.
const DefaultCapacity = 100

// ErrCapacity is returned by Register when every slot is taken.
var ErrCapacity = errors.New("too many background jobs")

// ErrBadPid is returned by Register for a pid that cannot name a process.
var ErrBadPid = errors.New("invalid pid")

// State is the lifecycle state of a job. Entries only ever exist while
// Running; a finished job is removed rather than marked Done.
type State int

const (
	Running State = iota
	Done
)

func (s State) String() string {
	if s == Done {
		return "Done"
	}
	return "Running"
}

// Job is one tracked background process.
type Job struct {
	Pid   int
	Seq   int
	State State
}

type slot struct {
	pid int
	seq int
}

// Table is a fixed-capacity pid registry. All slots are allocated up front
// so Register and Reap never allocate, and both are safe to call from the
// signal-handling goroutine while the main flow enumerates.
type Table struct {
	mu      sync.Mutex
	slots   []slot
	n       int
	nextSeq int
}

// New returns a table holding at most capacity jobs. A non-positive capacity
// selects DefaultCapacity.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		slots:   make([]slot, capacity),
		nextSeq: 1,
	}
}

// Register records pid as a running job and returns its sequence number.
func (t *Table) Register(pid int) (int, error) {
	if pid <= 0 {
		return 0, fmt.Errorf("register %d: %w", pid, ErrBadPid)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == len(t.slots) {
		return 0, ErrCapacity
	}
	for i := range t.slots {
		if t.slots[i].pid == 0 {
			seq := t.nextSeq
			t.nextSeq++
			t.slots[i] = slot{pid: pid, seq: seq}
			t.n++
			return seq, nil
		}
	}
	return 0, ErrCapacity
}

// Reap removes pid. It reports whether an entry was removed; reaping an
// unknown or already-reaped pid is a no-op.
func (t *Table) Reap(pid int) bool {
	_, ok := t.Take(pid)
	return ok
}

// Take removes pid and returns the sequence number it was registered with.
func (t *Table) Take(pid int) (int, bool) {
	if pid <= 0 {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if t.slots[i].pid == pid {
			seq := t.slots[i].seq
			t.slots[i] = slot{}
			t.n--
			return seq, true
		}
	}
	return 0, false
}

// Contains reports whether pid is tracked.
func (t *Table) Contains(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if t.slots[i].pid == pid && pid > 0 {
			return true
		}
	}
	return false
}

// Enumerate returns a snapshot of tracked jobs in registration order.
func (t *Table) Enumerate() []Job {
	t.mu.Lock()
	snap := make([]slot, 0, t.n)
	for _, s := range t.slots {
		if s.pid != 0 {
			snap = append(snap, s)
		}
	}
	t.mu.Unlock()

	slices.SortFunc(snap, func(a, b slot) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]Job, len(snap))
	for i, s := range snap {
		out[i] = Job{Pid: s.pid, Seq: s.seq, State: Running}
	}
	return out
}

// Len returns the number of tracked jobs.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Cap returns the table capacity.
func (t *Table) Cap() int {
	return len(t.slots)
}
