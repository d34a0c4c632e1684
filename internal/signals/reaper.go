// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marcelocantos/quash/internal/jobs"
)

// maxUnclaimed bounds statuses held for pids nobody is waiting on.
const maxUnclaimed = 64

// waitPollInterval is how often a blocked Wait collects on its own, in case
// no SIGCHLD handler is running.
var waitPollInterval = 200 * time.Millisecond

// WaitFunc collects one exited child without blocking. It returns pid 0
// when children exist but none has exited, and unix.ECHILD when there are
// no children at all.
type WaitFunc func() (pid int, ws unix.WaitStatus, err error)

func wait4Any() (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
	return pid, ws, err
}

// Child is a spawned process claimed by the reaper, either as a foreground
// child someone will Wait on or as a registered background job.
type Child struct {
	Pid  int
	Seq  int // job sequence number, zero for foreground children
	done chan Status
}

// Reaper is the only place children are collected. Both the SIGCHLD
// handler and the read-loop poll call Collect; a status is delivered to
// exactly one owner no matter which path collects it.
type Reaper struct {
	mu        sync.Mutex
	wait      WaitFunc
	jobs      *jobs.Table
	waiters   map[int]chan Status
	unclaimed map[int]Status
	onJobDone func(pid, seq int, st Status)
	onReaped  func(pid int) // a foreground child was collected
	log       *slog.Logger
}

func newReaper(tbl *jobs.Table, wait WaitFunc, log *slog.Logger) *Reaper {
	if wait == nil {
		wait = wait4Any
	}
	return &Reaper{
		wait:      wait,
		jobs:      tbl,
		waiters:   make(map[int]chan Status, 2),
		unclaimed: make(map[int]Status, maxUnclaimed),
		onJobDone: func(int, int, Status) {},
		onReaped:  func(int) {},
		log:       log,
	}
}

// Spawn runs start with the reaper locked and claims the new pid before
// unlocking, so the child cannot be collected before it has an owner.
//
// For a background child the pid is registered in the job table. A full
// table refuses the launch before start runs, returning a nil child and an
// error wrapping jobs.ErrCapacity. If registration still fails after the
// process exists, the child is claimed as a foreground child and returned
// with the error; the caller must dispose of it.
func (r *Reaper) Spawn(start func() (int, error), background bool) (*Child, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if background && r.jobs.Len() >= r.jobs.Cap() {
		return nil, fmt.Errorf("spawn: %w", jobs.ErrCapacity)
	}
	pid, err := start()
	if err != nil {
		return nil, err
	}
	// Any parked status for this pid belongs to an earlier process.
	delete(r.unclaimed, pid)

	if background {
		seq, err := r.jobs.Register(pid)
		if err == nil {
			return &Child{Pid: pid, Seq: seq}, nil
		}
		c := r.claim(pid)
		return c, fmt.Errorf("register pid %d: %w", pid, err)
	}
	return r.claim(pid), nil
}

func (r *Reaper) claim(pid int) *Child {
	ch := make(chan Status, 1)
	r.waiters[pid] = ch
	return &Child{Pid: pid, done: ch}
}

// Wait blocks until c's status is collected or ctx is done.
func (r *Reaper) Wait(ctx context.Context, c *Child) (Status, error) {
	if c == nil || c.done == nil {
		return Status{}, errors.New("wait: child is not a foreground child")
	}
	tick := time.NewTicker(waitPollInterval)
	defer tick.Stop()
	for {
		select {
		case st := <-c.done:
			return st, nil
		case <-tick.C:
			r.Collect()
		case <-ctx.Done():
			r.mu.Lock()
			delete(r.waiters, c.Pid)
			r.mu.Unlock()
			// The status may have been delivered while we took the lock.
			select {
			case st := <-c.done:
				return st, nil
			default:
			}
			return Status{}, ctx.Err()
		}
	}
}

// Waiting reports whether a foreground waiter for pid is still pending.
func (r *Reaper) Waiting(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.waiters[pid]
	return ok
}

// Collect reaps every exited child and returns how many it collected.
func (r *Reaper) Collect() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for {
		pid, ws, err := r.wait()
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || pid <= 0 {
			return n
		}
		n++
		r.deliver(pid, FromWaitStatus(ws))
	}
}

func (r *Reaper) deliver(pid int, st Status) {
	if ch, ok := r.waiters[pid]; ok {
		delete(r.waiters, pid)
		r.onReaped(pid)
		ch <- st
		return
	}
	if seq, ok := r.jobs.Take(pid); ok {
		r.log.Debug("background job reaped", "pid", pid, "seq", seq, "status", st.String())
		r.onJobDone(pid, seq, st)
		return
	}
	if len(r.unclaimed) >= maxUnclaimed {
		r.log.Warn("dropping status of unknown child", "pid", pid, "status", st.String())
		return
	}
	r.unclaimed[pid] = st
}

// Unclaimed returns the parked status for pid, if any, and forgets it.
func (r *Reaper) Unclaimed(pid int) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.unclaimed[pid]
	delete(r.unclaimed, pid)
	return st, ok
}
