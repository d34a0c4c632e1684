// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package signals turns asynchronous process notifications (child exit,
// interrupt, watchdog expiry) into small state changes and queued events
// that the read loop reports later.
package signals

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marcelocantos/quash/internal/jobs"
)

// QueueCapacity is the number of undrained events kept before new ones are
// counted as dropped.
const QueueCapacity = 64

// KillGrace is how long a child gets to exit after the watchdog's SIGTERM
// before it is sent SIGKILL.
var KillGrace = 2 * time.Second

// ErrNoForeground is returned by Arm when no foreground process is set.
var ErrNoForeground = errors.New("watchdog: no foreground process")

// EventKind identifies a queued event.
type EventKind int

const (
	ChildDone     EventKind = iota // a background job was reaped
	Redraw                         // interrupt at the prompt
	WatchdogFired                  // the foreground process was terminated
)

// Event is a notification for the main flow.
type Event struct {
	Kind   EventKind
	Pid    int
	Seq    int           // ChildDone: job sequence number
	Status Status        // ChildDone: how the job finished
	After  time.Duration // WatchdogFired: armed duration
}

// KillFunc sends sig to pid.
type KillFunc func(pid int, sig unix.Signal) error

// Options configures a Controller. Zero values select the real primitives.
type Options struct {
	Kill KillFunc
	Wait WaitFunc
	Log  *slog.Logger
}

// Controller owns the foreground slot, the watchdog and the pending event
// queue. Every method is safe to call from the signal goroutine.
type Controller struct {
	mu sync.Mutex

	fg       int
	armed    bool
	armedFor time.Duration
	timer    *time.Timer
	gen      uint64

	events  [QueueCapacity]Event
	head    int
	n       int
	dropped int
	notify  chan struct{}

	kill   KillFunc
	reaper *Reaper
	log    *slog.Logger
}

// NewController returns a controller that reaps into tbl.
func NewController(tbl *jobs.Table, opts Options) *Controller {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	kill := opts.Kill
	if kill == nil {
		kill = unix.Kill
	}
	c := &Controller{
		notify: make(chan struct{}, 1),
		kill:   kill,
		log:    log,
	}
	c.reaper = newReaper(tbl, opts.Wait, log)
	c.reaper.onJobDone = func(pid, seq int, st Status) {
		c.push(Event{Kind: ChildDone, Pid: pid, Seq: seq, Status: st})
	}
	c.reaper.onReaped = c.foregroundReaped
	return c
}

// foregroundReaped disarms the watchdog as soon as the foreground child is
// collected, so a timer firing before the waiter wakes finds nothing to do.
// Called with the reaper locked.
func (c *Controller) foregroundReaped(pid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fg == pid {
		c.disarmLocked()
	}
}

// Reaper returns the controller's reaper.
func (c *Controller) Reaper() *Reaper { return c.reaper }

// SetForeground records pid as the process being waited on.
func (c *Controller) SetForeground(pid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fg = pid
}

// ClearForeground empties the foreground slot, disarming the watchdog
// first if it is still armed.
func (c *Controller) ClearForeground() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
	c.fg = 0
}

// Foreground returns the current foreground pid, or zero.
func (c *Controller) Foreground() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fg
}

// Arm starts the watchdog for the current foreground process. A
// non-positive duration leaves it disarmed.
func (c *Controller) Arm(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fg == 0 {
		return ErrNoForeground
	}
	c.disarmLocked()
	if d <= 0 {
		return nil
	}
	c.gen++
	gen := c.gen
	c.armed = true
	c.armedFor = d
	c.timer = time.AfterFunc(d, func() { c.expire(gen) })
	return nil
}

// Disarm cancels the watchdog. It is safe to call when not armed.
func (c *Controller) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
}

func (c *Controller) disarmLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.armed = false
}

// Armed reports whether the watchdog is running.
func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// OnAlarm handles watchdog expiry as if the current timer had fired.
func (c *Controller) OnAlarm() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.expire(gen)
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.armed || c.fg == 0 {
		c.mu.Unlock()
		return
	}
	pid, after := c.fg, c.armedFor
	if err := c.kill(pid, unix.SIGTERM); err != nil {
		c.log.Warn("watchdog kill failed", "pid", pid, "err", err)
	}
	c.timer = nil
	c.armed = false
	// The slot is cleared while the child may still be dying. An interrupt
	// in this window redraws the prompt rather than reaching the child;
	// KillGrace bounds how long that lasts.
	c.fg = 0
	c.pushLocked(Event{Kind: WatchdogFired, Pid: pid, After: after})
	c.mu.Unlock()

	c.log.Debug("watchdog fired", "pid", pid, "after", after)
	time.AfterFunc(KillGrace, func() {
		if c.reaper.Waiting(pid) {
			c.log.Debug("watchdog escalating to SIGKILL", "pid", pid)
			_ = c.kill(pid, unix.SIGKILL)
		}
	})
}

// OnInterrupt forwards SIGINT to the foreground process, or asks the main
// flow to redraw the prompt when nothing is running.
func (c *Controller) OnInterrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fg != 0 {
		if err := c.kill(c.fg, unix.SIGINT); err != nil {
			c.log.Debug("forward interrupt failed", "pid", c.fg, "err", err)
		}
		return
	}
	c.pushLocked(Event{Kind: Redraw})
}

// OnChild collects every exited child.
func (c *Controller) OnChild() {
	c.reaper.Collect()
}

func (c *Controller) push(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushLocked(e)
}

func (c *Controller) pushLocked(e Event) {
	if c.n == len(c.events) {
		c.dropped++
	} else {
		c.events[(c.head+c.n)%len(c.events)] = e
		c.n++
	}
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Notify returns a channel that receives after events are queued.
func (c *Controller) Notify() <-chan struct{} { return c.notify }

// Drain returns queued events in arrival order and how many were dropped
// since the last drain.
func (c *Controller) Drain() ([]Event, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 && c.dropped == 0 {
		return nil, 0
	}
	out := make([]Event, c.n)
	for i := range out {
		out[i] = c.events[(c.head+i)%len(c.events)]
	}
	dropped := c.dropped
	c.head, c.n, c.dropped = 0, 0, 0
	return out, dropped
}
