// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package signals

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/marcelocantos/quash/internal/jobs"
)

type sent struct {
	pid int
	sig unix.Signal
}

type exitRec struct {
	pid int
	ws  unix.WaitStatus
}

// fakeProcs stands in for kill(2) and wait4(2).
type fakeProcs struct {
	mu     sync.Mutex
	sent   []sent
	exited []exitRec
}

func (f *fakeProcs) kill(pid int, sig unix.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{pid, sig})
	return nil
}

func (f *fakeProcs) wait() (int, unix.WaitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.exited) == 0 {
		return 0, 0, nil
	}
	e := f.exited[0]
	f.exited = f.exited[1:]
	return e.pid, e.ws, nil
}

func (f *fakeProcs) exit(pid, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exited = append(f.exited, exitRec{pid, unix.WaitStatus(code << 8)})
}

func (f *fakeProcs) signals() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func newFake(capacity int) (*Controller, *fakeProcs, *jobs.Table) {
	f := &fakeProcs{}
	tbl := jobs.New(capacity)
	c := NewController(tbl, Options{Kill: f.kill, Wait: f.wait})
	return c, f, tbl
}

func spawnPid(pid int) func() (int, error) {
	return func() (int, error) { return pid, nil }
}

func TestInterruptForwardsToForeground(t *testing.T) {
	c, f, _ := newFake(4)
	c.SetForeground(42)
	c.OnInterrupt()
	assert.Equal(t, []sent{{42, unix.SIGINT}}, f.signals())
	evs, _ := c.Drain()
	assert.Empty(t, evs)
	assert.Equal(t, 42, c.Foreground())
}

func TestInterruptAtPromptQueuesRedraw(t *testing.T) {
	c, f, _ := newFake(4)
	c.OnInterrupt()
	assert.Empty(t, f.signals())
	select {
	case <-c.Notify():
	default:
		t.Fatal("expected notification")
	}
	evs, dropped := c.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, Redraw, evs[0].Kind)
	assert.Zero(t, dropped)
}

func TestArmRequiresForeground(t *testing.T) {
	c, _, _ := newFake(4)
	assert.ErrorIs(t, c.Arm(time.Second), ErrNoForeground)
	assert.False(t, c.Armed())
}

func TestAlarmTerminatesForeground(t *testing.T) {
	c, f, _ := newFake(4)
	c.SetForeground(7)
	require.NoError(t, c.Arm(time.Hour))
	require.True(t, c.Armed())

	c.OnAlarm()

	assert.Equal(t, []sent{{7, unix.SIGTERM}}, f.signals())
	assert.False(t, c.Armed())
	assert.Zero(t, c.Foreground())
	evs, _ := c.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, WatchdogFired, evs[0].Kind)
	assert.Equal(t, 7, evs[0].Pid)
	assert.Equal(t, time.Hour, evs[0].After)
}

func TestAlarmWhenDisarmedIsNoop(t *testing.T) {
	c, f, _ := newFake(4)
	c.SetForeground(7)
	c.OnAlarm()
	assert.Empty(t, f.signals())
	assert.Equal(t, 7, c.Foreground())
}

func TestWatchdogTimerFires(t *testing.T) {
	c, f, _ := newFake(4)
	c.SetForeground(9)
	require.NoError(t, c.Arm(20*time.Millisecond))

	select {
	case <-c.Notify():
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not fire")
	}
	assert.Equal(t, []sent{{9, unix.SIGTERM}}, f.signals())
	assert.Zero(t, c.Foreground())
}

func TestDisarmCancelsTimer(t *testing.T) {
	c, f, _ := newFake(4)
	c.SetForeground(9)
	require.NoError(t, c.Arm(20*time.Millisecond))
	c.Disarm()
	c.ClearForeground()
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, f.signals())
	evs, _ := c.Drain()
	assert.Empty(t, evs)
}

func TestRearmIgnoresStaleTimer(t *testing.T) {
	c, f, _ := newFake(4)
	c.SetForeground(9)
	require.NoError(t, c.Arm(10*time.Millisecond))
	require.NoError(t, c.Arm(time.Hour))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.signals())
	assert.True(t, c.Armed())
	c.ClearForeground()
}

func TestClearForegroundDisarms(t *testing.T) {
	c, _, _ := newFake(4)
	c.SetForeground(3)
	require.NoError(t, c.Arm(time.Hour))
	c.ClearForeground()
	assert.False(t, c.Armed())
	assert.Zero(t, c.Foreground())
}

func TestArmZeroDurationStaysDisarmed(t *testing.T) {
	c, _, _ := newFake(4)
	c.SetForeground(3)
	require.NoError(t, c.Arm(0))
	assert.False(t, c.Armed())
}

func TestQueueOverflowIsCounted(t *testing.T) {
	c, _, _ := newFake(4)
	for i := 0; i < QueueCapacity+5; i++ {
		c.OnInterrupt()
	}
	evs, dropped := c.Drain()
	assert.Len(t, evs, QueueCapacity)
	assert.Equal(t, 5, dropped)

	evs, dropped = c.Drain()
	assert.Empty(t, evs)
	assert.Zero(t, dropped)
}

func TestDrainPreservesOrder(t *testing.T) {
	c, _, _ := newFake(4)
	c.OnInterrupt()
	c.SetForeground(5)
	require.NoError(t, c.Arm(time.Hour))
	c.OnAlarm()
	evs, _ := c.Drain()
	require.Len(t, evs, 2)
	assert.Equal(t, Redraw, evs[0].Kind)
	assert.Equal(t, WatchdogFired, evs[1].Kind)
}

func TestCollectedForegroundDisarmsWatchdog(t *testing.T) {
	c, f, _ := newFake(4)
	child, err := c.Reaper().Spawn(spawnPid(12), false)
	require.NoError(t, err)
	c.SetForeground(child.Pid)
	require.NoError(t, c.Arm(time.Hour))

	// The child exits on its own just as the timer is due.
	f.exit(12, 0)
	c.OnChild()
	assert.False(t, c.Armed())

	c.OnAlarm()
	assert.Empty(t, f.signals())
	evs, _ := c.Drain()
	assert.Empty(t, evs)

	st, err := c.Reaper().Wait(context.Background(), child)
	require.NoError(t, err)
	assert.True(t, st.Success())
}

func TestCollectedOtherChildKeepsWatchdog(t *testing.T) {
	c, f, _ := newFake(4)
	fg, err := c.Reaper().Spawn(spawnPid(13), false)
	require.NoError(t, err)
	_, err = c.Reaper().Spawn(spawnPid(14), false)
	require.NoError(t, err)
	c.SetForeground(fg.Pid)
	require.NoError(t, c.Arm(time.Hour))

	f.exit(14, 0)
	c.OnChild()
	assert.True(t, c.Armed())
	c.Disarm()
}

func TestInterruptAfterWatchdogRedraws(t *testing.T) {
	c, f, _ := newFake(4)
	child, err := c.Reaper().Spawn(spawnPid(15), false)
	require.NoError(t, err)
	c.SetForeground(child.Pid)
	require.NoError(t, c.Arm(time.Hour))
	c.OnAlarm()

	// The slot is already clear while the terminated child is still awaited.
	require.True(t, c.Reaper().Waiting(child.Pid))
	c.OnInterrupt()

	assert.Equal(t, []sent{{15, unix.SIGTERM}}, f.signals())
	evs, _ := c.Drain()
	require.Len(t, evs, 2)
	assert.Equal(t, WatchdogFired, evs[0].Kind)
	assert.Equal(t, Redraw, evs[1].Kind)
}

func TestKillGraceEscalates(t *testing.T) {
	old := KillGrace
	KillGrace = 10 * time.Millisecond
	defer func() { KillGrace = old }()

	c, f, _ := newFake(4)
	child, err := c.Reaper().Spawn(spawnPid(11), false)
	require.NoError(t, err)
	c.SetForeground(child.Pid)
	require.NoError(t, c.Arm(time.Hour))
	c.OnAlarm()

	require.Eventually(t, func() bool { return len(f.signals()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []sent{{11, unix.SIGTERM}, {11, unix.SIGKILL}}, f.signals())
}

func TestStartForwardsRealInterrupt(t *testing.T) {
	c, f, _ := newFake(4)
	stop := c.Start(context.Background())
	defer stop()

	c.SetForeground(77)
	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGINT))
	require.Eventually(t, func() bool { return len(f.signals()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, sent{77, unix.SIGINT}, f.signals()[0])
}
