// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/marcelocantos/quash/internal/jobs"
	"github.com/marcelocantos/quash/internal/pipeline"
	"github.com/marcelocantos/quash/internal/signals"
)

// statusNotFound is the status of a child whose program could not be resolved.
const statusNotFound = 127

// starter returns a function that creates a child running cmd with the
// given standard streams. The returned function is what Reaper.Spawn calls
// under its lock.
func (e *Engine) starter(path string, cmd pipeline.Command, files []*os.File, ownGroup bool) func() (int, error) {
	return func() (int, error) {
		proc, err := os.StartProcess(path, cmd.Args, &os.ProcAttr{
			Env:   os.Environ(),
			Files: files,
			Sys:   &syscall.SysProcAttr{Setpgid: ownGroup},
		})
		if err != nil {
			return 0, err
		}
		pid := proc.Pid
		// The reaper collects the child; the handle is not needed.
		_ = proc.Release()
		return pid, nil
	}
}

// resolve finds cmd's program. A failure is reported like a child that
// could not load its program: a message on stderr and status 127.
func (e *Engine) resolve(cmd pipeline.Command) (string, bool) {
	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		e.errorf("%s: %v", cmd.Name, unwrapExec(err))
		e.Log.Debug("program not found", "name", cmd.Name, "err", err)
		return "", false
	}
	return path, true
}

func unwrapExec(err error) error {
	var ee *exec.Error
	if errors.As(err, &ee) {
		return ee.Err
	}
	return err
}

// spawnFailed reports a process-creation failure. Nothing is registered
// and the foreground slot is untouched.
func (e *Engine) spawnFailed(cmd pipeline.Command, err error) error {
	e.errorf("%s: %v", cmd.Name, err)
	e.Log.Warn("spawn failed", "name", cmd.Name, "err", err)
	return fmt.Errorf("spawn %s: %w", cmd.Name, err)
}

func (e *Engine) notFound(r *run) error {
	return e.complete(r, signals.Exited(statusNotFound))
}

// foreground spawns cmd and waits for it, with the watchdog armed when
// guarded is set.
func (e *Engine) foreground(ctx context.Context, r *run, cmd pipeline.Command, in, out *os.File, guarded bool) error {
	path, ok := e.resolve(cmd)
	if !ok {
		return e.notFound(r)
	}
	child, err := e.Ctl.Reaper().Spawn(e.starter(path, cmd, []*os.File{in, out, e.Stdio.Err}, false), false)
	if err != nil {
		return e.spawnFailed(cmd, err)
	}
	r.entry.Pids = append(r.entry.Pids, child.Pid)
	e.Log.Debug("spawned", "pid", child.Pid, "argv", cmd.Args)

	st, err := e.wait(ctx, r, child, guarded)
	if err != nil {
		return err
	}
	return e.complete(r, st)
}

// wait holds child in the foreground slot until it is collected. The
// watchdog is disarmed before the slot is cleared on every path.
func (e *Engine) wait(ctx context.Context, r *run, child *signals.Child, guarded bool) (signals.Status, error) {
	e.Ctl.SetForeground(child.Pid)
	defer e.Ctl.ClearForeground()
	if guarded {
		if err := e.Ctl.Arm(e.Watchdog); err != nil {
			e.Log.Warn("watchdog not armed", "pid", child.Pid, "err", err)
		}
		defer e.Ctl.Disarm()
	}

	st, err := e.Ctl.Reaper().Wait(ctx, child)
	if err != nil {
		// The shell is going away; do not leave the child running.
		_ = unix.Kill(child.Pid, unix.SIGKILL)
		return st, fmt.Errorf("wait for pid %d: %w", child.Pid, err)
	}
	if guarded && e.flush().timedOut == child.Pid {
		r.entry.TimedOut = true
	}
	return st, nil
}

// background starts cmd detached from the terminal's process group with
// stdin on /dev/null and registers it as a job.
func (e *Engine) background(r *run, cmd pipeline.Command) error {
	path, ok := e.resolve(cmd)
	if !ok {
		return e.notFound(r)
	}
	null, err := os.Open(os.DevNull)
	if err != nil {
		return e.spawnFailed(cmd, err)
	}
	defer null.Close()

	child, err := e.Ctl.Reaper().Spawn(e.starter(path, cmd, []*os.File{null, e.Stdio.Out, e.Stdio.Err}, true), true)
	if errors.Is(err, jobs.ErrCapacity) {
		if child != nil {
			// Started but untracked: take it back down before reporting.
			_ = unix.Kill(child.Pid, unix.SIGKILL)
			if _, werr := e.Ctl.Reaper().Wait(context.Background(), child); werr != nil {
				e.Log.Warn("reap rejected job failed", "pid", child.Pid, "err", werr)
			}
		}
		e.errorf("quash: %v", jobs.ErrCapacity)
		e.Log.Warn("background launch refused", "argv", cmd.Args, "jobs", e.Jobs.Len())
		return err
	}
	if err != nil {
		return e.spawnFailed(cmd, err)
	}
	r.entry.Pids = []int{child.Pid}
	r.entry.JobSeq = child.Seq
	e.printf("[%d] %d", child.Seq, child.Pid)
	e.Log.Debug("background job started", "seq", child.Seq, "pid", child.Pid, "argv", cmd.Args)
	return nil
}

// redirected runs the single command with its input and output replaced
// by the recorded files. It always runs in the foreground.
func (e *Engine) redirected(ctx context.Context, r *run, p *pipeline.Pipeline) error {
	cmd := p.First()
	if p.Background {
		e.Log.Debug("background ignored for redirected command", "line", p.String())
	}
	in, out := e.Stdio.In, e.Stdio.Out
	if p.Input != "" {
		f, err := os.Open(p.Input)
		if err != nil {
			e.errorf("open input file: %v", err)
			return e.complete(r, signals.Exited(1))
		}
		defer f.Close()
		in = f
	}
	if p.Output != "" {
		f, err := os.OpenFile(p.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			e.errorf("open output file: %v", err)
			return e.complete(r, signals.Exited(1))
		}
		defer f.Close()
		out = f
	}
	return e.foreground(ctx, r, cmd, in, out, true)
}

// piped connects two commands with a pipe and waits for both. The result
// is the last stage's status. A stage whose program cannot be resolved
// fails alone with status 127; its end of the pipe is closed so the other
// stage sees end of input or a broken pipe.
func (e *Engine) piped(ctx context.Context, r *run, p *pipeline.Pipeline) error {
	left, right := p.Commands[0], p.Commands[1]
	if p.Background {
		e.Log.Debug("background ignored for pipeline", "line", p.String())
	}
	leftPath, leftOK := e.resolve(left)
	rightPath, rightOK := e.resolve(right)
	if !leftOK && !rightOK {
		return e.notFound(r)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		e.errorf("pipe: %v", err)
		return fmt.Errorf("pipe: %w", err)
	}
	reaper := e.Ctl.Reaper()

	var first, second *signals.Child
	if leftOK {
		first, err = reaper.Spawn(e.starter(leftPath, left, []*os.File{e.Stdio.In, pw, e.Stdio.Err}, false), false)
		if err != nil {
			pr.Close()
			pw.Close()
			return e.spawnFailed(left, err)
		}
		r.entry.Pids = append(r.entry.Pids, first.Pid)
	}
	// Only the first stage holds the write end from here on.
	pw.Close()

	var spawnErr error
	if rightOK {
		second, spawnErr = reaper.Spawn(e.starter(rightPath, right, []*os.File{pr, e.Stdio.Out, e.Stdio.Err}, false), false)
		if spawnErr == nil {
			r.entry.Pids = append(r.entry.Pids, second.Pid)
		}
	}
	pr.Close()
	e.Log.Debug("spawned pipeline", "pids", r.entry.Pids, "line", p.String())

	if first != nil {
		if _, err := e.wait(ctx, r, first, false); err != nil {
			if second != nil {
				_ = unix.Kill(second.Pid, unix.SIGKILL)
			}
			return err
		}
	}
	if spawnErr != nil {
		return e.spawnFailed(right, spawnErr)
	}
	if second == nil {
		return e.notFound(r)
	}
	st, err := e.wait(ctx, r, second, false)
	if err != nil {
		return err
	}
	return e.complete(r, st)
}
