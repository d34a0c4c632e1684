// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package engine runs classified pipelines: builtins in-process, everything
// else as child processes with redirection, pipes, background jobs and the
// foreground watchdog.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/marcelocantos/quash/internal/audit"
	"github.com/marcelocantos/quash/internal/cap"
	"github.com/marcelocantos/quash/internal/jobs"
	"github.com/marcelocantos/quash/internal/pipeline"
	"github.com/marcelocantos/quash/internal/signals"
)

// User-facing notices.
const (
	msgFailed   = "An error occurred."
	msgTimedOut = "Process timed out after %s. Terminating..."
)

// ExitError reports a child that did not finish successfully. The user has
// already been told; callers only need it for status.
type ExitError struct {
	Status signals.Status
}

func (e *ExitError) Error() string {
	return "child " + e.Status.String()
}

// Code returns the exit status, or 128+signal for a signaled child.
func (e *ExitError) Code() int {
	if e.Status.Signaled() {
		return 128 + int(e.Status.Signal)
	}
	return e.Status.Code
}

// Recorder receives one entry per executed pipeline.
type Recorder interface {
	Log(e audit.Entry) error
}

// Stdio is the shell's own standard streams, inherited by children.
type Stdio struct {
	In  *os.File
	Out *os.File
	Err *os.File
}

// Engine executes pipelines.
type Engine struct {
	Jobs     *jobs.Table
	Ctl      *signals.Controller
	Builtins *cap.Registry
	Log      *slog.Logger
	Audit    Recorder      // nil disables the job log
	Watchdog time.Duration // foreground time limit; zero disables
	Stdio    Stdio
}

// New returns an engine wired to the process's standard streams.
func New(tbl *jobs.Table, ctl *signals.Controller, reg *cap.Registry, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		Jobs:     tbl,
		Ctl:      ctl,
		Builtins: reg,
		Log:      log,
		Stdio:    Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr},
	}
}

// run is the bookkeeping for one Run call.
type run struct {
	entry   audit.Entry
	started time.Time
}

// Run executes p. Failures are reported to the user before Run returns;
// the returned error carries the outcome (ErrExit, *ExitError, or a
// wrapped spawn/usage error) for callers that care.
func (e *Engine) Run(ctx context.Context, p *pipeline.Pipeline) (err error) {
	r := &run{
		started: time.Now(),
		entry: audit.Entry{
			Line:       p.String(),
			Kind:       p.Kind.String(),
			Background: p.Background,
		},
	}
	defer func() { e.record(r, err) }()

	if err := pipeline.Validate(p); err != nil {
		e.errorf("quash: %v", err)
		return err
	}

	first := p.First()
	if e.Builtins != nil && e.Builtins.Has(first.Name) {
		r.entry.Kind = "builtin"
		return e.builtin(ctx, first)
	}

	switch p.Kind {
	case pipeline.Redirected:
		return e.redirected(ctx, r, p)
	case pipeline.Piped:
		return e.piped(ctx, r, p)
	default:
		if p.Background {
			return e.background(r, first)
		}
		return e.foreground(ctx, r, first, e.Stdio.In, e.Stdio.Out, true)
	}
}

func (e *Engine) builtin(ctx context.Context, cmd pipeline.Command) error {
	err := e.Builtins.Invoke(ctx, cmd.Name, cmd.Args[1:], e.Stdio.In, e.Stdio.Out, e.Stdio.Err)
	if err == nil || errors.Is(err, cap.ErrExit) {
		return err
	}
	e.errorf("%v", err)
	return err
}

// Poll collects exited children and reports queued events. It never
// blocks. The result is true when anything was printed or an interrupt
// arrived at the prompt, meaning the prompt should be drawn again.
func (e *Engine) Poll() bool {
	e.Ctl.OnChild()
	f := e.flush()
	return f.printed || f.redraw
}

type flushed struct {
	timedOut int // pid the watchdog terminated
	printed  bool
	redraw   bool
}

// flush writes every queued event as a notice.
func (e *Engine) flush() flushed {
	var f flushed
	events, dropped := e.Ctl.Drain()
	for _, ev := range events {
		switch ev.Kind {
		case signals.ChildDone:
			e.Log.Info("background job done", "seq", ev.Seq, "pid", ev.Pid, "status", ev.Status.String())
			e.printf("[%d] Done", ev.Seq)
			f.printed = true
		case signals.WatchdogFired:
			f.timedOut = ev.Pid
			e.printf("\n"+msgTimedOut, seconds(ev.After))
			f.printed = true
		case signals.Redraw:
			f.redraw = true
		}
	}
	if dropped > 0 {
		e.Log.Warn("pending events dropped", "count", dropped)
		e.errorf("quash: %d notifications lost", dropped)
		f.printed = true
	}
	return f
}

func seconds(d time.Duration) string {
	if d == time.Second {
		return "1 second"
	}
	return fmt.Sprintf("%g seconds", d.Seconds())
}

func (e *Engine) printf(format string, args ...any) {
	fmt.Fprintf(e.Stdio.Out, format+"\n", args...)
}

func (e *Engine) errorf(format string, args ...any) {
	fmt.Fprintf(e.Stdio.Err, format+"\n", args...)
}

// complete applies the report rule to a finished foreground child.
func (e *Engine) complete(r *run, st signals.Status) error {
	if st.Signaled() {
		r.entry.ExitCode = -1
		r.entry.Signal = unix.SignalName(st.Signal)
	} else {
		r.entry.ExitCode = st.Code
	}
	if st.Success() {
		return nil
	}
	if st.Failed() {
		e.printf(msgFailed)
	}
	return &ExitError{Status: st}
}

func (e *Engine) record(r *run, err error) {
	if e.Audit == nil {
		return
	}
	r.entry.Duration = float64(time.Since(r.started).Microseconds()) / 1000
	if cwd, werr := os.Getwd(); werr == nil {
		r.entry.Cwd = cwd
	}
	var xe *ExitError
	if err != nil && !errors.As(err, &xe) && !errors.Is(err, cap.ErrExit) {
		r.entry.Error = err.Error()
	}
	if aerr := e.Audit.Log(r.entry); aerr != nil {
		e.Log.Warn("job log append failed", "err", aerr)
	}
}
