// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package signals

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Status is how a child process finished.
type Status struct {
	Code   int         // exit status; -1 when killed by a signal
	Signal unix.Signal // terminating signal, zero for a normal exit
}

// FromWaitStatus converts a raw wait status.
func FromWaitStatus(ws unix.WaitStatus) Status {
	if ws.Signaled() {
		return Status{Code: -1, Signal: ws.Signal()}
	}
	return Status{Code: ws.ExitStatus()}
}

// Exited returns a normal-exit status with the given code.
func Exited(code int) Status { return Status{Code: code} }

// Killed returns a status for a child terminated by sig.
func Killed(sig unix.Signal) Status { return Status{Code: -1, Signal: sig} }

func (s Status) Signaled() bool { return s.Signal != 0 }

func (s Status) Success() bool { return !s.Signaled() && s.Code == 0 }

// Failed reports a normal exit with a nonzero code. Signal deaths are not
// failures in this sense; they are reported by whoever sent the signal.
func (s Status) Failed() bool { return !s.Signaled() && s.Code != 0 }

func (s Status) String() string {
	if s.Signaled() {
		return fmt.Sprintf("signal %s", unix.SignalName(s.Signal))
	}
	return fmt.Sprintf("exit %d", s.Code)
}
