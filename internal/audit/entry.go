package audit

import "time"

// Entry is one job-log record: a pipeline the shell ran and how it ended.
type Entry struct {
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"ts"`
	PrevHash   string    `json:"prev_hash"`
	Session    string    `json:"session"`              // shell instance that wrote the entry
	Line       string    `json:"line"`                 // pipeline as classified
	Kind       string    `json:"kind"`                 // plain, redirected, piped, builtin
	Background bool      `json:"background,omitempty"` // launched with &
	Pids       []int     `json:"pids,omitempty"`       // children started
	JobSeq     int       `json:"job_seq,omitempty"`    // job sequence number for background launches
	ExitCode   int       `json:"exit_code"`            // last child's exit status, -1 if signaled
	Signal     string    `json:"signal,omitempty"`     // terminating signal name
	TimedOut   bool      `json:"timed_out,omitempty"`  // killed by the watchdog
	Error      string    `json:"error,omitempty"`      // spawn/redirect/usage error
	Duration   float64   `json:"duration_ms"`          // wall time until the shell returned
	Cwd        string    `json:"cwd"`                  // working directory
	Hash       string    `json:"hash"`                 // SHA-256 of this entry (with hash field empty)
}
