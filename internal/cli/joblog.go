package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/marcelocantos/quash/internal/audit"
	"github.com/marcelocantos/quash/internal/config"
)

const configEnv = config.EnvPath

// defaultTail is how many entries "tail" shows without a count.
const defaultTail = 20

// RunJobLog handles quash --log.
func RunJobLog(w io.Writer, logPath string, args []string) int {
	if logPath == "" {
		fmt.Fprintln(w, "quash log: no job log configured (set audit.path)")
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(w, "usage: quash --log <verify|tail [n]>")
		return 1
	}

	switch args[0] {
	case "verify":
		if err := audit.Verify(logPath); err != nil {
			fmt.Fprintf(w, "job log verification FAILED: %v\n", err)
			return 1
		}
		fmt.Fprintln(w, "job log integrity verified")
		return 0

	case "tail":
		n := defaultTail
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v <= 0 {
				fmt.Fprintf(w, "quash log: bad count %q\n", args[1])
				return 1
			}
			n = v
		}
		entries, err := audit.Tail(logPath, n)
		if err != nil {
			fmt.Fprintf(w, "quash log: %v\n", err)
			return 1
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "no job log entries")
			return 0
		}
		for _, e := range entries {
			fmt.Fprintln(w, formatEntry(e))
		}
		return 0

	default:
		fmt.Fprintf(w, "quash log: unknown subcommand %q\n", args[0])
		return 1
	}
}

// formatEntry renders one entry as a single line:
//
//	seq time outcome duration [job] line
func formatEntry(e audit.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%5d %s %-12s %8s", e.Seq, e.Time.Local().Format(time.DateTime), outcome(e), fmtDuration(e.Duration))
	if e.JobSeq > 0 {
		fmt.Fprintf(&b, " [%d]", e.JobSeq)
	}
	b.WriteString(" ")
	b.WriteString(e.Line)
	return b.String()
}

func outcome(e audit.Entry) string {
	switch {
	case e.Error != "":
		return "error"
	case e.TimedOut:
		return "timeout"
	case e.Signal != "":
		return e.Signal
	case e.JobSeq > 0 && len(e.Pids) > 0:
		return "started"
	default:
		return "exit " + strconv.Itoa(e.ExitCode)
	}
}

func fmtDuration(ms float64) string {
	return (time.Duration(ms * float64(time.Millisecond))).Round(time.Millisecond).String()
}
