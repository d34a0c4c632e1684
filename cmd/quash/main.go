package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcelocantos/quash/internal/audit"
	"github.com/marcelocantos/quash/internal/cap"
	"github.com/marcelocantos/quash/internal/cap/builtin"
	"github.com/marcelocantos/quash/internal/cli"
	"github.com/marcelocantos/quash/internal/config"
	"github.com/marcelocantos/quash/internal/engine"
	"github.com/marcelocantos/quash/internal/jobs"
	"github.com/marcelocantos/quash/internal/repl"
	"github.com/marcelocantos/quash/internal/signals"
	"github.com/marcelocantos/quash/internal/token"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "quash: config: %v\n", err)
		return 1
	}

	reg := cap.NewRegistry()
	builtin.RegisterAll(reg)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--list":
			return cli.RunList(reg, os.Stdout)
		case "--help":
			return cli.RunHelp(reg, os.Stdout, os.Args[2:])
		case "--log":
			return cli.RunJobLog(os.Stdout, cfg.Audit.Path, os.Args[2:])
		case "--version":
			fmt.Printf("quash %s\n", version)
			return 0
		default:
			fmt.Fprintf(os.Stderr, "quash: unknown option %q\n", os.Args[1])
			cli.RunHelp(reg, os.Stderr, nil)
			return 2
		}
	}

	log, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quash: log: %v\n", err)
		return 1
	}
	defer closeLog()

	tbl := jobs.New(cfg.Jobs.Max)
	ctl := signals.NewController(tbl, signals.Options{Log: log})
	eng := engine.New(tbl, ctl, reg, log)
	eng.Watchdog = cfg.Watchdog.TimeoutDuration()

	if cfg.Audit.Path != "" {
		if err := audit.Verify(cfg.Audit.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("job log chain broken", "path", cfg.Audit.Path, "err", err)
		}
		logger, err := audit.NewLogger(cfg.Audit.Path)
		if err != nil {
			// Continue without the job log.
			fmt.Fprintf(os.Stderr, "quash: job log: %v\n", err)
		} else {
			eng.Audit = logger
			log.Debug("job log enabled", "path", logger.Path(), "session", logger.Session())
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	stop := ctl.Start(ctx)
	defer stop()

	r := &repl.REPL{
		Engine: eng,
		Source: token.Source{MaxLine: cfg.Limits.MaxLine, MaxArgs: cfg.Limits.MaxArgs},
		Prompt: repl.NewPrompter(os.Stdout, cfg.Prompt.Color),
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Log:    log,
	}
	if err := r.Run(ctx); err != nil {
		log.Debug("read loop ended", "err", err)
		if ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "quash: %v\n", err)
			return 1
		}
	}
	return 0
}

// newLogger builds the diagnostic logger. An empty path logs to stderr.
func newLogger(lc config.LogConfig) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closer := func() {}
	if lc.Path != "" {
		f, err := os.OpenFile(lc.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	var h slog.Handler
	if lc.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}
