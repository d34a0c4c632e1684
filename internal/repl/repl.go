// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package repl is the interactive read loop: prompt, read a line, run it,
// and report background events between lines.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/marcelocantos/quash/internal/cap"
	"github.com/marcelocantos/quash/internal/engine"
	"github.com/marcelocantos/quash/internal/pipeline"
	"github.com/marcelocantos/quash/internal/token"
)

// REPL drives an Engine from line input.
type REPL struct {
	Engine *engine.Engine
	Source token.Source
	Prompt Prompter
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Log    *slog.Logger
}

type readResult struct {
	line string
	err  error
}

// lineReader reads one line per request so nothing is consumed from the
// input while a foreground child owns it.
type lineReader struct {
	want  chan struct{}
	lines chan readResult
}

func startReader(in io.Reader) *lineReader {
	lr := &lineReader{
		want:  make(chan struct{}),
		lines: make(chan readResult, 1),
	}
	br := bufio.NewReader(in)
	go func() {
		for range lr.want {
			s, err := br.ReadString('\n')
			lr.lines <- readResult{line: s, err: err}
			if err != nil {
				return
			}
		}
	}()
	return lr
}

// Run loops until end of input, the exit builtin, or ctx is done. End of
// input and exit return nil.
func (r *REPL) Run(ctx context.Context) error {
	lr := startReader(r.In)
	defer close(lr.want)

	for {
		r.Engine.Poll()
		fmt.Fprint(r.Out, r.Prompt.String())
		lr.want <- struct{}{}

		res, err := r.await(ctx, lr)
		if err != nil {
			return err
		}
		if res.line != "" {
			if err := r.execute(ctx, res.line); err != nil {
				if errors.Is(err, cap.ErrExit) {
					return nil
				}
				return err
			}
		}
		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				fmt.Fprintln(r.Out)
				return nil
			}
			return fmt.Errorf("read input: %w", res.err)
		}
	}
}

// await waits for the requested line, reporting events and redrawing the
// prompt while it waits.
func (r *REPL) await(ctx context.Context, lr *lineReader) (readResult, error) {
	for {
		select {
		case res := <-lr.lines:
			return res, nil
		case <-r.Engine.Ctl.Notify():
			if r.Engine.Poll() {
				fmt.Fprint(r.Out, "\n"+r.Prompt.String())
			}
		case <-ctx.Done():
			return readResult{}, ctx.Err()
		}
	}
}

// execute runs one line. Only exit and cancellation end the loop; every
// other failure has already been reported.
func (r *REPL) execute(ctx context.Context, line string) error {
	line = strings.TrimRight(line, "\r\n")
	tokens, err := r.Source.Tokens(line)
	if err != nil {
		fmt.Fprintf(r.Err, "quash: %v\n", err)
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}
	err = r.Engine.Run(ctx, pipeline.Classify(tokens))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cap.ErrExit), errors.Is(err, context.Canceled):
		return err
	}
	r.logger().Debug("command failed", "line", line, "err", err)
	return nil
}

func (r *REPL) logger() *slog.Logger {
	if r.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Log
}
