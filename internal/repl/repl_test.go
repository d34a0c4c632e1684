// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelocantos/quash/internal/cap"
	"github.com/marcelocantos/quash/internal/cap/builtin"
	"github.com/marcelocantos/quash/internal/engine"
	"github.com/marcelocantos/quash/internal/jobs"
	"github.com/marcelocantos/quash/internal/signals"
	"github.com/marcelocantos/quash/internal/token"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	repl    *REPL
	ctl     *signals.Controller
	out     *syncBuffer
	errs    *syncBuffer
	engOut  string
	engErrs string
}

func newFixture(t *testing.T, in io.Reader) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		out:     &syncBuffer{},
		errs:    &syncBuffer{},
		engOut:  filepath.Join(dir, "stdout"),
		engErrs: filepath.Join(dir, "stderr"),
	}
	stdout, err := os.Create(f.engOut)
	require.NoError(t, err)
	stderr, err := os.Create(f.engErrs)
	require.NoError(t, err)
	null, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() {
		stdout.Close()
		stderr.Close()
		null.Close()
	})

	tbl := jobs.New(0)
	f.ctl = signals.NewController(tbl, signals.Options{})
	reg := cap.NewRegistry()
	builtin.RegisterAll(reg)
	eng := engine.New(tbl, f.ctl, reg, nil)
	eng.Stdio = engine.Stdio{In: null, Out: stdout, Err: stderr}

	f.repl = &REPL{
		Engine: eng,
		Prompt: Prompter{Getwd: func() (string, error) { return "/w", nil }},
		In:     in,
		Out:    f.out,
		Err:    f.errs,
	}
	return f
}

func (f *fixture) stdout(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.engOut)
	require.NoError(t, err)
	return string(data)
}

func TestEOFPrintsNewline(t *testing.T) {
	f := newFixture(t, strings.NewReader(""))

	require.NoError(t, f.repl.Run(context.Background()))
	assert.Equal(t, "/w> \n", f.out.String())
}

func TestRunsLines(t *testing.T) {
	f := newFixture(t, strings.NewReader("echo hi\n\n   \nprintf there\n"))

	require.NoError(t, f.repl.Run(context.Background()))
	assert.Equal(t, "hi\nthere", f.stdout(t))
	assert.Equal(t, strings.Repeat("/w> ", 5)+"\n", f.out.String())
}

func TestPartialLastLine(t *testing.T) {
	f := newFixture(t, strings.NewReader("echo tail"))

	require.NoError(t, f.repl.Run(context.Background()))
	assert.Equal(t, "tail\n", f.stdout(t))
	assert.Equal(t, "/w> \n", f.out.String())
}

func TestExitStopsLoop(t *testing.T) {
	f := newFixture(t, strings.NewReader("exit\necho nope\n"))

	require.NoError(t, f.repl.Run(context.Background()))
	assert.Empty(t, f.stdout(t))
	assert.Equal(t, "/w> ", f.out.String())
}

func TestFailuresDoNotStopLoop(t *testing.T) {
	f := newFixture(t, strings.NewReader("false\nsetenv\nquash-no-such-program\necho after\n"))

	require.NoError(t, f.repl.Run(context.Background()))
	assert.Contains(t, f.stdout(t), "An error occurred.\n")
	assert.True(t, strings.HasSuffix(f.stdout(t), "after\n"))
}

func TestTokenLimitReported(t *testing.T) {
	f := newFixture(t, strings.NewReader("echo 0123456789\necho ok\n"))
	f.repl.Source = token.Source{MaxLine: 8}

	require.NoError(t, f.repl.Run(context.Background()))
	assert.Contains(t, f.errs.String(), token.ErrLineTooLong.Error())
	assert.Equal(t, "ok\n", f.stdout(t))
}

func TestInterruptRedrawsPrompt(t *testing.T) {
	pr, pw := io.Pipe()
	f := newFixture(t, pr)

	done := make(chan error, 1)
	go func() { done <- f.repl.Run(context.Background()) }()

	require.Eventually(t, func() bool { return f.out.String() == "/w> " }, 2*time.Second, 5*time.Millisecond)
	f.ctl.OnInterrupt()
	require.Eventually(t, func() bool { return f.out.String() == "/w> \n/w> " }, 2*time.Second, 5*time.Millisecond)

	_, err := pw.Write([]byte("echo x\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
	assert.Equal(t, "x\n", f.stdout(t))
}

func TestBackgroundDoneReportedAtPrompt(t *testing.T) {
	pr, pw := io.Pipe()
	f := newFixture(t, pr)

	done := make(chan error, 1)
	go func() { done <- f.repl.Run(context.Background()) }()

	_, err := pw.Write([]byte("true &\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		// Without a SIGCHLD handler, a notification drives collection.
		f.ctl.OnChild()
		return strings.Contains(f.stdout(t), "[1] Done")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
}

func TestContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	f := newFixture(t, pr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.repl.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPromptFallback(t *testing.T) {
	p := Prompter{Getwd: func() (string, error) { return "", os.ErrNotExist }}
	assert.Equal(t, "quash> ", p.String())
}

func TestPromptUnstyledWhenNotTerminal(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer file.Close()

	p := NewPrompter(file, true)
	assert.False(t, p.Styled)
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd+"> ", p.String())
}
