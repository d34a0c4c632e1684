// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const fallbackPrompt = "quash> "

var promptStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39"))

// Prompter renders "<cwd>> ", or "quash> " when the working directory
// cannot be read.
type Prompter struct {
	Styled bool
	Getwd  func() (string, error)
}

// NewPrompter styles the prompt only when color is wanted and out is a
// terminal.
func NewPrompter(out *os.File, color bool) Prompter {
	return Prompter{
		Styled: color && out != nil && term.IsTerminal(int(out.Fd())),
		Getwd:  os.Getwd,
	}
}

func (p Prompter) String() string {
	getwd := p.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	cwd, err := getwd()
	if err != nil {
		return fallbackPrompt
	}
	if p.Styled {
		return promptStyle.Render(cwd) + "> "
	}
	return cwd + "> "
}
