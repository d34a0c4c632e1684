package builtin

import (
	"context"
	"io"

	"github.com/marcelocantos/quash/internal/cap"
)

type Exit struct{}

var _ cap.Capability = (*Exit)(nil)

func (e *Exit) Name() string                 { return "exit" }
func (e *Exit) Description() string          { return "leave the shell" }
func (e *Exit) Validate(args []string) error { return nil }

func (e *Exit) Run(context.Context, []string, io.Reader, io.Writer, io.Writer) error {
	return cap.ErrExit
}
