package builtin

import (
	"context"
	"io"
	"os"

	"github.com/marcelocantos/quash/internal/cap"
)

type Setenv struct{}

var _ cap.Capability = (*Setenv)(nil)

func (s *Setenv) Name() string        { return "setenv" }
func (s *Setenv) Description() string { return "set an environment variable" }

func (s *Setenv) Validate(args []string) error {
	if len(args) == 0 {
		return &cap.UsageError{Name: "setenv", Msg: "missing variable name"}
	}
	return nil
}

// Run sets args[0] to args[1], or to the empty string.
func (s *Setenv) Run(_ context.Context, args []string, _ io.Reader, _, _ io.Writer) error {
	val := ""
	if len(args) > 1 {
		val = args[1]
	}
	if err := os.Setenv(args[0], val); err != nil {
		return &cap.UsageError{Name: "setenv", Msg: err.Error()}
	}
	return nil
}
