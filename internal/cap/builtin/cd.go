package builtin

import (
	"context"
	"io"
	"os"

	"github.com/marcelocantos/quash/internal/cap"
)

type Cd struct{}

var _ cap.Capability = (*Cd)(nil)

func (c *Cd) Name() string                 { return "cd" }
func (c *Cd) Description() string          { return "change the working directory" }
func (c *Cd) Validate(args []string) error { return nil }

// Run changes to args[0], or to $HOME when no argument is given. With HOME
// unset and no argument it does nothing.
func (c *Cd) Run(_ context.Context, args []string, _ io.Reader, _, _ io.Writer) error {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	} else {
		dir = os.Getenv("HOME")
		if dir == "" {
			return nil
		}
	}
	if err := os.Chdir(dir); err != nil {
		return &cap.UsageError{Name: "cd", Msg: err.Error()}
	}
	return nil
}
