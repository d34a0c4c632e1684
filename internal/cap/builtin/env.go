package builtin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/marcelocantos/quash/internal/cap"
)

type Env struct{}

var _ cap.Capability = (*Env)(nil)

func (e *Env) Name() string                 { return "env" }
func (e *Env) Description() string          { return "print the environment, or one variable" }
func (e *Env) Validate(args []string) error { return nil }

// Run prints every NAME=value entry, or only the value of args[0] when it
// is set. An unset variable prints nothing.
func (e *Env) Run(_ context.Context, args []string, _ io.Reader, stdout, _ io.Writer) error {
	if len(args) == 0 {
		for _, kv := range os.Environ() {
			if _, err := fmt.Fprintln(stdout, kv); err != nil {
				return err
			}
		}
		return nil
	}
	if val, ok := os.LookupEnv(args[0]); ok {
		_, err := fmt.Fprintln(stdout, val)
		return err
	}
	return nil
}
