package builtin

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/marcelocantos/quash/internal/cap"
)

type Echo struct{}

var _ cap.Capability = (*Echo)(nil)

func (e *Echo) Name() string                 { return "echo" }
func (e *Echo) Description() string          { return "print arguments separated by spaces" }
func (e *Echo) Validate(args []string) error { return nil }

func (e *Echo) Run(_ context.Context, args []string, _ io.Reader, stdout, _ io.Writer) error {
	_, err := fmt.Fprintln(stdout, strings.Join(args, " "))
	return err
}
