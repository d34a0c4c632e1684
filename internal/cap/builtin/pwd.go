package builtin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/marcelocantos/quash/internal/cap"
)

type Pwd struct{}

var _ cap.Capability = (*Pwd)(nil)

func (p *Pwd) Name() string                 { return "pwd" }
func (p *Pwd) Description() string          { return "print the working directory" }
func (p *Pwd) Validate(args []string) error { return nil }

func (p *Pwd) Run(_ context.Context, _ []string, _ io.Reader, stdout, _ io.Writer) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("pwd: %w", err)
	}
	_, err = fmt.Fprintln(stdout, dir)
	return err
}
