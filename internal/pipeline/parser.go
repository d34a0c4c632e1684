package pipeline

import (
	"errors"
	"fmt"
)

// ErrSyntax reports a pipeline with an empty command on either side of a pipe.
var ErrSyntax = errors.New("syntax error")

// Classify turns a token sequence into a Pipeline. It never fails: malformed
// operators degrade as documented on each rule below. Callers must not pass
// an empty sequence.
func Classify(tokens []string) *Pipeline {
	p := &Pipeline{}

	// Trailing & marks background and is dropped before anything else.
	if n := len(tokens); n > 0 && tokens[n-1] == OpBackground {
		p.Background = true
		tokens = tokens[:n-1]
	}

	// Redirect pass. Later operators overwrite earlier targets. An operator
	// with nothing after it is dropped and the redirection skipped.
	redirected := false
	filtered := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case OpRedirectIn, OpRedirectOut:
			redirected = true
			if i+1 >= len(tokens) {
				continue
			}
			if tokens[i] == OpRedirectIn {
				p.Input = tokens[i+1]
			} else {
				p.Output = tokens[i+1]
			}
			i++
		default:
			filtered = append(filtered, tokens[i])
		}
	}

	// Redirection wins over piping: any | left is a literal argument.
	if redirected {
		p.Kind = Redirected
		p.Commands = []Command{newCommand(filtered)}
		return p
	}

	// Only the first | splits; the rest belong to the second command.
	for i, tok := range filtered {
		if tok == OpPipe {
			p.Kind = Piped
			p.Commands = []Command{
				newCommand(filtered[:i]),
				newCommand(filtered[i+1:]),
			}
			return p
		}
	}

	p.Kind = Plain
	p.Commands = []Command{newCommand(filtered)}
	return p
}

func newCommand(argv []string) Command {
	args := append([]string(nil), argv...)
	c := Command{Args: args}
	if len(args) > 0 {
		c.Name = args[0]
	}
	return c
}

// Validate checks that every command has a program name.
func Validate(p *Pipeline) error {
	for i, c := range p.Commands {
		if c.Name == "" {
			if p.Kind == Piped {
				return fmt.Errorf("%w: empty command %s %q", ErrSyntax, side(i), OpPipe)
			}
			return fmt.Errorf("%w: missing command", ErrSyntax)
		}
	}
	return nil
}

func side(i int) string {
	if i == 0 {
		return "before"
	}
	return "after"
}
