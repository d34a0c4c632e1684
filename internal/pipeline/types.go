package pipeline

import "strings"

// Operator tokens recognized on a command line. Each must appear as a token
// of its own; "a>b" is an ordinary argument.
const (
	OpPipe        = "|"
	OpRedirectIn  = "<"
	OpRedirectOut = ">"
	OpBackground  = "&"
)

// Kind classifies how a pipeline is executed. A pipeline has exactly one
// kind; Background is independent of it.
type Kind int

const (
	Plain      Kind = iota // one command, inherited stdio
	Redirected             // one command, stdin and/or stdout replaced by files
	Piped                  // two commands joined by an OS pipe
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Redirected:
		return "redirected"
	case Piped:
		return "piped"
	default:
		return "unknown"
	}
}

// Command is a program name plus its argv. Args[0] is the name.
type Command struct {
	Name string
	Args []string
}

// Pipeline is one classified input line.
type Pipeline struct {
	Commands   []Command
	Input      string // stdin redirect path, empty if none
	Output     string // stdout redirect path, empty if none
	Background bool
	Kind       Kind
}

// First returns the first command, which decides builtin dispatch.
func (p *Pipeline) First() Command {
	if len(p.Commands) == 0 {
		return Command{}
	}
	return p.Commands[0]
}

// String renders the pipeline as a command line.
func (p *Pipeline) String() string {
	var b strings.Builder
	for i, c := range p.Commands {
		if i > 0 {
			b.WriteString(" " + OpPipe + " ")
		}
		b.WriteString(strings.Join(c.Args, " "))
	}
	if p.Input != "" {
		b.WriteString(" " + OpRedirectIn + " " + p.Input)
	}
	if p.Output != "" {
		b.WriteString(" " + OpRedirectOut + " " + p.Output)
	}
	if p.Background {
		b.WriteString(" " + OpBackground)
	}
	return b.String()
}
