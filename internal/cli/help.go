package cli

import (
	"fmt"
	"io"

	"github.com/marcelocantos/quash/internal/cap"
	"github.com/marcelocantos/quash/internal/pipeline"
)

// RunHelp shows help for a builtin or general usage.
func RunHelp(reg *cap.Registry, w io.Writer, args []string) int {
	if len(args) == 0 {
		printGeneralHelp(w)
		return 0
	}

	c, err := reg.Lookup(args[0])
	if err != nil {
		fmt.Fprintf(w, "quash help: %v\n", err)
		return 1
	}
	fmt.Fprintf(w, "%s: %s\n", c.Name(), c.Description())
	return 0
}

func printGeneralHelp(w io.Writer) {
	fmt.Fprintln(w, "quash: a small interactive shell")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  quash                          start an interactive session")
	fmt.Fprintln(w, "  quash --list                   list builtin commands")
	fmt.Fprintln(w, "  quash --help [<builtin>]       show help")
	fmt.Fprintln(w, "  quash --log <verify|tail [n]>  job log operations")
	fmt.Fprintln(w, "  quash --version                show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "operators (one per line):")
	fmt.Fprintf(w, "  %s  pipe stdout of the first command into the second\n", pipeline.OpPipe)
	fmt.Fprintf(w, "  %s  redirect stdout to file (truncates)\n", pipeline.OpRedirectOut)
	fmt.Fprintf(w, "  %s  redirect stdin from file\n", pipeline.OpRedirectIn)
	fmt.Fprintf(w, "  %s  run in the background (last token only)\n", pipeline.OpBackground)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "$NAME expands to the value of environment variable NAME.")
	fmt.Fprintln(w, "config: $"+configEnv+" or ~/.config/quash/config.yaml")
}
