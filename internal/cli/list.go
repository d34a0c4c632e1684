package cli

import (
	"fmt"
	"io"

	"github.com/marcelocantos/quash/internal/cap"
)

// RunList lists builtin commands.
func RunList(reg *cap.Registry, w io.Writer) int {
	for _, c := range reg.All() {
		fmt.Fprintf(w, "%-8s %s\n", c.Name(), c.Description())
	}
	return 0
}
