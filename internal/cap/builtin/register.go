package builtin

import "github.com/marcelocantos/quash/internal/cap"

// RegisterAll adds all built-in commands to the registry.
func RegisterAll(r *cap.Registry) {
	r.Register(&Cd{})
	r.Register(&Echo{})
	r.Register(&Env{})
	r.Register(&Exit{})
	r.Register(&Pwd{})
	r.Register(&Setenv{})
}
