// Package cap defines the shell's in-process commands and the registry the
// engine consults before starting a child process.
package cap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrExit is returned by a capability that asks the interpreter to stop.
var ErrExit = errors.New("exit requested")

// UsageError reports bad arguments to a capability. The interpreter prints
// it and carries on.
type UsageError struct {
	Name string
	Msg  string
}

func (e *UsageError) Error() string {
	return e.Name + ": " + e.Msg
}

// Capability is a command run inside the shell process, never in a child.
type Capability interface {
	// Name returns the command name as typed at the prompt.
	Name() string

	// Description returns a one-line summary.
	Description() string

	// Validate checks args (without the command name) before Run.
	Validate(args []string) error

	// Run executes the command. args excludes the command name.
	Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// Registry maps command names to capabilities.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register adds c, replacing any capability with the same name.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[c.Name()] = c
}

// Lookup returns a capability by name.
func (r *Registry) Lookup(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	if !ok {
		return nil, fmt.Errorf("unknown capability: %q", name)
	}
	return c, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[name]
	return ok
}

// All returns all registered capabilities sorted by name.
func (r *Registry) All() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool {
		return caps[i].Name() < caps[j].Name()
	})
	return caps
}

// Invoke validates and runs the named capability.
func (r *Registry) Invoke(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c, err := r.Lookup(name)
	if err != nil {
		return err
	}
	if err := c.Validate(args); err != nil {
		return err
	}
	return c.Run(ctx, args, stdin, stdout, stderr)
}
