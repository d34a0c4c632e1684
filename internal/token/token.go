// Package token expands $NAME references in an input line and splits it
// into words.
package token

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Default limits, matching the buffers of the original interpreter.
const (
	DefaultMaxLine = 1024
	DefaultMaxArgs = 64
)

var (
	ErrLineTooLong = errors.New("line too long")
	ErrTooManyArgs = errors.New("too many arguments")
)

// LookupFunc resolves a variable name. The second result is false when the
// variable is unset.
type LookupFunc func(name string) (string, bool)

// Source produces tokens from raw lines. The zero value uses the default
// limits and the process environment.
type Source struct {
	MaxLine int
	MaxArgs int
	Lookup  LookupFunc
}

// Tokens expands and splits line. Exceeding either limit is an error; the
// line is never silently truncated.
func (s Source) Tokens(line string) ([]string, error) {
	maxLine, maxArgs := s.MaxLine, s.MaxArgs
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	if maxArgs <= 0 {
		maxArgs = DefaultMaxArgs
	}
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	expanded := ExpandFunc(line, lookup)
	if len(expanded) > maxLine {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrLineTooLong, len(expanded), maxLine)
	}
	toks := Split(expanded)
	if len(toks) > maxArgs {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyArgs, len(toks), maxArgs)
	}
	return toks, nil
}

// Expand replaces $NAME references using the process environment.
func Expand(line string) string {
	return ExpandFunc(line, os.LookupEnv)
}

// ExpandFunc replaces every $NAME, where NAME is a run of letters, digits
// and underscores, with lookup(NAME) or the empty string. A $ directly
// after a backslash is kept, and so is the backslash.
func ExpandFunc(line string, lookup LookupFunc) string {
	if !strings.Contains(line, "$") {
		return line
	}
	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c != '$' || (i > 0 && line[i-1] == '\\') {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(line) && isNameByte(line[j]) {
			j++
		}
		if val, ok := lookup(line[i+1 : j]); ok {
			b.WriteString(val)
		}
		i = j - 1
	}
	return b.String()
}

func isNameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Split breaks line on spaces and tabs.
func Split(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
}
