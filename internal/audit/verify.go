package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Verify reads the job log and checks it entry by entry: the hash chain,
// gap-free sequence numbers, a well-formed session id on every entry, and
// timestamps that never run backwards within one session. It returns nil
// for a sound log, or an error describing the first violation.
func Verify(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	c := chain{prev: genesisHash(), lastTS: map[string]time.Time{}}
	for i, line := range splitLines(data) {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("line %d: invalid JSON: %w", i+1, err)
		}
		if err := c.check(e); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// chain is the state carried from one entry to the next.
type chain struct {
	seq    uint64
	prev   string
	lastTS map[string]time.Time // per session
}

func (c *chain) check(e Entry) error {
	if e.Seq != c.seq+1 {
		return fmt.Errorf("sequence gap: expected %d, got %d", c.seq+1, e.Seq)
	}
	if e.PrevHash != c.prev {
		return fmt.Errorf("prev_hash mismatch: expected %s, got %s", short(c.prev), short(e.PrevHash))
	}
	if h := computeHash(e); e.Hash != h {
		return fmt.Errorf("hash mismatch: expected %s, got %s", short(h), short(e.Hash))
	}
	if _, err := uuid.Parse(e.Session); err != nil {
		return fmt.Errorf("seq %d: bad session %q: %w", e.Seq, e.Session, err)
	}
	if e.Time.IsZero() {
		return fmt.Errorf("seq %d: missing timestamp", e.Seq)
	}
	if last, ok := c.lastTS[e.Session]; ok && e.Time.Before(last) {
		return fmt.Errorf("seq %d: timestamp %s precedes %s in session %s",
			e.Seq, e.Time.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano), e.Session)
	}
	c.lastTS[e.Session] = e.Time
	c.seq = e.Seq
	c.prev = e.Hash
	return nil
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}

// Tail returns the last n entries from the job log.
func Tail(path string, n int) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	lines := splitLines(data)
	if n > len(lines) {
		n = len(lines)
	}

	entries := make([]Entry, 0, n)
	for _, line := range lines[len(lines)-n:] {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
