package audit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const genesisInput = "quash-genesis"

// Logger is an append-only, hash-chained job log writer. Several shells
// may share one file; appends are serialized with an advisory lock and
// each append chains from whatever entry is last on disk.
type Logger struct {
	mu      sync.Mutex
	path    string
	lock    *flock.Flock
	session string
}

// NewLogger opens or creates a job log at the given path.
func NewLogger(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	f.Close()

	return &Logger{
		path:    path,
		lock:    flock.New(path + ".lock"),
		session: uuid.NewString(),
	}, nil
}

// Log appends e, filling in the sequence, timestamp, session and hashes.
func (l *Logger) Log(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	seq, prev, err := lastLink(l.path)
	if err != nil {
		return err
	}

	e.Seq = seq + 1
	e.Time = time.Now().UTC()
	e.PrevHash = prev
	e.Session = l.session
	e.Hash = computeHash(e)

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Path returns the audit log file path.
func (l *Logger) Path() string {
	return l.path
}

// Session returns the id stamped on entries written by this logger.
func (l *Logger) Session() string {
	return l.session
}

// lastLink returns the sequence number and hash of the last entry, or the
// genesis link for an empty log.
func lastLink(path string) (uint64, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, genesisHash(), nil
		}
		return 0, "", fmt.Errorf("read audit log: %w", err)
	}
	lines := splitLines(data)
	if len(lines) == 0 {
		return 0, genesisHash(), nil
	}
	var last Entry
	if err := json.Unmarshal(lines[len(lines)-1], &last); err != nil {
		return 0, "", fmt.Errorf("audit log %s: last entry: %w", path, err)
	}
	return last.Seq, last.Hash, nil
}

func genesisHash() string {
	h := sha256.Sum256([]byte(genesisInput))
	return fmt.Sprintf("%x", h)
}

func computeHash(e Entry) string {
	e.Hash = "" // hash is computed with this field empty
	data, _ := json.Marshal(e)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
