package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
)

// GenesisHash is the prev_hash carried by the first entry of a log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// TimestampFormat is the layout of Entry.Timestamp.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Log appends contract events to a JSONL file. Every entry carries the hash
// of the line before it, so edits, deletions and insertions break the chain.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
	head string
	now  func() time.Time
}

// Open opens the log at path for appending, creating parent directories as
// needed. An existing log is resumed from its last line.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: mkdir: %w", err)
	}
	head, err := tailHash(path)
	if err != nil {
		return nil, fmt.Errorf("audit: resume %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &Log{path: path, file: file, head: head, now: time.Now}, nil
}

// Record chains entry onto the log and fsyncs it. A blank Timestamp is
// stamped with the current UTC time.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = l.now().UTC().Format(TimestampFormat)
	}
	entry.PrevHash = l.head

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: encode %s/%s: %w", entry.ContractID, entry.Event, err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: fsync: %w", err)
	}
	l.head = HashLine(line)
	return nil
}

// Head returns the hash the next entry will carry as prev_hash.
func (l *Log) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the RFC 8785 canonical form of line.
// Input that is not JSON is hashed verbatim.
func HashLine(line []byte) string {
	if canon, err := jcs.Transform(line); err == nil {
		line = canon
	}
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:])
}
