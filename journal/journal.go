// Package journal keeps an append-only record of every destructive intent
// and outcome, independent of the cloud provider's own logging. If CloudTrail
// itself is being torn down, this file is the audit trail that survives.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yairfalse/purku/types"
)

// EntryType defines the kind of journal entry.
type EntryType string

const (
	EntryIntent  EntryType = "intent"  // written before the destructive call
	EntryDone    EntryType = "done"    // deletion confirmed
	EntryLazy    EntryType = "lazy"    // deferred via short-expiry lifecycle
	EntryFailed  EntryType = "failed"  // deletion attempted and failed
	EntrySkipped EntryType = "skipped" // confirmation declined or filtered out
	EntryPlanned EntryType = "planned" // dry-run, no call issued
)

// Entry is a single journal line.
type Entry struct {
	Timestamp time.Time    `json:"timestamp"`
	Sequence  int64        `json:"sequence"`
	Type      EntryType    `json:"type"`
	Family    types.Family `json:"family"`
	Resource  string       `json:"resource"`
	AccountID string       `json:"account_id"`
	Region    string       `json:"region,omitempty"`
	DryRun    bool         `json:"dry_run,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Journal writes JSON-lines entries, synced on every append. Destruction is
// slow compared to an fsync; durability wins.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
}

// Open creates a timestamped journal file in dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	filename := fmt.Sprintf("purku-%s.journal", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}

	return &Journal{file: file, writer: bufio.NewWriter(file)}, nil
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}

// Record appends an entry for a resource.
func (j *Journal) Record(entryType EntryType, r types.Resource, dryRun bool, opErr error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.sequence++
	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  j.sequence,
		Type:      entryType,
		Family:    r.Family,
		Resource:  r.ID,
		AccountID: r.AccountID,
		Region:    r.Region,
		DryRun:    dryRun,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	return j.writeEntry(entry)
}

func (j *Journal) writeEntry(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	if _, err := j.writer.Write(line); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if _, err := j.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("write journal newline: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return j.file.Sync()
}

// Reader replays journal entries from a file.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader opens a journal file for replay.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	return &Reader{scanner: bufio.NewScanner(file), file: file}, nil
}

// Next reads the next entry, io.EOF at the end.
func (r *Reader) Next() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal journal entry: %w", err)
	}
	return &entry, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.file.Close()
}
