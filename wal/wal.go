// Package wal provides an append-only audit journal of scan cycles:
// what was observed, what changed, what was classified, and what
// reached the alert sink.
package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// EntryType defines the type of journal entry.
type EntryType string

const (
	EntryObserved    EntryType = "observed"
	EntryChange      EntryType = "change"
	EntryVerdict     EntryType = "verdict"
	EntryAlerted     EntryType = "alerted"
	EntryRebaselined EntryType = "rebaselined"
	EntrySkipped     EntryType = "skipped"
)

// Entry is a single journal line.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	Type      EntryType       `json:"type"`
	BSSID     string          `json:"bssid,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Config tunes journal files.
type Config struct {
	FilePrefix    string
	MaxFileSize   int64
	RetentionDays int
}

// DefaultConfig returns the standard journal tuning.
func DefaultConfig() Config {
	return Config{
		FilePrefix:    "apwatch",
		MaxFileSize:   64 << 20, // 64 MiB
		RetentionDays: 14,
	}
}

// WAL appends JSON-line entries to timestamped files, rotating when the
// active file exceeds the size limit.
type WAL struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
	config   Config
}

// Open creates or reopens a journal in dir, continuing the sequence
// from existing files.
func Open(dir string, config Config) (*WAL, error) {
	if config.FilePrefix == "" {
		config.FilePrefix = DefaultConfig().FilePrefix
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultConfig().MaxFileSize
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	w := &WAL{dir: dir, config: config}
	w.loadSequence()

	if err := w.openNewFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// Close flushes and closes the journal.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

// Append adds an entry to the journal.
func (w *WAL) Append(entryType EntryType, bssid string, data interface{}) error {
	return w.append(entryType, bssid, data, nil)
}

// AppendError adds an entry carrying an error message.
func (w *WAL) AppendError(entryType EntryType, bssid string, data interface{}, cause error) error {
	return w.append(entryType, bssid, data, cause)
}

func (w *WAL) append(entryType EntryType, bssid string, data interface{}, cause error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal entry data: %w", err)
		}
		raw = encoded
	}

	w.sequence++
	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  w.sequence,
		Type:      entryType,
		BSSID:     bssid,
		Data:      raw,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	if err := w.writeEntry(entry); err != nil {
		return err
	}
	return w.rotateIfNeeded()
}

// writeEntry writes one entry and flushes for durability.
func (w *WAL) writeEntry(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := w.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return w.file.Sync()
}

// rotateIfNeeded starts a new file when the active one is over the
// size limit. Caller holds the lock.
func (w *WAL) rotateIfNeeded() error {
	if !w.shouldRotate() {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	return w.openNewFile()
}

func (w *WAL) shouldRotate() bool {
	info, err := w.file.Stat()
	if err != nil {
		return false
	}
	return info.Size() >= w.config.MaxFileSize
}

// openNewFile opens a fresh timestamped journal file.
func (w *WAL) openNewFile() error {
	filename := fmt.Sprintf("%s-%s.wal", w.config.FilePrefix, time.Now().Format("20060102-150405.000000000"))
	path := filepath.Join(w.dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G304 -- path built from config
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}

	w.file = file
	w.writer = bufio.NewWriter(file)
	return nil
}

// loadSequence continues numbering from the highest sequence found in
// existing journal files.
func (w *WAL) loadSequence() {
	for _, file := range w.listWALFiles() {
		if max := maxSequenceInFile(file); max > w.sequence {
			w.sequence = max
		}
	}
}

// listWALFiles returns this journal's files sorted by name, which is
// chronological because names embed timestamps.
func (w *WAL) listWALFiles() []string {
	pattern := filepath.Join(w.dir, w.config.FilePrefix+"-*.wal")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	sort.Strings(files)
	return files
}

// maxSequenceInFile scans a file for its highest sequence, skipping
// corrupt lines.
func maxSequenceInFile(path string) int64 {
	reader, err := NewReader(path)
	if err != nil {
		return 0
	}
	defer func() { _ = reader.Close() }()

	var max int64
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if entry.Sequence > max {
			max = entry.Sequence
		}
	}
	return max
}

// Reader provides journal replay.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader opens one journal file for reading.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path) // #nosec G304 -- replay of operator-chosen files
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	return &Reader{
		scanner: bufio.NewScanner(file),
		file:    file,
	}, nil
}

// Next reads the next entry.
func (r *Reader) Next() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Replay invokes handler for every entry after since, across all
// journal files in dir.
func Replay(dir string, config Config, since time.Time, handler func(*Entry) error) error {
	if config.FilePrefix == "" {
		config.FilePrefix = DefaultConfig().FilePrefix
	}
	files, err := filepath.Glob(filepath.Join(dir, config.FilePrefix+"-*.wal"))
	if err != nil {
		return fmt.Errorf("failed to list journal files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := replayFile(file, since, handler); err != nil {
			return err
		}
	}
	return nil
}

func replayFile(path string, since time.Time, handler func(*Entry) error) error {
	reader, err := NewReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if entry.Timestamp.After(since) {
			if err := handler(entry); err != nil {
				return err
			}
		}
	}
}
