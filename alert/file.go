package alert

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/apwatch/apwatch/types"
)

// FileSink appends one line per verdict to a log file.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewFileSink opens (or creates) the alert log at path.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert log: %w", err)
	}
	return &FileSink{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Emit implements Sink.
func (s *FileSink) Emit(ctx context.Context, v types.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.WriteString(v.Line() + "\n"); err != nil {
		return fmt.Errorf("failed to write alert: %w", err)
	}
	return s.writer.Flush()
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		return err
	}
	return s.file.Close()
}
