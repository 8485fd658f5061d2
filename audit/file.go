package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the audit log file created inside the log directory.
const FileName = "authlab.log"

// FileOptions controls rotation of the audit log file.
type FileOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileOptions keeps 10 rotated files of up to 50 MB for 30 days.
func DefaultFileOptions() FileOptions {
	return FileOptions{MaxSizeMB: 50, MaxBackups: 10, MaxAgeDays: 30}
}

// FileSink writes records as newline-delimited JSON. Each record is one
// Write call so lines never interleave.
type FileSink struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewFileSink opens dir/authlab.log for appending with size-based rotation.
func NewFileSink(dir string, opts FileOptions) *FileSink {
	return NewWriterSink(&lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	})
}

// NewWriterSink writes records to w.
func NewWriterSink(w io.WriteCloser) *FileSink {
	return &FileSink{w: w}
}

func (s *FileSink) Append(_ context.Context, rec Record) error {
	var line bytes.Buffer
	enc := json.NewEncoder(&line)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line.Bytes()); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}
