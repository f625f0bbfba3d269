// Package storage archives raw live payloads as daily NDJSON files.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

const dayLayout = "2006-01-02"

// Record is one archived line
type Record struct {
	SnapshotID int64           `json:"snapshot_id"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Domain     string          `json:"domain"`
	Payload    json.RawMessage `json:"payload"`
}

// Storage appends records to live_<domain>_<day>.ndjson and compresses a
// day's file once a record for a later day arrives
type Storage struct {
	outputDir string
	domain    string
	file      *os.File
	day       string
	mu        sync.Mutex
}

// New creates a new Storage instance
func New(outputDir, domain string) *Storage {
	return &Storage{
		outputDir: outputDir,
		domain:    domain,
	}
}

// Start creates the output directory and compresses files left behind by a
// previous run for days before today
func (s *Storage) Start(now time.Time) error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}

	pattern := filepath.Join(s.outputDir, fmt.Sprintf("live_%s_*.ndjson", s.domain))
	stale, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	today := s.filename(now.UTC().Format(dayLayout))
	for _, path := range stale {
		if path == today {
			continue
		}
		if err := s.compressFile(path); err != nil {
			return fmt.Errorf("failed to compress %s: %w", path, err)
		}
	}
	return nil
}

// Stop closes the current file
func (s *Storage) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		s.day = ""
		return err
	}
	return nil
}

// Write appends r to the file of its UTC day, rotating when the day changes
func (s *Storage) Write(r Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	day := r.FetchedAt.UTC().Format(dayLayout)
	if s.file == nil || day != s.day {
		if err := s.rotate(day); err != nil {
			return err
		}
	}

	_, err = s.file.Write(append(line, '\n'))
	return err
}

// rotate closes and compresses the open file, then opens day's file
func (s *Storage) rotate(day string) error {
	if s.file != nil {
		previous := s.file.Name()
		if err := s.file.Close(); err != nil {
			return fmt.Errorf("failed to close archive file: %w", err)
		}
		s.file = nil
		if err := s.compressFile(previous); err != nil {
			return fmt.Errorf("failed to compress file: %w", err)
		}
	}

	file, err := os.OpenFile(s.filename(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	s.file = file
	s.day = day
	return nil
}

func (s *Storage) filename(day string) string {
	return filepath.Join(s.outputDir, fmt.Sprintf("live_%s_%s.ndjson", s.domain, day))
}

// compressFile gzips path into path.gz and removes the original
func (s *Storage) compressFile(path string) error {
	if strings.HasSuffix(path, ".gz") {
		return nil
	}

	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer target.Close()

	gzipWriter := gzip.NewWriter(target)
	if _, err := io.Copy(gzipWriter, source); err != nil {
		gzipWriter.Close()
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}
	if err := target.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}
