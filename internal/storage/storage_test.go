package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func readGzipLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	defer zr.Close()

	var lines []string
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Failed to read gzip content: %v", err)
	}
	return lines
}

func record(id int64, ts time.Time) Record {
	return Record{
		SnapshotID: id,
		FetchedAt:  ts,
		Domain:     "fg",
		Payload:    json.RawMessage(fmt.Sprintf(`{"countries":[{"domain":"fg","n":%d}]}`, id)),
	}
}

func TestNew(t *testing.T) {
	s := New("/tmp/archive", "fg")
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.outputDir != "/tmp/archive" || s.domain != "fg" {
		t.Errorf("Unexpected storage %+v", s)
	}
	if s.file != nil {
		t.Error("Expected no open file before first write")
	}
}

func TestStorage_WriteSameDay(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fg")
	day := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	if err := s.Start(day); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		if err := s.Write(record(i, day.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Write() failed: %v", err)
		}
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "live_fg_2026-04-02.ndjson"))
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}

	var r Record
	if err := json.Unmarshal([]byte(lines[1]), &r); err != nil {
		t.Fatalf("Line is not valid JSON: %v", err)
	}
	if r.SnapshotID != 2 || r.Domain != "fg" {
		t.Errorf("Unexpected record %+v", r)
	}
	if !strings.Contains(string(r.Payload), `"n":2`) {
		t.Errorf("Payload not embedded verbatim: %s", r.Payload)
	}
}

func TestStorage_RotatesAndCompressesOnDayChange(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fg")
	late := time.Date(2026, 4, 2, 23, 59, 0, 0, time.UTC)

	if err := s.Write(record(1, late)); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := s.Write(record(2, late.Add(2*time.Minute))); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	defer s.Stop()

	previous := filepath.Join(dir, "live_fg_2026-04-02.ndjson")
	if _, err := os.Stat(previous); !os.IsNotExist(err) {
		t.Error("Expected previous day file to be removed after compression")
	}

	lines := readGzipLines(t, previous+".gz")
	if len(lines) != 1 || !strings.Contains(lines[0], `"snapshot_id":1`) {
		t.Errorf("Unexpected compressed content %v", lines)
	}

	current := readLines(t, filepath.Join(dir, "live_fg_2026-04-03.ndjson"))
	if len(current) != 1 || !strings.Contains(current[0], `"snapshot_id":2`) {
		t.Errorf("Unexpected current content %v", current)
	}
}

func TestStorage_DayUsesUTC(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fg")
	defer s.Stop()

	// 00:30 in UTC+2 is still the previous UTC day
	cest := time.FixedZone("CEST", 2*3600)
	if err := s.Write(record(1, time.Date(2026, 6, 10, 0, 30, 0, 0, cest))); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "live_fg_2026-06-09.ndjson")); err != nil {
		t.Errorf("Expected file for the UTC day: %v", err)
	}
}

func TestStorage_StartCompressesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "live_fg_2026-01-01.ndjson")
	today := filepath.Join(dir, "live_fg_2026-01-05.ndjson")
	other := filepath.Join(dir, "live_le_2026-01-01.ndjson")
	for _, p := range []string{stale, today, other} {
		if err := os.WriteFile(p, []byte("{\"snapshot_id\":1}\n"), 0o644); err != nil {
			t.Fatalf("Failed to seed %s: %v", p, err)
		}
	}

	s := New(dir, "fg")
	if err := s.Start(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if _, err := os.Stat(stale + ".gz"); err != nil {
		t.Errorf("Expected stale file to be compressed: %v", err)
	}
	if _, err := os.Stat(today); err != nil {
		t.Errorf("Today's file should be left alone: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("Other domain's file should be left alone: %v", err)
	}
}

func TestStorage_StartInvalidPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(filepath.Join(blocker, "archive"), "fg")
	if err := s.Start(time.Now()); err == nil {
		t.Error("Start() should fail when the directory cannot be created")
	}
}

func TestStorage_CompressNonExistentFile(t *testing.T) {
	s := New(t.TempDir(), "fg")
	if err := s.compressFile("/nonexistent/live_fg_2026-01-01.ndjson"); err == nil {
		t.Error("compressFile() should fail for a missing file")
	}
}

func TestStorage_StopWithoutWrite(t *testing.T) {
	s := New(t.TempDir(), "fg")
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() without writes should not fail: %v", err)
	}
}

func TestStorage_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "fg")
	defer s.Stop()
	day := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := s.Write(record(int64(worker*10+j), day)); err != nil {
					t.Errorf("Write() failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	lines := readLines(t, filepath.Join(dir, "live_fg_2026-04-02.ndjson"))
	if len(lines) != 100 {
		t.Errorf("Expected 100 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Fatalf("Interleaved line: %s", line)
		}
	}
}
