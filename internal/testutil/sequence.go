// Package testutil holds helpers shared by package tests and the scenario
// harness.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
)

// Sequence hands out step numbers for traces. The first call to Next
// returns 1; Reset starts over so a scenario can be replayed with the same
// numbering.
type Sequence struct {
	mu  sync.Mutex
	seq int64
}

// NewSequence returns a sequence at zero.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next advances the sequence and returns the new value.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the last value handed out.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset returns the sequence to zero.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}

// TB is the part of testing.TB the file helpers use. Keeping it local
// keeps the testing package out of binaries that link the harness.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
	TempDir() string
}

// WriteFile writes content to dir/name and returns the path. The test
// fails on error.
func WriteFile(t TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// TempDB returns a database path inside a fresh temporary directory.
func TempDB(t TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}
