package app

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cesargomez89/tracksync/internal/domain"
)

func TestSession_Token(t *testing.T) {
	s := NewSession("  abc  ")
	if s.Token() != "abc" {
		t.Errorf("Token() = %q", s.Token())
	}
	s.SetToken("def")
	if s.Token() != "def" {
		t.Errorf("Token() = %q after SetToken", s.Token())
	}
}

func TestSession_AcquireSingleFlight(t *testing.T) {
	s := NewSession("")
	dir := t.TempDir()

	release, err := s.Acquire(dir, "run-1")
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	// The same folder spelled differently is still the same folder.
	if _, err := s.Acquire(filepath.Join(dir, "sub", ".."), "run-2"); !errors.Is(err, domain.ErrRunActive) {
		t.Fatalf("Expected ErrRunActive, got %v", err)
	}
	if id, ok := s.ActiveRun(dir); !ok || id != "run-1" {
		t.Errorf("ActiveRun = %q, %v", id, ok)
	}

	// Other folders are independent.
	other, err := s.Acquire(filepath.Join(dir, "other"), "run-3")
	if err != nil {
		t.Fatalf("Acquire for another folder failed: %v", err)
	}
	other()

	release()
	release()
	if _, ok := s.ActiveRun(dir); ok {
		t.Error("folder should be free after release")
	}
	if _, err := s.Acquire(dir, "run-4"); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestSession_AcquireConcurrent(t *testing.T) {
	s := NewSession("")
	dir := t.TempDir()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Acquire(dir, "run"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Expected exactly one winner, got %d", wins)
	}
}
