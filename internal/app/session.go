package app

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/cesargomez89/tracksync/internal/domain"
)

// Session is the process-scoped state shared by every run: the in-memory
// Spotify token and the registry of folders with an active run.
type Session struct {
	mu    sync.RWMutex
	token string

	runsMu sync.Mutex
	active map[string]string
}

func NewSession(token string) *Session {
	return &Session{
		token:  strings.TrimSpace(token),
		active: make(map[string]string),
	}
}

// Token implements source.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

// Acquire claims folder for runID. It fails with domain.ErrRunActive while
// another run holds the folder. The returned func releases the claim and is
// safe to call more than once.
func (s *Session) Acquire(folder, runID string) (func(), error) {
	key := folderKey(folder)

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	if _, busy := s.active[key]; busy {
		return nil, domain.ErrRunActive
	}
	s.active[key] = runID

	var once sync.Once
	return func() {
		once.Do(func() {
			s.runsMu.Lock()
			defer s.runsMu.Unlock()
			if s.active[key] == runID {
				delete(s.active, key)
			}
		})
	}, nil
}

// ActiveRun returns the id of the run holding folder, if any.
func (s *Session) ActiveRun(folder string) (string, bool) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	id, ok := s.active[folderKey(folder)]
	return id, ok
}

func folderKey(folder string) string {
	if abs, err := filepath.Abs(folder); err == nil {
		return abs
	}
	return filepath.Clean(folder)
}
