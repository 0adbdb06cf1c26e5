// Package manifest persists the per-folder record of fetched tracks.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/logger"
	"github.com/cesargomez89/tracksync/internal/storage"
)

// Store reads and writes manifests. Writes to one folder are serialized;
// different folders do not block each other.
type Store struct {
	logger *logger.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(log *logger.Logger) *Store {
	if log == nil {
		log = logger.Default()
	}
	return &Store{
		logger: log.WithComponent("manifest"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Path returns the manifest location inside folder.
func Path(folder string) string {
	return filepath.Join(folder, constants.ManifestFile)
}

func (s *Store) lock(folder string) func() {
	key := filepath.Clean(folder)
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Load returns the manifest for folder. A missing file yields an empty
// manifest; an unreadable one yields an empty manifest and a warning.
func (s *Store) Load(folder string) *domain.Manifest {
	unlock := s.lock(folder)
	defer unlock()
	return s.load(folder)
}

func (s *Store) load(folder string) *domain.Manifest {
	m, err := read(Path(folder))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Ignoring unreadable manifest", "folder", folder, "error", err)
		}
		return domain.NewManifest()
	}
	return m
}

func read(path string) (*domain.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := domain.NewManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrManifestCorrupt, err)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]domain.ManifestEntry)
	}

	// Re-key by identity so duplicate filenames from an older file collapse.
	clean := domain.NewManifest()
	clean.UpdatedAt = m.UpdatedAt
	for _, e := range m.Sorted() {
		clean.Put(e)
	}
	return clean, nil
}

// Record adds or replaces the entry for track and persists the manifest
// before returning. The folder is created if needed.
func (s *Store) Record(folder string, track domain.Track, filename string) error {
	unlock := s.lock(folder)
	defer unlock()

	m := s.load(folder)
	m.Put(domain.NewManifestEntry(track, filename, s.now()))
	if err := s.save(folder, m); err != nil {
		return fmt.Errorf("failed to record %q: %w", filename, err)
	}
	return nil
}

// Entries returns the stored entries ordered by order index.
func (s *Store) Entries(folder string) []domain.ManifestEntry {
	return s.Load(folder).Sorted()
}

// ReconcileWithFolder drops entries whose file is gone and persists the
// result when anything changed. It returns the pruned manifest.
func (s *Store) ReconcileWithFolder(folder string) (*domain.Manifest, error) {
	unlock := s.lock(folder)
	defer unlock()

	m := s.load(folder)
	var dropped []string
	for id, e := range m.Entries {
		if !storage.FileNonEmpty(filepath.Join(folder, e.Filename)) {
			delete(m.Entries, id)
			dropped = append(dropped, e.Filename)
		}
	}

	if len(dropped) == 0 {
		return m, nil
	}

	s.logger.Info("Dropped manifest entries for missing files", "folder", folder, "count", len(dropped))
	s.logger.Debug("Missing files", "files", dropped)
	if err := s.save(folder, m); err != nil {
		return m, err
	}
	return m, nil
}

func (s *Store) save(folder string, m *domain.Manifest) error {
	if err := storage.EnsureDir(folder); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	m.Version = constants.ManifestVersion
	m.UpdatedAt = s.now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return storage.WriteFileAtomic(Path(folder), data)
}
