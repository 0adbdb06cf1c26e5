package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/logger"
)

func newTestStore() *Store {
	return NewStore(logger.Discard())
}

func touch(t *testing.T, folder, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(folder, name), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Missing(t *testing.T) {
	m := newTestStore().Load(filepath.Join(t.TempDir(), "nope"))
	if m == nil || len(m.Entries) != 0 {
		t.Fatalf("Expected empty manifest, got %+v", m)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := newTestStore().Load(dir)
	if len(m.Entries) != 0 {
		t.Errorf("Corrupt manifest should load as empty, got %d entries", len(m.Entries))
	}
}

func TestLoad_IgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	raw := `{"version":1,"future":true,"entries":{"spotify:track:1":{"uri":"spotify:track:1","normalized_title_artist":"a b","filename":"A - B.mp3","order_index":0,"extra":"x"}}}`
	if err := os.WriteFile(Path(dir), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	m := newTestStore().Load(dir)
	if len(m.Entries) != 1 || m.Entries["spotify:track:1"].Filename != "A - B.mp3" {
		t.Errorf("unexpected manifest: %+v", m.Entries)
	}
}

func TestRecord_PersistsAndReloads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Playlist")
	s := newTestStore()

	a := domain.Track{URI: "u1", Title: "A", PrimaryArtist: "X", OrderIndex: 0}
	b := domain.Track{Title: "B", PrimaryArtist: "Y", OrderIndex: 1}
	if err := s.Record(dir, b, "002 - B - Y.mp3"); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(dir, a, "001 - A - X.mp3"); err != nil {
		t.Fatal(err)
	}

	entries := newTestStore().Entries(dir)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].URI != "u1" || entries[1].NormalizedTitleArtist != "b y" {
		t.Errorf("unexpected order or content: %+v", entries)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".tracksync-*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestRecord_ReplacesSameIdentity(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()
	tr := domain.Track{URI: "u1", Title: "Old", PrimaryArtist: "X"}

	_ = s.Record(dir, tr, "Old - X.mp3")
	tr.Title = "New"
	_ = s.Record(dir, tr, "New - X.mp3")

	entries := s.Entries(dir)
	if len(entries) != 1 || entries[0].Filename != "New - X.mp3" {
		t.Errorf("Expected single updated entry, got %+v", entries)
	}
}

func TestRecord_NoDuplicateFilenames(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()

	_ = s.Record(dir, domain.Track{URI: "u1", Title: "Song", PrimaryArtist: "A"}, "Song - A.mp3")
	_ = s.Record(dir, domain.Track{URI: "u2", Title: "Song", PrimaryArtist: "A"}, "Song - A.mp3")

	entries := s.Entries(dir)
	if len(entries) != 1 || entries[0].URI != "u2" {
		t.Errorf("Expected the newer entry to own the filename, got %+v", entries)
	}
}

func TestRecord_Concurrent(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr := domain.Track{URI: fmt.Sprintf("u%d", i), Title: fmt.Sprintf("T%d", i), PrimaryArtist: "A", OrderIndex: i}
			if err := s.Record(dir, tr, fmt.Sprintf("T%d - A.mp3", i)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(s.Entries(dir)); got != 20 {
		t.Errorf("Expected 20 entries after concurrent writes, got %d", got)
	}
}

func TestReconcileWithFolder(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()

	touch(t, dir, "001 - A - X.mp3")
	touch(t, dir, "002 - B - Y.mp3")
	_ = s.Record(dir, domain.Track{URI: "u1", Title: "A", PrimaryArtist: "X"}, "001 - A - X.mp3")
	_ = s.Record(dir, domain.Track{URI: "u2", Title: "B", PrimaryArtist: "Y", OrderIndex: 1}, "002 - B - Y.mp3")

	if err := os.Remove(filepath.Join(dir, "002 - B - Y.mp3")); err != nil {
		t.Fatal(err)
	}

	m, err := s.ReconcileWithFolder(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Entries) != 1 {
		t.Fatalf("Expected 1 entry after reconcile, got %d", len(m.Entries))
	}
	if _, ok := m.Entries["u2"]; ok {
		t.Error("entry for deleted file should be dropped")
	}

	if got := len(newTestStore().Entries(dir)); got != 1 {
		t.Errorf("pruned manifest should be persisted, got %d entries", got)
	}
}
