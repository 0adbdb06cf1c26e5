// Package reconcile decides which source tracks still need fetching.
package reconcile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/manifest"
	"github.com/cesargomez89/tracksync/internal/normalize"
	"github.com/cesargomez89/tracksync/internal/storage"
)

// Rule names the check that found a track already present.
type Rule int

const (
	RuleNone Rule = iota
	RuleURI
	RuleTitleArtist
	RuleFilename
)

func (r Rule) String() string {
	switch r {
	case RuleURI:
		return "uri"
	case RuleTitleArtist:
		return "title+artist"
	case RuleFilename:
		return "filename"
	}
	return "none"
}

// Skip is a track found already present.
type Skip struct {
	Track    domain.Track `json:"track"`
	Rule     Rule         `json:"-"`
	RuleName string       `json:"rule"`
	Filename string       `json:"filename"`
}

// Result is the outcome of a plan. Both lists keep source order.
type Result struct {
	Pending  []domain.Track   `json:"pending"`
	Skipped  []Skip           `json:"skipped"`
	Manifest *domain.Manifest `json:"-"`
}

// Reconciler plans against a folder using the manifest store.
type Reconciler struct {
	manifests *manifest.Store
}

func New(manifests *manifest.Store) *Reconciler {
	return &Reconciler{manifests: manifests}
}

// Plan prunes stale manifest entries, scans folder and splits tracks into
// pending and skipped.
func (r *Reconciler) Plan(tracks []domain.Track, folder string) (*Result, error) {
	m, err := r.manifests.ReconcileWithFolder(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile manifest: %w", err)
	}

	files, err := storage.ListAudioFiles(folder)
	if err != nil {
		return nil, err
	}

	res := Compute(tracks, m, files)
	res.Manifest = m
	return res, nil
}

// Compute applies the three presence rules in priority order: URI match,
// normalized title/artist match, then filename match. files must be in
// folder-scan order; the first matching file wins.
func Compute(tracks []domain.Track, m *domain.Manifest, files []string) *Result {
	idx := newIndex(m, files)

	res := &Result{}
	for _, t := range tracks {
		rule, filename := idx.match(t)
		if rule == RuleNone {
			res.Pending = append(res.Pending, t)
			continue
		}
		res.Skipped = append(res.Skipped, Skip{Track: t, Rule: rule, RuleName: rule.String(), Filename: filename})
	}
	return res
}

type index struct {
	byURI  map[string]string
	byKey  map[string]string
	byFile map[string]string
}

func newIndex(m *domain.Manifest, files []string) *index {
	idx := &index{
		byURI:  make(map[string]string),
		byKey:  make(map[string]string),
		byFile: make(map[string]string),
	}

	if m != nil {
		for _, e := range m.Sorted() {
			if e.URI != "" {
				addFirst(idx.byURI, e.URI, e.Filename)
			}
			addFirst(idx.byKey, e.NormalizedTitleArtist, e.Filename)
		}
	}

	for _, f := range files {
		raw := strings.TrimSuffix(f, filepath.Ext(f))
		addFirst(idx.byFile, normalize.FilenameKey(f), f)
		addFirst(idx.byFile, normalize.Key(raw, ""), f)
	}
	return idx
}

func addFirst(m map[string]string, k, v string) {
	if _, ok := m[k]; !ok {
		m[k] = v
	}
}

func (idx *index) match(t domain.Track) (Rule, string) {
	if t.URI != "" {
		if f, ok := idx.byURI[t.URI]; ok {
			return RuleURI, f
		}
	}
	if f, ok := idx.byKey[t.Key()]; ok {
		return RuleTitleArtist, f
	}
	// A file named "Title - Artist" normalizes to the title/artist key, so
	// both forms are checked.
	for _, k := range []string{normalize.Key(t.Title, ""), t.Key()} {
		if f, ok := idx.byFile[k]; ok {
			return RuleFilename, f
		}
	}
	return RuleNone, ""
}
