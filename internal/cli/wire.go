package cli

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/cesargomez89/tracksync/internal/app"
	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/fetcher"
	"github.com/cesargomez89/tracksync/internal/httpclient"
	"github.com/cesargomez89/tracksync/internal/logger"
	"github.com/cesargomez89/tracksync/internal/manifest"
	"github.com/cesargomez89/tracksync/internal/store"
)

// services is everything a command needs to run playlists.
type services struct {
	session *app.Session
	syncer  *app.Syncer
	db      *store.DB
}

func (s *services) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// openHistory opens the run history database, creating its directory.
func openHistory() (*store.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), constants.DirPermissions); err != nil {
		return nil, err
	}
	return store.NewSQLiteDB(cfg.HistoryDB)
}

// newServices wires the syncer. A history database that cannot be opened is
// logged and the run proceeds without it.
func newServices(log *logger.Logger) *services {
	ytdlp := fetcher.NewYTDLP(cfg.YtdlpPath, log)
	session := app.NewSession(sessionToken())

	deps := app.Deps{
		Config:    cfg,
		Session:   session,
		Fetcher:   ytdlp,
		Dumper:    ytdlp,
		HTTP:      httpclient.NewClient(&http.Client{Timeout: constants.DefaultHTTPTimeout}, constants.SpotifyMinInterval),
		Manifests: manifest.NewStore(log),
		Logger:    log,
	}

	svc := &services{session: session}
	db, err := openHistory()
	if err != nil {
		log.Warn("Run history disabled", "path", cfg.HistoryDB, "error", err)
	} else {
		if n, err := db.ResetStuckRuns(); err != nil {
			log.Warn("Failed to reset interrupted runs", "error", err)
		} else if n > 0 {
			log.Info("Marked interrupted runs as failed", "count", n)
		}
		svc.db = db
		deps.History = db
	}

	svc.syncer = app.NewSyncer(deps)
	return svc
}
