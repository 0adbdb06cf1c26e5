package store

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	source_kind TEXT NOT NULL,
	playlist TEXT NOT NULL,
	folder TEXT NOT NULL,
	status TEXT NOT NULL,
	total INTEGER DEFAULT 0,
	succeeded INTEGER DEFAULT 0,
	failed INTEGER DEFAULT 0,
	skipped INTEGER DEFAULT 0,
	cancelled INTEGER DEFAULT 0,
	error TEXT DEFAULT '',
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_folder ON runs(folder);

CREATE TABLE IF NOT EXISTS run_tracks (
	run_id TEXT NOT NULL,
	order_index INTEGER NOT NULL,
	uri TEXT DEFAULT '',
	title TEXT NOT NULL,
	primary_artist TEXT NOT NULL,
	artists TEXT,  -- JSON array
	album TEXT DEFAULT '',
	duration_ms INTEGER DEFAULT 0,
	source_url TEXT DEFAULT '',
	status TEXT NOT NULL,
	filename TEXT DEFAULT '',
	error TEXT DEFAULT '',
	attempts INTEGER DEFAULT 0,

	PRIMARY KEY (run_id, order_index),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`
