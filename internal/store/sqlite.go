// Package store provides SQLite-backed persistence for the AgentPulse engine.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/agentpulse/engine/internal/domain"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS action_records (
	id            TEXT PRIMARY KEY,
	action_type   TEXT NOT NULL,
	subject_id    TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	metadata_json TEXT NOT NULL DEFAULT '{}',
	content_hash  TEXT NOT NULL DEFAULT '',
	ledger_tx_ref TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL DEFAULT 'PENDING',
	error         TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_actions_type_subject
	ON action_records(action_type, subject_id) WHERE subject_id != '';
CREATE INDEX IF NOT EXISTS idx_actions_created ON action_records(created_at);
CREATE INDEX IF NOT EXISTS idx_actions_hash ON action_records(content_hash);

CREATE TABLE IF NOT EXISTS evaluations (
	subject_id      TEXT PRIMARY KEY,
	subject_name    TEXT NOT NULL DEFAULT '',
	objective_score REAL NOT NULL DEFAULT 0,
	model_score     REAL NOT NULL DEFAULT 0,
	final_score     REAL NOT NULL DEFAULT 0,
	innovation      INTEGER NOT NULL DEFAULT 0,
	effort          INTEGER NOT NULL DEFAULT 0,
	potential       INTEGER NOT NULL DEFAULT 0,
	ecosystem_fit   INTEGER NOT NULL DEFAULT 0,
	reasoning       TEXT NOT NULL DEFAULT '',
	decision        TEXT NOT NULL DEFAULT 'SKIP',
	state           TEXT NOT NULL DEFAULT 'evaluated',
	evaluated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS strategies (
	version          INTEGER PRIMARY KEY,
	posting_tone     TEXT NOT NULL,
	insight_focus    TEXT NOT NULL,
	min_quality      INTEGER NOT NULL,
	max_daily        INTEGER NOT NULL,
	optimal_hour     INTEGER NOT NULL,
	last_adapted_at  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS adaptation_records (
	id                TEXT PRIMARY KEY,
	from_version      INTEGER NOT NULL,
	to_version        INTEGER NOT NULL,
	changes_json      TEXT NOT NULL DEFAULT '[]',
	metrics_json      TEXT NOT NULL DEFAULT '{}',
	performance_score REAL NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_adaptations_created ON adaptation_records(created_at);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", domain.ErrStoreInit, err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate schema: %v", domain.ErrStoreInit, err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
