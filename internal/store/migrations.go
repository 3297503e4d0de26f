package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "personas: voice definitions and drift config",
		SQL: `
CREATE TABLE personas (
    id              INTEGER PRIMARY KEY,
    slug            TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL,
    voice_path      TEXT,
    voice_hash      TEXT NOT NULL,
    voice_version   INTEGER NOT NULL DEFAULT 1,
    drift_enabled   INTEGER NOT NULL DEFAULT 1,
    drift_threshold REAL NOT NULL DEFAULT 0.3,
    validated_at    INTEGER,
    valid           INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "relationships: per (persona,user) familiarity state",
		SQL: `
CREATE TABLE relationships (
    id                INTEGER PRIMARY KEY,
    persona_id        INTEGER NOT NULL,
    user_id           TEXT NOT NULL,
    familiarity       REAL NOT NULL DEFAULT 0.0,
    interaction_count INTEGER NOT NULL DEFAULT 0,
    summary           TEXT,
    preferences       TEXT,
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,

    UNIQUE (persona_id, user_id),
    FOREIGN KEY (persona_id) REFERENCES personas(id)
);

CREATE INDEX idx_rel_owner ON relationships(persona_id, user_id);
`,
	},
	{
		Version:     3,
		Description: "memories: elect/preterite memory rows",
		SQL: `
CREATE TABLE memories (
    id               TEXT PRIMARY KEY,
    persona_id       INTEGER NOT NULL,
    user_id          TEXT NOT NULL,
    content          TEXT NOT NULL,
    mem_type         TEXT NOT NULL CHECK (mem_type IN ('interaction', 'learning', 'insight')),
    importance       REAL NOT NULL DEFAULT 0.5,
    election         TEXT NOT NULL DEFAULT 'elect' CHECK (election IN ('elect', 'borderline', 'preterite')),
    resurface_chance REAL NOT NULL DEFAULT 0.0,
    source_session   TEXT,
    created_at       INTEGER NOT NULL,

    FOREIGN KEY (persona_id) REFERENCES personas(id)
);

CREATE INDEX idx_mem_owner      ON memories(persona_id, user_id);
CREATE INDEX idx_mem_election   ON memories(election);
CREATE INDEX idx_mem_importance ON memories(importance DESC);
`,
	},
	{
		Version:     4,
		Description: "mem_vectors: embedding vectors for semantic search",
		SQL: `
CREATE TABLE mem_vectors (
    memory_id  TEXT PRIMARY KEY,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     5,
		Description: "sessions: completion tracking + idempotency marker",
		SQL: `
CREATE TABLE sessions (
    id            INTEGER PRIMARY KEY,
    session_id    TEXT NOT NULL UNIQUE,
    persona_id    INTEGER NOT NULL,
    user_id       TEXT NOT NULL,
    started_at    INTEGER NOT NULL,
    ended_at      INTEGER,
    message_count INTEGER NOT NULL DEFAULT 0,
    completed_at  INTEGER,

    FOREIGN KEY (persona_id) REFERENCES personas(id)
);

CREATE INDEX idx_sessions_owner   ON sessions(persona_id, user_id);
CREATE INDEX idx_sessions_started ON sessions(started_at DESC);
`,
	},
	{
		Version:     6,
		Description: "user_settings: scene preferences per (persona,user)",
		SQL: `
CREATE TABLE user_settings (
    id           INTEGER PRIMARY KEY,
    persona_id   INTEGER NOT NULL,
    user_id      TEXT NOT NULL,
    venue        TEXT,
    meeting_time TEXT,
    mood         TEXT,
    extras       TEXT,
    updated_at   INTEGER NOT NULL,

    UNIQUE (persona_id, user_id),
    FOREIGN KEY (persona_id) REFERENCES personas(id)
);
`,
	},
	{
		Version:     7,
		Description: "entropy_states + temporal_states: lazy decay scalars",
		SQL: `
CREATE TABLE entropy_states (
    id         INTEGER PRIMARY KEY,
    persona_id INTEGER NOT NULL,
    user_id    TEXT NOT NULL,
    value      REAL NOT NULL DEFAULT 0.0,
    updated_at INTEGER NOT NULL,

    UNIQUE (persona_id, user_id),
    FOREIGN KEY (persona_id) REFERENCES personas(id)
);

CREATE TABLE temporal_states (
    persona_id  INTEGER PRIMARY KEY,
    user_id     TEXT NOT NULL,
    last_active INTEGER NOT NULL,

    FOREIGN KEY (persona_id) REFERENCES personas(id)
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
