package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Persona is the stored record for a configured conversational identity.
// Voice content itself lives on disk (see internal/soul); the row keeps the
// integrity hash, drift configuration, and the last validation result.
type Persona struct {
	ID             int64
	Slug           string
	Name           string
	VoicePath      string
	VoiceHash      string
	VoiceVersion   int
	DriftEnabled   bool
	DriftThreshold float64
	ValidatedAt    *int64
	Valid          bool
	CreatedAt      int64
	UpdatedAt      int64
}

// UpsertPersona inserts or updates a persona row keyed by slug.
func (db *DB) UpsertPersona(p *Persona) error {
	now := time.Now().UnixMilli()
	driftEnabled := 0
	if p.DriftEnabled {
		driftEnabled = 1
	}
	threshold := p.DriftThreshold
	if threshold <= 0 {
		threshold = 0.3
	}
	version := p.VoiceVersion
	if version <= 0 {
		version = 1
	}

	_, err := db.Exec(`
		INSERT INTO personas (slug, name, voice_path, voice_hash, voice_version, drift_enabled, drift_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			voice_path = excluded.voice_path,
			voice_hash = excluded.voice_hash,
			voice_version = excluded.voice_version,
			drift_enabled = excluded.drift_enabled,
			drift_threshold = excluded.drift_threshold,
			updated_at = excluded.updated_at
	`, p.Slug, p.Name, p.VoicePath, p.VoiceHash, version, driftEnabled, threshold, now, now)
	if err != nil {
		return fmt.Errorf("upsert persona %s: %w", p.Slug, err)
	}

	stored, err := db.GetPersonaBySlug(p.Slug)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

// GetPersonaBySlug returns a persona by slug, or nil if not found.
func (db *DB) GetPersonaBySlug(slug string) (*Persona, error) {
	return db.scanPersona(db.QueryRow(`
		SELECT id, slug, name, voice_path, voice_hash, voice_version, drift_enabled, drift_threshold, validated_at, valid, created_at, updated_at
		FROM personas WHERE slug = ?
	`, slug))
}

// GetPersonaByID returns a persona by id, or nil if not found.
func (db *DB) GetPersonaByID(id int64) (*Persona, error) {
	return db.scanPersona(db.QueryRow(`
		SELECT id, slug, name, voice_path, voice_hash, voice_version, drift_enabled, drift_threshold, validated_at, valid, created_at, updated_at
		FROM personas WHERE id = ?
	`, id))
}

func (db *DB) scanPersona(row *sql.Row) (*Persona, error) {
	var p Persona
	var driftEnabled, valid int
	var validatedAt sql.NullInt64
	var voicePath sql.NullString
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &voicePath, &p.VoiceHash, &p.VoiceVersion,
		&driftEnabled, &p.DriftThreshold, &validatedAt, &valid, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan persona: %w", err)
	}
	p.VoicePath = voicePath.String
	p.DriftEnabled = driftEnabled != 0
	p.Valid = valid != 0
	if validatedAt.Valid {
		p.ValidatedAt = &validatedAt.Int64
	}
	return &p, nil
}

// RecordValidation stores the outcome of an integrity check on the persona row.
func (db *DB) RecordValidation(slug string, valid bool) error {
	now := time.Now().UnixMilli()
	v := 0
	if valid {
		v = 1
	}
	_, err := db.Exec(`
		UPDATE personas SET valid = ?, validated_at = ?, updated_at = ? WHERE slug = ?
	`, v, now, now, slug)
	if err != nil {
		return fmt.Errorf("record validation %s: %w", slug, err)
	}
	return nil
}
