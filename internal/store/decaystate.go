package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EntropyState is the persisted instability scalar for a (persona,user) pair.
// Decay is computed lazily at read time from updated_at; the stored value is
// the value as of that timestamp.
type EntropyState struct {
	PersonaID int64
	UserID    string
	Value     float64
	UpdatedAt int64
}

// GetEntropy returns the entropy state for (persona,user), or nil.
func (db *DB) GetEntropy(personaID int64, userID string) (*EntropyState, error) {
	var e EntropyState
	err := db.QueryRow(`
		SELECT persona_id, user_id, value, updated_at
		FROM entropy_states WHERE persona_id = ? AND user_id = ?
	`, personaID, userID).Scan(&e.PersonaID, &e.UserID, &e.Value, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entropy: %w", err)
	}
	return &e, nil
}

// SaveEntropy stores the entropy value with the given observation time.
func (db *DB) SaveEntropy(personaID int64, userID string, value float64, at int64) error {
	if at == 0 {
		at = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO entropy_states (persona_id, user_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(persona_id, user_id) DO UPDATE SET value = ?, updated_at = ?
	`, personaID, userID, value, at, value, at)
	if err != nil {
		return fmt.Errorf("save entropy: %w", err)
	}
	return nil
}

// GetLastActive returns the last-active timestamp for a persona, or nil when
// the persona has never been touched.
func (db *DB) GetLastActive(personaID int64) (*int64, error) {
	var last int64
	err := db.QueryRow(
		"SELECT last_active FROM temporal_states WHERE persona_id = ?", personaID,
	).Scan(&last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last active: %w", err)
	}
	return &last, nil
}

// TouchLastActive records the persona's last contact time.
func (db *DB) TouchLastActive(personaID int64, userID string, at int64) error {
	if at == 0 {
		at = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO temporal_states (persona_id, user_id, last_active)
		VALUES (?, ?, ?)
		ON CONFLICT(persona_id) DO UPDATE SET user_id = ?, last_active = ?
	`, personaID, userID, at, userID, at)
	if err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}
	return nil
}
