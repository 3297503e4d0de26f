package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Relationship tracks familiarity between one persona and one user.
// Trust level is never stored; it is always derived from familiarity.
type Relationship struct {
	ID               int64
	PersonaID        int64
	UserID           string
	Familiarity      float64
	InteractionCount int
	Summary          string
	Preferences      string
	CreatedAt        int64
	UpdatedAt        int64
}

// GetRelationship returns the relationship row for (persona,user), or nil.
func (db *DB) GetRelationship(personaID int64, userID string) (*Relationship, error) {
	var r Relationship
	var summary, prefs sql.NullString
	err := db.QueryRow(`
		SELECT id, persona_id, user_id, familiarity, interaction_count, summary, preferences, created_at, updated_at
		FROM relationships WHERE persona_id = ? AND user_id = ?
	`, personaID, userID).Scan(&r.ID, &r.PersonaID, &r.UserID, &r.Familiarity,
		&r.InteractionCount, &summary, &prefs, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship: %w", err)
	}
	r.Summary = summary.String
	r.Preferences = prefs.String
	return &r, nil
}

// CreateRelationship inserts a fresh stranger-level relationship.
func (db *DB) CreateRelationship(personaID int64, userID string) (*Relationship, error) {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO relationships (persona_id, user_id, familiarity, interaction_count, created_at, updated_at)
		VALUES (?, ?, 0.0, 0, ?, ?)
	`, personaID, userID, now, now)
	if err != nil {
		return nil, fmt.Errorf("create relationship: %w", err)
	}
	id, _ := result.LastInsertId()
	return &Relationship{
		ID:        id,
		PersonaID: personaID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateRelationship persists familiarity, interaction count, and summary text.
func (db *DB) UpdateRelationship(r *Relationship) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE relationships
		SET familiarity = ?, interaction_count = ?, summary = ?, preferences = ?, updated_at = ?
		WHERE id = ?
	`, r.Familiarity, r.InteractionCount, r.Summary, r.Preferences, now, r.ID)
	if err != nil {
		return fmt.Errorf("update relationship: %w", err)
	}
	r.UpdatedAt = now
	return nil
}
