package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session tracks one conversation between a persona and a user.
// completed_at doubles as the idempotency marker for session completion.
type Session struct {
	ID           int64
	SessionID    string
	PersonaID    int64
	UserID       string
	StartedAt    int64
	EndedAt      *int64
	MessageCount int
	CompletedAt  *int64
}

// EnsureSession creates the session row if it does not exist yet and returns it.
func (db *DB) EnsureSession(sessionID string, personaID int64, userID string, startedAt int64) (*Session, error) {
	existing, err := db.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if startedAt == 0 {
		startedAt = time.Now().UnixMilli()
	}
	result, err := db.Exec(`
		INSERT INTO sessions (session_id, persona_id, user_id, started_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, personaID, userID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, _ := result.LastInsertId()
	return &Session{
		ID:        id,
		SessionID: sessionID,
		PersonaID: personaID,
		UserID:    userID,
		StartedAt: startedAt,
	}, nil
}

// GetSession returns a session by its session_id, or nil if not found.
func (db *DB) GetSession(sessionID string) (*Session, error) {
	var s Session
	err := db.QueryRow(`
		SELECT id, session_id, persona_id, user_id, started_at, ended_at, message_count, completed_at
		FROM sessions WHERE session_id = ?
	`, sessionID).Scan(&s.ID, &s.SessionID, &s.PersonaID, &s.UserID,
		&s.StartedAt, &s.EndedAt, &s.MessageCount, &s.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// MarkCompleted sets the completion marker for a session, recording end time
// and message count. Returns false without mutation when the marker is already
// set, which is how retried completions are detected.
func (db *DB) MarkCompleted(sessionID string, endedAt int64, messageCount int) (bool, error) {
	now := time.Now().UnixMilli()
	if endedAt == 0 {
		endedAt = now
	}
	result, err := db.Exec(`
		UPDATE sessions
		SET completed_at = ?, ended_at = ?, message_count = ?
		WHERE session_id = ? AND completed_at IS NULL
	`, now, endedAt, messageCount, sessionID)
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// GetRecentSessions returns the most recent sessions for a (persona,user) pair.
func (db *DB) GetRecentSessions(personaID int64, userID string, limit int) ([]Session, error) {
	rows, err := db.Query(`
		SELECT id, session_id, persona_id, user_id, started_at, ended_at, message_count, completed_at
		FROM sessions WHERE persona_id = ? AND user_id = ?
		ORDER BY started_at DESC LIMIT ?
	`, personaID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.SessionID, &s.PersonaID, &s.UserID,
			&s.StartedAt, &s.EndedAt, &s.MessageCount, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
