package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Memory election classes. Elect memories stay fully retrievable; preterite
// memories are degraded in place and only rarely resurface.
const (
	ElectionElect      = "elect"
	ElectionBorderline = "borderline"
	ElectionPreterite  = "preterite"
)

// Memory types.
const (
	TypeInteraction = "interaction"
	TypeLearning    = "learning"
	TypeInsight     = "insight"
)

// Memory is one stored memory for a (persona,user) pair.
type Memory struct {
	ID              string
	PersonaID       int64
	UserID          string
	Content         string
	MemType         string
	Importance      float64
	Election        string
	ResurfaceChance float64
	SourceSession   string
	CreatedAt       int64
}

// InsertMemory stores a memory row. Generates a UUID id when unset.
func (db *DB) InsertMemory(m *Memory) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MemType == "" {
		m.MemType = TypeInteraction
	}
	if m.Election == "" {
		m.Election = ElectionElect
	}
	now := time.Now().UnixMilli()
	if m.CreatedAt == 0 {
		m.CreatedAt = now
	}

	_, err := db.Exec(`
		INSERT INTO memories (id, persona_id, user_id, content, mem_type, importance, election, resurface_chance, source_session, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.PersonaID, m.UserID, m.Content, m.MemType, m.Importance,
		m.Election, m.ResurfaceChance, m.SourceSession, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// GetMemory returns one memory by id, or nil if not found.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow(`
		SELECT id, persona_id, user_id, content, mem_type, importance, election, resurface_chance, source_session, created_at
		FROM memories WHERE id = ?
	`, id)
	var m Memory
	var source sql.NullString
	err := row.Scan(&m.ID, &m.PersonaID, &m.UserID, &m.Content, &m.MemType,
		&m.Importance, &m.Election, &m.ResurfaceChance, &source, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	m.SourceSession = source.String
	return &m, nil
}

// ListMemories returns all memories for a (persona,user) pair, newest first.
// Election filter is optional; empty string returns every class.
func (db *DB) ListMemories(personaID int64, userID, election string) ([]Memory, error) {
	query := `
		SELECT id, persona_id, user_id, content, mem_type, importance, election, resurface_chance, source_session, created_at
		FROM memories WHERE persona_id = ? AND user_id = ?`
	args := []any{personaID, userID}
	if election != "" {
		query += " AND election = ?"
		args = append(args, election)
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// MemoriesByIDs returns memories for the given ids.
func (db *DB) MemoriesByIDs(ids []string) ([]Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	rows, err := db.Query(fmt.Sprintf(`
		SELECT id, persona_id, user_id, content, mem_type, importance, election, resurface_chance, source_session, created_at
		FROM memories WHERE id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("memories by ids: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ConsignMemory degrades a memory to preterite: the content is replaced with
// its redacted form and a small resurface chance is recorded. Irreversible.
func (db *DB) ConsignMemory(id, degraded string, resurfaceChance float64) error {
	_, err := db.Exec(`
		UPDATE memories SET content = ?, election = ?, resurface_chance = ? WHERE id = ?
	`, degraded, ElectionPreterite, resurfaceChance, id)
	if err != nil {
		return fmt.Errorf("consign memory %s: %w", id, err)
	}
	return nil
}

// CountMemories returns the number of memories for a (persona,user) pair.
func (db *DB) CountMemories(personaID int64, userID string) (int, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM memories WHERE persona_id = ? AND user_id = ?",
		personaID, userID,
	).Scan(&count)
	return count, err
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		var m Memory
		var source sql.NullString
		if err := rows.Scan(&m.ID, &m.PersonaID, &m.UserID, &m.Content, &m.MemType,
			&m.Importance, &m.Election, &m.ResurfaceChance, &source, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.SourceSession = source.String
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
