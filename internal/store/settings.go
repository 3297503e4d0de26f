package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UserSettings holds scene preferences a user has expressed for a persona:
// where and when the conversation nominally takes place, and any extra
// free-form fields the extraction pass picked up.
type UserSettings struct {
	PersonaID   int64
	UserID      string
	Venue       string
	MeetingTime string
	Mood        string
	Extras      map[string]string
	UpdatedAt   int64
}

// SaveUserSettings inserts or updates the settings row for (persona,user).
// Only non-empty fields overwrite existing values, so partial saves never
// erase previously stored preferences.
func (db *DB) SaveUserSettings(s *UserSettings) error {
	existing, err := db.LoadUserSettings(s.PersonaID, s.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		if s.Venue == "" {
			s.Venue = existing.Venue
		}
		if s.MeetingTime == "" {
			s.MeetingTime = existing.MeetingTime
		}
		if s.Mood == "" {
			s.Mood = existing.Mood
		}
		if s.Extras == nil {
			s.Extras = existing.Extras
		}
	}

	extras := ""
	if len(s.Extras) > 0 {
		raw, err := json.Marshal(s.Extras)
		if err != nil {
			return fmt.Errorf("marshal extras: %w", err)
		}
		extras = string(raw)
	}

	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO user_settings (persona_id, user_id, venue, meeting_time, mood, extras, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(persona_id, user_id) DO UPDATE SET
			venue = excluded.venue,
			meeting_time = excluded.meeting_time,
			mood = excluded.mood,
			extras = excluded.extras,
			updated_at = excluded.updated_at
	`, s.PersonaID, s.UserID, s.Venue, s.MeetingTime, s.Mood, extras, now)
	if err != nil {
		return fmt.Errorf("save user settings: %w", err)
	}
	s.UpdatedAt = now
	return nil
}

// LoadUserSettings returns the settings row for (persona,user), or nil.
func (db *DB) LoadUserSettings(personaID int64, userID string) (*UserSettings, error) {
	var s UserSettings
	var venue, meetingTime, mood, extras sql.NullString
	err := db.QueryRow(`
		SELECT persona_id, user_id, venue, meeting_time, mood, extras, updated_at
		FROM user_settings WHERE persona_id = ? AND user_id = ?
	`, personaID, userID).Scan(&s.PersonaID, &s.UserID, &venue, &meetingTime, &mood, &extras, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user settings: %w", err)
	}
	s.Venue = venue.String
	s.MeetingTime = meetingTime.String
	s.Mood = mood.String
	if extras.String != "" {
		if err := json.Unmarshal([]byte(extras.String), &s.Extras); err != nil {
			return nil, fmt.Errorf("unmarshal extras: %w", err)
		}
	}
	return &s, nil
}
