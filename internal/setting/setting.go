// Package setting compiles the scene component of a context: where and when
// the conversation nominally takes place, from stored user preferences with
// documented defaults for anything unset.
package setting

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lazypower/animus/internal/store"
)

// Defaults for unset fields.
const (
	DefaultVenue = "the White Visitation canteen"
	DefaultTime  = "2 AM"
)

// Compile renders the setting paragraph from stored settings. A nil settings
// row compiles entirely from defaults.
func Compile(s *store.UserSettings) string {
	venue := DefaultVenue
	meetingTime := DefaultTime
	mood := ""
	if s != nil {
		if s.Venue != "" {
			venue = s.Venue
		}
		if s.MeetingTime != "" {
			meetingTime = s.MeetingTime
		}
		mood = s.Mood
	}

	text := fmt.Sprintf("[Setting: %s, around %s.", venue, meetingTime)
	if mood != "" {
		text += " The mood runs " + mood + "."
	}
	if s != nil {
		for k, v := range s.Extras {
			text += fmt.Sprintf(" %s: %s.", k, v)
		}
	}
	return text + "]"
}

var (
	venueRe = regexp.MustCompile(`(?i)\b(?:meet(?: me| you)?|let'?s meet|see you) at (?:the )?([a-z][a-z' ]{2,40})`)
	timeRe  = regexp.MustCompile(`(?i)\bat (\d{1,2}(?::\d{2})? ?(?:am|pm))\b`)
	moodRe  = regexp.MustCompile(`(?i)\bfeeling (?:kind of |a bit |pretty )?([a-z]{3,20})\b`)
)

// ExtractFromMessages scans user turns for scene preferences. Returns nil
// when nothing was found.
func ExtractFromMessages(contents []string) *store.UserSettings {
	var s store.UserSettings
	found := false

	for _, text := range contents {
		if m := venueRe.FindStringSubmatch(text); m != nil {
			s.Venue = strings.TrimSpace(m[1])
			found = true
		}
		if m := timeRe.FindStringSubmatch(text); m != nil {
			s.MeetingTime = strings.ToUpper(m[1])
			found = true
		}
		if m := moodRe.FindStringSubmatch(text); m != nil {
			s.Mood = strings.ToLower(m[1])
			found = true
		}
	}

	if !found {
		return nil
	}
	return &s
}
