package setting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/animus/internal/store"
)

func TestCompileDefaults(t *testing.T) {
	got := Compile(nil)
	assert.Contains(t, got, DefaultVenue)
	assert.Contains(t, got, DefaultTime)

	// Unset fields fall back individually.
	got = Compile(&store.UserSettings{Venue: "the casino"})
	assert.Contains(t, got, "the casino")
	assert.Contains(t, got, DefaultTime)
	assert.NotContains(t, got, DefaultVenue)
}

func TestCompileFull(t *testing.T) {
	s := &store.UserSettings{
		Venue:       "the observatory",
		MeetingTime: "11PM",
		Mood:        "paranoid",
		Extras:      map[string]string{"weather": "rain"},
	}
	got := Compile(s)
	assert.Contains(t, got, "the observatory")
	assert.Contains(t, got, "11PM")
	assert.Contains(t, got, "paranoid")
	assert.Contains(t, got, "weather: rain")
}

func TestExtractFromMessages(t *testing.T) {
	contents := []string{
		"see you at the observatory",
		"let's say at 11pm then",
		"feeling kind of paranoid today",
	}
	got := ExtractFromMessages(contents)
	require.NotNil(t, got)
	assert.Equal(t, "observatory", got.Venue)
	assert.Equal(t, "11PM", got.MeetingTime)
	assert.Equal(t, "paranoid", got.Mood)
}

func TestExtractFromMessagesNothingFound(t *testing.T) {
	assert.Nil(t, ExtractFromMessages([]string{"nothing about place or hour here"}))
	assert.Nil(t, ExtractFromMessages(nil))
}

func TestExtractLatestWins(t *testing.T) {
	contents := []string{
		"meet me at the canteen",
		"actually, meet me at the observatory",
	}
	got := ExtractFromMessages(contents)
	require.NotNil(t, got)
	assert.Equal(t, "observatory", got.Venue)
}
