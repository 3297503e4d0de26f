package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/animus/internal/decay"
	"github.com/lazypower/animus/internal/orchestrator"
	"github.com/lazypower/animus/internal/store"
)

const testSoul = `# Tyrone Slothrop

A voice out of the Zone, waiting for the rocket.

never:
- happy to assist
`

func newTestServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	soulDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(soulDir, "slothrop.soul.md"), []byte(testSoul), 0644))

	clock := decay.FixedClock{T: time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)}
	orch := orchestrator.New(db, soulDir, nil, nil, clock, nil)
	return New(db, orch, "test"), db
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, true, body["db"])
}

func TestAssembleContextEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/context", orchestrator.Request{
		PersonaSlug: "slothrop",
		UserID:      "katje",
		Query:       "tell me about the rocket",
		SessionID:   "sess-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result orchestrator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.SystemPrompt, "A voice out of the Zone")
	assert.Equal(t, "stranger", result.Metadata.TrustLevel)
}

func TestAssembleContextValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/context", map[string]string{"userId": "katje"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/context", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestCompleteSessionEndpoint(t *testing.T) {
	srv, db := newTestServer(t)

	// Register the persona first.
	doJSON(t, srv, http.MethodPost, "/api/context", orchestrator.Request{
		PersonaSlug: "slothrop", UserID: "katje", SessionID: "sess-0",
	})

	body := orchestrator.SessionData{
		// SessionID in the body is overridden by the URL parameter.
		SessionID:   "ignored",
		UserID:      "katje",
		PersonaSlug: "slothrop",
		StartedAt:   time.Date(2026, 3, 14, 1, 55, 0, 0, time.UTC),
		EndedAt:     time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC),
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/sess-9/complete", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result orchestrator.CompletionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Skipped)
	assert.Empty(t, result.Error)

	session, err := db.GetSession("sess-9")
	require.NoError(t, err)
	require.NotNil(t, session, "the URL session id wins over the body")
	assert.NotNil(t, session.CompletedAt)

	// A retry reports skipped.
	rec = doJSON(t, srv, http.MethodPost, "/api/sessions/sess-9/complete", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Skipped)
}

func TestListMemoriesEndpoint(t *testing.T) {
	srv, db := newTestServer(t)

	p := &store.Persona{Slug: "slothrop", Name: "Tyrone Slothrop", VoiceHash: "h"}
	require.NoError(t, db.UpsertPersona(p))
	require.NoError(t, db.InsertMemory(&store.Memory{
		PersonaID: p.ID, UserID: "katje", Content: "remembered", Election: store.ElectionElect,
	}))

	rec := doJSON(t, srv, http.MethodGet, "/api/memories?persona_id=1&user_id=katje", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)

	rec = doJSON(t, srv, http.MethodGet, "/api/memories?user_id=katje", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/memories?persona_id=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
