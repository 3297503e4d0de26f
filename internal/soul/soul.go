// Package soul loads persona voice definitions, verifies their integrity, and
// derives the markers drift analysis scores against. Soul files are
// read-only: an external authoring process writes them, the engine only reads
// and records validation results.
package soul

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrIntegrity is returned when a soul file's content hash does not match the
// hash recorded for the persona. This is the one fail-closed condition in the
// engine: it signals tampering, not unavailability.
var ErrIntegrity = errors.New("soul integrity check failed")

// Soul is a loaded persona voice definition.
type Soul struct {
	Slug    string
	Path    string
	Content string
	Hash    string
	Markers Markers
}

// Load reads <slug>.soul.md from dir, hashes it, and extracts markers.
func Load(dir, slug string) (*Soul, error) {
	path := filepath.Join(dir, slug+".soul.md")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read soul %s: %w", slug, err)
	}

	content := string(raw)
	return &Soul{
		Slug:    slug,
		Path:    path,
		Content: content,
		Hash:    HashContent(content),
		Markers: ExtractMarkers(content),
	}, nil
}

// HashContent returns the hex sha-256 of soul content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Verify compares the soul's computed hash to an expected hash.
// Empty expected hashes fail closed.
func (s *Soul) Verify(expected string) error {
	if expected == "" || !strings.EqualFold(s.Hash, expected) {
		return fmt.Errorf("%w: persona %s", ErrIntegrity, s.Slug)
	}
	return nil
}
