// Package id generates the opaque identifiers tracks carry for the session.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TrackPrefix prefixes every track identifier.
const TrackPrefix = "trk"

// Generate creates a prefixed unique ID using NanoID, e.g. "trk-V1StGXR8_Z5jdHi6B-myT".
// It fails only when the system cannot supply secure randomness.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
