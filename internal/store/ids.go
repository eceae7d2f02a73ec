// Package store provides persistence operations for the duty engine.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateID creates a unique entity ID with the given prefix in
// prefix-xxxxx format (5-char hex).
func GenerateID(prefix string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("store: generate ID: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b)[:5], nil
}

// NewShiftID creates a shift ID (shf-xxxxx).
func NewShiftID() (string, error) { return GenerateID("shf") }

// NewConflictID creates a conflict ID (cfl-xxxxx).
func NewConflictID() (string, error) { return GenerateID("cfl") }
