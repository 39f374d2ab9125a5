package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const GUIDLength = 64

// NewGUID returns a 64 hex character identifier from crypto/rand. It is
// content-independent: editing a card never changes its GUID.
func NewGUID() (string, error) {
	buf := make([]byte, GUIDLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate guid: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsValidGUID reports whether s is a well-formed card GUID.
func IsValidGUID(s string) bool {
	if len(s) != GUIDLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
