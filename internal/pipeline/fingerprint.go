package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText collapses whitespace runs to single spaces, trims, and
// lowercases, so republished posts fingerprint identically across sources.
func NormalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// TextHash returns the hex sha-256 of the normalized text. Empty text hashes
// too; all empty posts collide into one bucket.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}
