package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateClientSeed returns 128 bits of hex-encoded entropy for use as
// a player-side seed.
func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate client seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
