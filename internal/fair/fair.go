// Package fair implements the provably-fair primitives: seed
// commitments, auditable game hashes, and deterministic outcome
// derivation. Everything here is reproducible client-side so a player
// can verify a resolved round without trusting the authority's claims.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"casino-client/internal/models"
)

// Commitment returns the SHA-256 hex digest of the server seed alone.
// The authority publishes it before any bet is placed.
func Commitment(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// GameHash returns the SHA-256 hex digest over clientSeed + serverSeed,
// the auditable hash shown to the player for a resolved round.
func GameHash(clientSeed, serverSeed string) string {
	sum := sha256.Sum256([]byte(clientSeed + serverSeed))
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment recomputes the commitment of the revealed seed and
// compares it to the hash published before the round. A mismatch is a
// fairness violation, not a loss.
func VerifyCommitment(serverSeed, publishedHash string) bool {
	computed := Commitment(serverSeed)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(publishedHash)) == 1
}

// GenerateServerSeed returns 256 bits of hex-encoded entropy. Used by
// the authority side; the client only ever sees the commitment until
// the session ends.
func GenerateServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// derive computes HMAC-SHA256(serverSeed, "<game>:<clientSeed>:<nonce>")
// and folds the first eight bytes into a uint64.
func derive(game, serverSeed, clientSeed string, nonce int64) uint64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(h, "%s:%s:%d", game, clientSeed, nonce)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// Roll derives the dice roll, an integer in [0, 99].
func Roll(serverSeed, clientSeed string, nonce int64) int {
	return int(derive("dice", serverSeed, clientSeed, nonce) % 100)
}

// Flip derives the coinflip outcome.
func Flip(serverSeed, clientSeed string, nonce int64) models.CoinSide {
	if derive("coinflip", serverSeed, clientSeed, nonce)%2 == 0 {
		return models.CoinHeads
	}
	return models.CoinTails
}

// VerifyRoll reproduces a recorded dice roll from the revealed seeds.
func VerifyRoll(serverSeed, clientSeed string, nonce int64, roll int) bool {
	return Roll(serverSeed, clientSeed, nonce) == roll
}

// VerifyFlip reproduces a recorded coinflip outcome from the revealed
// seeds.
func VerifyFlip(serverSeed, clientSeed string, nonce int64, outcome models.CoinSide) bool {
	return Flip(serverSeed, clientSeed, nonce) == outcome
}
