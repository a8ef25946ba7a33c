// Package store persists the simulator's session records and resolved
// rounds: a Redis backend for a long-lived simulator and an in-memory
// backend for tests and throwaway runs.
package store

import (
	"errors"
	"time"

	"casino-client/internal/models"
)

var ErrNotFound = errors.New("store: not found")

// SessionRecord is the authority-side record of one session lifecycle.
type SessionRecord struct {
	SessionID      string          `json:"session_id"`
	PlayerID       string          `json:"player_id"`
	Game           models.GameType `json:"game"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ServerSeed     string          `json:"server_seed,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        time.Time       `json:"ended_at,omitzero"`
}

// Round is one settled bet.
type Round struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	PlayerID       string          `json:"player_id"`
	Game           models.GameType `json:"game"`
	ClientSeed     string          `json:"client_seed"`
	ServerSeedHash string          `json:"server_seed_hash"`
	Nonce          int64           `json:"nonce"`
	Amount         models.Amount   `json:"amount"`
	Roll           int             `json:"roll,omitempty"`
	Side           models.CoinSide `json:"side,omitempty"`
	Win            bool            `json:"win"`
	Profit         models.Amount   `json:"profit"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Store interface {
	SaveSession(rec *SessionRecord) error
	GetSession(sessionID string) (*SessionRecord, error)
	SaveRound(r *Round) error
	// PlayerRounds returns the most recent rounds, newest first.
	PlayerRounds(playerID string, limit int64) ([]*Round, error)
	Close() error
}
