package models

import "time"

// RollHistoryEntry is one resolved dice bet. Entries are appended in
// resolution order and never mutated, except that the server seed is
// filled in once the session ends and the seed is revealed.
type RollHistoryEntry struct {
	SessionID      string        `json:"session_id"`
	Roll           int           `json:"roll"`
	Condition      DiceCondition `json:"condition"`
	Target         int           `json:"target"`
	Amount         Amount        `json:"amount"`
	Win            bool          `json:"win"`
	Multiplier     float64       `json:"multiplier"`
	Profit         Amount        `json:"profit"`
	Nonce          int64         `json:"nonce"`
	ClientSeed     string        `json:"client_seed"`
	ServerSeedHash string        `json:"server_seed_hash"`
	ServerSeed     string        `json:"server_seed,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// FlipHistoryEntry is one resolved coinflip round.
type FlipHistoryEntry struct {
	SessionID      string    `json:"session_id"`
	Side           CoinSide  `json:"side"`
	Outcome        CoinSide  `json:"outcome"`
	Streak         int       `json:"streak"`
	Amount         Amount    `json:"amount"`
	Win            bool      `json:"win"`
	Multiplier     float64   `json:"multiplier"`
	Profit         Amount    `json:"profit"`
	Nonce          int64     `json:"nonce"`
	ClientSeed     string    `json:"client_seed"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ServerSeed     string    `json:"server_seed,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
