package models

import "encoding/json"

type MsgType string

const (
	MsgGetSession  MsgType = "get-session"
	MsgPlaceBet    MsgType = "place-bet"
	MsgSessionNext MsgType = "session-next"
	MsgEndSession  MsgType = "end-session"

	MsgAck MsgType = "ack"

	MsgRollResult MsgType = "roll-result"
	MsgFlipResult MsgType = "flip-result"
	MsgGameEnded  MsgType = "game-ended"
)

type AckStatus string

const (
	AckSuccess AckStatus = "SUCCESS"
	AckError   AckStatus = "ERROR"
)

// Envelope is the wire frame for every message in both directions.
// Requests carry an ID echoed back by the matching ack; pushed events
// have no ID.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    MsgType         `json:"type"`
	Game    GameType        `json:"game,omitempty"`
	Status  AckStatus       `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SessionInfo is the authority's view of an active session, returned on
// get-session and inside bet acks.
type SessionInfo struct {
	SessionID      string `json:"session_id"`
	ServerSeedHash string `json:"server_seed_hash"`
	Nonce          int64  `json:"nonce"`
	// Coinflip resume data, present when a streak is in progress.
	Streak    int    `json:"streak,omitempty"`
	BetAmount string `json:"bet_amount,omitempty"`
}

type PlaceBetPayload struct {
	ClientSeed string `json:"client_seed"`
	Amount     string `json:"amount"`
	// Dice parameters.
	Condition DiceCondition `json:"condition,omitempty"`
	Target    int           `json:"target,omitempty"`
	// Coinflip parameter.
	Side CoinSide `json:"side,omitempty"`
}

type SessionNextPayload struct {
	Option NextOption `json:"option"`
}

type RollResultPayload struct {
	SessionID string `json:"session_id"`
	Roll      int    `json:"roll"`
	Nonce     int64  `json:"nonce"`
	GameHash  string `json:"game_hash,omitempty"`
}

type FlipResultPayload struct {
	SessionID string   `json:"session_id"`
	Outcome   CoinSide `json:"outcome"`
	Nonce     int64    `json:"nonce"`
	GameHash  string   `json:"game_hash,omitempty"`
}

type GameEndedPayload struct {
	SessionID  string `json:"session_id"`
	ServerSeed string `json:"server_seed"`
}

// BetAckPayload is the payload of a SUCCESS place-bet ack. Dice acks
// carry the resolved roll inline; coinflip outcomes arrive as a
// separate flip-result event.
type BetAckPayload struct {
	Session SessionInfo        `json:"session"`
	Roll    *RollResultPayload `json:"roll,omitempty"`
}
