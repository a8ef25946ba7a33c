package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"casino-client/internal/fair"
	"casino-client/internal/models"
	"casino-client/internal/payout"
	"casino-client/internal/transport"
)

// DiceOutcome is one resolved dice roll with its derived payout fields.
type DiceOutcome struct {
	Roll       int
	Bet        models.DiceBet
	Win        bool
	Multiplier float64
	Profit     models.Amount
}

// DiceSession is the state machine for the dice game. One instance per
// authenticated player.
type DiceSession struct {
	tr        transport.Transport
	log       *logrus.Entry
	houseEdge float64

	mu               sync.Mutex
	phase            Phase
	sessionID        string
	serverSeedHash   string
	serverSeed       string
	clientSeed       string
	nonce            int64
	pendingBet       *models.DiceBet
	lastOutcome      *DiceOutcome
	lastError        string
	fairnessViolated bool
	history          []models.RollHistoryEntry

	notify chan Notification
}

// DiceSnapshot is a read-only copy of the session state for display.
type DiceSnapshot struct {
	Phase            Phase
	SessionID        string
	ServerSeedHash   string
	ServerSeed       string
	ClientSeed       string
	Nonce            int64
	PendingBet       *models.DiceBet
	LastOutcome      *DiceOutcome
	LastError        string
	FairnessViolated bool
}

func NewDiceSession(tr transport.Transport, houseEdgePercent float64, logger *logrus.Logger) *DiceSession {
	return &DiceSession{
		tr:        tr,
		log:       logger.WithField("game", models.GameTypeDice),
		houseEdge: houseEdgePercent,
		phase:     PhaseUninitialized,
		notify:    make(chan Notification, 64),
	}
}

// Events returns the notification stream. Single consumer; entries are
// dropped with a warning if nobody is reading.
func (s *DiceSession) Events() <-chan Notification {
	return s.notify
}

// SetClientSeed fixes the player seed for the next session. Only
// allowed while no session is active.
func (s *DiceSession) SetClientSeed(seed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseUninitialized {
		return &PhaseError{Op: "set client seed", Phase: s.phase}
	}
	if seed == "" {
		return &models.ValidationError{Field: "client_seed", Reason: "must not be empty"}
	}
	s.clientSeed = seed
	return nil
}

// Start requests a session from the authority and records the committed
// server seed hash.
func (s *DiceSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseUninitialized {
		s.mu.Unlock()
		return &PhaseError{Op: "start session", Phase: s.phase}
	}
	if s.clientSeed == "" {
		seed, err := models.GenerateClientSeed()
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.clientSeed = seed
	}
	s.mu.Unlock()

	ack, err := s.tr.Request(ctx, models.GameTypeDice, models.MsgGetSession, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.toTimeoutLocked(err)
		return &TransportFailure{Err: err}
	}
	if ack.Status == models.AckError {
		s.lastError = ack.Message
		s.emit(Notification{Kind: NotifySessionError, Err: &SessionError{Message: ack.Message}})
		return &SessionError{Message: ack.Message}
	}

	var info models.SessionInfo
	if err := json.Unmarshal(ack.Payload, &info); err != nil {
		return fmt.Errorf("malformed session payload: %w", err)
	}

	s.sessionID = info.SessionID
	s.serverSeedHash = info.ServerSeedHash
	s.serverSeed = ""
	s.nonce = info.Nonce
	s.lastError = ""
	s.fairnessViolated = false
	s.phase = PhaseSessionActive

	s.log.WithFields(logrus.Fields{
		"session_id":       s.sessionID,
		"server_seed_hash": s.serverSeedHash,
	}).Info("session established")

	return nil
}

// PlaceBet submits one wager. Exactly one bet may be outstanding: a
// second submission while the first is unresolved is rejected locally
// without touching the transport.
func (s *DiceSession) PlaceBet(ctx context.Context, bet models.DiceBet) (*DiceOutcome, error) {
	s.mu.Lock()
	if s.phase == PhaseBetPending {
		s.mu.Unlock()
		return nil, ErrBetPending
	}
	if s.phase != PhaseSessionActive {
		s.mu.Unlock()
		return nil, &PhaseError{Op: "place bet", Phase: s.phase}
	}
	if err := bet.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.clientSeed == "" {
		s.mu.Unlock()
		return nil, &models.ValidationError{Field: "client_seed", Reason: "must not be empty before betting"}
	}

	payload := models.PlaceBetPayload{
		ClientSeed: s.clientSeed,
		Amount:     bet.Amount.String(),
		Condition:  bet.Condition,
		Target:     bet.Target,
	}
	s.pendingBet = &bet
	s.phase = PhaseBetPending
	s.mu.Unlock()

	ack, err := s.tr.Request(ctx, models.GameTypeDice, models.MsgPlaceBet, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.pendingBet = nil
		s.toTimeoutLocked(err)
		return nil, &TransportFailure{Err: err}
	}
	if ack.Status == models.AckError {
		s.pendingBet = nil
		s.phase = PhaseSessionActive
		s.lastError = ack.Message
		s.emit(Notification{Kind: NotifySessionError, Err: &SessionError{Message: ack.Message}})
		return nil, &SessionError{Message: ack.Message}
	}

	var body models.BetAckPayload
	if err := json.Unmarshal(ack.Payload, &body); err != nil {
		s.pendingBet = nil
		s.phase = PhaseSessionActive
		return nil, fmt.Errorf("malformed bet ack payload: %w", err)
	}
	if body.Roll == nil {
		// Outcome will arrive as a roll-result event; stay pending.
		return nil, nil
	}

	outcome := s.resolveLocked(body.Roll.Roll, body.Roll.Nonce)
	s.nonce = body.Session.Nonce
	return outcome, nil
}

// HandleEvent applies a server-pushed event for the dice game. Called
// by whoever pumps the transport's event stream.
func (s *DiceSession) HandleEvent(ev transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case models.MsgRollResult:
		if s.phase != PhaseBetPending || s.pendingBet == nil {
			s.log.WithField("roll", ev.Roll.Roll).Warn("roll result with no pending bet")
			return
		}
		s.resolveLocked(ev.Roll.Roll, ev.Roll.Nonce)
		s.nonce = ev.Roll.Nonce + 1
	case models.MsgGameEnded:
		s.endLocked(ev.Ended.ServerSeed)
	default:
		s.log.WithField("type", ev.Type).Debug("ignoring event")
	}
}

// End asks the authority to close the session and reveal the server
// seed. The ENDED transition happens when the game-ended event arrives.
func (s *DiceSession) End(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseSessionActive && s.phase != PhaseResolved {
		s.mu.Unlock()
		return &PhaseError{Op: "end session", Phase: s.phase}
	}
	s.mu.Unlock()

	ack, err := s.tr.Request(ctx, models.GameTypeDice, models.MsgEndSession, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.toTimeoutLocked(err)
		return &TransportFailure{Err: err}
	}
	if ack.Status == models.AckError {
		s.lastError = ack.Message
		return &SessionError{Message: ack.Message}
	}
	return nil
}

// Reconnect leaves TIMEOUT (or ENDED) and resets to UNINITIALIZED so a
// fresh session can be started. Pending bets are not resumed.
func (s *DiceSession) Reconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseTimeout && s.phase != PhaseEnded {
		return &PhaseError{Op: "reconnect", Phase: s.phase}
	}
	s.sessionID = ""
	s.serverSeedHash = ""
	s.serverSeed = ""
	s.pendingBet = nil
	s.lastOutcome = nil
	s.lastError = ""
	s.fairnessViolated = false
	s.phase = PhaseUninitialized
	return nil
}

func (s *DiceSession) Snapshot() DiceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := DiceSnapshot{
		Phase:            s.phase,
		SessionID:        s.sessionID,
		ServerSeedHash:   s.serverSeedHash,
		ServerSeed:       s.serverSeed,
		ClientSeed:       s.clientSeed,
		Nonce:            s.nonce,
		LastError:        s.lastError,
		FairnessViolated: s.fairnessViolated,
	}
	if s.pendingBet != nil {
		bet := *s.pendingBet
		snap.PendingBet = &bet
	}
	if s.lastOutcome != nil {
		outcome := *s.lastOutcome
		snap.LastOutcome = &outcome
	}
	return snap
}

// History returns a copy of the append-only resolution log.
func (s *DiceSession) History() []models.RollHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RollHistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// resolveLocked applies a resolved roll to the in-flight bet. Caller
// holds the mutex and has verified a bet is pending.
func (s *DiceSession) resolveLocked(roll int, nonce int64) *DiceOutcome {
	bet := *s.pendingBet
	win := bet.Win(roll)
	multiplier, err := payout.Multiplier(bet.Condition, bet.Target, s.houseEdge)
	if err != nil {
		// Bet parameters were validated on submission.
		s.log.WithError(err).Error("multiplier computation failed for accepted bet")
	}
	profit := models.AmountFromFloat(payout.Profit(bet.Amount.Float(), multiplier, win))

	outcome := &DiceOutcome{
		Roll:       roll,
		Bet:        bet,
		Win:        win,
		Multiplier: multiplier,
		Profit:     profit,
	}

	entry := models.RollHistoryEntry{
		SessionID:      s.sessionID,
		Roll:           roll,
		Condition:      bet.Condition,
		Target:         bet.Target,
		Amount:         bet.Amount,
		Win:            win,
		Multiplier:     multiplier,
		Profit:         profit,
		Nonce:          nonce,
		ClientSeed:     s.clientSeed,
		ServerSeedHash: s.serverSeedHash,
		Timestamp:      time.Now(),
	}
	s.history = append(s.history, entry)

	s.pendingBet = nil
	s.lastOutcome = outcome
	s.lastError = ""
	s.phase = PhaseResolved

	s.log.WithFields(logrus.Fields{
		"roll":       roll,
		"win":        win,
		"multiplier": multiplier,
		"profit":     profit.Float(),
	}).Info("bet resolved")

	s.emit(Notification{Kind: NotifyResolved, Roll: &entry})

	// Dice has no per-round decision step: the round is complete and
	// the session accepts the next bet.
	s.phase = PhaseSessionActive

	return outcome
}

// endLocked applies the seed reveal and runs the commitment check.
func (s *DiceSession) endLocked(serverSeed string) {
	s.serverSeed = serverSeed
	s.phase = PhaseEnded

	for i := range s.history {
		if s.history[i].SessionID == s.sessionID {
			s.history[i].ServerSeed = serverSeed
		}
	}

	if !fair.VerifyCommitment(serverSeed, s.serverSeedHash) {
		s.fairnessViolated = true
		s.log.WithFields(logrus.Fields{
			"session_id":       s.sessionID,
			"server_seed_hash": s.serverSeedHash,
		}).Error("fairness violation: revealed seed does not match commitment")
		s.emit(Notification{Kind: NotifyFairnessViolation, Err: ErrFairnessViolation})
		return
	}

	s.log.WithField("session_id", s.sessionID).Info("session ended, commitment verified")
	s.emit(Notification{Kind: NotifyEnded})
}

func (s *DiceSession) toTimeoutLocked(err error) {
	s.phase = PhaseTimeout
	s.lastError = err.Error()
	s.log.WithError(err).Warn("transport failure, session timed out")
	s.emit(Notification{Kind: NotifyTimeout, Err: err})
}

func (s *DiceSession) emit(n Notification) {
	select {
	case s.notify <- n:
	default:
		s.log.WithField("kind", n.Kind).Warn("dropping notification, observer not reading")
	}
}
