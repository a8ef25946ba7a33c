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

// FlipOutcome is one resolved coinflip round. Multiplier and Profit are
// cumulative for the streak: what the player banks by cashing out now.
type FlipOutcome struct {
	Outcome    models.CoinSide
	Bet        models.FlipBet
	Win        bool
	Streak     int
	Multiplier float64
	Profit     models.Amount
}

// CoinflipSession is the state machine for the coinflip game. It
// follows the dice shape with one addition: after a winning round the
// player must choose CASHOUT or CONTINUE before the next transition.
type CoinflipSession struct {
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
	streak           int
	pendingBet       *models.FlipBet
	lastOutcome      *FlipOutcome
	lastError        string
	fairnessViolated bool
	history          []models.FlipHistoryEntry

	notify chan Notification
}

type CoinflipSnapshot struct {
	Phase            Phase
	SessionID        string
	ServerSeedHash   string
	ServerSeed       string
	ClientSeed       string
	Nonce            int64
	Streak           int
	PendingBet       *models.FlipBet
	LastOutcome      *FlipOutcome
	LastError        string
	FairnessViolated bool
}

func NewCoinflipSession(tr transport.Transport, houseEdgePercent float64, logger *logrus.Logger) *CoinflipSession {
	return &CoinflipSession{
		tr:        tr,
		log:       logger.WithField("game", models.GameTypeCoinflip),
		houseEdge: houseEdgePercent,
		phase:     PhaseUninitialized,
		notify:    make(chan Notification, 64),
	}
}

func (s *CoinflipSession) Events() <-chan Notification {
	return s.notify
}

func (s *CoinflipSession) SetClientSeed(seed string) error {
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

func (s *CoinflipSession) Start(ctx context.Context) error {
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

	ack, err := s.tr.Request(ctx, models.GameTypeCoinflip, models.MsgGetSession, nil)

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
	s.streak = info.Streak
	s.lastError = ""
	s.fairnessViolated = false
	s.phase = PhaseSessionActive

	s.log.WithFields(logrus.Fields{
		"session_id":       s.sessionID,
		"server_seed_hash": s.serverSeedHash,
		"streak":           s.streak,
	}).Info("session established")

	return nil
}

// PlaceBet submits one flip. The ack only confirms acceptance; the
// outcome arrives as a flip-result event and is surfaced through
// Events().
func (s *CoinflipSession) PlaceBet(ctx context.Context, bet models.FlipBet) error {
	s.mu.Lock()
	if s.phase == PhaseBetPending {
		s.mu.Unlock()
		return ErrBetPending
	}
	if s.phase != PhaseSessionActive {
		s.mu.Unlock()
		return &PhaseError{Op: "place bet", Phase: s.phase}
	}
	if err := bet.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.clientSeed == "" {
		s.mu.Unlock()
		return &models.ValidationError{Field: "client_seed", Reason: "must not be empty before betting"}
	}

	payload := models.PlaceBetPayload{
		ClientSeed: s.clientSeed,
		Amount:     bet.Amount.String(),
		Side:       bet.Side,
	}
	s.pendingBet = &bet
	s.phase = PhaseBetPending
	s.mu.Unlock()

	ack, err := s.tr.Request(ctx, models.GameTypeCoinflip, models.MsgPlaceBet, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.pendingBet = nil
		s.toTimeoutLocked(err)
		return &TransportFailure{Err: err}
	}
	if ack.Status == models.AckError {
		s.pendingBet = nil
		s.phase = PhaseSessionActive
		s.lastError = ack.Message
		s.emit(Notification{Kind: NotifySessionError, Err: &SessionError{Message: ack.Message}})
		return &SessionError{Message: ack.Message}
	}

	// Accepted; outcome comes out of band.
	return nil
}

// Next submits the player's post-win decision. CONTINUE re-enters
// SESSION_ACTIVE for the next round of the streak; CASHOUT closes the
// session and the seed reveal follows as a game-ended event.
func (s *CoinflipSession) Next(ctx context.Context, option models.NextOption) error {
	s.mu.Lock()
	if s.phase != PhaseResolved {
		s.mu.Unlock()
		return &PhaseError{Op: "choose next option", Phase: s.phase}
	}
	switch option {
	case models.NextCashout, models.NextContinue:
	default:
		s.mu.Unlock()
		return &models.ValidationError{Field: "option", Reason: "must be CASHOUT or CONTINUE"}
	}
	s.mu.Unlock()

	ack, err := s.tr.Request(ctx, models.GameTypeCoinflip, models.MsgSessionNext,
		models.SessionNextPayload{Option: option})

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

	if option == models.NextContinue {
		s.phase = PhaseSessionActive
	}
	// On CASHOUT the machine stays in RESOLVED until game-ended lands.
	return nil
}

func (s *CoinflipSession) HandleEvent(ev transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case models.MsgFlipResult:
		if s.phase != PhaseBetPending || s.pendingBet == nil {
			s.log.WithField("outcome", ev.Flip.Outcome).Warn("flip result with no pending bet")
			return
		}
		s.resolveLocked(ev.Flip.Outcome, ev.Flip.Nonce)
	case models.MsgGameEnded:
		s.endLocked(ev.Ended.ServerSeed)
	default:
		s.log.WithField("type", ev.Type).Debug("ignoring event")
	}
}

func (s *CoinflipSession) Reconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseTimeout && s.phase != PhaseEnded {
		return &PhaseError{Op: "reconnect", Phase: s.phase}
	}
	s.sessionID = ""
	s.serverSeedHash = ""
	s.serverSeed = ""
	s.streak = 0
	s.pendingBet = nil
	s.lastOutcome = nil
	s.lastError = ""
	s.fairnessViolated = false
	s.phase = PhaseUninitialized
	return nil
}

func (s *CoinflipSession) Snapshot() CoinflipSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := CoinflipSnapshot{
		Phase:            s.phase,
		SessionID:        s.sessionID,
		ServerSeedHash:   s.serverSeedHash,
		ServerSeed:       s.serverSeed,
		ClientSeed:       s.clientSeed,
		Nonce:            s.nonce,
		Streak:           s.streak,
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

func (s *CoinflipSession) History() []models.FlipHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FlipHistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

func (s *CoinflipSession) resolveLocked(outcome models.CoinSide, nonce int64) {
	bet := *s.pendingBet
	win := outcome == bet.Side

	var (
		streak     int
		multiplier float64
		profit     models.Amount
	)
	if win {
		streak = s.streak + 1
		multiplier, _ = payout.FlipMultiplier(s.houseEdge, streak)
		profit = models.AmountFromFloat(payout.Profit(bet.Amount.Float(), multiplier, true))
	} else {
		streak = 0
		multiplier = 0
		profit = models.AmountFromFloat(payout.Profit(bet.Amount.Float(), 0, false))
	}

	result := &FlipOutcome{
		Outcome:    outcome,
		Bet:        bet,
		Win:        win,
		Streak:     streak,
		Multiplier: multiplier,
		Profit:     profit,
	}

	entry := models.FlipHistoryEntry{
		SessionID:      s.sessionID,
		Side:           bet.Side,
		Outcome:        outcome,
		Streak:         streak,
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
	s.lastOutcome = result
	s.lastError = ""
	s.streak = streak
	s.nonce = nonce + 1

	s.log.WithFields(logrus.Fields{
		"outcome":    outcome,
		"win":        win,
		"streak":     streak,
		"multiplier": multiplier,
	}).Info("flip resolved")

	if win {
		// CASHOUT or CONTINUE decision is required before the next
		// transition.
		s.phase = PhaseResolved
	} else {
		// Streak lost, stake forfeited; next bet starts a new streak in
		// the same session.
		s.phase = PhaseSessionActive
	}

	s.emit(Notification{Kind: NotifyResolved, Flip: &entry})
}

func (s *CoinflipSession) endLocked(serverSeed string) {
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

func (s *CoinflipSession) toTimeoutLocked(err error) {
	s.phase = PhaseTimeout
	s.lastError = err.Error()
	s.log.WithError(err).Warn("transport failure, session timed out")
	s.emit(Notification{Kind: NotifyTimeout, Err: err})
}

func (s *CoinflipSession) emit(n Notification) {
	select {
	case s.notify <- n:
	default:
		s.log.WithField("kind", n.Kind).Warn("dropping notification, observer not reading")
	}
}
