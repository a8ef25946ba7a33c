// Package simulator reproduces the game-authority service locally for
// development and integration testing: seed commitment, deterministic
// outcome derivation, settlement, and seed reveal at session end.
package simulator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"casino-client/internal/fair"
	"casino-client/internal/models"
	"casino-client/internal/payout"
	"casino-client/internal/store"
)

// liveSession is the authority's in-flight state for one player/game.
type liveSession struct {
	id             string
	playerID       string
	game           models.GameType
	serverSeed     string
	serverSeedHash string
	nonce          int64
	streak         int
	awaitingNext   bool
	startedAt      time.Time
}

type Engine struct {
	log       *logrus.Entry
	store     store.Store
	houseEdge float64

	mu       sync.Mutex
	sessions map[string]*liveSession
}

func NewEngine(st store.Store, houseEdgePercent float64, logger *logrus.Logger) *Engine {
	return &Engine{
		log:       logger.WithField("component", "simulator"),
		store:     st,
		houseEdge: houseEdgePercent,
		sessions:  make(map[string]*liveSession),
	}
}

func sessionKey(playerID string, game models.GameType) string {
	return playerID + "|" + string(game)
}

// GetSession returns the player's active session for the game, creating
// one with a fresh seed commitment if none exists.
func (e *Engine) GetSession(playerID string, game models.GameType) (*models.SessionInfo, error) {
	switch game {
	case models.GameTypeDice, models.GameTypeCoinflip:
	default:
		return nil, fmt.Errorf("unknown game type: %s", game)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := sessionKey(playerID, game)
	sess, ok := e.sessions[key]
	if !ok {
		seed, err := fair.GenerateServerSeed()
		if err != nil {
			return nil, err
		}
		sess = &liveSession{
			id:             uuid.New().String(),
			playerID:       playerID,
			game:           game,
			serverSeed:     seed,
			serverSeedHash: fair.Commitment(seed),
			startedAt:      time.Now(),
		}
		e.sessions[key] = sess

		if err := e.store.SaveSession(&store.SessionRecord{
			SessionID:      sess.id,
			PlayerID:       playerID,
			Game:           game,
			ServerSeedHash: sess.serverSeedHash,
			StartedAt:      sess.startedAt,
		}); err != nil {
			e.log.WithError(err).Warn("failed to persist session record")
		}

		e.log.WithFields(logrus.Fields{
			"player_id":  playerID,
			"game":       game,
			"session_id": sess.id,
		}).Info("session created")
	}

	return &models.SessionInfo{
		SessionID:      sess.id,
		ServerSeedHash: sess.serverSeedHash,
		Nonce:          sess.nonce,
		Streak:         sess.streak,
	}, nil
}

// PlaceDiceBet settles a dice wager: the roll is derived from the
// committed seeds and the per-session nonce, so the player can audit it
// after the seed reveal.
func (e *Engine) PlaceDiceBet(playerID string, p *models.PlaceBetPayload) (*models.BetAckPayload, error) {
	amount, err := models.ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	bet := models.DiceBet{Amount: amount, Condition: p.Condition, Target: p.Target}
	if err := bet.Validate(); err != nil {
		return nil, err
	}
	if p.ClientSeed == "" {
		return nil, &models.ValidationError{Field: "client_seed", Reason: "must not be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[sessionKey(playerID, models.GameTypeDice)]
	if !ok {
		return nil, fmt.Errorf("no active dice session")
	}

	nonce := sess.nonce
	roll := fair.Roll(sess.serverSeed, p.ClientSeed, nonce)
	sess.nonce++

	win := bet.Win(roll)
	multiplier, err := payout.Multiplier(bet.Condition, bet.Target, e.houseEdge)
	if err != nil {
		return nil, err
	}
	profit := models.AmountFromFloat(payout.Profit(amount.Float(), multiplier, win))

	e.saveRound(&store.Round{
		ID:             uuid.New().String(),
		SessionID:      sess.id,
		PlayerID:       playerID,
		Game:           models.GameTypeDice,
		ClientSeed:     p.ClientSeed,
		ServerSeedHash: sess.serverSeedHash,
		Nonce:          nonce,
		Amount:         amount,
		Roll:           roll,
		Win:            win,
		Profit:         profit,
		CreatedAt:      time.Now(),
	})

	return &models.BetAckPayload{
		Session: models.SessionInfo{
			SessionID:      sess.id,
			ServerSeedHash: sess.serverSeedHash,
			Nonce:          sess.nonce,
		},
		Roll: &models.RollResultPayload{
			SessionID: sess.id,
			Roll:      roll,
			Nonce:     nonce,
			GameHash:  fair.GameHash(p.ClientSeed, sess.serverSeed),
		},
	}, nil
}

// PlaceFlipBet settles a coinflip wager. The ack confirms acceptance;
// the returned flip result is pushed to the client as an out-of-band
// event after the ack.
func (e *Engine) PlaceFlipBet(playerID string, p *models.PlaceBetPayload) (*models.BetAckPayload, *models.FlipResultPayload, error) {
	amount, err := models.ParseAmount(p.Amount)
	if err != nil {
		return nil, nil, err
	}
	bet := models.FlipBet{Amount: amount, Side: p.Side}
	if err := bet.Validate(); err != nil {
		return nil, nil, err
	}
	if p.ClientSeed == "" {
		return nil, nil, &models.ValidationError{Field: "client_seed", Reason: "must not be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[sessionKey(playerID, models.GameTypeCoinflip)]
	if !ok {
		return nil, nil, fmt.Errorf("no active coinflip session")
	}
	if sess.awaitingNext {
		return nil, nil, fmt.Errorf("round not finished: choose CASHOUT or CONTINUE first")
	}

	nonce := sess.nonce
	outcome := fair.Flip(sess.serverSeed, p.ClientSeed, nonce)
	sess.nonce++

	win := outcome == bet.Side
	var profit models.Amount
	if win {
		sess.streak++
		sess.awaitingNext = true
		multiplier, _ := payout.FlipMultiplier(e.houseEdge, sess.streak)
		profit = models.AmountFromFloat(payout.Profit(amount.Float(), multiplier, true))
	} else {
		sess.streak = 0
		profit = models.AmountFromFloat(payout.Profit(amount.Float(), 0, false))
	}

	e.saveRound(&store.Round{
		ID:             uuid.New().String(),
		SessionID:      sess.id,
		PlayerID:       playerID,
		Game:           models.GameTypeCoinflip,
		ClientSeed:     p.ClientSeed,
		ServerSeedHash: sess.serverSeedHash,
		Nonce:          nonce,
		Amount:         amount,
		Side:           outcome,
		Win:            win,
		Profit:         profit,
		CreatedAt:      time.Now(),
	})

	ack := &models.BetAckPayload{
		Session: models.SessionInfo{
			SessionID:      sess.id,
			ServerSeedHash: sess.serverSeedHash,
			Nonce:          sess.nonce,
			Streak:         sess.streak,
		},
	}
	result := &models.FlipResultPayload{
		SessionID: sess.id,
		Outcome:   outcome,
		Nonce:     nonce,
		GameHash:  fair.GameHash(p.ClientSeed, sess.serverSeed),
	}
	return ack, result, nil
}

// SessionNext applies the player's post-win decision. CASHOUT ends the
// session and returns the seed reveal to push; CONTINUE keeps the
// streak going.
func (e *Engine) SessionNext(playerID string, option models.NextOption) (*models.GameEndedPayload, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := sessionKey(playerID, models.GameTypeCoinflip)
	sess, ok := e.sessions[key]
	if !ok {
		return nil, fmt.Errorf("no active coinflip session")
	}
	if !sess.awaitingNext {
		return nil, fmt.Errorf("no round awaiting a decision")
	}

	switch option {
	case models.NextContinue:
		sess.awaitingNext = false
		return nil, nil
	case models.NextCashout:
		return e.endLocked(key, sess), nil
	default:
		return nil, fmt.Errorf("unknown option: %s", option)
	}
}

// EndSession closes the player's dice session and returns the seed
// reveal to push.
func (e *Engine) EndSession(playerID string, game models.GameType) (*models.GameEndedPayload, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := sessionKey(playerID, game)
	sess, ok := e.sessions[key]
	if !ok {
		return nil, fmt.Errorf("no active %s session", game)
	}
	return e.endLocked(key, sess), nil
}

// PlayerRounds exposes the settled-round history for audit endpoints.
func (e *Engine) PlayerRounds(playerID string, limit int64) ([]*store.Round, error) {
	return e.store.PlayerRounds(playerID, limit)
}

func (e *Engine) endLocked(key string, sess *liveSession) *models.GameEndedPayload {
	delete(e.sessions, key)

	if err := e.store.SaveSession(&store.SessionRecord{
		SessionID:      sess.id,
		PlayerID:       sess.playerID,
		Game:           sess.game,
		ServerSeedHash: sess.serverSeedHash,
		ServerSeed:     sess.serverSeed,
		StartedAt:      sess.startedAt,
		EndedAt:        time.Now(),
	}); err != nil {
		e.log.WithError(err).Warn("failed to persist ended session")
	}

	e.log.WithFields(logrus.Fields{
		"player_id":  sess.playerID,
		"session_id": sess.id,
	}).Info("session ended, seed revealed")

	return &models.GameEndedPayload{
		SessionID:  sess.id,
		ServerSeed: sess.serverSeed,
	}
}

func (e *Engine) saveRound(r *store.Round) {
	if err := e.store.SaveRound(r); err != nil {
		e.log.WithError(err).Warn("failed to persist round")
	}
}
