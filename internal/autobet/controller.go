// Package autobet is a supervisory loop over a dice session: it places
// bets repeatedly, adjusts the stake by the configured win/loss policy,
// and halts on the first stop condition. It is not a second state
// machine; all phase rules stay enforced by the session it drives.
package autobet

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"casino-client/internal/models"
	"casino-client/internal/session"
)

type StakeAction string

const (
	// ActionReset returns the stake to the base captured at Run start.
	ActionReset StakeAction = "reset"
	// ActionIncrease compounds the stake by Percent each round.
	ActionIncrease StakeAction = "increase"
)

type StakeRule struct {
	Action  StakeAction
	Percent float64
}

// Policy configures one auto-bet run. Zero thresholds disable the
// corresponding stop condition; NumberOfBets zero means unbounded.
type Policy struct {
	NumberOfBets int
	OnWin        StakeRule
	OnLoss       StakeRule
	StopOnProfit models.Amount
	StopOnLoss   models.Amount
	// SettleDelay paces rounds so the UI can show each result.
	SettleDelay time.Duration
}

const DefaultSettleDelay = time.Second

func (p *Policy) Validate() error {
	for _, rule := range []StakeRule{p.OnWin, p.OnLoss} {
		switch rule.Action {
		case ActionReset, ActionIncrease:
		default:
			return &models.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown stake action %q", rule.Action)}
		}
		if rule.Percent < 0 {
			return &models.ValidationError{Field: "percent", Reason: "must not be negative"}
		}
	}
	if p.NumberOfBets < 0 {
		return &models.ValidationError{Field: "number_of_bets", Reason: "must not be negative"}
	}
	if p.StopOnProfit < 0 || p.StopOnLoss < 0 {
		return &models.ValidationError{Field: "stop_threshold", Reason: "must not be negative"}
	}
	return nil
}

type StopReason string

const (
	StopProfitTarget StopReason = "profit_target_reached"
	StopLossLimit    StopReason = "loss_limit_reached"
	StopBetLimit     StopReason = "bet_limit_reached"
	StopError        StopReason = "error"
	StopCancelled    StopReason = "cancelled"
)

// Result summarizes a finished run.
type Result struct {
	BetsPlaced int
	Profit     models.Amount
	Reason     StopReason
	Err        error
}

// Bettor is the slice of the dice session the controller drives.
type Bettor interface {
	PlaceBet(ctx context.Context, bet models.DiceBet) (*session.DiceOutcome, error)
}

type Controller struct {
	bettor Bettor
	policy Policy
	log    *logrus.Entry
}

func New(bettor Bettor, policy Policy, logger *logrus.Logger) (*Controller, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.SettleDelay <= 0 {
		policy.SettleDelay = DefaultSettleDelay
	}
	return &Controller{
		bettor: bettor,
		policy: policy,
		log:    logger.WithField("component", "autobet"),
	}, nil
}

// Run drives bets until a stop condition triggers, an error surfaces,
// or the context is cancelled. Each call captures a fresh base stake
// from the given bet and starts its counters at zero.
func (c *Controller) Run(ctx context.Context, base models.DiceBet) *Result {
	if err := base.Validate(); err != nil {
		return &Result{Reason: StopError, Err: err}
	}

	baseStake := base.Amount
	stake := baseStake
	var profit models.Amount
	bets := 0

	c.log.WithFields(logrus.Fields{
		"base_stake":     baseStake.Float(),
		"number_of_bets": c.policy.NumberOfBets,
	}).Info("auto-bet run started")

	for {
		if err := ctx.Err(); err != nil {
			return c.finish(bets, profit, StopCancelled, err)
		}

		bet := base
		bet.Amount = stake

		outcome, err := c.bettor.PlaceBet(ctx, bet)
		if err != nil {
			// Server and transport errors are fatal to the run, never
			// retried blindly.
			return c.finish(bets, profit, StopError, err)
		}
		if outcome == nil {
			return c.finish(bets, profit, StopError,
				fmt.Errorf("bet accepted but not resolved synchronously"))
		}

		bets++
		profit += outcome.Profit

		c.log.WithFields(logrus.Fields{
			"bet":    bets,
			"roll":   outcome.Roll,
			"win":    outcome.Win,
			"profit": profit.Float(),
		}).Debug("round settled")

		if reason, done := c.stopCondition(bets, profit); done {
			return c.finish(bets, profit, reason, nil)
		}

		stake = c.nextStake(stake, baseStake, outcome.Win)

		select {
		case <-time.After(c.policy.SettleDelay):
		case <-ctx.Done():
			return c.finish(bets, profit, StopCancelled, ctx.Err())
		}
	}
}

// stopCondition evaluates the stop rules in priority order: profit
// target, loss limit, then bet count.
func (c *Controller) stopCondition(bets int, profit models.Amount) (StopReason, bool) {
	if c.policy.StopOnProfit > 0 && profit >= c.policy.StopOnProfit {
		return StopProfitTarget, true
	}
	if c.policy.StopOnLoss > 0 && profit <= -c.policy.StopOnLoss {
		return StopLossLimit, true
	}
	if c.policy.NumberOfBets > 0 && bets >= c.policy.NumberOfBets {
		return StopBetLimit, true
	}
	return "", false
}

func (c *Controller) nextStake(stake, baseStake models.Amount, won bool) models.Amount {
	rule := c.policy.OnLoss
	if won {
		rule = c.policy.OnWin
	}
	switch rule.Action {
	case ActionIncrease:
		return models.AmountFromFloat(stake.Float() * (1 + rule.Percent/100))
	default:
		return baseStake
	}
}

func (c *Controller) finish(bets int, profit models.Amount, reason StopReason, err error) *Result {
	entry := c.log.WithFields(logrus.Fields{
		"bets":   bets,
		"profit": profit.Float(),
		"reason": reason,
	})
	if err != nil {
		entry.WithError(err).Warn("auto-bet run stopped")
	} else {
		entry.Info("auto-bet run stopped")
	}
	return &Result{BetsPlaced: bets, Profit: profit, Reason: reason, Err: err}
}
