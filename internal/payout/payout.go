// Package payout holds the odds and payout math shared by the game
// sessions and the display layer. All functions are pure and carry
// enough precision for 8-decimal currency accounting.
package payout

import (
	"fmt"
	"math"

	"casino-client/internal/models"
)

type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

func validate(condition models.DiceCondition, target int, houseEdgePercent float64) error {
	if target < 1 || target > 99 {
		return &InvalidParameterError{Param: "target", Reason: "must be an integer in [1, 99]"}
	}
	switch condition {
	case models.DiceOver, models.DiceUnder:
	default:
		return &InvalidParameterError{Param: "condition", Reason: "must be OVER or UNDER"}
	}
	if houseEdgePercent < 0 || houseEdgePercent > 100 {
		return &InvalidParameterError{Param: "houseEdgePercent", Reason: "must be in [0, 100]"}
	}
	return nil
}

// WinChance returns the win probability as a percentage, consistent
// with the probability used by Multiplier.
func WinChance(condition models.DiceCondition, target int) (float64, error) {
	if err := validate(condition, target, 0); err != nil {
		return 0, err
	}
	if condition == models.DiceOver {
		return float64(100 - target), nil
	}
	return float64(target), nil
}

// Multiplier returns the payout multiplier for a dice bet: the fair
// multiplier 1/p reduced by the house edge.
func Multiplier(condition models.DiceCondition, target int, houseEdgePercent float64) (float64, error) {
	if err := validate(condition, target, houseEdgePercent); err != nil {
		return 0, err
	}
	chance, _ := WinChance(condition, target)
	winProbability := chance / 100
	fair := 1 / winProbability
	return fair * (1 - houseEdgePercent/100), nil
}

// FlipMultiplier returns the cumulative coinflip multiplier after
// streak consecutive wins: each flip pays the fair 2x reduced by the
// house edge, compounding across the streak.
func FlipMultiplier(houseEdgePercent float64, streak int) (float64, error) {
	if houseEdgePercent < 0 || houseEdgePercent > 100 {
		return 0, &InvalidParameterError{Param: "houseEdgePercent", Reason: "must be in [0, 100]"}
	}
	if streak < 1 {
		return 0, &InvalidParameterError{Param: "streak", Reason: "must be at least 1"}
	}
	perFlip := 2 * (1 - houseEdgePercent/100)
	return math.Pow(perFlip, float64(streak)), nil
}

// Profit returns the signed profit relative to the stake actually
// risked: stake*multiplier - stake on a win, -stake on a loss.
func Profit(stake, multiplier float64, win bool) float64 {
	if win {
		return stake*multiplier - stake
	}
	return -stake
}
