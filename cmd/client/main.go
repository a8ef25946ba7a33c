package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"casino-client/internal/autobet"
	"casino-client/internal/config"
	"casino-client/internal/fair"
	"casino-client/internal/models"
	"casino-client/internal/session"
	"casino-client/internal/transport"
)

func main() {
	stakeFlag := &cli.FloatFlag{
		Name:  "stake",
		Value: 1.0,
		Usage: "stake per bet in major units",
	}
	targetFlag := &cli.IntFlag{
		Name:  "target",
		Value: 50,
		Usage: "dice target (1-99)",
	}
	conditionFlag := &cli.StringFlag{
		Name:  "condition",
		Value: "OVER",
		Usage: "dice condition: OVER or UNDER",
	}

	cmd := &cli.Command{
		Name:  "casino-client",
		Usage: "play provably-fair dice and coinflip against a game authority",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "websocket endpoint of the authority",
				Sources: cli.EnvVars("SERVER_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "auth token presented on the websocket upgrade",
				Sources: cli.EnvVars("AUTH_TOKEN"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "dice",
				Usage: "play manual dice rounds, then end the session and verify every roll",
				Flags: []cli.Flag{
					stakeFlag,
					targetFlag,
					conditionFlag,
					&cli.IntFlag{
						Name:  "rounds",
						Value: 5,
						Usage: "number of rounds to play",
					},
				},
				Action: runDice,
			},
			{
				Name:  "coinflip",
				Usage: "ride a coinflip streak and cash out at the chosen length",
				Flags: []cli.Flag{
					stakeFlag,
					&cli.StringFlag{
						Name:  "side",
						Value: "heads",
						Usage: "side to bet: heads or tails",
					},
					&cli.IntFlag{
						Name:  "max-streak",
						Value: 3,
						Usage: "cash out once the streak reaches this length (0 = ride until a loss)",
					},
				},
				Action: runCoinflip,
			},
			{
				Name:  "auto",
				Usage: "run the dice auto-bet loop until a stop condition triggers",
				Flags: []cli.Flag{
					stakeFlag,
					targetFlag,
					conditionFlag,
					&cli.IntFlag{
						Name:  "bets",
						Value: 10,
						Usage: "number of bets (0 = unbounded)",
					},
					&cli.StringFlag{
						Name:  "on-win",
						Value: "reset",
						Usage: "stake rule on win: reset or increase",
					},
					&cli.FloatFlag{
						Name:  "on-win-pct",
						Usage: "stake increase percent on win",
					},
					&cli.StringFlag{
						Name:  "on-loss",
						Value: "reset",
						Usage: "stake rule on loss: reset or increase",
					},
					&cli.FloatFlag{
						Name:  "on-loss-pct",
						Usage: "stake increase percent on loss",
					},
					&cli.FloatFlag{
						Name:  "stop-profit",
						Usage: "stop when cumulative profit reaches this (0 = off)",
					},
					&cli.FloatFlag{
						Name:  "stop-loss",
						Usage: "stop when cumulative loss reaches this (0 = off)",
					},
					&cli.DurationFlag{
						Name:  "delay",
						Value: autobet.DefaultSettleDelay,
						Usage: "pacing delay between rounds",
					},
				},
				Action: runAutoBet,
			},
		},
		DefaultCommand: "dice",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// connect builds the shared client stack: logger, config with flag
// overrides, and a dialed transport.
func connect(ctx context.Context, cmd *cli.Command) (*logrus.Logger, *transport.WebSocket, *config.Config, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if v := cmd.String("server"); v != "" {
		cfg.ServerURL = v
	}
	if v := cmd.String("token"); v != "" {
		cfg.AuthToken = v
	}

	tr, err := transport.Dial(ctx, cfg.ServerURL, cfg.AuthToken, cfg.RequestTimeout, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	return logger, tr, cfg, nil
}

// pump routes transport events to the session until the stream closes.
func pump(tr transport.Transport, game models.GameType, handle func(transport.Event)) {
	for ev := range tr.Events() {
		if ev.Game == game {
			handle(ev)
		}
	}
}

func runDice(ctx context.Context, cmd *cli.Command) error {
	logger, tr, cfg, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer tr.Close()

	dice := session.NewDiceSession(tr, cfg.HouseEdgePercent, logger)
	go pump(tr, models.GameTypeDice, dice.HandleEvent)

	if err := dice.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	bet := models.DiceBet{
		Amount:    models.AmountFromFloat(cmd.Float("stake")),
		Condition: models.DiceCondition(strings.ToUpper(cmd.String("condition"))),
		Target:    cmd.Int("target"),
	}

	for i := 0; i < cmd.Int("rounds"); i++ {
		outcome, err := dice.PlaceBet(ctx, bet)
		if err != nil {
			return fmt.Errorf("bet failed: %w", err)
		}
		fmt.Printf("roll %3d | %s %d | win=%v | x%.4f | profit %.8f\n",
			outcome.Roll, bet.Condition, bet.Target, outcome.Win,
			outcome.Multiplier, outcome.Profit.Float())
	}

	return endAndVerify(ctx, dice)
}

func runAutoBet(ctx context.Context, cmd *cli.Command) error {
	logger, tr, cfg, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer tr.Close()

	dice := session.NewDiceSession(tr, cfg.HouseEdgePercent, logger)
	go pump(tr, models.GameTypeDice, dice.HandleEvent)

	if err := dice.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	policy := autobet.Policy{
		NumberOfBets: cmd.Int("bets"),
		OnWin:        autobet.StakeRule{Action: autobet.StakeAction(cmd.String("on-win")), Percent: cmd.Float("on-win-pct")},
		OnLoss:       autobet.StakeRule{Action: autobet.StakeAction(cmd.String("on-loss")), Percent: cmd.Float("on-loss-pct")},
		StopOnProfit: models.AmountFromFloat(cmd.Float("stop-profit")),
		StopOnLoss:   models.AmountFromFloat(cmd.Float("stop-loss")),
		SettleDelay:  cmd.Duration("delay"),
	}

	ctrl, err := autobet.New(dice, policy, logger)
	if err != nil {
		return fmt.Errorf("invalid auto-bet policy: %w", err)
	}

	result := ctrl.Run(ctx, models.DiceBet{
		Amount:    models.AmountFromFloat(cmd.Float("stake")),
		Condition: models.DiceCondition(strings.ToUpper(cmd.String("condition"))),
		Target:    cmd.Int("target"),
	})

	fmt.Printf("auto-bet finished: %d bets, profit %.8f, reason %s\n",
		result.BetsPlaced, result.Profit.Float(), result.Reason)
	if result.Err != nil {
		return fmt.Errorf("auto-bet run ended with error: %w", result.Err)
	}

	return endAndVerify(ctx, dice)
}

func endAndVerify(ctx context.Context, dice *session.DiceSession) error {
	if err := dice.End(ctx); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	// The seed reveal arrives as an event right after the ack.
	deadline := time.After(5 * time.Second)
	for dice.Snapshot().Phase != session.PhaseEnded {
		select {
		case <-deadline:
			return fmt.Errorf("seed reveal did not arrive")
		case <-time.After(50 * time.Millisecond):
		}
	}

	snap := dice.Snapshot()
	if snap.FairnessViolated {
		return fmt.Errorf("FAIRNESS VIOLATION: revealed seed does not match the commitment")
	}

	fmt.Printf("\nsession %s ended\nserver seed: %s\ncommitment:  %s\n",
		snap.SessionID, snap.ServerSeed, snap.ServerSeedHash)

	for _, entry := range dice.History() {
		ok := fair.VerifyRoll(entry.ServerSeed, entry.ClientSeed, entry.Nonce, entry.Roll)
		fmt.Printf("nonce %2d roll %3d verified=%v\n", entry.Nonce, entry.Roll, ok)
	}
	return nil
}

func runCoinflip(ctx context.Context, cmd *cli.Command) error {
	logger, tr, cfg, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer tr.Close()

	flip := session.NewCoinflipSession(tr, cfg.HouseEdgePercent, logger)
	go pump(tr, models.GameTypeCoinflip, flip.HandleEvent)

	if err := flip.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	bet := models.FlipBet{
		Amount: models.AmountFromFloat(cmd.Float("stake")),
		Side:   models.CoinSide(strings.ToLower(cmd.String("side"))),
	}
	maxStreak := cmd.Int("max-streak")

	events := flip.Events()
	for {
		if err := flip.PlaceBet(ctx, bet); err != nil {
			return fmt.Errorf("bet failed: %w", err)
		}

		n, err := waitFor(ctx, events, session.NotifyResolved)
		if err != nil {
			return err
		}
		entry := n.Flip
		fmt.Printf("flip %s | chose %s | win=%v | streak %d | x%.4f\n",
			entry.Outcome, entry.Side, entry.Win, entry.Streak, entry.Multiplier)

		if !entry.Win {
			fmt.Println("streak lost")
			return nil
		}

		option := models.NextContinue
		if maxStreak > 0 && entry.Streak >= maxStreak {
			option = models.NextCashout
		}
		if err := flip.Next(ctx, option); err != nil {
			return fmt.Errorf("next decision failed: %w", err)
		}
		if option == models.NextCashout {
			if _, err := waitFor(ctx, events, session.NotifyEnded); err != nil {
				return err
			}
			snap := flip.Snapshot()
			fmt.Printf("cashed out at streak %d, server seed %s, commitment verified=%v\n",
				entry.Streak, snap.ServerSeed, !snap.FairnessViolated)
			return nil
		}
	}
}

func waitFor(ctx context.Context, events <-chan session.Notification, kind session.NotificationKind) (session.Notification, error) {
	for {
		select {
		case n := <-events:
			if n.Kind == kind {
				return n, nil
			}
			if n.Kind == session.NotifyTimeout || n.Kind == session.NotifyFairnessViolation {
				return n, fmt.Errorf("aborting: %s", n.Kind)
			}
		case <-ctx.Done():
			return session.Notification{}, ctx.Err()
		}
	}
}
