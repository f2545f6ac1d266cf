package main

import (
	"context"
	"fmt"
	"strings"

	"blackjack-backend/server/engine"
	"blackjack-backend/server/game"
	"blackjack-backend/server/judge"
	"blackjack-backend/server/store"
	"blackjack-backend/server/wallet"

	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
)

const localPlayer = "0xlocal"

type PlayCmd struct {
	Balance string `default:"100" help:"Starting balance"`
	Bet     string `default:"10" help:"Default bet offered each round"`
	Seed    int64  `help:"Shuffle seed for a reproducible shoe (0 = random)"`
	Verbose bool   `help:"Show engine logs"`
}

func (c *PlayCmd) Run() error {
	balance, err := decimal.NewFromString(c.Balance)
	if err != nil || !balance.IsPositive() {
		return fmt.Errorf("invalid balance %q", c.Balance)
	}
	level := "warn"
	if c.Verbose {
		level = "debug"
	}
	logger := newLogger(level)
	ctx := context.Background()

	st := store.NewMemory()
	opts := []game.Option{}
	if c.Seed != 0 {
		rng := engine.SeededRand(c.Seed)
		opts = append(opts, game.WithDeckSource(func() engine.Deck { return engine.NewDeck(rng) }))
	}
	svc := game.NewService(st, logger, opts...)
	w := wallet.New(st, nil, nil, logger)
	if _, err := w.ApplyDeposits(ctx, []store.Deposit{{Block: 1, Address: localPlayer, Amount: balance}}); err != nil {
		return err
	}

	pterm.DefaultHeader.WithFullWidth().Println("Blackjack")
	for {
		acct, err := w.Balance(ctx, localPlayer)
		if err != nil {
			return err
		}
		pterm.Info.Printfln("Balance: %s", acct.Balance)
		if !acct.Balance.IsPositive() {
			pterm.Warning.Println("You are out of funds.")
			break
		}

		input, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Bet amount").WithDefaultValue(c.Bet).Show()
		bet, err := decimal.NewFromString(strings.TrimSpace(input))
		if err != nil {
			pterm.Error.Printfln("%q is not an amount", input)
			continue
		}
		snap, err := svc.Start(ctx, localPlayer, bet)
		if err != nil {
			pterm.Error.Println(err.Error())
			continue
		}
		pterm.Println(renderSnapshot(snap))

		for snap.Round.Status == engine.InProgress {
			choice, _ := pterm.DefaultInteractiveSelect.WithDefaultText("Your move").WithOptions(append(actionsFor(snap), "Odds")).Show()
			if choice == "Odds" {
				hint, err := oddsHint(snap)
				if err != nil {
					pterm.Error.Println(err.Error())
				} else {
					pterm.Info.Println(hint)
				}
				continue
			}
			next, err := play(ctx, svc, choice)
			if err != nil {
				pterm.Error.Println(err.Error())
				continue
			}
			snap = next
			pterm.Println(renderSnapshot(snap))
		}

		again, _ := pterm.DefaultInteractiveConfirm.WithDefaultText("Another round?").WithDefaultValue(true).Show()
		if !again {
			break
		}
	}

	summary, err := svc.Stats(ctx, localPlayer)
	if err == nil && summary.Rounds > 0 {
		pterm.Info.Printfln("Rounds %d, hands won %d/%d, net %s", summary.Rounds, summary.Wins, summary.Hands, summary.Net)
	}
	return nil
}

func play(ctx context.Context, svc *game.Service, choice string) (*game.Snapshot, error) {
	switch choice {
	case "Hit":
		return svc.Hit(ctx, localPlayer)
	case "Split":
		return svc.Split(ctx, localPlayer)
	case "Double":
		return svc.Double(ctx, localPlayer)
	}
	return svc.Stand(ctx, localPlayer)
}

// actionsFor lists the moves the round currently allows.
func actionsFor(snap *game.Snapshot) []string {
	r := snap.Round
	actions := []string{"Hit", "Stand"}
	if !r.HasSplit() && len(r.PlayerHand) == 2 && r.PlayerHand[0].Value == r.PlayerHand[1].Value {
		actions = append(actions, "Split")
	}
	if len(r.PlayerHand) == 2 {
		actions = append(actions, "Double")
	}
	return actions
}

func oddsHint(snap *game.Snapshot) (string, error) {
	r := snap.Round
	o, err := judge.StandOdds(r.PlayerHand, r.DealerHand, judge.DefaultTrials, nil)
	if err != nil {
		return "", err
	}
	bust, err := judge.BustChance(r.PlayerHand, r.DealerHand)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Standing now: win %.0f%%, push %.0f%%, lose %.0f%%. Next card busts %.0f%%.",
		o.Win*100, o.Tie*100, o.Loss*100, bust*100), nil
}

func renderSnapshot(snap *game.Snapshot) string {
	r := snap.Round
	var b strings.Builder
	fmt.Fprintf(&b, "Dealer: %s (%d)\n", cards(r.DealerHand), snap.DealerTotal)
	fmt.Fprintf(&b, "You:    %s (%d)\n", cards(r.PlayerHand), snap.PlayerTotal)
	if snap.SplitTotal != nil {
		fmt.Fprintf(&b, "Split:  %s (%d)\n", cards(r.SplitHand), *snap.SplitTotal)
	}
	fmt.Fprintf(&b, "\nBalance %s | In play %s", snap.Balance, snap.GameBalance)

	title := pterm.LightCyan(r.Status.String())
	if r.Status == engine.Resolved {
		title = pterm.LightGreen(r.Status.String())
		if len(snap.Outcomes) > 0 && snap.Outcomes[0] == engine.Loss && (len(snap.Outcomes) == 1 || snap.Outcomes[1] == engine.Loss) {
			title = pterm.LightRed(r.Status.String())
		}
	}
	box := pterm.DefaultBox.WithTitle(title).WithTitleTopCenter().WithHorizontalPadding(2)
	out := box.Sprint(b.String())
	if snap.Message != "" {
		out += "\n" + snap.Message
	}
	return out
}

func cards(hand []engine.Card) string {
	names := make([]string, len(hand))
	for i, c := range hand {
		names[i] = c.String()
	}
	return strings.Join(names, "  ")
}
