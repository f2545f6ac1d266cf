package main

import (
	"testing"

	"blackjack-backend/server/engine"
	"blackjack-backend/server/game"

	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderSnapshot(t *testing.T) {
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	split := 13
	snap := &game.Snapshot{
		Round: &engine.Round{
			Status:     engine.Resolved,
			PlayerHand: []engine.Card{engine.NewCard("8", engine.Hearts), engine.NewCard("K", engine.Spades)},
			SplitHand:  []engine.Card{engine.NewCard("8", engine.Clubs), engine.NewCard("5", engine.Clubs)},
			DealerHand: []engine.Card{engine.NewCard("9", engine.Diamonds), engine.NewCard("8", engine.Clubs)},
		},
		PlayerTotal: 18,
		SplitTotal:  &split,
		DealerTotal: 17,
		Balance:     decimal.RequireFromString("95"),
		GameBalance: decimal.Zero,
		Outcomes:    []engine.Outcome{engine.Win, engine.Loss},
		Message:     "First Hand: You win! (18 vs 17)",
	}

	out := renderSnapshot(snap)
	assert.Contains(t, out, "resolved")
	assert.Contains(t, out, "Dealer: 9 ♦️  8 ♣️ (17)")
	assert.Contains(t, out, "You:    8 ♥️  K ♠️ (18)")
	assert.Contains(t, out, "Split:  8 ♣️  5 ♣️ (13)")
	assert.Contains(t, out, "Balance 95 | In play 0")
	assert.Contains(t, out, "First Hand: You win!")
}

func TestActionsFor(t *testing.T) {
	pair := &game.Snapshot{Round: &engine.Round{
		PlayerHand: []engine.Card{engine.NewCard("8", engine.Hearts), engine.NewCard("8", engine.Spades)},
	}}
	assert.Equal(t, []string{"Hit", "Stand", "Split", "Double"}, actionsFor(pair))

	faces := &game.Snapshot{Round: &engine.Round{
		PlayerHand: []engine.Card{engine.NewCard("K", engine.Hearts), engine.NewCard("10", engine.Spades)},
	}}
	assert.Equal(t, []string{"Hit", "Stand", "Split", "Double"}, actionsFor(faces), "equal values split")

	three := &game.Snapshot{Round: &engine.Round{
		PlayerHand: []engine.Card{engine.NewCard("2", engine.Hearts), engine.NewCard("3", engine.Spades), engine.NewCard("4", engine.Clubs)},
	}}
	assert.Equal(t, []string{"Hit", "Stand"}, actionsFor(three))
}
