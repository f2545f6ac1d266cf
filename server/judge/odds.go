// Package judge estimates how a decision is likely to play out from the
// cards the player can see. It never looks at the real shoe order.
package judge

import (
	"errors"
	"math/rand/v2"

	"blackjack-backend/server/engine"
)

// DefaultTrials is the Monte Carlo sample size used by callers that do not
// care.
const DefaultTrials = 2000

type Odds struct {
	Win    float64 `json:"win"`
	Tie    float64 `json:"tie"`
	Loss   float64 `json:"loss"`
	Trials int     `json:"trials"`
}

var errNoCards = errors.New("judge: hand is empty")

// Unseen returns a fresh 52-card deck minus the visible cards.
func Unseen(visible ...[]engine.Card) engine.Deck {
	seen := map[string]int{}
	for _, h := range visible {
		for _, c := range h {
			seen[c.Name]++
		}
	}
	out := make(engine.Deck, 0, 52)
	for _, s := range engine.Suits {
		for _, r := range engine.Ranks {
			c := engine.NewCard(r, s)
			if seen[c.Name] > 0 {
				seen[c.Name]--
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// StandOdds samples dealer completions for a player standing on hand.
func StandOdds(hand, dealer []engine.Card, trials int, rng *rand.Rand) (Odds, error) {
	if len(hand) == 0 || len(dealer) == 0 {
		return Odds{}, errNoCards
	}
	player, err := engine.HandTotal(hand)
	if err != nil {
		return Odds{}, err
	}
	if trials <= 0 {
		trials = DefaultTrials
	}
	if player > 21 {
		return Odds{Loss: 1, Trials: trials}, nil
	}
	intn := rand.IntN
	if rng != nil {
		intn = rng.IntN
	}

	unseen := Unseen(hand, dealer)
	var win, tie, loss int
	for i := 0; i < trials; i++ {
		deck := make(engine.Deck, len(unseen))
		copy(deck, unseen)
		for j := len(deck) - 1; j > 0; j-- {
			k := intn(j + 1)
			deck[j], deck[k] = deck[k], deck[j]
		}
		r := &engine.Round{DealerHand: append([]engine.Card(nil), dealer...), Deck: deck}
		if err := r.PlayDealer(); err != nil {
			return Odds{}, err
		}
		d, err := engine.HandTotal(r.DealerHand)
		if err != nil {
			return Odds{}, err
		}
		switch engine.Evaluate(player, d) {
		case engine.Win:
			win++
		case engine.Tie:
			tie++
		default:
			loss++
		}
	}
	n := float64(trials)
	return Odds{Win: float64(win) / n, Tie: float64(tie) / n, Loss: float64(loss) / n, Trials: trials}, nil
}

// BustChance is the exact probability that one more card busts hand, drawn
// from the cards not visible on the table.
func BustChance(hand, dealer []engine.Card) (float64, error) {
	if len(hand) == 0 {
		return 0, errNoCards
	}
	unseen := Unseen(hand, dealer)
	if len(unseen) == 0 {
		return 0, nil
	}
	next := make([]engine.Card, len(hand)+1)
	copy(next, hand)
	bust := 0
	for _, c := range unseen {
		next[len(hand)] = c
		t, err := engine.HandTotal(next)
		if err != nil {
			return 0, err
		}
		if t > 21 {
			bust++
		}
	}
	return float64(bust) / float64(len(unseen)), nil
}
