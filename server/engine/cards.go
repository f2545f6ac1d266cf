package engine

import (
	"fmt"
	"math/rand/v2"
	"strconv"
)

// Deck is drawn from the end. It is never reshuffled once dealt from.
type Deck []Card

func NewCard(rank string, suit Suit) Card {
	var v int
	switch rank {
	case "A":
		v = 11
	case "J", "Q", "K":
		v = 10
	default:
		v, _ = strconv.Atoi(rank)
	}
	return Card{Suit: suit, Value: v, Name: fmt.Sprintf("%s %s", rank, suit)}
}

// NewDeck returns all 52 cards in a uniformly random order. A nil rng uses
// the package-level source.
func NewDeck(r *rand.Rand) Deck {
	intN := rand.IntN
	if r != nil {
		intN = r.IntN
	}
	deck := make(Deck, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, rnk := range Ranks {
			deck = append(deck, NewCard(rnk, s))
		}
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := intN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// SeededRand gives a reproducible source for NewDeck.
func SeededRand(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+0x9e3779b97f4a7c15)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func (d *Deck) Draw() (Card, error) {
	n := len(*d)
	if n == 0 {
		return Card{}, ErrDeckExhausted
	}
	c := (*d)[n-1]
	*d = (*d)[:n-1]
	return c, nil
}

func (d Deck) Len() int { return len(d) }

func (c Card) String() string { return c.Name }
