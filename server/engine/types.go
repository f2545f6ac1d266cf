package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

type Suit string

const (
	Spades   Suit = "♠️"
	Diamonds Suit = "♦️"
	Clubs    Suit = "♣️"
	Hearts   Suit = "♥️"
)

var Suits = [4]Suit{Spades, Diamonds, Clubs, Hearts}

// Ranks in deck order. Value is derived from the rank at construction time.
var Ranks = [13]string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

type Card struct {
	Suit  Suit   `json:"suit"`
	Value int    `json:"value"`
	Name  string `json:"name"`
} // e.g. {♠️ 11 "A ♠️"}

type Status int

const (
	InProgress         Status = 0
	AwaitingSettlement Status = 1
	Resolved           Status = 2
)

func (s Status) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case AwaitingSettlement:
		return "awaiting_settlement"
	case Resolved:
		return "resolved"
	}
	return "unknown"
}

type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Tie  Outcome = "tie"
)

// Account is the wallet view the engine mutates. Nonce belongs to the auth
// layer and is carried through untouched.
type Account struct {
	Address     string          `json:"address"`
	Balance     decimal.Decimal `json:"balance"`
	GameBalance decimal.Decimal `json:"gameBalance"`
	Nonce       int64           `json:"-"`
}

type Round struct {
	ID         string          `json:"id"`
	Address    string          `json:"address"`
	PlayerHand []Card          `json:"playerHand"`
	SplitHand  []Card          `json:"splitHand"`
	DealerHand []Card          `json:"dealerHand"`
	Deck       Deck            `json:"-"`
	BetAmount  decimal.Decimal `json:"betAmount"`
	Stake      decimal.Decimal `json:"stake"` // bet plus split/double raises
	Status     Status          `json:"gameStatus"`
	Outcomes   []Outcome       `json:"outcomes,omitempty"`
	Payout     decimal.Decimal `json:"payout"`
	Message    string          `json:"message,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	SettledAt  *time.Time      `json:"settledAt,omitempty"`
}

func (r *Round) HasSplit() bool { return len(r.SplitHand) > 0 }

// Result describes what an action did to a round.
type Result struct {
	Kind     ResultKind
	Total    int
	Outcomes []Outcome
	Credit   decimal.Decimal
	Message  string
}

type ResultKind string

const (
	Continue  ResultKind = "continue"
	Blackjack ResultKind = "blackjack"
	Bust      ResultKind = "bust"
	TurnOver  ResultKind = "turn_over"
	Settled   ResultKind = "settled"
)
