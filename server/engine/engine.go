package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DealerStandsOn is the total at which the dealer stops drawing.
const DealerStandsOn = 17

// NewRound reserves bet from acct and deals two cards to the player and one to
// the dealer. A two-card 21 is paid 2x on the spot and the round comes back
// already resolved.
func NewRound(id string, acct *Account, bet decimal.Decimal, deck Deck, now time.Time) (*Round, Result, error) {
	if !bet.IsPositive() {
		return nil, Result{}, ErrInvalidBet
	}
	if acct.Balance.LessThan(bet) {
		return nil, Result{}, ErrInsufficientFunds
	}
	if deck.Len() < 3 {
		return nil, Result{}, ErrDeckExhausted
	}
	acct.Balance = acct.Balance.Sub(bet)
	acct.GameBalance = acct.GameBalance.Add(bet)

	r := &Round{
		ID:        id,
		Address:   acct.Address,
		Deck:      deck,
		BetAmount: bet,
		Stake:     bet,
		Status:    InProgress,
		Payout:    decimal.Zero,
		CreatedAt: now,
	}
	r.PlayerHand = []Card{r.pop(), r.pop()}
	r.DealerHand = []Card{r.pop()}

	total, err := HandTotal(r.PlayerHand)
	if err != nil {
		return nil, Result{}, err
	}
	if total == 21 {
		credit := acct.GameBalance.Mul(decimal.NewFromInt(2))
		acct.Balance = acct.Balance.Add(credit)
		acct.GameBalance = decimal.Zero
		r.finish([]Outcome{Win}, credit, "Blackjack! You win right away!", now)
		return r, Result{Kind: Blackjack, Total: total, Outcomes: r.Outcomes, Credit: credit, Message: r.Message}, nil
	}
	return r, Result{Kind: Continue, Total: total, Message: "Game started! Hit or Stand?"}, nil
}

// Hit draws for the player. With a split hand in play a single hit draws one
// card into each hand and ends the turn.
func (r *Round) Hit(acct *Account, now time.Time) (Result, error) {
	if r.Status != InProgress {
		return Result{}, ErrNoActiveRound
	}
	if r.HasSplit() {
		if r.Deck.Len() < 2 {
			return Result{}, ErrDeckExhausted
		}
		r.PlayerHand = append(r.PlayerHand, r.pop())
		r.SplitHand = append(r.SplitHand, r.pop())
		return r.endTurn()
	}

	c, err := r.Deck.Draw()
	if err != nil {
		return Result{}, err
	}
	r.PlayerHand = append(r.PlayerHand, c)
	total, err := HandTotal(r.PlayerHand)
	if err != nil {
		return Result{}, err
	}
	switch {
	case total > 21:
		acct.GameBalance = decimal.Zero
		r.finish([]Outcome{Loss}, decimal.Zero, fmt.Sprintf("Busted! Total: %d. Dealer wins.", total), now)
		return Result{Kind: Bust, Total: total, Outcomes: r.Outcomes, Credit: decimal.Zero, Message: r.Message}, nil
	case total == 21:
		return r.endTurn()
	}
	return Result{Kind: Continue, Total: total, Message: fmt.Sprintf("Hit or Stand? (Total: %d)", total)}, nil
}

func (r *Round) Stand() (Result, error) {
	if r.Status != InProgress {
		return Result{}, ErrNoActiveRound
	}
	return r.endTurn()
}

// Split turns a pair into two hands, each completed with a fresh card, and
// reserves a second wager equal to the current one.
func (r *Round) Split(acct *Account) (Result, error) {
	if r.Status != InProgress {
		return Result{}, ErrNoActiveRound
	}
	if r.HasSplit() || len(r.PlayerHand) != 2 || r.PlayerHand[0].Value != r.PlayerHand[1].Value {
		return Result{}, fmt.Errorf("%w: can only split with two identical cards", ErrInvalidAction)
	}
	if err := r.raise(acct, 2); err != nil {
		return Result{}, err
	}
	first, second := r.PlayerHand[0], r.PlayerHand[1]
	r.SplitHand = []Card{second, r.pop()}
	r.PlayerHand = []Card{first, r.pop()}

	total, err := HandTotal(r.PlayerHand)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: Continue, Total: total, Message: "Split successful! Play each hand separately."}, nil
}

// Double reserves a second wager, draws exactly one card and stands,
// whatever the new total is.
func (r *Round) Double(acct *Account) (Result, error) {
	if r.Status != InProgress {
		return Result{}, ErrNoActiveRound
	}
	if len(r.PlayerHand) != 2 {
		return Result{}, fmt.Errorf("%w: can only double with initial two cards", ErrInvalidAction)
	}
	if err := r.raise(acct, 1); err != nil {
		return Result{}, err
	}
	r.PlayerHand = append(r.PlayerHand, r.pop())
	return r.endTurn()
}

// raise moves another copy of the current wager from balance to gameBalance
// after checking the deck can supply the cards the action will draw.
func (r *Round) raise(acct *Account, draws int) error {
	bet := acct.GameBalance
	if acct.Balance.LessThan(bet) {
		return ErrInsufficientFunds
	}
	if r.Deck.Len() < draws {
		return ErrDeckExhausted
	}
	acct.Balance = acct.Balance.Sub(bet)
	acct.GameBalance = acct.GameBalance.Add(bet)
	r.Stake = r.Stake.Add(bet)
	return nil
}

func (r *Round) endTurn() (Result, error) {
	r.Status = AwaitingSettlement
	if err := r.PlayDealer(); err != nil {
		return Result{}, err
	}
	total, err := HandTotal(r.PlayerHand)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: TurnOver, Total: total}, nil
}

// PlayDealer draws to the dealer until 17 or more. Running out of cards just
// stops the loop.
func (r *Round) PlayDealer() error {
	for r.Deck.Len() > 0 {
		total, err := HandTotal(r.DealerHand)
		if err != nil {
			return err
		}
		if total >= DealerStandsOn {
			return nil
		}
		r.DealerHand = append(r.DealerHand, r.pop())
	}
	_, err := HandTotal(r.DealerHand)
	return err
}

// pop is only called after the deck length has been checked.
func (r *Round) pop() Card {
	c, _ := r.Deck.Draw()
	return c
}

func (r *Round) finish(outcomes []Outcome, payout decimal.Decimal, msg string, now time.Time) {
	r.Status = Resolved
	r.Outcomes = outcomes
	r.Payout = payout
	r.Message = msg
	t := now
	r.SettledAt = &t
}
