package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Evaluate decides one player hand against the dealer. Busted player hands
// lose before the dealer total is looked at.
func Evaluate(playerTotal, dealerTotal int) Outcome {
	switch {
	case playerTotal > 21:
		return Loss
	case dealerTotal > 21:
		return Win
	case playerTotal == 21 && dealerTotal == 21:
		return Tie
	case playerTotal == 21:
		return Win
	case playerTotal > dealerTotal:
		return Win
	case playerTotal < dealerTotal:
		return Loss
	}
	return Tie
}

func describe(hand string, o Outcome, playerTotal, dealerTotal int) string {
	switch {
	case playerTotal > 21:
		return fmt.Sprintf("%s: You busted at %d. Dealer wins.", hand, playerTotal)
	case dealerTotal > 21:
		return fmt.Sprintf("%s: Dealer busted at %d. You win with %d!", hand, dealerTotal, playerTotal)
	case o == Tie && playerTotal == 21:
		return fmt.Sprintf("%s: Both have 21. It's a draw!", hand)
	case o == Win && playerTotal == 21:
		return fmt.Sprintf("%s: You have 21 and dealer has %d. You win!", hand, dealerTotal)
	case o == Win:
		return fmt.Sprintf("%s: You win! (%d vs %d)", hand, playerTotal, dealerTotal)
	case o == Loss:
		return fmt.Sprintf("%s: Dealer wins! (%d vs %d)", hand, dealerTotal, playerTotal)
	}
	return fmt.Sprintf("%s: It's a tie!", hand)
}

// Payout is what a hand returns to the balance for a given per-hand wager:
// the wager plus winnings on a win, the wager on a tie, nothing on a loss.
func Payout(o Outcome, bet decimal.Decimal) decimal.Decimal {
	switch o {
	case Win:
		return bet.Mul(decimal.NewFromInt(2))
	case Tie:
		return bet
	}
	return decimal.Zero
}

// Settle pays out a round whose player turn is over. The reserved wager is
// split evenly across the hands in play, every hand is evaluated against the
// same dealer hand, gameBalance is cleared and the round is resolved.
func (r *Round) Settle(acct *Account, now time.Time) (Result, error) {
	if r.Status != AwaitingSettlement {
		return Result{}, ErrNoPendingSettlement
	}
	dealerTotal, err := HandTotal(r.DealerHand)
	if err != nil {
		return Result{}, err
	}
	hands := [][]Card{r.PlayerHand}
	names := []string{"First Hand"}
	if r.HasSplit() {
		hands = append(hands, r.SplitHand)
		names = append(names, "Second Hand")
	}

	bet := acct.GameBalance.Div(decimal.NewFromInt(int64(len(hands))))
	var (
		outcomes = make([]Outcome, 0, len(hands))
		msgs     = make([]string, 0, len(hands))
		credit   = decimal.Zero
		first    int
	)
	for i, h := range hands {
		total, err := HandTotal(h)
		if err != nil {
			return Result{}, err
		}
		if i == 0 {
			first = total
		}
		o := Evaluate(total, dealerTotal)
		outcomes = append(outcomes, o)
		msgs = append(msgs, describe(names[i], o, total, dealerTotal))
		credit = credit.Add(Payout(o, bet))
	}

	acct.Balance = acct.Balance.Add(credit)
	acct.GameBalance = decimal.Zero
	r.finish(outcomes, credit, strings.Join(msgs, " "), now)
	return Result{Kind: Settled, Total: first, Outcomes: outcomes, Credit: credit, Message: r.Message}, nil
}
