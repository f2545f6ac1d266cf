package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func c(rank string) Card { return NewCard(rank, Hearts) }

// stacked returns a deck that deals the given ranks in order, followed by
// filler low cards.
func stacked(ranks ...string) Deck {
	d := make(Deck, 0, len(ranks)+10)
	for i := 0; i < 10; i++ {
		d = append(d, NewCard("2", Clubs))
	}
	for i := len(ranks) - 1; i >= 0; i-- {
		d = append(d, c(ranks[i]))
	}
	return d
}

func exact(ranks ...string) Deck {
	d := make(Deck, 0, len(ranks))
	for i := len(ranks) - 1; i >= 0; i-- {
		d = append(d, c(ranks[i]))
	}
	return d
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func account(balance string) *Account {
	return &Account{Address: "0xabc", Balance: dec(balance), GameBalance: decimal.Zero}
}

func TestNewRoundDeals(t *testing.T) {
	acct := account("100")
	r, res, err := NewRound("r1", acct, dec("10"), stacked("9", "7", "K"), t0)
	require.NoError(t, err)

	assert.Equal(t, Continue, res.Kind)
	assert.Equal(t, 16, res.Total)
	assert.Equal(t, InProgress, r.Status)
	assert.Equal(t, []Card{c("9"), c("7")}, r.PlayerHand)
	assert.Equal(t, []Card{c("K")}, r.DealerHand)
	assert.Empty(t, r.SplitHand)
	assert.Equal(t, 10, r.Deck.Len())
	assert.True(t, acct.Balance.Equal(dec("90")))
	assert.True(t, acct.GameBalance.Equal(dec("10")))
	assert.Equal(t, t0, r.CreatedAt)
}

func TestNewRoundNaturalBlackjack(t *testing.T) {
	acct := account("100")
	r, res, err := NewRound("r1", acct, dec("10"), stacked("A", "K", "5"), t0)
	require.NoError(t, err)

	assert.Equal(t, Blackjack, res.Kind)
	assert.Equal(t, Resolved, r.Status)
	assert.Equal(t, []Outcome{Win}, r.Outcomes)
	assert.True(t, acct.Balance.Equal(dec("110")), "balance %s", acct.Balance)
	assert.True(t, acct.GameBalance.IsZero())
	assert.True(t, r.Payout.Equal(dec("20")))
	require.NotNil(t, r.SettledAt)
	assert.Len(t, r.DealerHand, 1, "dealer does not play against a natural")
}

func TestNewRoundValidation(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		bet     string
		deck    Deck
		wantErr error
	}{
		{"zero bet", "100", "0", stacked("2", "3", "4"), ErrInvalidBet},
		{"negative bet", "100", "-5", stacked("2", "3", "4"), ErrInvalidBet},
		{"bet above balance", "5", "5.01", stacked("2", "3", "4"), ErrInsufficientFunds},
		{"short deck", "100", "1", exact("2", "3"), ErrDeckExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := account(tt.balance)
			_, _, err := NewRound("r", acct, dec(tt.bet), tt.deck, t0)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, acct.Balance.Equal(dec(tt.balance)), "balance must be untouched")
			assert.True(t, acct.GameBalance.IsZero())
		})
	}
}

func TestNewRoundWholeBalance(t *testing.T) {
	acct := account("10")
	_, _, err := NewRound("r", acct, dec("10"), stacked("2", "3", "4"), t0)
	require.NoError(t, err)
	assert.True(t, acct.Balance.IsZero())
}

func TestHitBelow21Continues(t *testing.T) {
	acct := account("100")
	r, _, err := NewRound("r", acct, dec("10"), stacked("5", "4", "9", "3"), t0)
	require.NoError(t, err)

	res, err := r.Hit(acct, t0)
	require.NoError(t, err)
	assert.Equal(t, Continue, res.Kind)
	assert.Equal(t, 12, res.Total)
	assert.Equal(t, InProgress, r.Status)
	assert.True(t, acct.GameBalance.Equal(dec("10")))
}

func TestHitBust(t *testing.T) {
	acct := account("100")
	r, _, err := NewRound("r", acct, dec("10"), stacked("10", "8", "9", "5"), t0)
	require.NoError(t, err)

	res, err := r.Hit(acct, t0)
	require.NoError(t, err)
	assert.Equal(t, Bust, res.Kind)
	assert.Equal(t, 23, res.Total)
	assert.Equal(t, Resolved, r.Status)
	assert.Equal(t, []Outcome{Loss}, r.Outcomes)
	assert.True(t, acct.GameBalance.IsZero())
	assert.True(t, acct.Balance.Equal(dec("90")), "bust forfeits the wager and credits nothing")
	assert.Len(t, r.DealerHand, 1, "dealer does not draw after a bust")
}

func TestHitTo21EndsTurn(t *testing.T) {
	acct := account("100")
	// player 5,6 -> hit 10 = 21; dealer 9 draws 8 = 17
	r, _, err := NewRound("r", acct, dec("10"), stacked("5", "6", "9", "10", "8"), t0)
	require.NoError(t, err)

	res, err := r.Hit(acct, t0)
	require.NoError(t, err)
	assert.Equal(t, TurnOver, res.Kind)
	assert.Equal(t, AwaitingSettlement, r.Status)
	assert.Equal(t, []Card{c("9"), c("8")}, r.DealerHand)
}

func TestHitOnEmptyDeck(t *testing.T) {
	acct := account("100")
	r, _, err := NewRound("r", acct, dec("10"), exact("5", "4", "9"), t0)
	require.NoError(t, err)

	_, err = r.Hit(acct, t0)
	require.ErrorIs(t, err, ErrDeckExhausted)
	assert.Equal(t, InProgress, r.Status)
}

func TestActionsRequireInProgress(t *testing.T) {
	acct := account("100")
	r := &Round{Status: AwaitingSettlement, PlayerHand: []Card{c("8"), c("8")}, Deck: stacked()}

	_, err := r.Hit(acct, t0)
	assert.ErrorIs(t, err, ErrNoActiveRound)
	_, err = r.Stand()
	assert.ErrorIs(t, err, ErrNoActiveRound)
	_, err = r.Split(acct)
	assert.ErrorIs(t, err, ErrNoActiveRound)
	_, err = r.Double(acct)
	assert.ErrorIs(t, err, ErrNoActiveRound)
}

func TestStandRunsDealer(t *testing.T) {
	acct := account("100")
	r, _, err := NewRound("r", acct, dec("10"), stacked("10", "8", "5", "K", "3"), t0)
	require.NoError(t, err)

	res, err := r.Stand()
	require.NoError(t, err)
	assert.Equal(t, TurnOver, res.Kind)
	assert.Equal(t, AwaitingSettlement, r.Status)
	// 5 + K = 15, +3 = 18
	assert.Equal(t, []Card{c("5"), c("K"), c("3")}, r.DealerHand)
}

func TestDealerStopsAt17(t *testing.T) {
	r := &Round{DealerHand: []Card{c("9"), c("6")}, Deck: exact("6", "5", "4")}
	require.NoError(t, r.PlayDealer())

	total, err := HandTotal(r.DealerHand)
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	assert.Equal(t, 2, r.Deck.Len(), "no draws after reaching 17")
}

func TestDealerStopsOnEmptyDeck(t *testing.T) {
	r := &Round{DealerHand: []Card{c("2")}, Deck: exact("3")}
	require.NoError(t, r.PlayDealer())
	assert.Equal(t, []Card{c("2"), c("3")}, r.DealerHand)
	assert.Zero(t, r.Deck.Len())
}

func TestSplit(t *testing.T) {
	acct := account("100")
	// player 8,8; dealer 10; split deals 3 to the split hand then 2 to the main hand
	r, _, err := NewRound("r", acct, dec("10"), stacked("8", "8", "10", "3", "2"), t0)
	require.NoError(t, err)

	res, err := r.Split(acct)
	require.NoError(t, err)
	assert.Equal(t, Continue, res.Kind)
	assert.Equal(t, InProgress, r.Status)
	assert.Equal(t, []Card{c("8"), c("3")}, r.SplitHand)
	assert.Equal(t, []Card{c("8"), c("2")}, r.PlayerHand)
	assert.True(t, acct.GameBalance.Equal(dec("20")))
	assert.True(t, acct.Balance.Equal(dec("80")))
	assert.True(t, r.Stake.Equal(dec("20")), "stake tracks the raise")
	assert.True(t, r.BetAmount.Equal(dec("10")))
}

func TestSplitRejections(t *testing.T) {
	t.Run("different values", func(t *testing.T) {
		acct := account("100")
		r, _, err := NewRound("r", acct, dec("10"), stacked("8", "9", "10"), t0)
		require.NoError(t, err)
		_, err = r.Split(acct)
		require.ErrorIs(t, err, ErrInvalidAction)
		assert.True(t, acct.GameBalance.Equal(dec("10")))
	})
	t.Run("face cards of equal value split", func(t *testing.T) {
		acct := account("100")
		r, _, err := NewRound("r", acct, dec("10"), stacked("K", "10", "7"), t0)
		require.NoError(t, err)
		_, err = r.Split(acct)
		require.NoError(t, err)
	})
	t.Run("insufficient funds", func(t *testing.T) {
		acct := account("15")
		r, _, err := NewRound("r", acct, dec("10"), stacked("8", "8", "10"), t0)
		require.NoError(t, err)
		_, err = r.Split(acct)
		require.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Len(t, r.PlayerHand, 2)
		assert.Empty(t, r.SplitHand)
	})
	t.Run("no re-split", func(t *testing.T) {
		acct := account("100")
		r, _, err := NewRound("r", acct, dec("10"), stacked("8", "8", "10", "8", "8"), t0)
		require.NoError(t, err)
		_, err = r.Split(acct)
		require.NoError(t, err)
		_, err = r.Split(acct)
		require.ErrorIs(t, err, ErrInvalidAction)
	})
	t.Run("three cards", func(t *testing.T) {
		acct := account("100")
		r, _, err := NewRound("r", acct, dec("10"), stacked("2", "2", "10", "3"), t0)
		require.NoError(t, err)
		_, err = r.Hit(acct, t0)
		require.NoError(t, err)
		_, err = r.Split(acct)
		require.ErrorIs(t, err, ErrInvalidAction)
	})
}

func TestSplitHitDrawsBothHandsAndEndsTurn(t *testing.T) {
	acct := account("100")
	r, _, err := NewRound("r", acct, dec("10"), stacked("8", "8", "10", "3", "2", "9", "10", "7"), t0)
	require.NoError(t, err)
	_, err = r.Split(acct)
	require.NoError(t, err)

	res, err := r.Hit(acct, t0)
	require.NoError(t, err)
	assert.Equal(t, TurnOver, res.Kind)
	assert.Equal(t, AwaitingSettlement, r.Status)
	assert.Equal(t, []Card{c("8"), c("2"), c("9")}, r.PlayerHand)
	assert.Equal(t, []Card{c("8"), c("3"), c("10")}, r.SplitHand)
	assert.Equal(t, []Card{c("10"), c("7")}, r.DealerHand)
}

func TestDouble(t *testing.T) {
	acct := account("100")
	r, _, err := NewRound("r", acct, dec("10"), stacked("5", "6", "9", "10", "8"), t0)
	require.NoError(t, err)

	res, err := r.Double(acct)
	require.NoError(t, err)
	assert.Equal(t, TurnOver, res.Kind)
	assert.Equal(t, 21, res.Total)
	assert.Len(t, r.PlayerHand, 3)
	assert.Equal(t, AwaitingSettlement, r.Status)
	assert.True(t, acct.GameBalance.Equal(dec("20")))
	assert.True(t, acct.Balance.Equal(dec("80")))
}

func TestDoubleBustStillSettles(t *testing.T) {
	acct := account("100")
	r, _, err := NewRound("r", acct, dec("10"), stacked("10", "6", "9", "K", "8"), t0)
	require.NoError(t, err)

	res, err := r.Double(acct)
	require.NoError(t, err)
	assert.Equal(t, TurnOver, res.Kind)
	assert.Equal(t, AwaitingSettlement, r.Status)

	res, err = r.Settle(acct, t0)
	require.NoError(t, err)
	assert.Equal(t, []Outcome{Loss}, res.Outcomes)
	assert.True(t, acct.Balance.Equal(dec("80")))
	assert.True(t, acct.GameBalance.IsZero())
}

func TestDoubleRejections(t *testing.T) {
	acct := account("15")
	r, _, err := NewRound("r", acct, dec("10"), stacked("5", "6", "9"), t0)
	require.NoError(t, err)
	_, err = r.Double(acct)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	acct = account("100")
	r, _, err = NewRound("r", acct, dec("10"), stacked("2", "3", "9", "4"), t0)
	require.NoError(t, err)
	_, err = r.Hit(acct, t0)
	require.NoError(t, err)
	_, err = r.Double(acct)
	require.ErrorIs(t, err, ErrInvalidAction)
}
