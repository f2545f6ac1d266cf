package wallet

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"blackjack-backend/server/engine"
	"blackjack-backend/server/store"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type payoutsFunc func(ctx context.Context, address string, amount decimal.Decimal) error

func (f payoutsFunc) Send(ctx context.Context, address string, amount decimal.Decimal) error {
	return f(ctx, address, amount)
}

func newWallet(t *testing.T, p Payouts) (*Wallet, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	w := New(store.NewMemory(), p, clock, log.New(io.Discard))
	return w, clock
}

func TestNonceCreatesAccountOnce(t *testing.T) {
	w, _ := newWallet(t, nil)
	ctx := context.Background()

	n1, err := w.Nonce(ctx, "0xabc")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n1, int64(0))
	assert.Less(t, n1, int64(1_000_000))

	n2, err := w.Nonce(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, n1, n2)

	acct, err := w.Balance(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, acct.Balance.IsZero())
	assert.True(t, acct.GameBalance.IsZero())
}

func TestBalanceUnknownAccount(t *testing.T) {
	w, _ := newWallet(t, nil)
	_, err := w.Balance(context.Background(), "0xnobody")
	require.ErrorIs(t, err, engine.ErrAccountNotFound)
}

func TestApplyDeposits(t *testing.T) {
	w, _ := newWallet(t, nil)
	ctx := context.Background()

	n, err := w.ApplyDeposits(ctx, []store.Deposit{
		{Block: 12, LogIndex: 1, Address: "0xa", Amount: dec("1.5")},
		{Block: 10, LogIndex: 0, Address: "0xa", Amount: dec("2")},
		{Block: 11, LogIndex: 0, Address: "0xb", Amount: dec("0.25")},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	a, err := w.Balance(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(dec("3.5")))
	b, err := w.Balance(ctx, "0xb")
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(dec("0.25")))

	cur, err := w.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(13), cur)

	// replaying a seen event credits nothing and never moves the cursor back
	n, err = w.ApplyDeposits(ctx, []store.Deposit{{Block: 10, LogIndex: 0, Address: "0xa", Amount: dec("2")}})
	require.NoError(t, err)
	assert.Zero(t, n)
	a, err = w.Balance(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(dec("3.5")))
	cur, err = w.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(13), cur)
}

func TestApplyDepositsRejectsBadEvents(t *testing.T) {
	w, _ := newWallet(t, nil)
	ctx := context.Background()
	_, err := w.ApplyDeposits(ctx, []store.Deposit{
		{Block: 1, Address: "0xa", Amount: dec("1")},
		{Block: 2, Address: "0xa", Amount: dec("0")},
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = w.Balance(ctx, "0xa")
	require.ErrorIs(t, err, engine.ErrAccountNotFound)
}

func TestWithdraw(t *testing.T) {
	var sent []string
	w, _ := newWallet(t, payoutsFunc(func(_ context.Context, address string, amount decimal.Decimal) error {
		sent = append(sent, address+":"+amount.String())
		return nil
	}))
	ctx := context.Background()
	_, err := w.ApplyDeposits(ctx, []store.Deposit{{Block: 1, Address: "0xa", Amount: dec("10")}})
	require.NoError(t, err)

	acct, err := w.Withdraw(ctx, "0xa", dec("4"))
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(dec("6")))
	assert.Equal(t, []string{"0xa:4"}, sent)

	_, err = w.Withdraw(ctx, "0xa", dec("6.01"))
	require.ErrorIs(t, err, engine.ErrInsufficientFunds)
	_, err = w.Withdraw(ctx, "0xa", dec("-1"))
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = w.Withdraw(ctx, "0xnobody", dec("1"))
	require.ErrorIs(t, err, engine.ErrAccountNotFound)
	assert.Len(t, sent, 1)
}

func TestWithdrawRollsBackOnPayoutFailure(t *testing.T) {
	boom := errors.New("node unreachable")
	w, _ := newWallet(t, payoutsFunc(func(context.Context, string, decimal.Decimal) error { return boom }))
	ctx := context.Background()
	_, err := w.ApplyDeposits(ctx, []store.Deposit{{Block: 1, Address: "0xa", Amount: dec("10")}})
	require.NoError(t, err)

	_, err = w.Withdraw(ctx, "0xa", dec("4"))
	require.ErrorIs(t, err, boom)

	acct, err := w.Balance(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(dec("10")))
}
