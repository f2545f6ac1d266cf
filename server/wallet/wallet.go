// Package wallet moves funds between the outside world and account balances:
// deposits credit, withdrawals debit. Nothing here touches gameBalance.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"blackjack-backend/server/engine"
	"blackjack-backend/server/store"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
)

// DepositCursor names the persisted next block to scan for deposits.
const DepositCursor = "deposits"

var ErrInvalidAmount = errors.New("amount must be positive")

// Payouts sends withdrawn funds to the account owner. A returned error
// cancels the withdrawal.
type Payouts interface {
	Send(ctx context.Context, address string, amount decimal.Decimal) error
}

// LogPayouts only records the transfer.
type LogPayouts struct{ Logger *log.Logger }

func (p LogPayouts) Send(_ context.Context, address string, amount decimal.Decimal) error {
	p.Logger.Info("payout", "address", address, "amount", amount)
	return nil
}

type Wallet struct {
	store   store.Store
	payouts Payouts
	logger  *log.Logger
	clock   quartz.Clock
	nonce   func() int64
}

func New(st store.Store, payouts Payouts, clock quartz.Clock, logger *log.Logger) *Wallet {
	if clock == nil {
		clock = quartz.NewReal()
	}
	logger = logger.WithPrefix("wallet")
	if payouts == nil {
		payouts = LogPayouts{Logger: logger}
	}
	return &Wallet{
		store:   st,
		payouts: payouts,
		logger:  logger,
		clock:   clock,
		nonce:   func() int64 { return rand.Int64N(1_000_000) },
	}
}

// Nonce returns the account's login nonce, creating the account on first
// sight.
func (w *Wallet) Nonce(ctx context.Context, address string) (int64, error) {
	var n int64
	err := w.store.InTx(ctx, func(tx store.Tx) error {
		a, err := tx.EnsureAccount(ctx, address, w.nonce())
		if err != nil {
			return err
		}
		n = a.Nonce
		return nil
	})
	return n, err
}

func (w *Wallet) Balance(ctx context.Context, address string) (*engine.Account, error) {
	var acct *engine.Account
	err := w.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		acct, err = tx.FindAccount(ctx, address)
		if errors.Is(err, store.ErrNotFound) {
			return engine.ErrAccountNotFound
		}
		return err
	})
	return acct, err
}

// Withdraw debits balance and hands the amount to the payouts collaborator
// inside the same unit of work.
func (w *Wallet) Withdraw(ctx context.Context, address string, amount decimal.Decimal) (*engine.Account, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	var acct *engine.Account
	err := w.store.InTx(ctx, func(tx store.Tx) error {
		a, err := tx.FindAccount(ctx, address)
		if errors.Is(err, store.ErrNotFound) {
			return engine.ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		if a.Balance.LessThan(amount) {
			return engine.ErrInsufficientFunds
		}
		a.Balance = a.Balance.Sub(amount)
		if err := tx.SaveAccount(ctx, a); err != nil {
			return err
		}
		if err := w.payouts.Send(ctx, address, amount); err != nil {
			return fmt.Errorf("payout: %w", err)
		}
		acct = a
		return nil
	})
	if err != nil {
		w.logger.Warn("withdraw failed", "address", address, "amount", amount, "err", err)
		return nil, err
	}
	w.logger.Info("withdrawal", "address", address, "amount", amount, "balance", acct.Balance)
	return acct, nil
}

// ApplyDeposits credits a batch of deposit events in block order. Events
// seen before are skipped. It returns how many were credited.
func (w *Wallet) ApplyDeposits(ctx context.Context, events []store.Deposit) (int, error) {
	events = slices.Clone(events)
	slices.SortFunc(events, func(a, b store.Deposit) int {
		if a.Block != b.Block {
			if a.Block < b.Block {
				return -1
			}
			return 1
		}
		return a.LogIndex - b.LogIndex
	})
	for _, e := range events {
		if !e.Amount.IsPositive() || e.Address == "" {
			return 0, fmt.Errorf("deposit %d/%d: %w", e.Block, e.LogIndex, ErrInvalidAmount)
		}
	}

	applied := 0
	err := w.store.InTx(ctx, func(tx store.Tx) error {
		applied = 0
		next, err := tx.Cursor(ctx, DepositCursor)
		if err != nil {
			return err
		}
		for _, e := range events {
			if e.RecordedAt.IsZero() {
				e.RecordedAt = w.clock.Now()
			}
			fresh, err := tx.RecordDeposit(ctx, e)
			if err != nil {
				return err
			}
			if fresh {
				a, err := tx.EnsureAccount(ctx, e.Address, w.nonce())
				if err != nil {
					return err
				}
				a.Balance = a.Balance.Add(e.Amount)
				if err := tx.SaveAccount(ctx, a); err != nil {
					return err
				}
				applied++
			}
			next = max(next, e.Block+1)
		}
		return tx.SetCursor(ctx, DepositCursor, next)
	})
	if err != nil {
		return 0, err
	}
	if len(events) > 0 {
		w.logger.Info("deposits applied", "events", len(events), "credited", applied)
	}
	return applied, nil
}

// Cursor is the next block to scan for deposits.
func (w *Wallet) Cursor(ctx context.Context) (int64, error) {
	var n int64
	err := w.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.Cursor(ctx, DepositCursor)
		return err
	})
	return n, err
}
