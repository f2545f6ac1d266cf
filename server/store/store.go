package store

import (
	"context"
	"errors"
	"time"

	"blackjack-backend/server/engine"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Store runs units of work. fn's writes become visible only if it returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	Close()
}

type Tx interface {
	// FindAccount locks the account row for the rest of the transaction.
	FindAccount(ctx context.Context, address string) (*engine.Account, error)
	// EnsureAccount creates the account with the given nonce if it is missing.
	EnsureAccount(ctx context.Context, address string, nonce int64) (*engine.Account, error)
	SaveAccount(ctx context.Context, a *engine.Account) error

	FindActiveRound(ctx context.Context, address string) (*engine.Round, error)
	FindAwaitingSettlement(ctx context.Context, address string) (*engine.Round, error)
	// CreateRound fails with engine.ErrConflict if the address already has an
	// open round.
	CreateRound(ctx context.Context, r *engine.Round) error
	SaveRound(ctx context.Context, r *engine.Round) error
	ListRounds(ctx context.Context, address string, limit int) ([]*engine.Round, error)

	// RecordDeposit reports false when the (block, log index) pair was
	// already recorded.
	RecordDeposit(ctx context.Context, d Deposit) (bool, error)
	Cursor(ctx context.Context, name string) (int64, error)
	SetCursor(ctx context.Context, name string, value int64) error
}

type Deposit struct {
	Block      int64           `json:"block"`
	LogIndex   int             `json:"logIndex"`
	Address    string          `json:"address"`
	Amount     decimal.Decimal `json:"amount"`
	RecordedAt time.Time       `json:"recordedAt"`
}
