// Package game runs blackjack rounds for authenticated accounts on top of a
// store.Store. Every operation for one address is serialised; each one loads
// the account and round, applies the engine and saves both in a single unit
// of work.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blackjack-backend/server/engine"
	"blackjack-backend/server/store"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Publisher receives every snapshot produced by a successful operation.
type Publisher interface {
	Publish(address string, snap *Snapshot)
}

type Service struct {
	store   store.Store
	logger  *log.Logger
	clock   quartz.Clock
	locks   *locker
	newDeck func() engine.Deck
	newID   func() string
	pub     Publisher
}

type Option func(*Service)

func WithClock(c quartz.Clock) Option { return func(s *Service) { s.clock = c } }

// WithDeckSource replaces the shuffled 52-card deck each round starts from.
func WithDeckSource(f func() engine.Deck) Option { return func(s *Service) { s.newDeck = f } }

func WithIDs(f func() string) Option { return func(s *Service) { s.newID = f } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

func NewService(st store.Store, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		logger:  logger.WithPrefix("game"),
		clock:   quartz.NewReal(),
		locks:   newLocker(),
		newDeck: func() engine.Deck { return engine.NewDeck(nil) },
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot is the caller-facing view of a round after an operation.
type Snapshot struct {
	Round       *engine.Round     `json:"round"`
	Result      engine.ResultKind `json:"result"`
	PlayerTotal int               `json:"playerTotal"`
	SplitTotal  *int              `json:"splitTotal,omitempty"`
	DealerTotal int               `json:"dealerTotal"`
	Balance     decimal.Decimal   `json:"balance"`
	GameBalance decimal.Decimal   `json:"gameBalance"`
	Outcomes    []engine.Outcome  `json:"outcomes,omitempty"`
	Message     string            `json:"message"`
}

func (s *Service) Start(ctx context.Context, address string, bet decimal.Decimal) (*Snapshot, error) {
	unlock := s.locks.lock(address)
	defer unlock()

	if _, err := s.resolveLocked(ctx, address); err != nil && !errors.Is(err, engine.ErrNoPendingSettlement) {
		return nil, fmt.Errorf("settle previous round: %w", err)
	}

	var snap *Snapshot
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		acct, err := findAccount(ctx, tx, address)
		if err != nil {
			return err
		}
		if _, err := tx.FindActiveRound(ctx, address); err == nil {
			return engine.ErrConflict
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		r, res, err := engine.NewRound(s.newID(), acct, bet, s.newDeck(), s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.CreateRound(ctx, r); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}
		snap, err = newSnapshot(r, acct, res)
		return err
	})
	if err != nil {
		s.logger.Debug("start rejected", "address", address, "bet", bet, "err", err)
		return nil, err
	}
	s.logger.Info("round started", "address", address, "round", snap.Round.ID, "bet", bet, "result", snap.Result)
	s.publish(address, snap)
	return snap, nil
}

func (s *Service) Hit(ctx context.Context, address string) (*Snapshot, error) {
	return s.act(ctx, address, "hit", func(r *engine.Round, a *engine.Account, now time.Time) (engine.Result, error) {
		return r.Hit(a, now)
	})
}

func (s *Service) Stand(ctx context.Context, address string) (*Snapshot, error) {
	return s.act(ctx, address, "stand", func(r *engine.Round, _ *engine.Account, _ time.Time) (engine.Result, error) {
		return r.Stand()
	})
}

func (s *Service) Split(ctx context.Context, address string) (*Snapshot, error) {
	return s.act(ctx, address, "split", func(r *engine.Round, a *engine.Account, _ time.Time) (engine.Result, error) {
		return r.Split(a)
	})
}

func (s *Service) Double(ctx context.Context, address string) (*Snapshot, error) {
	return s.act(ctx, address, "double", func(r *engine.Round, a *engine.Account, _ time.Time) (engine.Result, error) {
		return r.Double(a)
	})
}

// Resolve settles the address's round that is waiting for settlement.
func (s *Service) Resolve(ctx context.Context, address string) (*Snapshot, error) {
	unlock := s.locks.lock(address)
	defer unlock()
	return s.resolveLocked(ctx, address)
}

// Current returns the in-progress round without changing it.
func (s *Service) Current(ctx context.Context, address string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		acct, err := findAccount(ctx, tx, address)
		if err != nil {
			return err
		}
		r, err := findActive(ctx, tx, address)
		if err != nil {
			return err
		}
		total, err := engine.HandTotal(r.PlayerHand)
		if err != nil {
			return err
		}
		snap, err = newSnapshot(r, acct, engine.Result{Kind: engine.Continue, Total: total})
		return err
	})
	return snap, err
}

// History lists the address's most recent rounds, newest first.
func (s *Service) History(ctx context.Context, address string, limit int) ([]*engine.Round, error) {
	var out []*engine.Round
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListRounds(ctx, address, limit)
		return err
	})
	return out, err
}

type actionFunc func(r *engine.Round, a *engine.Account, now time.Time) (engine.Result, error)

func (s *Service) act(ctx context.Context, address, action string, fn actionFunc) (*Snapshot, error) {
	unlock := s.locks.lock(address)
	defer unlock()

	var (
		snap *Snapshot
		res  engine.Result
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		acct, err := findAccount(ctx, tx, address)
		if err != nil {
			return err
		}
		r, err := findActive(ctx, tx, address)
		if err != nil {
			return err
		}
		if res, err = fn(r, acct, s.clock.Now()); err != nil {
			return err
		}
		if err := tx.SaveRound(ctx, r); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}
		snap, err = newSnapshot(r, acct, res)
		return err
	})
	if err != nil {
		s.logger.Debug(action+" rejected", "address", address, "err", err)
		return nil, err
	}
	s.logger.Debug(action, "address", address, "round", snap.Round.ID, "result", res.Kind, "total", res.Total)
	if res.Kind == engine.TurnOver {
		return s.resolveLocked(ctx, address)
	}
	if res.Kind == engine.Bust {
		s.logger.Info("round resolved", "address", address, "round", snap.Round.ID, "outcomes", snap.Outcomes)
	}
	s.publish(address, snap)
	return snap, nil
}

func (s *Service) resolveLocked(ctx context.Context, address string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.FindAwaitingSettlement(ctx, address)
		if errors.Is(err, store.ErrNotFound) {
			return engine.ErrNoPendingSettlement
		}
		if err != nil {
			return err
		}
		acct, err := findAccount(ctx, tx, address)
		if err != nil {
			return err
		}
		res, err := r.Settle(acct, s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.SaveRound(ctx, r); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}
		snap, err = newSnapshot(r, acct, res)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("round resolved", "address", address, "round", snap.Round.ID,
		"outcomes", snap.Outcomes, "payout", snap.Round.Payout)
	s.publish(address, snap)
	return snap, nil
}

func (s *Service) publish(address string, snap *Snapshot) {
	if s.pub != nil {
		s.pub.Publish(address, snap)
	}
}

func findAccount(ctx context.Context, tx store.Tx, address string) (*engine.Account, error) {
	a, err := tx.FindAccount(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, engine.ErrAccountNotFound
	}
	return a, err
}

func findActive(ctx context.Context, tx store.Tx, address string) (*engine.Round, error) {
	r, err := tx.FindActiveRound(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, engine.ErrNoActiveRound
	}
	return r, err
}

func newSnapshot(r *engine.Round, a *engine.Account, res engine.Result) (*Snapshot, error) {
	player, err := engine.HandTotal(r.PlayerHand)
	if err != nil {
		return nil, err
	}
	dealer, err := engine.HandTotal(r.DealerHand)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Round:       r,
		Result:      res.Kind,
		PlayerTotal: player,
		DealerTotal: dealer,
		Balance:     a.Balance,
		GameBalance: a.GameBalance,
		Outcomes:    r.Outcomes,
		Message:     res.Message,
	}
	if r.HasSplit() {
		split, err := engine.HandTotal(r.SplitHand)
		if err != nil {
			return nil, err
		}
		snap.SplitTotal = &split
	}
	if snap.Message == "" {
		snap.Message = r.Message
	}
	return snap, nil
}
