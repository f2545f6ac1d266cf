package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"blackjack-backend/server/engine"
)

// Memory is an in-process Store. Transactions are serialised and applied
// copy-on-commit, so a failing unit of work leaves no trace.
type Memory struct {
	mu    sync.Mutex
	state memState
}

type depositKey struct {
	block int64
	index int
}

type memState struct {
	accounts map[string]engine.Account
	rounds   map[string]memRound
	deposits map[depositKey]Deposit
	cursors  map[string]int64
	seq      int64
}

type memRound struct {
	seq   int64
	round engine.Round
}

func NewMemory() *Memory {
	return &Memory{state: memState{
		accounts: map[string]engine.Account{},
		rounds:   map[string]memRound{},
		deposits: map[depositKey]Deposit{},
		cursors:  map[string]int64{},
	}}
}

func (m *Memory) Close() {}

func (m *Memory) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := memState{
		accounts: maps.Clone(m.state.accounts),
		rounds:   maps.Clone(m.state.rounds),
		deposits: maps.Clone(m.state.deposits),
		cursors:  maps.Clone(m.state.cursors),
		seq:      m.state.seq,
	}
	if err := fn(&memTx{s: &work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

type memTx struct{ s *memState }

func (t *memTx) FindAccount(_ context.Context, address string) (*engine.Account, error) {
	a, ok := t.s.accounts[address]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (t *memTx) EnsureAccount(ctx context.Context, address string, nonce int64) (*engine.Account, error) {
	if _, ok := t.s.accounts[address]; !ok {
		t.s.accounts[address] = engine.Account{Address: address, Nonce: nonce}
	}
	return t.FindAccount(ctx, address)
}

func (t *memTx) SaveAccount(_ context.Context, a *engine.Account) error {
	if _, ok := t.s.accounts[a.Address]; !ok {
		return ErrNotFound
	}
	t.s.accounts[a.Address] = *a
	return nil
}

func (t *memTx) latest(address string, match func(engine.Status) bool) (*engine.Round, error) {
	var best *memRound
	for _, mr := range t.s.rounds {
		if mr.round.Address != address || !match(mr.round.Status) {
			continue
		}
		if best == nil || mr.seq > best.seq {
			mr := mr
			best = &mr
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return cloneRound(best.round), nil
}

func (t *memTx) FindActiveRound(_ context.Context, address string) (*engine.Round, error) {
	return t.latest(address, func(s engine.Status) bool { return s == engine.InProgress })
}

func (t *memTx) FindAwaitingSettlement(_ context.Context, address string) (*engine.Round, error) {
	return t.latest(address, func(s engine.Status) bool { return s == engine.AwaitingSettlement })
}

func (t *memTx) CreateRound(_ context.Context, r *engine.Round) error {
	if _, err := t.latest(r.Address, func(s engine.Status) bool { return s != engine.Resolved }); err == nil {
		return engine.ErrConflict
	}
	if _, ok := t.s.rounds[r.ID]; ok {
		return engine.ErrConflict
	}
	t.s.seq++
	t.s.rounds[r.ID] = memRound{seq: t.s.seq, round: *cloneRound(*r)}
	return nil
}

func (t *memTx) SaveRound(_ context.Context, r *engine.Round) error {
	mr, ok := t.s.rounds[r.ID]
	if !ok {
		return ErrNotFound
	}
	mr.round = *cloneRound(*r)
	t.s.rounds[r.ID] = mr
	return nil
}

func (t *memTx) ListRounds(_ context.Context, address string, limit int) ([]*engine.Round, error) {
	var mine []memRound
	for _, mr := range t.s.rounds {
		if mr.round.Address == address {
			mine = append(mine, mr)
		}
	}
	slices.SortFunc(mine, func(a, b memRound) int { return int(b.seq - a.seq) })
	if limit > 0 && len(mine) > limit {
		mine = mine[:limit]
	}
	out := make([]*engine.Round, len(mine))
	for i, mr := range mine {
		out[i] = cloneRound(mr.round)
	}
	return out, nil
}

func (t *memTx) RecordDeposit(_ context.Context, d Deposit) (bool, error) {
	k := depositKey{d.Block, d.LogIndex}
	if _, ok := t.s.deposits[k]; ok {
		return false, nil
	}
	t.s.deposits[k] = d
	return true, nil
}

func (t *memTx) Cursor(_ context.Context, name string) (int64, error) {
	return t.s.cursors[name], nil
}

func (t *memTx) SetCursor(_ context.Context, name string, value int64) error {
	t.s.cursors[name] = value
	return nil
}

func cloneRound(r engine.Round) *engine.Round {
	r.PlayerHand = slices.Clone(r.PlayerHand)
	r.SplitHand = slices.Clone(r.SplitHand)
	r.DealerHand = slices.Clone(r.DealerHand)
	r.Deck = slices.Clone(r.Deck)
	r.Outcomes = slices.Clone(r.Outcomes)
	if r.SettledAt != nil {
		t := *r.SettledAt
		r.SettledAt = &t
	}
	return &r
}
