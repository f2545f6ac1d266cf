package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blackjack-backend/server/engine"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema embed.FS

type DB struct{ *pgxpool.Pool }

func Open(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close()                         { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

func (db *DB) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	if err := fn(pgTx{tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

/* -----------------------------
   Accounts
------------------------------*/

func (t pgTx) FindAccount(ctx context.Context, address string) (*engine.Account, error) {
	var (
		a            engine.Account
		bal, gameBal string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT address, nonce, balance::text, game_balance::text
		  FROM accounts
		 WHERE address = $1
		   FOR UPDATE
	`, address).Scan(&a.Address, &a.Nonce, &bal, &gameBal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Balance, err = decimal.NewFromString(bal); err != nil {
		return nil, fmt.Errorf("account %s balance: %w", address, err)
	}
	if a.GameBalance, err = decimal.NewFromString(gameBal); err != nil {
		return nil, fmt.Errorf("account %s game balance: %w", address, err)
	}
	return &a, nil
}

func (t pgTx) EnsureAccount(ctx context.Context, address string, nonce int64) (*engine.Account, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO accounts(address, nonce) VALUES ($1, $2)
		ON CONFLICT (address) DO NOTHING
	`, address, nonce); err != nil {
		return nil, err
	}
	return t.FindAccount(ctx, address)
}

func (t pgTx) SaveAccount(ctx context.Context, a *engine.Account) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts
		   SET nonce = $2,
		       balance = $3::text::numeric,
		       game_balance = $4::text::numeric
		 WHERE address = $1
	`, a.Address, a.Nonce, a.Balance.String(), a.GameBalance.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

/* -----------------------------
   Rounds
------------------------------*/

const roundColumns = `
	id, address, player_hand, split_hand, dealer_hand, deck,
	bet_amount::text, stake::text, status, outcomes, payout::text, message,
	created_at, settled_at`

func (t pgTx) findRound(ctx context.Context, address string, where string) (*engine.Round, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+roundColumns+`
		  FROM rounds
		 WHERE address = $1 AND `+where+`
		 ORDER BY created_at DESC
		 LIMIT 1`, address)
	r, err := scanRound(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (t pgTx) FindActiveRound(ctx context.Context, address string) (*engine.Round, error) {
	return t.findRound(ctx, address, "status = 0")
}

func (t pgTx) FindAwaitingSettlement(ctx context.Context, address string) (*engine.Round, error) {
	return t.findRound(ctx, address, "status = 1")
}

func (t pgTx) CreateRound(ctx context.Context, r *engine.Round) error {
	enc, err := encodeRound(r)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO rounds(
			id, address, player_hand, split_hand, dealer_hand, deck,
			bet_amount, stake, status, outcomes, payout, message,
			created_at, settled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7::text::numeric, $8::text::numeric, $9, $10, $11::text::numeric, $12,
			$13, $14
		)
	`, r.ID, r.Address, enc.player, enc.split, enc.dealer, enc.deck,
		r.BetAmount.String(), r.Stake.String(), int16(r.Status), enc.outcomes, r.Payout.String(), r.Message,
		r.CreatedAt, r.SettledAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return engine.ErrConflict
	}
	return err
}

func (t pgTx) SaveRound(ctx context.Context, r *engine.Round) error {
	enc, err := encodeRound(r)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE rounds
		   SET player_hand = $2,
		       split_hand = $3,
		       dealer_hand = $4,
		       deck = $5,
		       stake = $6::text::numeric,
		       status = $7,
		       outcomes = $8,
		       payout = $9::text::numeric,
		       message = $10,
		       settled_at = $11
		 WHERE id = $1
	`, r.ID, enc.player, enc.split, enc.dealer, enc.deck, r.Stake.String(),
		int16(r.Status), enc.outcomes, r.Payout.String(), r.Message, r.SettledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t pgTx) ListRounds(ctx context.Context, address string, limit int) ([]*engine.Round, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+roundColumns+`
		  FROM rounds
		 WHERE address = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*engine.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type encodedRound struct {
	player, split, dealer, deck, outcomes []byte
}

func encodeRound(r *engine.Round) (encodedRound, error) {
	var (
		e   encodedRound
		err error
	)
	for _, f := range []struct {
		dst *[]byte
		v   any
	}{
		{&e.player, nonNil(r.PlayerHand)},
		{&e.split, nonNil(r.SplitHand)},
		{&e.dealer, nonNil(r.DealerHand)},
		{&e.deck, nonNil([]engine.Card(r.Deck))},
		{&e.outcomes, nonNil(r.Outcomes)},
	} {
		if *f.dst, err = json.Marshal(f.v); err != nil {
			return e, fmt.Errorf("encode round %s: %w", r.ID, err)
		}
	}
	return e, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanRound(row pgx.Row) (*engine.Round, error) {
	var (
		r                                     engine.Round
		player, split, dealer, deck, outcomes []byte
		bet, stake, payout                    string
		status                                int16
		settled                               *time.Time
	)
	if err := row.Scan(&r.ID, &r.Address, &player, &split, &dealer, &deck,
		&bet, &stake, &status, &outcomes, &payout, &r.Message, &r.CreatedAt, &settled); err != nil {
		return nil, err
	}
	r.Status = engine.Status(status)
	r.SettledAt = settled
	var err error
	if r.BetAmount, err = decimal.NewFromString(bet); err != nil {
		return nil, err
	}
	if r.Stake, err = decimal.NewFromString(stake); err != nil {
		return nil, err
	}
	if r.Payout, err = decimal.NewFromString(payout); err != nil {
		return nil, err
	}
	var d []engine.Card
	for _, f := range []struct {
		src []byte
		dst any
	}{
		{player, &r.PlayerHand},
		{split, &r.SplitHand},
		{dealer, &r.DealerHand},
		{deck, &d},
		{outcomes, &r.Outcomes},
	} {
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return nil, fmt.Errorf("round %s: %w: %v", r.ID, engine.ErrInvalidHand, err)
		}
	}
	r.Deck = engine.Deck(d)
	return &r, nil
}

/* -----------------------------
   Deposits & cursors
------------------------------*/

func (t pgTx) RecordDeposit(ctx context.Context, d Deposit) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO deposits(block, log_index, address, amount, recorded_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5)
		ON CONFLICT (block, log_index) DO NOTHING
	`, d.Block, d.LogIndex, d.Address, d.Amount.String(), d.RecordedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t pgTx) Cursor(ctx context.Context, name string) (int64, error) {
	var v int64
	err := t.tx.QueryRow(ctx, `SELECT value FROM cursors WHERE name = $1`, name).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (t pgTx) SetCursor(ctx context.Context, name string, value int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO cursors(name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE
		  SET value = EXCLUDED.value,
		      updated_at = now()
	`, name, value)
	return err
}
