package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blackjack-backend/server/auth"
	"blackjack-backend/server/engine"
	"blackjack-backend/server/feed"
	"blackjack-backend/server/game"
	"blackjack-backend/server/judge"
	"blackjack-backend/server/store"
	"blackjack-backend/server/wallet"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

type API struct {
	Game        *game.Service
	Wallet      *wallet.Wallet
	Feed        *feed.Hub
	Validator   auth.Validator
	AdminSecret string
	Logger      *log.Logger
}

const (
	defaultHistory = 20
	maxHistory     = 200
)

func Router(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(api.Logger))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/auth/nonce/{address}", api.nonce)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(api.Validator))

		r.Get("/api/auth/balance", api.balance)
		r.Post("/api/auth/withdraw", api.withdraw)

		r.Route("/api/blackjack", func(r chi.Router) {
			r.Post("/start", api.start)
			r.Post("/hit", api.action(api.Game.Hit))
			r.Post("/stand", api.action(api.Game.Stand))
			r.Post("/split", api.action(api.Game.Split))
			r.Post("/double", api.action(api.Game.Double))
			r.Post("/resolve", api.action(api.Game.Resolve))
			r.Get("/current", api.action(api.Game.Current))
			r.Get("/rounds", api.rounds)
			r.Get("/stats", api.stats)
			r.Get("/odds", api.odds)
			r.Get("/feed", api.feed)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin(api.AdminSecret))
		r.Post("/deposits", api.deposits)
		r.Get("/deposits/cursor", api.cursor)
	})
	return r
}

func (a *API) nonce(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(chi.URLParam(r, "address"))
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address is required"})
		return
	}
	n, err := a.Wallet.Nonce(r.Context(), address)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nonce": n})
}

func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	acct, err := a.Wallet.Balance(r.Context(), caller(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Protected data", "user": acct})
}

type amountRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	BetAmount decimal.Decimal `json:"betAmount"`
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !a.decode(w, r, &req) {
		return
	}
	acct, err := a.Wallet.Withdraw(r.Context(), caller(r), req.Amount)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Withdrawal successful", "amount": req.Amount, "user": acct})
}

func (a *API) start(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !a.decode(w, r, &req) {
		return
	}
	snap, err := a.Game.Start(r.Context(), caller(r), req.BetAmount)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeGame(w, snap)
}

func (a *API) action(op func(ctx context.Context, address string) (*game.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := op(r.Context(), caller(r))
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeGame(w, snap)
	}
}

func (a *API) rounds(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistory)
	}
	list, err := a.Game.History(r.Context(), caller(r), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if list == nil {
		list = []*engine.Round{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": list})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	st, err := a.Game.Stats(r.Context(), caller(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": st, "winRate": st.WinRate()})
}

func (a *API) odds(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Game.Current(r.Context(), caller(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	round := snap.Round
	stand, err := judge.StandOdds(round.PlayerHand, round.DealerHand, judge.DefaultTrials, nil)
	if err != nil {
		a.writeError(w, err)
		return
	}
	bust, err := judge.BustChance(round.PlayerHand, round.DealerHand)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stand": stand, "hitBust": bust})
}

func (a *API) feed(w http.ResponseWriter, r *http.Request) {
	a.Feed.ServeWS(w, r, caller(r))
}

type depositsRequest struct {
	Deposits []store.Deposit `json:"deposits"`
}

func (a *API) deposits(w http.ResponseWriter, r *http.Request) {
	var req depositsRequest
	if !a.decode(w, r, &req) {
		return
	}
	for i := range req.Deposits {
		req.Deposits[i].Address = strings.ToLower(req.Deposits[i].Address)
	}
	n, err := a.Wallet.ApplyDeposits(r.Context(), req.Deposits)
	if err != nil {
		a.writeError(w, err)
		return
	}
	cur, err := a.Wallet.Cursor(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credited": n, "cursor": cur})
}

func (a *API) cursor(w http.ResponseWriter, r *http.Request) {
	cur, err := a.Wallet.Cursor(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cursor": cur})
}

func caller(r *http.Request) string {
	addr, _ := auth.AddressFrom(r.Context())
	return addr
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidBet),
		errors.Is(err, engine.ErrInsufficientFunds),
		errors.Is(err, engine.ErrNoActiveRound),
		errors.Is(err, engine.ErrNoPendingSettlement),
		errors.Is(err, engine.ErrInvalidAction),
		errors.Is(err, engine.ErrDeckExhausted),
		errors.Is(err, wallet.ErrInvalidAmount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		a.Logger.Error("request failed", "err", err)
		msg = "Server error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeGame(w http.ResponseWriter, snap *game.Snapshot) {
	writeJSON(w, http.StatusOK, map[string]any{"message": snap.Message, "game": snap})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	logger = logger.WithPrefix("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug(r.Method+" "+r.URL.Path, "status", ww.Status(), "dur", time.Since(start),
				"req", middleware.GetReqID(r.Context()))
		})
	}
}
