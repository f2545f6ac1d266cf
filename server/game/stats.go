package game

import (
	"context"
	"math"

	"blackjack-backend/server/engine"

	"github.com/shopspring/decimal"
)

// statsWindow bounds how many rounds Stats reads back.
const statsWindow = 1000

type AccountStats struct {
	Rounds     int             `json:"rounds"`
	Hands      int             `json:"hands"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	Ties       int             `json:"ties"`
	Blackjacks int             `json:"blackjacks"`
	Busts      int             `json:"busts"`
	Splits     int             `json:"splits"`
	Wagered    decimal.Decimal `json:"wagered"`
	Returned   decimal.Decimal `json:"returned"`
	Net        decimal.Decimal `json:"net"`
	WinRateLo  float64         `json:"winRateLow"`
	WinRateHi  float64         `json:"winRateHigh"`
}

// WinRate counts a tie as half a win.
func (s *AccountStats) WinRate() float64 {
	if s.Hands == 0 {
		return 0
	}
	return (float64(s.Wins) + 0.5*float64(s.Ties)) / float64(s.Hands)
}

func (s *AccountStats) add(r *engine.Round) {
	if r.Status != engine.Resolved {
		return
	}
	s.Rounds++
	if r.HasSplit() {
		s.Splits++
	}
	for _, o := range r.Outcomes {
		s.Hands++
		switch o {
		case engine.Win:
			s.Wins++
		case engine.Loss:
			s.Losses++
		case engine.Tie:
			s.Ties++
		}
	}
	if !r.HasSplit() && len(r.PlayerHand) == 2 && len(r.DealerHand) == 1 && len(r.Outcomes) == 1 && r.Outcomes[0] == engine.Win {
		if total, err := engine.HandTotal(r.PlayerHand); err == nil && total == 21 {
			s.Blackjacks++
		}
	}
	if total, err := engine.HandTotal(r.PlayerHand); err == nil && total > 21 && !r.HasSplit() {
		s.Busts++
	}
	s.Wagered = s.Wagered.Add(r.Stake)
	s.Returned = s.Returned.Add(r.Payout)
}

// Stats aggregates the address's settled rounds.
func (s *Service) Stats(ctx context.Context, address string) (*AccountStats, error) {
	rounds, err := s.History(ctx, address, statsWindow)
	if err != nil {
		return nil, err
	}
	return summarize(rounds), nil
}

func summarize(rounds []*engine.Round) *AccountStats {
	st := &AccountStats{Wagered: decimal.Zero, Returned: decimal.Zero}
	for _, r := range rounds {
		st.add(r)
	}
	st.Net = st.Returned.Sub(st.Wagered)
	st.WinRateLo, st.WinRateHi = WilsonCI95(st.Wins, st.Ties, st.Hands)
	return st
}

// WilsonCI95 for a Bernoulli win rate, ties counted as half a win.
func WilsonCI95(wins, ties, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(ties)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}
