package engine

import "fmt"

// HandTotal sums a hand, counting aces as 1 instead of 11 for as long as the
// hand would otherwise be over 21. The result may still be a bust.
func HandTotal(hand []Card) (int, error) {
	total, aces := 0, 0
	for i, c := range hand {
		if c.Value < 2 || c.Value > 11 {
			return 0, fmt.Errorf("%w: card %d has value %d", ErrInvalidHand, i, c.Value)
		}
		if c.Value == 11 {
			aces++
		}
		total += c.Value
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total, nil
}
