package engine

import "errors"

var (
	ErrConflict            = errors.New("finish your current game first")
	ErrInvalidBet          = errors.New("please enter a valid bet amount")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrNoActiveRound       = errors.New("no game in progress")
	ErrNoPendingSettlement = errors.New("no game awaiting settlement")
	ErrInvalidAction       = errors.New("action not allowed for this hand")
	ErrDeckExhausted       = errors.New("deck is empty")
	ErrInvalidHand         = errors.New("invalid hand")
	ErrAccountNotFound     = errors.New("account not found")
)
