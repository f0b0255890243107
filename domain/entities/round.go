package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RoundState represents where a round is in its lifecycle
type RoundState string

const (
	RoundStateOpen  RoundState = "open"
	RoundStateDrawn RoundState = "drawn"
)

// Round is the value type for a single lottery round.
// Methods never mutate the receiver; each transition returns a new Round.
type Round struct {
	Number   uint64
	Entrants []common.Address
	Pool     *uint256.Int
	OpenedAt time.Time
	State    RoundState
}

// NewRound returns an empty open round
func NewRound(number uint64, openedAt time.Time) Round {
	return Round{
		Number:   number,
		Entrants: []common.Address{},
		Pool:     new(uint256.Int),
		OpenedAt: openedAt,
		State:    RoundStateOpen,
	}
}

// IsOpen returns true if the round still accepts entries
func (r Round) IsOpen() bool {
	return r.State == RoundStateOpen
}

// IsEmpty returns true if nobody has entered the round
func (r Round) IsEmpty() bool {
	return len(r.Entrants) == 0
}

// EntrantCount returns the number of accepted entries
func (r Round) EntrantCount() int {
	return len(r.Entrants)
}

// PoolOrZero returns the pooled balance, treating a nil pool as zero
func (r Round) PoolOrZero() *uint256.Int {
	if r.Pool == nil {
		return new(uint256.Int)
	}
	return r.Pool.Clone()
}

// WithEntry returns a copy of the round with the entrant appended and the stake pooled.
// The boolean is false when adding the stake would overflow the pool.
func (r Round) WithEntry(entrant common.Address, stake *uint256.Int) (Round, bool) {
	pool, overflow := new(uint256.Int).AddOverflow(r.PoolOrZero(), stake)
	if overflow {
		return r, false
	}

	next := r
	next.Entrants = append(r.Players(), entrant)
	next.Pool = pool
	return next, true
}

// Players returns a copy of the ordered entrant list
func (r Round) Players() []common.Address {
	players := make([]common.Address, len(r.Entrants))
	copy(players, r.Entrants)
	return players
}

// Close marks the round as drawn
func (r Round) Close() Round {
	closed := r
	closed.Entrants = r.Players()
	closed.Pool = r.PoolOrZero()
	closed.State = RoundStateDrawn
	return closed
}

// Next returns the empty open round that follows this one
func (r Round) Next(openedAt time.Time) Round {
	return NewRound(r.Number+1, openedAt)
}
