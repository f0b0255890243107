package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DrawEnvironment is the entropy a draw was computed from
type DrawEnvironment struct {
	Seed      *uint256.Int // Stands in for block difficulty
	Timestamp uint64       // Unix seconds at draw time
}

// Draw records the outcome of a completed round
type Draw struct {
	ID            int64          `db:"id"`
	RoundNumber   uint64         `db:"round_number"`
	Operator      common.Address `db:"operator_address"`
	Winner        common.Address `db:"winner_address"`
	WinnerIndex   int            `db:"winner_index"`
	EntrantCount  int            `db:"entrant_count"`
	Payout        *uint256.Int   `db:"payout"`
	Seed          *uint256.Int   `db:"seed"`
	Timestamp     uint64         `db:"draw_timestamp"`
	SelectionHash common.Hash    `db:"selection_hash"`
	CreatedAt     time.Time      `db:"created_at"`
}

// Environment returns the entropy the draw was selected with
func (d *Draw) Environment() DrawEnvironment {
	return DrawEnvironment{
		Seed:      d.Seed,
		Timestamp: d.Timestamp,
	}
}
