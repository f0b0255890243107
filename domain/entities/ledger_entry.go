package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// LedgerEntry is a single accepted stake in a round
type LedgerEntry struct {
	ID          int64          `db:"id"`
	RoundNumber uint64         `db:"round_number"`
	Position    int            `db:"position"`
	Entrant     common.Address `db:"entrant_address"`
	Stake       *uint256.Int   `db:"stake"`
	CreatedAt   time.Time      `db:"created_at"`
}
