package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerState is the persisted form of the lottery ledger
type LedgerState struct {
	ID        int64          `db:"id"`
	Operator  common.Address `db:"operator_address"`
	Round     Round
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
