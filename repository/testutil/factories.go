package testutil

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"lottery/domain/entities"
)

// TestOperator is the operator address used by repository tests
var TestOperator = common.HexToAddress("0x00000000000000000000000000000000000000AA")

// TestAddress derives a deterministic address from a label
func TestAddress(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label))[12:])
}

// CreateTestEntry creates an entry of the minimum stake
func CreateTestEntry(roundNumber uint64, position int, entrant common.Address) *entities.LedgerEntry {
	return &entities.LedgerEntry{
		RoundNumber: roundNumber,
		Position:    position,
		Entrant:     entrant,
		Stake:       entities.MinimumStake(),
		CreatedAt:   time.Now(),
	}
}

// CreateTestDraw creates a draw record for a round with the given entrants
func CreateTestDraw(roundNumber uint64, winner common.Address, winnerIndex, entrantCount int) *entities.Draw {
	return &entities.Draw{
		RoundNumber:   roundNumber,
		Operator:      TestOperator,
		Winner:        winner,
		WinnerIndex:   winnerIndex,
		EntrantCount:  entrantCount,
		Payout:        new(uint256.Int).Mul(entities.MinimumStake(), uint256.NewInt(uint64(entrantCount))),
		Seed:          uint256.NewInt(123456789),
		Timestamp:     1700000000,
		SelectionHash: crypto.Keccak256Hash([]byte("selection")),
	}
}

// CreateTestBalanceHistory creates a deposit history entry
func CreateTestBalanceHistory(address common.Address, before, amount uint64) *entities.BalanceHistory {
	history := entities.NewCredit(address, uint256.NewInt(before), uint256.NewInt(amount), entities.TransactionTypeDeposit)
	history.TransactionMetadata["test"] = true
	return history
}
