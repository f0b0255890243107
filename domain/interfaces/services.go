package interfaces

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lottery/domain/entities"
)

// LotteryService defines the interface for ledger operations
type LotteryService interface {
	// Deploy creates the ledger owned by operator. Deploying again with the same
	// operator returns the existing ledger.
	Deploy(ctx context.Context, operator common.Address) (*entities.LedgerState, error)

	// Enter stakes from the caller's account into the open round
	Enter(ctx context.Context, caller common.Address, stake *uint256.Int) (*EntryResult, error)

	// GetPlayers returns the entrants of the open round. Operator only.
	GetPlayers(ctx context.Context, caller common.Address) ([]common.Address, error)

	// PickWinner draws the open round and pays the pool to the winner. Operator only.
	PickWinner(ctx context.Context, caller common.Address) (*PickWinnerResult, error)

	// GetLedgerInfo returns the public view of the ledger
	GetLedgerInfo(ctx context.Context) (*LedgerInfo, error)

	// GetDraw returns a completed draw with its entrants and verification result
	GetDraw(ctx context.Context, roundNumber uint64) (*DrawDetail, error)

	// RecentDraws returns the latest draws, newest first
	RecentDraws(ctx context.Context, limit int) ([]*entities.Draw, error)
}

// AccountService defines the interface for account operations
type AccountService interface {
	// Fund deposits amount into an account, creating it if needed
	Fund(ctx context.Context, address common.Address, amount *uint256.Int) (*entities.Account, error)

	// GetAccount returns an account by address
	GetAccount(ctx context.Context, address common.Address) (*entities.Account, error)

	// GetHistory returns the latest balance changes of an account
	GetHistory(ctx context.Context, address common.Address, limit int) ([]*entities.BalanceHistory, error)
}

// LedgerInfo is the public view of the ledger
type LedgerInfo struct {
	Operator      common.Address
	RoundNumber   uint64
	EntrantCount  int
	Pool          *uint256.Int
	RoundOpenedAt time.Time
}

// EntryResult is returned from Enter
type EntryResult struct {
	Entry   *entities.LedgerEntry
	Pool    *uint256.Int // Pool of the round after the entry
	Balance *uint256.Int // Caller's remaining balance
}

// PickWinnerResult is returned from PickWinner
type PickWinnerResult struct {
	Draw          *entities.Draw
	WinnerBalance *uint256.Int
	NextRound     entities.Round
}

// DrawDetail is a completed draw with the data needed to replay it
type DrawDetail struct {
	Draw     *entities.Draw
	Entrants []common.Address
	Verified bool
}
