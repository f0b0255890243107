package interfaces

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lottery/domain/entities"
	"lottery/events"
)

// LedgerRepository defines the interface for ledger state access
type LedgerRepository interface {
	// Get returns the ledger with its open round, or nil if it has not been deployed
	Get(ctx context.Context) (*entities.LedgerState, error)

	// GetForUpdate is Get with a row lock held until the transaction ends
	GetForUpdate(ctx context.Context) (*entities.LedgerState, error)

	// Create inserts the ledger with an empty first round
	Create(ctx context.Context, operator common.Address, openedAt time.Time) (*entities.LedgerState, error)

	// AddEntry records an entry and stores the new pool balance of its round
	AddEntry(ctx context.Context, entry *entities.LedgerEntry, pool *uint256.Int) error

	// AdvanceRound replaces the open round with next
	AdvanceRound(ctx context.Context, next entities.Round) error

	// GetEntrants returns the ordered entrants of a round, open or drawn
	GetEntrants(ctx context.Context, roundNumber uint64) ([]common.Address, error)
}

// DrawRepository defines the interface for draw history
type DrawRepository interface {
	// Create stores a draw and fills in its ID and CreatedAt
	Create(ctx context.Context, draw *entities.Draw) error

	// GetByRound returns the draw for a round, or nil if the round has not been drawn
	GetByRound(ctx context.Context, roundNumber uint64) (*entities.Draw, error)

	// GetRecent returns the most recent draws, newest first
	GetRecent(ctx context.Context, limit int) ([]*entities.Draw, error)
}

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByAddress retrieves an account, or nil if it does not exist
	GetByAddress(ctx context.Context, address common.Address) (*entities.Account, error)

	// GetByAddressForUpdate is GetByAddress with a row lock held until the transaction ends
	GetByAddressForUpdate(ctx context.Context, address common.Address) (*entities.Account, error)

	// GetOrCreateForUpdate locks the account, creating it with a zero balance if needed
	GetOrCreateForUpdate(ctx context.Context, address common.Address) (*entities.Account, error)

	// UpdateBalance sets an account's balance
	UpdateBalance(ctx context.Context, address common.Address, newBalance *uint256.Int) error
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *entities.BalanceHistory) error

	// GetByAddress returns balance history for an account, newest first
	GetByAddress(ctx context.Context, address common.Address, limit int) ([]*entities.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}
