package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"lottery/database"
	"lottery/domain/entities"
	"lottery/infrastructure/observability"
)

// ledgerRowID is the id of the single ledger row
const ledgerRowID = 1

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

const selectLedger = `
	SELECT id, operator_address, round_number, pool::text, round_opened_at, created_at, updated_at
	FROM ledgers
	WHERE id = $1
`

// Get returns the ledger with its open round, or nil if it has not been deployed
func (r *LedgerRepository) Get(ctx context.Context) (*entities.LedgerState, error) {
	defer observability.MeasureDatabaseQuery("ledger", "Get")()
	return r.get(ctx, selectLedger)
}

// GetForUpdate is Get with a row lock held until the transaction ends
func (r *LedgerRepository) GetForUpdate(ctx context.Context) (*entities.LedgerState, error) {
	defer observability.MeasureDatabaseQuery("ledger", "GetForUpdate")()
	return r.get(ctx, selectLedger+" FOR UPDATE")
}

func (r *LedgerRepository) get(ctx context.Context, query string) (*entities.LedgerState, error) {
	state, err := scanLedger(r.q.QueryRow(ctx, query, ledgerRowID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	entrants, err := r.GetEntrants(ctx, state.Round.Number)
	if err != nil {
		return nil, err
	}
	state.Round.Entrants = entrants

	return state, nil
}

// Create inserts the ledger with an empty first round
func (r *LedgerRepository) Create(ctx context.Context, operator common.Address, openedAt time.Time) (*entities.LedgerState, error) {
	defer observability.MeasureDatabaseQuery("ledger", "Create")()

	query := `
		INSERT INTO ledgers (id, operator_address, round_number, pool, round_opened_at)
		VALUES ($1, $2, 1, 0, $3)
		RETURNING id, operator_address, round_number, pool::text, round_opened_at, created_at, updated_at
	`

	state, err := scanLedger(r.q.QueryRow(ctx, query, ledgerRowID, operator.Hex(), openedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}
	state.Round.Entrants = []common.Address{}

	return state, nil
}

// AddEntry records an entry and stores the new pool balance of its round
func (r *LedgerRepository) AddEntry(ctx context.Context, entry *entities.LedgerEntry, pool *uint256.Int) error {
	defer observability.MeasureDatabaseQuery("ledger", "AddEntry")()

	query := `
		INSERT INTO ledger_entries (round_number, position, entrant_address, stake)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		int64(entry.RoundNumber),
		entry.Position,
		entry.Entrant.Hex(),
		entry.Stake.Dec(),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entry %d of round %d: %w", entry.Position, entry.RoundNumber, err)
	}

	tag, err := r.q.Exec(ctx, `
		UPDATE ledgers
		SET pool = $1::numeric, updated_at = NOW()
		WHERE id = $2 AND round_number = $3
	`, pool.Dec(), ledgerRowID, int64(entry.RoundNumber))
	if err != nil {
		return fmt.Errorf("failed to update pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("round %d is not the open round", entry.RoundNumber)
	}

	return nil
}

// AdvanceRound replaces the open round with next
func (r *LedgerRepository) AdvanceRound(ctx context.Context, next entities.Round) error {
	defer observability.MeasureDatabaseQuery("ledger", "AdvanceRound")()

	tag, err := r.q.Exec(ctx, `
		UPDATE ledgers
		SET round_number = $1, pool = $2::numeric, round_opened_at = $3, updated_at = NOW()
		WHERE id = $4 AND round_number < $1
	`, int64(next.Number), next.PoolOrZero().Dec(), next.OpenedAt, ledgerRowID)
	if err != nil {
		return fmt.Errorf("failed to advance to round %d: %w", next.Number, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cannot advance to round %d: ledger missing or already past it", next.Number)
	}

	return nil
}

// GetEntrants returns the ordered entrants of a round, open or drawn
func (r *LedgerRepository) GetEntrants(ctx context.Context, roundNumber uint64) ([]common.Address, error) {
	query := `
		SELECT entrant_address
		FROM ledger_entries
		WHERE round_number = $1
		ORDER BY position ASC
	`

	rows, err := r.q.Query(ctx, query, int64(roundNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to query entrants of round %d: %w", roundNumber, err)
	}
	defer rows.Close()

	entrants := []common.Address{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan entrant: %w", err)
		}
		addr, err := parseAddress(raw)
		if err != nil {
			return nil, err
		}
		entrants = append(entrants, addr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entrants: %w", err)
	}

	return entrants, nil
}

func scanLedger(row rowScanner) (*entities.LedgerState, error) {
	var (
		state    entities.LedgerState
		operator string
		round    int64
		pool     string
		openedAt time.Time
	)

	if err := row.Scan(&state.ID, &operator, &round, &pool, &openedAt, &state.CreatedAt, &state.UpdatedAt); err != nil {
		return nil, err
	}

	addr, err := parseAddress(operator)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(pool)
	if err != nil {
		return nil, err
	}

	state.Operator = addr
	state.Round = entities.Round{
		Number:   uint64(round),
		Pool:     amount,
		OpenedAt: openedAt,
		State:    entities.RoundStateOpen,
	}
	return &state, nil
}
