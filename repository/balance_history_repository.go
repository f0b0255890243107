package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"lottery/database"
	"lottery/domain/entities"
)

// BalanceHistoryRepository implements the BalanceHistoryRepository interface
type BalanceHistoryRepository struct {
	q queryable
}

// NewBalanceHistoryRepository creates a new balance history repository
func NewBalanceHistoryRepository(db *database.DB) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: db.Pool}
}

// newBalanceHistoryRepositoryWithTx creates a new balance history repository with a transaction
func newBalanceHistoryRepositoryWithTx(tx queryable) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: tx}
}

// Record creates a new balance history entry
func (r *BalanceHistoryRepository) Record(ctx context.Context, history *entities.BalanceHistory) error {
	metadata := history.TransactionMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	var roundNumber *int64
	if history.RoundNumber != nil {
		n := int64(*history.RoundNumber)
		roundNumber = &n
	}

	query := `
		INSERT INTO balance_history
		(address, balance_before, balance_after, change_amount, transaction_type, transaction_metadata, round_number)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, $6, $7)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		history.Address.Hex(),
		history.BalanceBefore.Dec(),
		history.BalanceAfter.Dec(),
		history.ChangeAmount.String(),
		string(history.TransactionType),
		metadataJSON,
		roundNumber,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record balance history for %s: %w", history.Address.Hex(), err)
	}

	return nil
}

// GetByAddress returns balance history for an account, newest first
func (r *BalanceHistoryRepository) GetByAddress(ctx context.Context, address common.Address, limit int) ([]*entities.BalanceHistory, error) {
	query := `
		SELECT id, address, balance_before::text, balance_after::text, change_amount::text,
		       transaction_type, transaction_metadata, round_number, created_at
		FROM balance_history
		WHERE address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, address.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance history for %s: %w", address.Hex(), err)
	}
	defer rows.Close()

	var histories []*entities.BalanceHistory
	for rows.Next() {
		var (
			history      entities.BalanceHistory
			raw          string
			before       string
			after        string
			change       string
			txType       string
			metadataJSON []byte
			roundNumber  *int64
		)

		err := rows.Scan(
			&history.ID,
			&raw,
			&before,
			&after,
			&change,
			&txType,
			&metadataJSON,
			&roundNumber,
			&history.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}

		if history.Address, err = parseAddress(raw); err != nil {
			return nil, err
		}
		if history.BalanceBefore, err = parseAmount(before); err != nil {
			return nil, err
		}
		if history.BalanceAfter, err = parseAmount(after); err != nil {
			return nil, err
		}
		if history.ChangeAmount, err = parseSignedAmount(change); err != nil {
			return nil, err
		}
		history.TransactionType = entities.TransactionType(txType)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &history.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}

		if roundNumber != nil {
			n := uint64(*roundNumber)
			history.RoundNumber = &n
		}

		histories = append(histories, &history)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance history: %w", err)
	}

	return histories, nil
}
