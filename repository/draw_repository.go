package repository

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"lottery/database"
	"lottery/domain/entities"
	"lottery/infrastructure/observability"
)

// DrawRepository implements the DrawRepository interface
type DrawRepository struct {
	q queryable
}

// NewDrawRepository creates a new draw repository
func NewDrawRepository(db *database.DB) *DrawRepository {
	return &DrawRepository{q: db.Pool}
}

// newDrawRepositoryWithTx creates a new draw repository with a transaction
func newDrawRepositoryWithTx(tx queryable) *DrawRepository {
	return &DrawRepository{q: tx}
}

const drawColumns = `
	id, round_number, operator_address, winner_address, winner_index, entrant_count,
	payout::text, seed::text, draw_timestamp::text, selection_hash, created_at
`

// Create stores a draw and fills in its ID and CreatedAt
func (r *DrawRepository) Create(ctx context.Context, draw *entities.Draw) error {
	defer observability.MeasureDatabaseQuery("draw", "Create")()

	seed := "0"
	if draw.Seed != nil {
		seed = draw.Seed.Dec()
	}

	query := `
		INSERT INTO draws (
			round_number, operator_address, winner_address, winner_index, entrant_count,
			payout, seed, draw_timestamp, selection_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		int64(draw.RoundNumber),
		draw.Operator.Hex(),
		draw.Winner.Hex(),
		draw.WinnerIndex,
		draw.EntrantCount,
		draw.Payout.Dec(),
		seed,
		fmt.Sprintf("%d", draw.Timestamp),
		draw.SelectionHash.Hex(),
	).Scan(&draw.ID, &draw.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create draw for round %d: %w", draw.RoundNumber, err)
	}

	return nil
}

// GetByRound returns the draw for a round, or nil if the round has not been drawn
func (r *DrawRepository) GetByRound(ctx context.Context, roundNumber uint64) (*entities.Draw, error) {
	defer observability.MeasureDatabaseQuery("draw", "GetByRound")()

	query := `SELECT ` + drawColumns + ` FROM draws WHERE round_number = $1`

	draw, err := scanDraw(r.q.QueryRow(ctx, query, int64(roundNumber)))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw for round %d: %w", roundNumber, err)
	}

	return draw, nil
}

// GetRecent returns the most recent draws, newest first
func (r *DrawRepository) GetRecent(ctx context.Context, limit int) ([]*entities.Draw, error) {
	query := `SELECT ` + drawColumns + ` FROM draws ORDER BY round_number DESC LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent draws: %w", err)
	}
	defer rows.Close()

	draws := []*entities.Draw{}
	for rows.Next() {
		draw, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		draws = append(draws, draw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draws: %w", err)
	}

	return draws, nil
}

func scanDraw(row rowScanner) (*entities.Draw, error) {
	var (
		draw      entities.Draw
		round     int64
		operator  string
		winner    string
		payout    string
		seed      string
		timestamp string
		hash      string
	)

	err := row.Scan(
		&draw.ID,
		&round,
		&operator,
		&winner,
		&draw.WinnerIndex,
		&draw.EntrantCount,
		&payout,
		&seed,
		&timestamp,
		&hash,
		&draw.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	draw.RoundNumber = uint64(round)
	if draw.Operator, err = parseAddress(operator); err != nil {
		return nil, err
	}
	if draw.Winner, err = parseAddress(winner); err != nil {
		return nil, err
	}
	if draw.Payout, err = parseAmount(payout); err != nil {
		return nil, err
	}
	if draw.Seed, err = parseAmount(seed); err != nil {
		return nil, err
	}
	ts, err := parseAmount(timestamp)
	if err != nil {
		return nil, err
	}
	if !ts.IsUint64() {
		return nil, fmt.Errorf("stored draw timestamp %s out of range", timestamp)
	}
	draw.Timestamp = ts.Uint64()
	draw.SelectionHash = common.HexToHash(hash)

	return &draw, nil
}
