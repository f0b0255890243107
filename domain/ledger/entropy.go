package ledger

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"lottery/domain/entities"
)

// EntropySource supplies the environment a draw is computed from.
// Implementations are not required to be unpredictable; see SystemSource.
type EntropySource interface {
	Environment(ctx context.Context, round entities.Round) (entities.DrawEnvironment, error)
}

// EntropyFunc adapts a function to EntropySource
type EntropyFunc func(ctx context.Context, round entities.Round) (entities.DrawEnvironment, error)

// Environment calls f
func (f EntropyFunc) Environment(ctx context.Context, round entities.Round) (entities.DrawEnvironment, error) {
	return f(ctx, round)
}

// FixedSource always returns the same environment
type FixedSource struct {
	Seed      *uint256.Int
	Timestamp uint64
}

// NewFixedSource creates a source that always yields the given seed and timestamp
func NewFixedSource(seed, timestamp uint64) *FixedSource {
	return &FixedSource{
		Seed:      uint256.NewInt(seed),
		Timestamp: timestamp,
	}
}

// Environment returns the fixed environment
func (s *FixedSource) Environment(ctx context.Context, round entities.Round) (entities.DrawEnvironment, error) {
	seed := new(uint256.Int)
	if s.Seed != nil {
		seed = s.Seed.Clone()
	}
	return entities.DrawEnvironment{
		Seed:      seed,
		Timestamp: s.Timestamp,
	}, nil
}

// SystemSource reads the timestamp from a clock and the seed from crypto/rand.
// The seed is published with every draw, so the selection is reproducible after
// the fact but is not a fair lottery against an operator who controls draw timing.
type SystemSource struct {
	now  func() time.Time
	read func([]byte) (int, error)
}

// NewSystemSource creates a source backed by the wall clock and crypto/rand
func NewSystemSource() *SystemSource {
	return &SystemSource{
		now:  time.Now,
		read: crand.Read,
	}
}

// Environment returns the current timestamp and a fresh 256-bit seed
func (s *SystemSource) Environment(ctx context.Context, round entities.Round) (entities.DrawEnvironment, error) {
	if err := ctx.Err(); err != nil {
		return entities.DrawEnvironment{}, err
	}

	var b [32]byte
	if _, err := s.read(b[:]); err != nil {
		return entities.DrawEnvironment{}, fmt.Errorf("read entropy seed: %w", err)
	}

	return entities.DrawEnvironment{
		Seed:      new(uint256.Int).SetBytes32(b[:]),
		Timestamp: uint64(s.now().Unix()),
	}, nil
}
