// Package ledger implements the pooled-stake lottery state machine.
//
// A Ledger owns the operator identity and the current round. Entries append to
// the round and grow the pool; a draw selects one entrant from the injected
// entropy, pays the whole pool out through the injected Transferer and opens
// the next round. Every operation either applies fully or leaves the ledger
// exactly as it was.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lottery/domain/entities"
)

// Transferer delivers a payout to the winning entrant
type Transferer interface {
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// TransferFunc adapts a function to Transferer
type TransferFunc func(ctx context.Context, to common.Address, amount *uint256.Int) error

// Transfer calls f
func (f TransferFunc) Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error {
	return f(ctx, to, amount)
}

// Entry describes an accepted entry
type Entry struct {
	RoundNumber uint64
	Position    int
	Entrant     common.Address
	Stake       *uint256.Int
	Pool        *uint256.Int // Pool after the entry
}

// DrawResult describes a completed draw
type DrawResult struct {
	Round         entities.Round // The closed round as it stood at draw time
	Winner        common.Address
	WinnerIndex   int
	Payout        *uint256.Int
	Environment   entities.DrawEnvironment
	SelectionHash common.Hash
	NextRound     entities.Round
}

// Draw converts the result into a draw record
func (r *DrawResult) Draw(operator common.Address) *entities.Draw {
	return &entities.Draw{
		RoundNumber:   r.Round.Number,
		Operator:      operator,
		Winner:        r.Winner,
		WinnerIndex:   r.WinnerIndex,
		EntrantCount:  r.Round.EntrantCount(),
		Payout:        r.Payout.Clone(),
		Seed:          r.Environment.Seed,
		Timestamp:     r.Environment.Timestamp,
		SelectionHash: r.SelectionHash,
	}
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the clock used to stamp new rounds
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger is the lottery state machine
type Ledger struct {
	mu       sync.Mutex
	operator common.Address
	round    entities.Round
	entropy  EntropySource
	payout   Transferer
	now      func() time.Time
}

var errMissingCollaborator = errors.New("ledger: entropy source and payout transferer are required")

// New creates a ledger owned by operator with an empty first round.
// It panics if entropy or payout is nil.
func New(operator common.Address, entropy EntropySource, payout Transferer, opts ...Option) *Ledger {
	if entropy == nil || payout == nil {
		panic(errMissingCollaborator)
	}
	l := &Ledger{
		operator: operator,
		entropy:  entropy,
		payout:   payout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.round = entities.NewRound(1, l.now().UTC())
	return l
}

// Restore rebuilds a ledger from persisted state
func Restore(state *entities.LedgerState, entropy EntropySource, payout Transferer, opts ...Option) (*Ledger, error) {
	if state == nil {
		return nil, ErrNotDeployed
	}
	if entropy == nil || payout == nil {
		return nil, errMissingCollaborator
	}
	if !state.Round.IsOpen() {
		return nil, fmt.Errorf("cannot restore ledger: round %d is %s", state.Round.Number, state.Round.State)
	}

	round := state.Round
	round.Entrants = state.Round.Players()
	round.Pool = state.Round.PoolOrZero()

	l := &Ledger{
		operator: state.Operator,
		round:    round,
		entropy:  entropy,
		payout:   payout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Operator returns the operator identity
func (l *Ledger) Operator() common.Address {
	return l.operator
}

// RoundNumber returns the number of the open round
func (l *Ledger) RoundNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.round.Number
}

// Pool returns the pooled balance of the open round
func (l *Ledger) Pool() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.round.PoolOrZero()
}

// EntrantCount returns the number of entries in the open round
func (l *Ledger) EntrantCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.round.EntrantCount()
}

// Enter adds caller to the open round with the given stake
func (l *Ledger) Enter(ctx context.Context, caller common.Address, stake *uint256.Int) (*Entry, error) {
	if stake == nil || stake.Lt(entities.MinimumStake()) {
		return nil, fmt.Errorf("%w: need at least %d wei", ErrInsufficientStake, entities.MinimumStakeWei)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next, ok := l.round.WithEntry(caller, stake)
	if !ok {
		return nil, ErrPoolOverflow
	}
	l.round = next

	return &Entry{
		RoundNumber: next.Number,
		Position:    next.EntrantCount() - 1,
		Entrant:     caller,
		Stake:       stake.Clone(),
		Pool:        next.PoolOrZero(),
	}, nil
}

// Players returns the ordered entrants of the open round. Operator only.
func (l *Ledger) Players(ctx context.Context, caller common.Address) ([]common.Address, error) {
	if caller != l.operator {
		return nil, ErrUnauthorized
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.round.Players(), nil
}

// PickWinner draws the open round, pays the pool to the selected entrant and
// opens the next round. Operator only. If the payout fails the round is kept.
func (l *Ledger) PickWinner(ctx context.Context, caller common.Address) (*DrawResult, error) {
	if caller != l.operator {
		return nil, ErrUnauthorized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.round.IsEmpty() {
		return nil, ErrNoEntrants
	}

	env, err := l.entropy.Environment(ctx, l.round)
	if err != nil {
		return nil, fmt.Errorf("failed to read draw entropy: %w", err)
	}

	entrants := l.round.Players()
	index := SelectIndex(env, entrants)
	winner := entrants[index]
	payout := l.round.PoolOrZero()

	if err := l.payout.Transfer(ctx, winner, payout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	closed := l.round.Close()
	l.round = closed.Next(l.now().UTC())

	return &DrawResult{
		Round:         closed,
		Winner:        winner,
		WinnerIndex:   index,
		Payout:        payout,
		Environment:   env,
		SelectionHash: SelectionHash(env, entrants),
		NextRound:     l.round,
	}, nil
}
