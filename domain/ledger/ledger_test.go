package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery/domain/entities"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	player1  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	player2  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	player3  = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

// recordingTransferer records payouts and can be told to fail
type recordingTransferer struct {
	mu       sync.Mutex
	fail     error
	payments map[common.Address]*uint256.Int
}

func newRecordingTransferer() *recordingTransferer {
	return &recordingTransferer{payments: make(map[common.Address]*uint256.Int)}
}

func (r *recordingTransferer) Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	current, ok := r.payments[to]
	if !ok {
		current = new(uint256.Int)
	}
	r.payments[to] = new(uint256.Int).Add(current, amount)
	return nil
}

func (r *recordingTransferer) paid(to common.Address) *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if amount, ok := r.payments[to]; ok {
		return amount.Clone()
	}
	return new(uint256.Int)
}

func newTestLedger(t *testing.T) (*Ledger, *recordingTransferer) {
	t.Helper()
	payout := newRecordingTransferer()
	return New(operator, NewFixedSource(7, 1_700_000_000), payout), payout
}

func TestLedger_New(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(operator, NewFixedSource(1, 1), newRecordingTransferer(), WithClock(func() time.Time { return fixed }))

	assert.Equal(t, operator, l.Operator())
	assert.Equal(t, uint64(1), l.RoundNumber())
	assert.True(t, l.Pool().IsZero())
	assert.Equal(t, 0, l.EntrantCount())

	players, err := l.Players(context.Background(), operator)
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestLedger_Enter_SingleEntrant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)

	entry, err := l.Enter(ctx, player1, entities.MinimumStake())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), entry.RoundNumber)
	assert.Equal(t, 0, entry.Position)
	assert.Equal(t, player1, entry.Entrant)
	assert.Equal(t, entities.MinimumStake(), entry.Pool)

	players, err := l.Players(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{player1}, players)
}

func TestLedger_Enter_MultipleEntrants(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)

	for _, p := range []common.Address{player1, player2, player3} {
		_, err := l.Enter(ctx, p, entities.MinimumStake())
		require.NoError(t, err)
	}

	players, err := l.Players(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{player1, player2, player3}, players)

	expected := new(uint256.Int).Mul(entities.MinimumStake(), uint256.NewInt(3))
	assert.Equal(t, expected, l.Pool())
}

func TestLedger_Enter_StakeValidation(t *testing.T) {
	t.Parallel()

	belowMinimum := new(uint256.Int).Sub(entities.MinimumStake(), uint256.NewInt(1))

	tests := []struct {
		name    string
		stake   *uint256.Int
		wantErr error
	}{
		{name: "nil stake", stake: nil, wantErr: ErrInsufficientStake},
		{name: "zero stake", stake: new(uint256.Int), wantErr: ErrInsufficientStake},
		{name: "one below minimum", stake: belowMinimum, wantErr: ErrInsufficientStake},
		{name: "a tenth of the minimum", stake: uint256.NewInt(entities.MinimumStakeWei / 10), wantErr: ErrInsufficientStake},
		{name: "exactly minimum", stake: entities.MinimumStake()},
		{name: "above minimum", stake: entities.Ether(5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			l, _ := newTestLedger(t)

			entry, err := l.Enter(ctx, player1, tt.stake)
			players, playersErr := l.Players(ctx, operator)
			require.NoError(t, playersErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, entry)
				assert.Empty(t, players)
				assert.True(t, l.Pool().IsZero())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, []common.Address{player1}, players)
			assert.Equal(t, tt.stake, l.Pool())
		})
	}
}

func TestLedger_Enter_DuplicateEntrantsKeepEveryEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)

	for i := 0; i < 3; i++ {
		entry, err := l.Enter(ctx, player1, entities.MinimumStake())
		require.NoError(t, err)
		assert.Equal(t, i, entry.Position)
	}

	players, err := l.Players(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{player1, player1, player1}, players)
}

func TestLedger_Enter_PoolOverflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	full := new(uint256.Int).SetAllOne()
	l, err := Restore(&entities.LedgerState{
		Operator: operator,
		Round: entities.Round{
			Number:   4,
			Entrants: []common.Address{player1},
			Pool:     full,
			State:    entities.RoundStateOpen,
		},
	}, NewFixedSource(1, 1), newRecordingTransferer())
	require.NoError(t, err)

	_, err = l.Enter(ctx, player2, entities.MinimumStake())
	assert.ErrorIs(t, err, ErrPoolOverflow)
	assert.Equal(t, full, l.Pool())
	assert.Equal(t, 1, l.EntrantCount())
}

func TestLedger_Players_Unauthorized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)
	_, err := l.Enter(ctx, player1, entities.MinimumStake())
	require.NoError(t, err)

	players, err := l.Players(ctx, player1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, players)
}

func TestLedger_Players_ReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)
	_, err := l.Enter(ctx, player1, entities.MinimumStake())
	require.NoError(t, err)

	players, err := l.Players(ctx, operator)
	require.NoError(t, err)
	players[0] = player2

	again, err := l.Players(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{player1}, again)
}

func TestLedger_PickWinner_Unauthorized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, payout := newTestLedger(t)
	_, err := l.Enter(ctx, player1, entities.MinimumStake())
	require.NoError(t, err)

	result, err := l.PickWinner(ctx, player1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, result)

	players, err := l.Players(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{player1}, players)
	assert.Equal(t, entities.MinimumStake(), l.Pool())
	assert.True(t, payout.paid(player1).IsZero())
}

func TestLedger_PickWinner_SingleEntrantReceivesPool(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, payout := newTestLedger(t)
	stake := entities.Ether(2)
	_, err := l.Enter(ctx, player1, stake)
	require.NoError(t, err)

	result, err := l.PickWinner(ctx, operator)
	require.NoError(t, err)

	assert.Equal(t, player1, result.Winner)
	assert.Equal(t, 0, result.WinnerIndex)
	assert.Equal(t, stake, result.Payout)
	assert.Equal(t, stake, payout.paid(player1))
	assert.Equal(t, entities.RoundStateDrawn, result.Round.State)
	assert.Equal(t, uint64(1), result.Round.Number)
	assert.Equal(t, uint64(2), result.NextRound.Number)

	players, err := l.Players(ctx, operator)
	require.NoError(t, err)
	assert.Empty(t, players)
	assert.True(t, l.Pool().IsZero())
	assert.Equal(t, uint64(2), l.RoundNumber())
}

func TestLedger_PickWinner_NoEntrants(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)

	result, err := l.PickWinner(context.Background(), operator)
	assert.ErrorIs(t, err, ErrNoEntrants)
	assert.Nil(t, result)
	assert.Equal(t, uint64(1), l.RoundNumber())
}

func TestLedger_PickWinner_WinnerIsAnEntrant(t *testing.T) {
	t.Parallel()

	entrants := []common.Address{player1, player2, player3, player2}

	for seed := uint64(0); seed < 50; seed++ {
		ctx := context.Background()
		payout := newRecordingTransferer()
		l := New(operator, NewFixedSource(seed, 1_700_000_000+seed), payout)

		for _, p := range entrants {
			_, err := l.Enter(ctx, p, entities.MinimumStake())
			require.NoError(t, err)
		}

		result, err := l.PickWinner(ctx, operator)
		require.NoError(t, err)
		require.GreaterOrEqual(t, result.WinnerIndex, 0)
		require.Less(t, result.WinnerIndex, len(entrants))
		assert.Equal(t, entrants[result.WinnerIndex], result.Winner)

		expected := new(uint256.Int).Mul(entities.MinimumStake(), uint256.NewInt(uint64(len(entrants))))
		assert.Equal(t, expected, payout.paid(result.Winner))
	}
}

func TestLedger_PickWinner_DeterministicForSameEnvironment(t *testing.T) {
	t.Parallel()

	run := func() *DrawResult {
		ctx := context.Background()
		l := New(operator, NewFixedSource(42, 1_700_000_123), newRecordingTransferer())
		for _, p := range []common.Address{player1, player2, player3} {
			_, err := l.Enter(ctx, p, entities.MinimumStake())
			require.NoError(t, err)
		}
		result, err := l.PickWinner(ctx, operator)
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()
	assert.Equal(t, first.Winner, second.Winner)
	assert.Equal(t, first.WinnerIndex, second.WinnerIndex)
	assert.Equal(t, first.SelectionHash, second.SelectionHash)
}

func TestLedger_PickWinner_TransferFailureKeepsRound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, payout := newTestLedger(t)
	for _, p := range []common.Address{player1, player2} {
		_, err := l.Enter(ctx, p, entities.MinimumStake())
		require.NoError(t, err)
	}

	cause := errors.New("recipient rejected transfer")
	payout.fail = cause

	result, err := l.PickWinner(ctx, operator)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeTransferFailed, CodeOf(err))

	players, err := l.Players(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{player1, player2}, players)
	assert.Equal(t, new(uint256.Int).Mul(entities.MinimumStake(), uint256.NewInt(2)), l.Pool())
	assert.Equal(t, uint64(1), l.RoundNumber())

	// A later draw succeeds once the recipient accepts payment
	payout.fail = nil
	result, err = l.PickWinner(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), l.RoundNumber())
	assert.Equal(t, result.Payout, payout.paid(result.Winner))
}

func TestLedger_PickWinner_EntropyFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	failing := EntropyFunc(func(ctx context.Context, round entities.Round) (entities.DrawEnvironment, error) {
		return entities.DrawEnvironment{}, errors.New("entropy unavailable")
	})
	l := New(operator, failing, newRecordingTransferer())
	_, err := l.Enter(ctx, player1, entities.MinimumStake())
	require.NoError(t, err)

	_, err = l.PickWinner(ctx, operator)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read draw entropy")
	assert.Equal(t, 1, l.EntrantCount())
}

func TestLedger_PickWinner_RoundsAdvance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, payout := newTestLedger(t)

	total := new(uint256.Int)
	for round := uint64(1); round <= 3; round++ {
		_, err := l.Enter(ctx, player1, entities.MinimumStake())
		require.NoError(t, err)
		total.Add(total, entities.MinimumStake())

		result, err := l.PickWinner(ctx, operator)
		require.NoError(t, err)
		assert.Equal(t, round, result.Round.Number)
		assert.Equal(t, round+1, l.RoundNumber())
	}
	assert.Equal(t, total, payout.paid(player1))
}

func TestLedger_PoolConservation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, payout := newTestLedger(t)

	stakes := []*uint256.Int{entities.MinimumStake(), entities.Ether(1), entities.Ether(3)}
	sum := new(uint256.Int)
	for i, p := range []common.Address{player1, player2, player3} {
		_, err := l.Enter(ctx, p, stakes[i])
		require.NoError(t, err)
		sum.Add(sum, stakes[i])
		assert.Equal(t, sum, l.Pool())
	}

	result, err := l.PickWinner(ctx, operator)
	require.NoError(t, err)

	paid := new(uint256.Int)
	for _, p := range []common.Address{player1, player2, player3} {
		paid.Add(paid, payout.paid(p))
	}
	assert.Equal(t, sum, paid)
	assert.Equal(t, sum, result.Payout)
	assert.True(t, l.Pool().IsZero())
}

func TestLedger_ConcurrentEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)

	const entries = 100
	var wg sync.WaitGroup
	for i := 0; i < entries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Enter(ctx, player1, entities.MinimumStake())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, entries, l.EntrantCount())
	assert.Equal(t, new(uint256.Int).Mul(entities.MinimumStake(), uint256.NewInt(entries)), l.Pool())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, errMissingCollaborator, func() {
		New(operator, nil, newRecordingTransferer())
	})
	assert.PanicsWithValue(t, errMissingCollaborator, func() {
		New(operator, NewFixedSource(1, 1), nil)
	})
}

func TestLedger_Restore(t *testing.T) {
	t.Parallel()

	t.Run("nil state", func(t *testing.T) {
		t.Parallel()
		_, err := Restore(nil, NewFixedSource(1, 1), newRecordingTransferer())
		assert.ErrorIs(t, err, ErrNotDeployed)
	})

	t.Run("missing collaborators", func(t *testing.T) {
		t.Parallel()
		state := &entities.LedgerState{Operator: operator, Round: entities.NewRound(1, time.Now())}

		_, err := Restore(state, nil, newRecordingTransferer())
		assert.ErrorIs(t, err, errMissingCollaborator)
		_, err = Restore(state, NewFixedSource(1, 1), nil)
		assert.ErrorIs(t, err, errMissingCollaborator)
	})

	t.Run("drawn round is rejected", func(t *testing.T) {
		t.Parallel()
		state := &entities.LedgerState{
			Operator: operator,
			Round:    entities.NewRound(3, time.Now()).Close(),
		}
		_, err := Restore(state, NewFixedSource(1, 1), newRecordingTransferer())
		assert.Error(t, err)
	})

	t.Run("restored ledger does not alias persisted state", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		state := &entities.LedgerState{
			Operator: operator,
			Round: entities.Round{
				Number:   9,
				Entrants: []common.Address{player1},
				Pool:     entities.MinimumStake(),
				State:    entities.RoundStateOpen,
			},
		}
		l, err := Restore(state, NewFixedSource(1, 1), newRecordingTransferer())
		require.NoError(t, err)

		_, err = l.Enter(ctx, player2, entities.MinimumStake())
		require.NoError(t, err)

		assert.Equal(t, uint64(9), l.RoundNumber())
		assert.Equal(t, []common.Address{player1}, state.Round.Entrants)
		assert.Equal(t, entities.MinimumStake(), state.Round.Pool)
	})
}

func TestDrawResult_Draw(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)
	for _, p := range []common.Address{player1, player2, player3} {
		_, err := l.Enter(ctx, p, entities.MinimumStake())
		require.NoError(t, err)
	}
	result, err := l.PickWinner(ctx, operator)
	require.NoError(t, err)

	draw := result.Draw(operator)
	assert.Equal(t, uint64(1), draw.RoundNumber)
	assert.Equal(t, operator, draw.Operator)
	assert.Equal(t, 3, draw.EntrantCount)
	assert.Equal(t, uint64(1_700_000_000), draw.Timestamp)
	assert.True(t, VerifyDraw(draw, []common.Address{player1, player2, player3}))
}
