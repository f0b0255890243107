package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"lottery/domain/entities"
	"lottery/domain/interfaces"
	"lottery/domain/ledger"
	"lottery/domain/utils"
	"lottery/events"
)

const (
	// DefaultRecentDraws is used when RecentDraws is called without a positive limit
	DefaultRecentDraws = 10

	// MaxRecentDraws caps RecentDraws
	MaxRecentDraws = 100
)

// lotteryService runs the ledger state machine over persisted state.
// Callers provide repositories bound to one unit of work; every mutating
// method expects the caller to commit on success and roll back on error.
type lotteryService struct {
	ledgerRepo         interfaces.LedgerRepository
	drawRepo           interfaces.DrawRepository
	accountRepo        interfaces.AccountRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	entropy            ledger.EntropySource
	now                func() time.Time
}

// NewLotteryService creates a new lottery service
func NewLotteryService(
	ledgerRepo interfaces.LedgerRepository,
	drawRepo interfaces.DrawRepository,
	accountRepo interfaces.AccountRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	entropy ledger.EntropySource,
) interfaces.LotteryService {
	return &lotteryService{
		ledgerRepo:         ledgerRepo,
		drawRepo:           drawRepo,
		accountRepo:        accountRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		entropy:            entropy,
		now:                time.Now,
	}
}

// Deploy creates the ledger if it does not exist yet
func (s *lotteryService) Deploy(ctx context.Context, operator common.Address) (*entities.LedgerState, error) {
	existing, err := s.ledgerRepo.GetForUpdate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	if existing != nil {
		if existing.Operator != operator {
			return nil, fmt.Errorf("%w: deployed by %s", ledger.ErrOperatorMismatch, existing.Operator.Hex())
		}
		return existing, nil
	}

	state, err := s.ledgerRepo.Create(ctx, operator, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	if err := s.eventPublisher.Publish(events.LedgerDeployedEvent{Operator: operator.Hex()}); err != nil {
		log.WithError(err).Error("Failed to publish ledger deployed event")
	}

	log.WithFields(log.Fields{
		"operator": operator.Hex(),
		"round":    state.Round.Number,
	}).Info("Ledger deployed")

	return state, nil
}

// Enter stakes from the caller's account into the open round
func (s *lotteryService) Enter(ctx context.Context, caller common.Address, stake *uint256.Int) (*interfaces.EntryResult, error) {
	core, err := s.restore(ctx, true, nil)
	if err != nil {
		return nil, err
	}

	entry, err := core.Enter(ctx, caller, stake)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByAddressForUpdate(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, caller.Hex())
	}
	if !account.CanCover(stake) {
		return nil, fmt.Errorf("%w: balance %s, stake %s", ledger.ErrInsufficientFunds,
			utils.FormatEther(account.Balance), utils.FormatEther(stake))
	}

	history := entities.NewDebit(caller, account.Balance, stake, entities.TransactionTypeStake)
	history.RoundNumber = &entry.RoundNumber
	history.TransactionMetadata["position"] = entry.Position

	if err := s.accountRepo.UpdateBalance(ctx, caller, history.BalanceAfter); err != nil {
		return nil, fmt.Errorf("failed to debit stake: %w", err)
	}
	if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
		return nil, fmt.Errorf("failed to record stake: %w", err)
	}

	record := &entities.LedgerEntry{
		RoundNumber: entry.RoundNumber,
		Position:    entry.Position,
		Entrant:     caller,
		Stake:       entry.Stake,
	}
	if err := s.ledgerRepo.AddEntry(ctx, record, entry.Pool); err != nil {
		return nil, fmt.Errorf("failed to store entry: %w", err)
	}

	if err := s.eventPublisher.Publish(events.EntryAcceptedEvent{
		RoundNumber: entry.RoundNumber,
		Position:    entry.Position,
		Entrant:     caller.Hex(),
		Stake:       entry.Stake.Dec(),
		Pool:        entry.Pool.Dec(),
	}); err != nil {
		log.WithError(err).Error("Failed to publish entry accepted event")
	}

	log.WithFields(log.Fields{
		"round":    entry.RoundNumber,
		"position": entry.Position,
		"entrant":  caller.Hex(),
		"stake":    utils.FormatEther(entry.Stake),
		"pool":     utils.FormatEther(entry.Pool),
	}).Info("Entry accepted")

	return &interfaces.EntryResult{
		Entry:   record,
		Pool:    entry.Pool,
		Balance: history.BalanceAfter,
	}, nil
}

// GetPlayers returns the entrants of the open round. Operator only.
func (s *lotteryService) GetPlayers(ctx context.Context, caller common.Address) ([]common.Address, error) {
	core, err := s.restore(ctx, false, nil)
	if err != nil {
		return nil, err
	}
	return core.Players(ctx, caller)
}

// PickWinner draws the open round and credits the pool to the winner's account.
// The payout runs inside the caller's transaction, so a failed credit leaves nothing behind.
func (s *lotteryService) PickWinner(ctx context.Context, caller common.Address) (*interfaces.PickWinnerResult, error) {
	var winnerBalance *uint256.Int
	var roundNumber uint64

	payout := ledger.TransferFunc(func(ctx context.Context, to common.Address, amount *uint256.Int) error {
		balance, err := creditAccount(ctx, s.accountRepo, s.balanceHistoryRepo, s.eventPublisher,
			to, amount, entities.TransactionTypePayout, &roundNumber)
		if err != nil {
			return err
		}
		winnerBalance = balance
		return nil
	})

	core, err := s.restore(ctx, true, payout)
	if err != nil {
		return nil, err
	}
	roundNumber = core.RoundNumber()

	result, err := core.PickWinner(ctx, caller)
	if err != nil {
		return nil, err
	}

	draw := result.Draw(core.Operator())
	if err := s.drawRepo.Create(ctx, draw); err != nil {
		return nil, fmt.Errorf("failed to store draw: %w", err)
	}
	if err := s.ledgerRepo.AdvanceRound(ctx, result.NextRound); err != nil {
		return nil, fmt.Errorf("failed to open next round: %w", err)
	}

	if err := s.eventPublisher.Publish(events.WinnerPickedEvent{
		RoundNumber:   draw.RoundNumber,
		Winner:        draw.Winner.Hex(),
		WinnerIndex:   draw.WinnerIndex,
		EntrantCount:  draw.EntrantCount,
		Payout:        draw.Payout.Dec(),
		Seed:          draw.Seed.Hex(),
		Timestamp:     draw.Timestamp,
		SelectionHash: draw.SelectionHash.Hex(),
	}); err != nil {
		log.WithError(err).Error("Failed to publish winner picked event")
	}

	log.WithFields(log.Fields{
		"round":    draw.RoundNumber,
		"winner":   draw.Winner.Hex(),
		"index":    draw.WinnerIndex,
		"entrants": draw.EntrantCount,
		"payout":   utils.FormatEther(draw.Payout),
	}).Info("Winner picked")

	return &interfaces.PickWinnerResult{
		Draw:          draw,
		WinnerBalance: winnerBalance,
		NextRound:     result.NextRound,
	}, nil
}

// GetLedgerInfo returns the public view of the ledger
func (s *lotteryService) GetLedgerInfo(ctx context.Context) (*interfaces.LedgerInfo, error) {
	state, err := s.ledgerRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	if state == nil {
		return nil, ledger.ErrNotDeployed
	}

	return &interfaces.LedgerInfo{
		Operator:      state.Operator,
		RoundNumber:   state.Round.Number,
		EntrantCount:  state.Round.EntrantCount(),
		Pool:          state.Round.PoolOrZero(),
		RoundOpenedAt: state.Round.OpenedAt,
	}, nil
}

// GetDraw returns a completed draw and whether it replays to the recorded winner
func (s *lotteryService) GetDraw(ctx context.Context, roundNumber uint64) (*interfaces.DrawDetail, error) {
	draw, err := s.drawRepo.GetByRound(ctx, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get draw: %w", err)
	}
	if draw == nil {
		return nil, fmt.Errorf("%w: round %d", ledger.ErrDrawNotFound, roundNumber)
	}

	entrants, err := s.ledgerRepo.GetEntrants(ctx, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get entrants: %w", err)
	}

	return &interfaces.DrawDetail{
		Draw:     draw,
		Entrants: entrants,
		Verified: ledger.VerifyDraw(draw, entrants),
	}, nil
}

// RecentDraws returns the latest draws, newest first
func (s *lotteryService) RecentDraws(ctx context.Context, limit int) ([]*entities.Draw, error) {
	if limit <= 0 {
		limit = DefaultRecentDraws
	}
	if limit > MaxRecentDraws {
		limit = MaxRecentDraws
	}

	draws, err := s.drawRepo.GetRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent draws: %w", err)
	}
	return draws, nil
}

// restore loads the ledger into the state machine
func (s *lotteryService) restore(ctx context.Context, forUpdate bool, payout ledger.Transferer) (*ledger.Ledger, error) {
	var state *entities.LedgerState
	var err error
	if forUpdate {
		state, err = s.ledgerRepo.GetForUpdate(ctx)
	} else {
		state, err = s.ledgerRepo.Get(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	if state == nil {
		return nil, ledger.ErrNotDeployed
	}

	if payout == nil {
		payout = refuseTransfers
	}
	core, err := ledger.Restore(state, s.entropy, payout, ledger.WithClock(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to restore ledger: %w", err)
	}
	return core, nil
}

var refuseTransfers = ledger.TransferFunc(func(ctx context.Context, to common.Address, amount *uint256.Int) error {
	return errors.New("payouts are not available in this operation")
})

// creditAccount adds amount to an account, creating the account if needed, and returns the new balance
func creditAccount(
	ctx context.Context,
	accountRepo interfaces.AccountRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	to common.Address,
	amount *uint256.Int,
	txType entities.TransactionType,
	roundNumber *uint64,
) (*uint256.Int, error) {
	account, err := accountRepo.GetOrCreateForUpdate(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	before := account.Balance
	if before == nil {
		before = new(uint256.Int)
	}
	if _, overflow := new(uint256.Int).AddOverflow(before, amount); overflow {
		return nil, fmt.Errorf("%w: balance of %s would overflow", ledger.ErrInvalidAmount, to.Hex())
	}

	history := entities.NewCredit(to, before, amount, txType)
	history.RoundNumber = roundNumber

	if err := accountRepo.UpdateBalance(ctx, to, history.BalanceAfter); err != nil {
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}
	if err := utils.RecordBalanceChange(ctx, balanceHistoryRepo, eventPublisher, history); err != nil {
		return nil, err
	}
	return history.BalanceAfter, nil
}
