package services

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"lottery/domain/entities"
	"lottery/domain/interfaces"
	"lottery/domain/ledger"
	"lottery/domain/utils"
)

const (
	// DefaultHistoryLimit is used when GetHistory is called without a positive limit
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps GetHistory
	MaxHistoryLimit = 100
)

type accountService struct {
	accountRepo        interfaces.AccountRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
}

// NewAccountService creates a new account service
func NewAccountService(
	accountRepo interfaces.AccountRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.AccountService {
	return &accountService{
		accountRepo:        accountRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
	}
}

// Fund deposits amount into an account
func (s *accountService) Fund(ctx context.Context, address common.Address, amount *uint256.Int) (*entities.Account, error) {
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: deposit must be positive", ledger.ErrInvalidAmount)
	}

	balance, err := creditAccount(ctx, s.accountRepo, s.balanceHistoryRepo, s.eventPublisher,
		address, amount, entities.TransactionTypeDeposit, nil)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"address": address.Hex(),
		"amount":  utils.FormatEther(amount),
		"balance": utils.FormatEther(balance),
	}).Info("Account funded")

	account, err := s.accountRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetAccount returns an account by address
func (s *accountService) GetAccount(ctx context.Context, address common.Address) (*entities.Account, error) {
	account, err := s.accountRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address.Hex())
	}
	return account, nil
}

// GetHistory returns the latest balance changes of an account
func (s *accountService) GetHistory(ctx context.Context, address common.Address, limit int) ([]*entities.BalanceHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	history, err := s.balanceHistoryRepo.GetByAddress(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history: %w", err)
	}
	return history, nil
}
