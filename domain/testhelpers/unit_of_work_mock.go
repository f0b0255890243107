package testhelpers

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"

	"lottery/domain/interfaces"
)

// MockUnitOfWork hands out mock repositories and records how the work ended
type MockUnitOfWork struct {
	LedgerRepo         *MockLedgerRepository
	DrawRepo           *MockDrawRepository
	AccountRepo        *MockAccountRepository
	BalanceHistoryRepo *MockBalanceHistoryRepository
	Publisher          *MockEventPublisher

	BeginErr   error
	Began      bool
	Committed  bool
	RolledBack bool
}

// NewMockUnitOfWork creates a unit of work backed by fresh mocks
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		LedgerRepo:         new(MockLedgerRepository),
		DrawRepo:           new(MockDrawRepository),
		AccountRepo:        new(MockAccountRepository),
		BalanceHistoryRepo: new(MockBalanceHistoryRepository),
		Publisher:          new(MockEventPublisher),
	}
}

func (u *MockUnitOfWork) Begin(ctx context.Context) error {
	if u.BeginErr != nil {
		return u.BeginErr
	}
	u.Began = true
	return nil
}

func (u *MockUnitOfWork) Commit() error {
	if !u.Began {
		return errors.New("no transaction to commit")
	}
	u.Committed = true
	u.Began = false
	return nil
}

// Rollback after Commit is a no-op, as with the real unit of work
func (u *MockUnitOfWork) Rollback() error {
	if u.Began {
		u.RolledBack = true
		u.Began = false
	}
	return nil
}

func (u *MockUnitOfWork) LedgerRepository() interfaces.LedgerRepository { return u.LedgerRepo }

func (u *MockUnitOfWork) DrawRepository() interfaces.DrawRepository { return u.DrawRepo }

func (u *MockUnitOfWork) AccountRepository() interfaces.AccountRepository { return u.AccountRepo }

func (u *MockUnitOfWork) BalanceHistoryRepository() interfaces.BalanceHistoryRepository {
	return u.BalanceHistoryRepo
}

func (u *MockUnitOfWork) EventBus() interfaces.EventPublisher { return u.Publisher }

// AssertExpectations checks every mock repository
func (u *MockUnitOfWork) AssertExpectations(t mock.TestingT) {
	u.LedgerRepo.AssertExpectations(t)
	u.DrawRepo.AssertExpectations(t)
	u.AccountRepo.AssertExpectations(t)
	u.BalanceHistoryRepo.AssertExpectations(t)
	u.Publisher.AssertExpectations(t)
}

// MockUnitOfWorkFactory always returns the same unit of work
type MockUnitOfWorkFactory struct {
	UnitOfWork *MockUnitOfWork
}

// NewMockUnitOfWorkFactory creates a factory around a fresh MockUnitOfWork
func NewMockUnitOfWorkFactory() *MockUnitOfWorkFactory {
	return &MockUnitOfWorkFactory{UnitOfWork: NewMockUnitOfWork()}
}

func (f *MockUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.UnitOfWork
}
