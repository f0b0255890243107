package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"lottery/config"
	"lottery/database"
	"lottery/domain/services"
	"lottery/domain/utils"
	"lottery/events"
	"lottery/repository"
)

// ParseFundAmount reads a CLI amount: plain wei, or ether with an "eth" suffix (e.g. 0.5eth)
func ParseFundAmount(raw string) (*uint256.Int, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if ether, ok := strings.CutSuffix(value, "eth"); ok {
		return utils.ParseEther(ether)
	}
	return utils.ParseWei(value)
}

// Fund deposits amount into the account at address. Events stay in-process.
func Fund(ctx context.Context, rawAddress, rawAmount string) error {
	cfg := config.Get()
	if err := ConfigureLogging(cfg); err != nil {
		return err
	}

	if !common.IsHexAddress(rawAddress) {
		return fmt.Errorf("invalid address %q", rawAddress)
	}
	address := common.HexToAddress(rawAddress)

	amount, err := ParseFundAmount(rawAmount)
	if err != nil {
		return err
	}

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(), database.PoolOptions{MaxConns: 1})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	uow := repository.NewUnitOfWorkFactory(db, events.NewBus()).Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	accounts := services.NewAccountService(uow.AccountRepository(), uow.BalanceHistoryRepository(), uow.EventBus())
	account, err := accounts.Fund(ctx, address, amount)
	if err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit deposit: %w", err)
	}

	log.WithFields(log.Fields{
		"address": account.Address.Hex(),
		"amount":  utils.FormatEther(amount),
		"balance": utils.FormatEther(account.Balance),
	}).Info("Account funded")
	return nil
}
