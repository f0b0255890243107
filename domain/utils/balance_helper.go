package utils

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"lottery/domain/entities"
	"lottery/domain/interfaces"
	"lottery/events"
)

// RecordBalanceChange records a balance history entry and emits a balance change event.
// This is the single entry point for all balance changes in the system.
func RecordBalanceChange(ctx context.Context, balanceHistoryRepo interfaces.BalanceHistoryRepository, eventPublisher interfaces.EventPublisher, history *entities.BalanceHistory) error {
	if err := balanceHistoryRepo.Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	event := events.BalanceChangeEvent{
		Address:         history.Address.Hex(),
		OldBalance:      history.BalanceBefore.Dec(),
		NewBalance:      history.BalanceAfter.Dec(),
		ChangeAmount:    history.ChangeAmount.String(),
		TransactionType: history.TransactionType,
		RoundNumber:     history.RoundNumber,
	}
	log.WithFields(log.Fields{
		"address":         event.Address,
		"oldBalance":      event.OldBalance,
		"newBalance":      event.NewBalance,
		"transactionType": event.TransactionType,
		"changeAmount":    event.ChangeAmount,
	}).Debug("Publishing BalanceChangeEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}

	return nil
}
