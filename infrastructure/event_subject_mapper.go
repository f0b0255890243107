package infrastructure

import (
	"fmt"

	"lottery/events"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeLedgerDeployed:
		return "lottery.ledger.deployed"
	case events.EventTypeEntryAccepted:
		return "lottery.entry.accepted"
	case events.EventTypeWinnerPicked:
		return "lottery.draw.completed"
	case events.EventTypeBalanceChange:
		return "accounts.balance_changed"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "lottery.ledger.deployed":
		return events.EventTypeLedgerDeployed
	case "lottery.entry.accepted":
		return events.EventTypeEntryAccepted
	case "lottery.draw.completed":
		return events.EventTypeWinnerPicked
	case "accounts.balance_changed":
		return events.EventTypeBalanceChange
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"lottery.ledger.deployed",
		"lottery.entry.accepted",
		"lottery.draw.completed",
		"accounts.balance_changed",
	}
}
