package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"lottery/domain/entities"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeLedgerDeployed EventType = "ledger_deployed"
	EventTypeEntryAccepted  EventType = "entry_accepted"
	EventTypeWinnerPicked   EventType = "winner_picked"
	EventTypeBalanceChange  EventType = "balance_change"
)

// AllTypes lists every event type the ledger emits
func AllTypes() []EventType {
	return []EventType{
		EventTypeLedgerDeployed,
		EventTypeEntryAccepted,
		EventTypeWinnerPicked,
		EventTypeBalanceChange,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// Amounts are carried as base-10 wei strings so they survive JSON unchanged.

// LedgerDeployedEvent is emitted once when the ledger is created
type LedgerDeployedEvent struct {
	Operator string `json:"operator"`
}

func (e LedgerDeployedEvent) Type() EventType {
	return EventTypeLedgerDeployed
}

// EntryAcceptedEvent represents a stake added to the open round
type EntryAcceptedEvent struct {
	RoundNumber uint64 `json:"round_number"`
	Position    int    `json:"position"`
	Entrant     string `json:"entrant"`
	Stake       string `json:"stake"`
	Pool        string `json:"pool"`
}

func (e EntryAcceptedEvent) Type() EventType {
	return EventTypeEntryAccepted
}

// WinnerPickedEvent represents a completed draw
type WinnerPickedEvent struct {
	RoundNumber   uint64 `json:"round_number"`
	Winner        string `json:"winner"`
	WinnerIndex   int    `json:"winner_index"`
	EntrantCount  int    `json:"entrant_count"`
	Payout        string `json:"payout"`
	Seed          string `json:"seed"`
	Timestamp     uint64 `json:"timestamp"`
	SelectionHash string `json:"selection_hash"`
}

func (e WinnerPickedEvent) Type() EventType {
	return EventTypeWinnerPicked
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	Address         string                   `json:"address"`
	OldBalance      string                   `json:"old_balance"`
	NewBalance      string                   `json:"new_balance"`
	ChangeAmount    string                   `json:"change_amount"`
	TransactionType entities.TransactionType `json:"transaction_type"`
	RoundNumber     *uint64                  `json:"round_number,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, t := range AllTypes() {
		b.Subscribe(t, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow subscriber never blocks a commit
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Publish emits the event with a background context
func (b *Bus) Publish(event Event) error {
	b.Emit(context.Background(), event)
	return nil
}

// TransactionalBus holds events raised inside a unit of work.
// Flush hands them to the underlying bus after commit; Discard drops them on rollback.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish queues the event until Flush
func (b *TransactionalBus) Publish(e Event) error {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
	return nil
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus")

	// Handlers outlive the request, so they get a detached context
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
