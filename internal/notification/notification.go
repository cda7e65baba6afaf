package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartwallet/smartwallet/internal/logging"
)

// Kind classifies a ledger change.
type Kind string

const (
	KindBalanceUpdated     Kind = "balance_updated"
	KindTransactionAdded   Kind = "transaction_added"
	KindTransactionSettled Kind = "transaction_settled"
	KindLedgerCleared      Kind = "ledger_cleared"
)

// Event describes a committed ledger mutation.
type Event struct {
	Kind          Kind
	TransactionID string
	At            time.Time
}

// Listener reacts to ledger events. A returned error is logged by the bus and
// does not stop delivery to other listeners.
type Listener func(ctx context.Context, event Event) error

// Bus delivers events to subscribed listeners synchronously, in
// registration order.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []subscription
	logger    *slog.Logger
}

type subscription struct {
	id uint64
	fn Listener
}

// NewBus constructs an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logging.OrDiscard(logger)}
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// Len reports the number of active listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish invokes every listener registered at the time of the call. A
// listener that errors or panics is logged and skipped.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	listeners := make([]subscription, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, sub := range listeners {
		if err := b.deliver(ctx, sub.fn, event); err != nil {
			b.logger.Warn("notification listener failed",
				slog.String("kind", string(event.Kind)),
				slog.String("transaction_id", event.TransactionID),
				slog.Any("error", err),
			)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, fn Listener, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(ctx, event)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.listeners {
		if sub.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// LogListener returns a listener that writes each event to the structured logger.
func LogListener(logger *slog.Logger) Listener {
	return func(_ context.Context, event Event) error {
		if logger == nil {
			return nil
		}
		logger.Info("ledger event",
			slog.String("kind", string(event.Kind)),
			slog.String("transaction_id", event.TransactionID),
			slog.Time("at", event.At),
		)
		return nil
	}
}
