package notification

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartwallet/smartwallet/internal/logging"
)

func TestPublishInRegistrationOrder(t *testing.T) {
	bus := NewBus(logging.Discard())
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe(func(context.Context, Event) error {
			order = append(order, i)
			return nil
		})
	}

	bus.Publish(context.Background(), Event{Kind: KindBalanceUpdated})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestFailingListenerIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWithWriter(&buf, "info", "json"))

	reached := 0
	bus.Subscribe(func(context.Context, Event) error { panic("boom") })
	bus.Subscribe(func(context.Context, Event) error { return errors.New("bad listener") })
	bus.Subscribe(func(context.Context, Event) error {
		reached++
		return nil
	})

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Kind: KindTransactionAdded, TransactionID: "tx-1"})
	})
	assert.Equal(t, 1, reached)
	assert.Contains(t, buf.String(), "listener panic: boom")
	assert.Contains(t, buf.String(), "bad listener")
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	unsubscribe := bus.Subscribe(func(context.Context, Event) error {
		calls++
		return nil
	})
	other := bus.Subscribe(func(context.Context, Event) error { return nil })

	bus.Publish(context.Background(), Event{})
	unsubscribe()
	unsubscribe()
	bus.Publish(context.Background(), Event{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.Len())
	other()
	assert.Zero(t, bus.Len())
}

func TestListenerMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)
	var unsubscribe func()
	calls := 0
	unsubscribe = bus.Subscribe(func(context.Context, Event) error {
		calls++
		unsubscribe()
		return nil
	})

	bus.Publish(context.Background(), Event{})
	bus.Publish(context.Background(), Event{})
	assert.Equal(t, 1, calls)
}

func TestLogListener(t *testing.T) {
	var buf bytes.Buffer
	listener := LogListener(logging.NewWithWriter(&buf, "info", "json"))

	require.NoError(t, listener(context.Background(), Event{Kind: KindLedgerCleared}))
	assert.Contains(t, buf.String(), `"kind":"ledger_cleared"`)
}
