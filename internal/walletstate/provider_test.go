package walletstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/notification"
	"github.com/smartwallet/smartwallet/internal/store"
)

var start = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) (*ledger.Service, *clockwork.FakeClock) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.Open(context.Background()))
	clk := clockwork.NewFakeClockAt(start)
	n := 0
	svc := ledger.NewService(st, notification.NewBus(nil), ledger.Options{
		Clock: clk,
		NewID: func() string { n++; return fmt.Sprintf("tx-%d", n) },
	})
	return svc, clk
}

func TestProviderStartsInLoadingState(t *testing.T) {
	svc, _ := newLedger(t)
	p := New(svc, nil)

	snap := p.Snapshot()
	assert.True(t, snap.Loading)
	assert.Nil(t, snap.Balance)
}

func TestProviderLoadsSortedSnapshot(t *testing.T) {
	svc, _ := newLedger(t)
	p := New(svc, nil)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Close)

	snap := p.Snapshot()
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)
	require.NotNil(t, snap.Balance)
	assert.True(t, snap.Balance.Amount.Equal(decimal.NewFromInt(2_500_000)))
	require.Len(t, snap.Transactions, 5)
	for i := 1; i < len(snap.Transactions); i++ {
		assert.False(t, snap.Transactions[i].EffectiveAt().After(snap.Transactions[i-1].EffectiveAt()))
	}
}

func TestProviderReloadsOnNotification(t *testing.T) {
	svc, clk := newLedger(t)
	p := New(svc, nil)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Close)
	before := p.Snapshot().Version

	clk.Advance(time.Minute)
	tx, err := svc.AddTransaction(context.Background(), ledger.TransactionInput{
		Type: ledger.TypePayment, Source: ledger.SourceEWallet, Amount: decimal.NewFromInt(-50_000),
		Description: "Pulsa Telkomsel", Category: "Pulsa",
	})
	require.NoError(t, err)

	snap := p.Snapshot()
	assert.Greater(t, snap.Version, before)
	assert.True(t, snap.Balance.Amount.Equal(decimal.NewFromInt(2_450_000)))
	assert.Equal(t, tx.ID, snap.Transactions[0].ID)
}

func TestProviderWatch(t *testing.T) {
	svc, _ := newLedger(t)
	p := New(svc, nil)

	var seen []Snapshot
	unwatch := p.Watch(func(s Snapshot) { seen = append(seen, s) })
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Close)

	_, err := svc.UpdateBalance(context.Background(), decimal.NewFromInt(1))
	require.NoError(t, err)
	unwatch()
	_, err = svc.UpdateBalance(context.Background(), decimal.NewFromInt(1))
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.True(t, seen[1].Balance.Amount.Equal(decimal.NewFromInt(2_500_001)))
}

func TestProviderCloseStopsReloading(t *testing.T) {
	svc, _ := newLedger(t)
	p := New(svc, nil)
	require.NoError(t, p.Start(context.Background()))
	version := p.Snapshot().Version
	p.Close()

	_, err := svc.UpdateBalance(context.Background(), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, version, p.Snapshot().Version)
	assert.ErrorIs(t, p.Start(context.Background()), ErrClosed)
}

// flakyLedger wraps a real ledger, fails reads on demand and counts live
// subscriptions.
type flakyLedger struct {
	*ledger.Service
	mu       sync.Mutex
	failNext bool
	reads    int
	subs     int
}

func (f *flakyLedger) Subscribe(fn notification.Listener) func() {
	unsubscribe := f.Service.Subscribe(fn)
	f.mu.Lock()
	f.subs++
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			f.mu.Lock()
			f.subs--
			f.mu.Unlock()
		})
	}
}

func (f *flakyLedger) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs
}

func (f *flakyLedger) GetBalance(ctx context.Context) (ledger.WalletBalance, error) {
	f.mu.Lock()
	f.reads++
	fail := f.failNext
	f.mu.Unlock()
	if fail {
		return ledger.WalletBalance{}, fmt.Errorf("read balance: %w", store.ErrStorageUnavailable)
	}
	return f.Service.GetBalance(ctx)
}

func (f *flakyLedger) setFail(v bool) {
	f.mu.Lock()
	f.failNext = v
	f.mu.Unlock()
}

func TestProviderInitialFailureIsTerminal(t *testing.T) {
	svc, _ := newLedger(t)
	fl := &flakyLedger{Service: svc, failNext: true}
	p := New(fl, nil)

	err := p.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStorageUnavailable))

	snap := p.Snapshot()
	assert.Equal(t, LoadFailedMessage, snap.Error)
	assert.Nil(t, snap.Balance)
	assert.Empty(t, snap.Transactions)
	assert.False(t, snap.Loading)
	assert.Zero(t, fl.subscriptions(), "failed provider must detach from the ledger")

	fl.setFail(false)
	_, err = svc.UpdateBalance(context.Background(), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, LoadFailedMessage, p.Snapshot().Error, "failed provider must not retry")
}

func TestProviderReloadFailureIsTerminal(t *testing.T) {
	svc, _ := newLedger(t)
	fl := &flakyLedger{Service: svc}
	p := New(fl, nil)
	require.NoError(t, p.Start(context.Background()))

	fl.setFail(true)
	_, err := svc.UpdateBalance(context.Background(), decimal.NewFromInt(1))
	require.NoError(t, err, "listener failure must not fail the mutation")
	assert.Equal(t, LoadFailedMessage, p.Snapshot().Error)

	fl.setFail(false)
	fl.mu.Lock()
	reads := fl.reads
	fl.mu.Unlock()
	_, err = svc.UpdateBalance(context.Background(), decimal.NewFromInt(1))
	require.NoError(t, err)

	fl.mu.Lock()
	defer fl.mu.Unlock()
	assert.Equal(t, reads, fl.reads, "no reload after terminal error")
	assert.Nil(t, p.Snapshot().Balance)
}

func TestPublishIgnoresStaleGeneration(t *testing.T) {
	svc, _ := newLedger(t)
	p := New(svc, nil)

	p.publish(&Snapshot{Version: 5, Transactions: []ledger.Transaction{}})
	p.publish(&Snapshot{Version: 3, Error: LoadFailedMessage})

	assert.Equal(t, uint64(5), p.Snapshot().Version)
	assert.Empty(t, p.Snapshot().Error)
}

// committingLedger records a payment right after the first transactions read
// returns, before the load that issued it can publish.
type committingLedger struct {
	*ledger.Service
	t         *testing.T
	committed atomic.Bool
}

func (c *committingLedger) GetTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	txs, err := c.Service.GetTransactions(ctx)
	if err == nil && c.committed.CompareAndSwap(false, true) {
		_, addErr := c.Service.AddTransaction(ctx, ledger.TransactionInput{
			Type: ledger.TypePayment, Source: ledger.SourceEWallet, Amount: decimal.NewFromInt(-50_000),
			Description: "Pulsa Telkomsel", Category: "Pulsa",
		})
		assert.NoError(c.t, addErr)
	}
	return txs, err
}

func TestProviderStartSeesChangeCommittedDuringLoad(t *testing.T) {
	svc, _ := newLedger(t)
	cl := &committingLedger{Service: svc, t: t}
	p := New(cl, nil)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Close)
	require.True(t, cl.committed.Load())

	txs, err := svc.GetTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 6)

	snap := p.Snapshot()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Balance)
	assert.True(t, snap.Balance.Amount.Equal(decimal.NewFromInt(2_450_000)))
	require.Len(t, snap.Transactions, len(txs), "snapshot must include the change committed during the initial load")
	assert.Equal(t, txs[0].ID, snap.Transactions[0].ID)
}

func TestProviderStartSubscribesOnce(t *testing.T) {
	svc, _ := newLedger(t)
	fl := &flakyLedger{Service: svc}
	p := New(fl, nil)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 1, fl.subscriptions())

	p.Close()
	assert.Zero(t, fl.subscriptions())
}
