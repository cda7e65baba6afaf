package walletstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/logging"
	"github.com/smartwallet/smartwallet/internal/notification"
)

// LoadFailedMessage is the error text exposed after a failed load.
const LoadFailedMessage = "Failed to load wallet data"

// DefaultRecentLimit is the number of entries shown in the recent list.
const DefaultRecentLimit = 5

// ErrClosed is returned by Start on a closed provider.
var ErrClosed = errors.New("wallet state provider closed")

// Ledger is the read side of the ledger consumed by the provider.
type Ledger interface {
	GetBalance(ctx context.Context) (ledger.WalletBalance, error)
	GetTransactions(ctx context.Context) ([]ledger.Transaction, error)
	Subscribe(fn notification.Listener) (unsubscribe func())
}

// Snapshot is an immutable view of the wallet. Consumers must not modify the
// Transactions slice.
type Snapshot struct {
	Balance      *ledger.WalletBalance `json:"balance"`
	Transactions []ledger.Transaction  `json:"transactions"`
	Loading      bool                  `json:"loading"`
	Error        string                `json:"error,omitempty"`
	Version      uint64                `json:"version"`
}

// Failed reports whether the snapshot is the terminal error state.
func (s Snapshot) Failed() bool { return s.Error != "" }

// Provider keeps the latest fully loaded Snapshot and rebuilds it on every
// ledger notification.
type Provider struct {
	ledger Ledger
	logger *slog.Logger

	current atomic.Pointer[Snapshot]
	gen     atomic.Uint64

	mu          sync.Mutex
	watchers    map[uint64]func(Snapshot)
	nextWatcher uint64
	unsubscribe func()
	started     bool
	closed      bool
}

// New returns a provider in the loading state. Call Start to load.
func New(l Ledger, logger *slog.Logger) *Provider {
	p := &Provider{
		ledger:   l,
		logger:   logging.OrDiscard(logger),
		watchers: make(map[uint64]func(Snapshot)),
	}
	p.current.Store(&Snapshot{Loading: true})
	return p
}

// Start subscribes to ledger notifications and performs the initial load.
// Subscribing first means a change committed while the initial load is
// reading triggers a newer load, which supersedes it. A failed load leaves
// the provider in the terminal error state, detached from the ledger, and
// returns the cause. Start is a no-op after the first call.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	unsubscribe := p.ledger.Subscribe(func(ctx context.Context, _ notification.Event) error {
		if p.Snapshot().Failed() {
			return nil
		}
		return p.load(ctx)
	})

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	p.unsubscribe = unsubscribe
	p.mu.Unlock()

	return p.load(ctx)
}

// Snapshot returns the latest published state.
func (p *Provider) Snapshot() Snapshot {
	return *p.current.Load()
}

// Recent returns up to limit of the most recent transactions.
func (p *Provider) Recent(limit int) []ledger.Transaction {
	return p.Snapshot().Recent(limit)
}

// Watch registers fn to receive every newly published snapshot.
func (p *Provider) Watch(fn func(Snapshot)) (unwatch func()) {
	p.mu.Lock()
	p.nextWatcher++
	id := p.nextWatcher
	p.watchers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

// Close unsubscribes from the ledger and drops all watchers.
func (p *Provider) Close() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.closed = true
	p.watchers = make(map[uint64]func(Snapshot))
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// load reads balance and transactions concurrently and publishes the result
// unless a newer load has already been published.
func (p *Provider) load(ctx context.Context) error {
	gen := p.gen.Add(1)

	var (
		balance ledger.WalletBalance
		txs     []ledger.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = p.ledger.GetBalance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = p.ledger.GetTransactions(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		p.logger.Error("wallet state load failed", slog.Any("error", err))
		p.publish(&Snapshot{Transactions: []ledger.Transaction{}, Error: LoadFailedMessage, Version: gen})
		p.detach()
		return err
	}

	sorted := make([]ledger.Transaction, len(txs))
	copy(sorted, txs)
	ledger.SortByEffective(sorted)

	p.publish(&Snapshot{Balance: &balance, Transactions: sorted, Version: gen})
	return nil
}

func (p *Provider) publish(next *Snapshot) {
	for {
		cur := p.current.Load()
		if cur.Version > next.Version || cur.Failed() {
			return
		}
		if p.current.CompareAndSwap(cur, next) {
			break
		}
	}

	p.mu.Lock()
	watchers := make([]func(Snapshot), 0, len(p.watchers))
	for _, fn := range p.watchers {
		watchers = append(watchers, fn)
	}
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(*next)
	}
}

// detach stops listening after a failure so the error state is final.
func (p *Provider) detach() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
