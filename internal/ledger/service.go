package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/smartwallet/smartwallet/internal/logging"
	"github.com/smartwallet/smartwallet/internal/notification"
	"github.com/smartwallet/smartwallet/internal/store"
)

// DefaultWalletID keys the singleton balance record.
const DefaultWalletID = "main"

// Options configures a Service. Zero values select the defaults.
type Options struct {
	WalletID string
	Currency string
	// Seed is written on first read. Nil selects DefaultSeed.
	Seed *Seed
	// EnforceNonNegative rejects debits that would take the balance below
	// zero with ErrInsufficientFunds.
	EnforceNonNegative bool
	Clock              clockwork.Clock
	Logger             *slog.Logger
	NewID              func() string
}

// Service owns the balance and transaction partitions of the store. It is the
// only writer to them and publishes a notification after every committed
// mutation.
type Service struct {
	store    store.Store
	bus      *notification.Bus
	walletID string
	currency string
	seed     Seed
	seedIDs  map[string]struct{}
	enforce  bool
	clock    clockwork.Clock
	logger   *slog.Logger
	newID    func() string

	locks sync.Map
}

// NewService wires a ledger over an opened store. A nil bus gets a private one.
func NewService(st store.Store, bus *notification.Bus, opts Options) *Service {
	if opts.WalletID == "" {
		opts.WalletID = DefaultWalletID
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := logging.OrDiscard(opts.Logger)
	if bus == nil {
		bus = notification.NewBus(logger)
	}

	seed := DefaultSeed(opts.Clock.Now().UTC())
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	seedIDs := make(map[string]struct{}, len(seed.Transactions))
	for _, tx := range seed.Transactions {
		seedIDs[tx.ID] = struct{}{}
	}

	return &Service{
		store:    st,
		bus:      bus,
		walletID: opts.WalletID,
		currency: opts.Currency,
		seed:     seed,
		seedIDs:  seedIDs,
		enforce:  opts.EnforceNonNegative,
		clock:    opts.Clock,
		logger:   logger.With(slog.String("wallet_id", opts.WalletID)),
		newID:    opts.NewID,
	}
}

// Currency returns the wallet's default currency code.
func (s *Service) Currency() string { return s.currency }

// Subscribe registers a listener on the service's notification bus.
func (s *Service) Subscribe(fn notification.Listener) (unsubscribe func()) {
	return s.bus.Subscribe(fn)
}

// FormatCurrency renders amount in code, or in the wallet currency when code
// is empty.
func (s *Service) FormatCurrency(amount decimal.Decimal, code string) string {
	if code == "" {
		code = s.currency
	}
	return FormatCurrency(amount, code)
}

func (s *Service) lock() func() {
	mu, _ := s.locks.LoadOrStore(s.walletID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (s *Service) publish(ctx context.Context, kind notification.Kind, txID string) {
	s.bus.Publish(ctx, notification.Event{Kind: kind, TransactionID: txID, At: s.now()})
}

// GetBalance returns the current balance, writing the seed balance first if
// none exists.
func (s *Service) GetBalance(ctx context.Context) (WalletBalance, error) {
	if b, found, err := s.readBalance(ctx); err != nil || found {
		return b, err
	}

	unlock := s.lock()
	defer unlock()
	return s.balanceLocked(ctx)
}

// SetBalance overwrites the balance record.
func (s *Service) SetBalance(ctx context.Context, b WalletBalance) error {
	if b.Currency == "" {
		b.Currency = s.currency
	}
	if b.LastUpdated.IsZero() {
		b.LastUpdated = s.now()
	}

	if err := s.withLock(func() error {
		rec, err := encodeBalance(s.walletID, b)
		if err != nil {
			return err
		}
		return s.store.Put(ctx, store.PartitionBalance, rec)
	}); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	s.publish(ctx, notification.KindBalanceUpdated, "")
	return nil
}

// UpdateBalance adds delta to the balance and returns the new value. Calls
// are serialized per wallet.
func (s *Service) UpdateBalance(ctx context.Context, delta decimal.Decimal) (WalletBalance, error) {
	var updated WalletBalance
	err := s.withLock(func() error {
		current, err := s.balanceLocked(ctx)
		if err != nil {
			return err
		}
		updated, err = s.applyDelta(current, delta)
		if err != nil {
			return err
		}
		rec, err := encodeBalance(s.walletID, updated)
		if err != nil {
			return err
		}
		return s.store.Put(ctx, store.PartitionBalance, rec)
	})
	if err != nil {
		return WalletBalance{}, fmt.Errorf("update balance: %w", err)
	}

	s.publish(ctx, notification.KindBalanceUpdated, "")
	return updated, nil
}

// GetTransactions returns every transaction, most recent effective timestamp
// first. The demo history is written when the partition is empty.
func (s *Service) GetTransactions(ctx context.Context) ([]Transaction, error) {
	txs, err := s.readTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if len(txs) > 0 {
		return txs, nil
	}

	unlock := s.lock()
	defer unlock()

	if err := s.seedHistoryLocked(ctx); err != nil {
		return nil, err
	}
	return s.readTransactions(ctx)
}

// GetTransaction returns a single transaction by id.
func (s *Service) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	tx, err := s.readTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// AddTransaction records a settled transaction and applies its amount to the
// balance in the same store write.
func (s *Service) AddTransaction(ctx context.Context, in TransactionInput) (Transaction, error) {
	if err := in.validate(); err != nil {
		return Transaction{}, err
	}

	var tx Transaction
	err := s.withLock(func() error {
		if err := s.seedHistoryLocked(ctx); err != nil {
			return err
		}
		current, err := s.balanceLocked(ctx)
		if err != nil {
			return err
		}
		balance, err := s.applyDelta(current, in.Amount)
		if err != nil {
			return err
		}

		tx = s.newTransaction(in, StatusSuccess)
		return s.commit(ctx, tx, &balance)
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.logger.Info("transaction added",
		slog.String("transaction_id", tx.ID),
		slog.String("type", string(tx.Type)),
		slog.String("amount", tx.Amount.String()),
	)
	s.publish(ctx, notification.KindTransactionAdded, tx.ID)
	return tx, nil
}

// AddPendingTransaction records a transaction awaiting settlement. The
// balance is not touched until ConfirmTransaction.
func (s *Service) AddPendingTransaction(ctx context.Context, in TransactionInput) (Transaction, error) {
	if err := in.validate(); err != nil {
		return Transaction{}, err
	}

	var tx Transaction
	err := s.withLock(func() error {
		if err := s.seedHistoryLocked(ctx); err != nil {
			return err
		}
		tx = s.newTransaction(in, StatusPending)
		started := tx.Date
		tx.StartedAt = &started
		return s.commit(ctx, tx, nil)
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("add pending transaction: %w", err)
	}

	s.logger.Info("pending transaction added",
		slog.String("transaction_id", tx.ID),
		slog.String("type", string(tx.Type)),
		slog.String("amount", tx.Amount.String()),
	)
	s.publish(ctx, notification.KindTransactionAdded, tx.ID)
	return tx, nil
}

// ConfirmTransaction settles a pending transaction as success and applies its
// amount. Unknown or already settled ids yield ErrTransactionNotFound.
func (s *Service) ConfirmTransaction(ctx context.Context, id string) (Transaction, error) {
	return s.settle(ctx, id, StatusSuccess)
}

// FailTransaction settles a pending transaction as failed. The balance is
// left unchanged.
func (s *Service) FailTransaction(ctx context.Context, id string) (Transaction, error) {
	return s.settle(ctx, id, StatusFailed)
}

func (s *Service) settle(ctx context.Context, id string, status Status) (Transaction, error) {
	var tx Transaction
	err := s.withLock(func() error {
		var err error
		tx, err = s.readTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tx.Status != StatusPending {
			return fmt.Errorf("%w: %s already %s", ErrTransactionNotFound, id, tx.Status)
		}

		var balance *WalletBalance
		if status == StatusSuccess {
			current, err := s.balanceLocked(ctx)
			if err != nil {
				return err
			}
			next, err := s.applyDelta(current, tx.Amount)
			if err != nil {
				return err
			}
			balance = &next
		}

		finished := s.now()
		tx.Status = status
		tx.FinishedAt = &finished
		return s.commit(ctx, tx, balance)
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("settle %s: %w", id, err)
	}

	s.logger.Info("transaction settled",
		slog.String("transaction_id", tx.ID),
		slog.String("status", string(tx.Status)),
	)
	s.publish(ctx, notification.KindTransactionSettled, tx.ID)
	return tx, nil
}

// ClearAll wipes the balance, transaction and user partitions.
func (s *Service) ClearAll(ctx context.Context) error {
	if err := s.withLock(func() error {
		return s.store.Clear(ctx, store.PartitionBalance, store.PartitionTransactions, store.PartitionUser)
	}); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}

	s.logger.Warn("ledger cleared")
	s.publish(ctx, notification.KindLedgerCleared, "")
	return nil
}

func (s *Service) withLock(fn func() error) error {
	unlock := s.lock()
	defer unlock()
	return fn()
}

func (s *Service) newTransaction(in TransactionInput, status Status) Transaction {
	return Transaction{
		ID:          s.newID(),
		Type:        in.Type,
		Source:      in.Source,
		Amount:      in.Amount,
		Description: in.Description,
		Category:    in.Category,
		Icon:        in.Icon,
		Status:      status,
		Date:        s.now(),
	}
}

func (s *Service) applyDelta(current WalletBalance, delta decimal.Decimal) (WalletBalance, error) {
	next := current.Amount.Add(delta)
	if s.enforce && delta.IsNegative() && next.IsNegative() {
		return WalletBalance{}, fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientFunds, current.Amount, delta.Abs())
	}
	current.Amount = next
	current.LastUpdated = s.now()
	return current, nil
}

// commit writes tx and, when given, the balance in one store operation.
func (s *Service) commit(ctx context.Context, tx Transaction, balance *WalletBalance) error {
	txRec, err := encodeTransaction(tx)
	if err != nil {
		return err
	}
	ops := []store.Op{{Partition: store.PartitionTransactions, Record: txRec}}
	if balance != nil {
		balRec, err := encodeBalance(s.walletID, *balance)
		if err != nil {
			return err
		}
		ops = append(ops, store.Op{Partition: store.PartitionBalance, Record: balRec})
	}
	return s.store.Apply(ctx, ops...)
}

func (s *Service) readBalance(ctx context.Context) (WalletBalance, bool, error) {
	rec, err := s.store.Get(ctx, store.PartitionBalance, s.walletID)
	if errors.Is(err, store.ErrNotFound) {
		return WalletBalance{}, false, nil
	}
	if err != nil {
		return WalletBalance{}, false, fmt.Errorf("read balance: %w", err)
	}

	b, dflt, err := decodeBalance(rec)
	if err != nil {
		s.logger.Warn("balance record unreadable, using zero", slog.Any("error", err))
		dflt = []string{"amount", "lastUpdated"}
	}
	if len(dflt) > 0 {
		s.logger.Warn("balance fields defaulted", slog.Any("fields", dflt))
	}
	if b.Currency == "" {
		b.Currency = s.currency
	}
	return b, true, nil
}

// balanceLocked returns the stored balance, writing the seed if absent.
func (s *Service) balanceLocked(ctx context.Context) (WalletBalance, error) {
	b, found, err := s.readBalance(ctx)
	if err != nil || found {
		return b, err
	}

	b = WalletBalance{Amount: s.seed.Balance, Currency: s.currency, LastUpdated: s.now()}
	rec, err := encodeBalance(s.walletID, b)
	if err != nil {
		return WalletBalance{}, err
	}
	if err := s.store.Put(ctx, store.PartitionBalance, rec); err != nil {
		return WalletBalance{}, fmt.Errorf("seed balance: %w", err)
	}
	s.logger.Info("balance seeded", slog.String("amount", b.Amount.String()))
	return b, nil
}

// seedHistoryLocked writes the demo history when the transactions partition
// is empty, so the first write lands on top of it as a first read would.
func (s *Service) seedHistoryLocked(ctx context.Context) error {
	if len(s.seed.Transactions) == 0 {
		return nil
	}
	records, err := s.store.GetAll(ctx, store.PartitionTransactions)
	if err != nil {
		return fmt.Errorf("read transactions: %w", err)
	}
	if len(records) > 0 {
		return nil
	}
	return s.writeSeedTransactions(ctx)
}

func (s *Service) writeSeedTransactions(ctx context.Context) error {
	records := make([]store.Record, 0, len(s.seed.Transactions))
	for _, tx := range s.seed.Transactions {
		rec, err := encodeTransaction(tx)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := s.store.Put(ctx, store.PartitionTransactions, records...); err != nil {
		return fmt.Errorf("seed transactions: %w", err)
	}
	s.logger.Info("demo transactions seeded", slog.Int("count", len(records)))
	return nil
}

func (s *Service) readTransaction(ctx context.Context, id string) (Transaction, error) {
	rec, err := s.store.Get(ctx, store.PartitionTransactions, id)
	if errors.Is(err, store.ErrNotFound) {
		return Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("read transaction %s: %w", id, err)
	}

	tx, dflt, err := decodeTransaction(rec)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, err)
	}
	s.warnDefaulted(tx.ID, dflt)
	return tx, nil
}

func (s *Service) readTransactions(ctx context.Context) ([]Transaction, error) {
	records, err := s.store.GetAll(ctx, store.PartitionTransactions)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}

	txs := make([]Transaction, 0, len(records))
	for _, rec := range records {
		tx, dflt, err := decodeTransaction(rec)
		if err != nil {
			s.logger.Warn("skipping unreadable transaction record", slog.Any("error", err))
			continue
		}
		s.warnDefaulted(tx.ID, dflt)
		txs = append(txs, tx)
	}
	SortByEffective(txs)
	return txs, nil
}

func (s *Service) warnDefaulted(id string, fields []string) {
	if len(fields) == 0 {
		return
	}
	s.logger.Warn("transaction fields defaulted",
		slog.String("transaction_id", id),
		slog.Any("fields", fields),
	)
}

// now returns the clock time in UTC, the zone records are stored in.
func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// SortByEffective orders txs most recent first by effective timestamp, then
// by creation date, then by id.
func SortByEffective(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if ea, eb := a.EffectiveAt(), b.EffectiveAt(); !ea.Equal(eb) {
			return ea.After(eb)
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID > b.ID
	})
}
