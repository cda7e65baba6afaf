package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/logging"
	"github.com/smartwallet/smartwallet/internal/validation"
)

// DefaultSettlementDelay is the simulated provider processing time.
const DefaultSettlementDelay = 3 * time.Second

// MinimumTopUp is the smallest accepted top-up in IDR.
const MinimumTopUp = 10_000

// ErrCanceled is the result of a job whose settlement was canceled. Its
// transaction stays pending.
var ErrCanceled = errors.New("settlement canceled")

var providerNames = map[string]string{
	"bca":       "BCA",
	"mandiri":   "Mandiri",
	"bni":       "BNI",
	"bri":       "BRI",
	"cimb":      "CIMB Niaga",
	"ovo":       "OVO",
	"gopay":     "GoPay",
	"dana":      "DANA",
	"shopeepay": "ShopeePay",
	"linkaja":   "LinkAja",
}

// Ledger is the part of the ledger used by top-ups.
type Ledger interface {
	GetBalance(ctx context.Context) (ledger.WalletBalance, error)
	AddPendingTransaction(ctx context.Context, in ledger.TransactionInput) (ledger.Transaction, error)
	ConfirmTransaction(ctx context.Context, id string) (ledger.Transaction, error)
	FailTransaction(ctx context.Context, id string) (ledger.Transaction, error)
}

// Options configures a Service.
type Options struct {
	Clock           clockwork.Clock
	SettlementDelay time.Duration
	Validator       *validator.Validate
	Logger          *slog.Logger
}

// Service records top-ups as pending transactions and settles them after the
// provider's processing delay.
type Service struct {
	ledger   Ledger
	acquirer Acquirer
	clock    clockwork.Clock
	delay    time.Duration
	validate *validator.Validate
	logger   *slog.Logger

	inflight sync.WaitGroup
}

// NewService prepares a funding service. A nil acquirer approves everything.
func NewService(l Ledger, acquirer Acquirer, opts Options) *Service {
	if acquirer == nil {
		acquirer = StaticAcquirer{}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.SettlementDelay <= 0 {
		opts.SettlementDelay = DefaultSettlementDelay
	}
	if opts.Validator == nil {
		opts.Validator = validation.New()
	}
	return &Service{
		ledger:   l,
		acquirer: acquirer,
		clock:    opts.Clock,
		delay:    opts.SettlementDelay,
		validate: opts.Validator,
		logger:   logging.OrDiscard(opts.Logger),
	}
}

// TopUpInput captures a top-up from a bank account or into an e-wallet.
type TopUpInput struct {
	Method   string `json:"method" validate:"required,oneof=bank ewallet"`
	Provider string `json:"provider" validate:"required"`
	Amount   int64  `json:"amount" validate:"min=10000"`
}

// TopUp validates the request, records a pending transaction and schedules
// its settlement. Bank top-ups credit the wallet; e-wallet top-ups move money
// out of it and require a sufficient balance.
func (s *Service) TopUp(ctx context.Context, input TopUpInput) (*Job, error) {
	input.Method = strings.ToLower(strings.TrimSpace(input.Method))
	input.Provider = strings.TrimSpace(input.Provider)
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}

	method := ledger.Source(input.Method)
	amount := decimal.NewFromInt(input.Amount)
	provider := ProviderName(input.Provider)

	in := ledger.TransactionInput{
		Type:        ledger.TypeTopUp,
		Source:      method,
		Amount:      amount,
		Description: "Top Up via Bank " + provider,
		Category:    "Top Up",
	}
	if method == ledger.SourceEWallet {
		balance, err := s.ledger.GetBalance(ctx)
		if err != nil {
			return nil, err
		}
		if amount.GreaterThan(balance.Amount) {
			return nil, fmt.Errorf("%w: balance %s, requested %s", ledger.ErrInsufficientFunds, balance.Amount, amount)
		}
		in.Amount = amount.Neg()
		in.Description = "Top Up ke " + provider
	}

	tx, err := s.ledger.AddPendingTransaction(ctx, in)
	if err != nil {
		return nil, err
	}

	job := newJob(tx, s.clock.Now().UTC().Add(s.delay))
	auth := TopUpAuthorization{TransactionID: tx.ID, Method: method, Provider: input.Provider, Amount: input.Amount}
	settleCtx := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	job.onCancel = s.inflight.Done
	job.timer = s.clock.AfterFunc(s.delay, func() {
		if !job.claim() {
			return
		}
		defer s.inflight.Done()
		job.finish(s.settle(settleCtx, auth))
	})

	s.logger.Info("top up scheduled",
		slog.String("transaction_id", tx.ID),
		slog.String("method", input.Method),
		slog.String("provider", provider),
		slog.Int64("amount", input.Amount),
		slog.Duration("delay", s.delay),
	)
	return job, nil
}

// settle asks the acquirer for a decision and moves the transaction to its
// terminal state accordingly.
func (s *Service) settle(ctx context.Context, auth TopUpAuthorization) (ledger.Transaction, error) {
	decision, err := s.acquirer.AuthorizeTopUp(ctx, auth)
	if err != nil || !decision.Approved() {
		s.logger.Warn("top up declined",
			slog.String("transaction_id", auth.TransactionID),
			slog.String("status", decision.Status),
			slog.Any("error", err),
		)
		return s.ledger.FailTransaction(ctx, auth.TransactionID)
	}

	tx, err := s.ledger.ConfirmTransaction(ctx, auth.TransactionID)
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		s.logger.Warn("top up could not be applied", slog.String("transaction_id", auth.TransactionID), slog.Any("error", err))
		return s.ledger.FailTransaction(ctx, auth.TransactionID)
	}
	if err != nil {
		s.logger.Error("top up settlement failed", slog.String("transaction_id", auth.TransactionID), slog.Any("error", err))
		return ledger.Transaction{}, err
	}

	s.logger.Info("top up settled",
		slog.String("transaction_id", tx.ID),
		slog.String("reference", decision.Reference),
	)
	return tx, nil
}

// Drain waits for scheduled settlements to finish or ctx to end. Jobs that
// have not fired when ctx ends leave their transactions pending.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProviderName maps a provider id such as "bca" to its display name. Unknown
// ids are returned unchanged.
func ProviderName(id string) string {
	if name, ok := providerNames[strings.ToLower(id)]; ok {
		return name
	}
	return id
}
