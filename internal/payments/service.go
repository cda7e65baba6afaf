package payments

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/logging"
	"github.com/smartwallet/smartwallet/internal/validation"
)

// MinimumTransfer is the smallest accepted transfer in IDR.
const MinimumTransfer = 10_000

// DefaultRecipientName is shown when the account holder name is not known.
const DefaultRecipientName = "Pemilik Rekening"

// Bill describes a payable bill category.
type Bill struct {
	Label     string
	Providers []string
	Amounts   []int64
}

// Bills lists the supported bill categories by id.
var Bills = map[string]Bill{
	"pulsa": {
		Label:     "Pulsa",
		Providers: []string{"Telkomsel", "Indosat", "XL", "Tri", "Smartfren"},
		Amounts:   []int64{10_000, 20_000, 25_000, 50_000, 100_000, 200_000},
	},
	"listrik": {
		Label:     "Token Listrik",
		Providers: []string{"PLN Prepaid"},
		Amounts:   []int64{20_000, 50_000, 100_000, 200_000, 500_000, 1_000_000},
	},
	"pdam":     {Label: "PDAM"},
	"internet": {Label: "Internet"},
	"game": {
		Label:     "Game",
		Providers: []string{"Mobile Legends", "Free Fire", "PUBG Mobile", "Genshin Impact"},
		Amounts:   []int64{10_000, 25_000, 50_000, 100_000, 300_000, 500_000},
	},
}

// DemoQRIS is the merchant code returned by the simulated scanner.
var DemoQRIS = QRISInput{Merchant: "Toko Sembako Sejahtera", Amount: 75_000}

// Ledger is the part of the ledger used by payment flows.
type Ledger interface {
	GetBalance(ctx context.Context) (ledger.WalletBalance, error)
	AddTransaction(ctx context.Context, in ledger.TransactionInput) (ledger.Transaction, error)
}

// Service runs the synchronous payment flows: bills, transfers and QRIS.
type Service struct {
	ledger   Ledger
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a payment service. A nil validator gets the default.
func NewService(l Ledger, validate *validator.Validate, logger *slog.Logger) *Service {
	if validate == nil {
		validate = validation.New()
	}
	return &Service{ledger: l, validate: validate, logger: logging.OrDiscard(logger)}
}

// PayInput captures a bill payment.
type PayInput struct {
	Bill     string `json:"bill" validate:"required"`
	Provider string `json:"provider"`
	Account  string `json:"account" validate:"required,min=10"`
	Amount   int64  `json:"amount" validate:"gt=0"`
}

// TransferInput captures a transfer to a bank account or e-wallet.
type TransferInput struct {
	Method        string `json:"method" validate:"omitempty,oneof=bank ewallet"`
	Bank          string `json:"bank" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=10"`
	AccountName   string `json:"account_name"`
	Amount        int64  `json:"amount" validate:"min=10000"`
	Note          string `json:"note"`
}

// QRISInput captures a scanned merchant payment.
type QRISInput struct {
	Merchant string `json:"merchant" validate:"required"`
	Amount   int64  `json:"amount" validate:"gt=0"`
}

// Pay settles a bill payment immediately.
func (s *Service) Pay(ctx context.Context, input PayInput) (ledger.Transaction, error) {
	input.Account = strings.TrimSpace(input.Account)
	if err := validation.Struct(s.validate, input); err != nil {
		return ledger.Transaction{}, err
	}
	bill, ok := Bills[strings.ToLower(input.Bill)]
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: unknown bill %q, expected one of %v", validation.ErrInvalid, input.Bill, BillIDs())
	}

	parts := []string{bill.Label}
	if p := strings.TrimSpace(input.Provider); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, lastDigits(input.Account, 4))

	return s.debit(ctx, ledger.TransactionInput{
		Type:        ledger.TypePayment,
		Source:      ledger.SourceEWallet,
		Amount:      decimal.NewFromInt(input.Amount),
		Description: strings.Join(parts, " "),
		Category:    bill.Label,
	})
}

// Transfer sends money to a bank account or e-wallet.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (ledger.Transaction, error) {
	input.AccountNumber = strings.TrimSpace(input.AccountNumber)
	if err := validation.Struct(s.validate, input); err != nil {
		return ledger.Transaction{}, err
	}

	source := ledger.SourceBank
	if input.Method == string(ledger.SourceEWallet) {
		source = ledger.SourceEWallet
	}
	name := strings.TrimSpace(input.AccountName)
	if name == "" {
		name = DefaultRecipientName
	}

	return s.debit(ctx, ledger.TransactionInput{
		Type:        ledger.TypeTransfer,
		Source:      source,
		Amount:      decimal.NewFromInt(input.Amount),
		Description: "Transfer ke " + name,
		Category:    "Transfer",
	})
}

// PayQRIS pays a merchant from a scanned QRIS code.
func (s *Service) PayQRIS(ctx context.Context, input QRISInput) (ledger.Transaction, error) {
	if err := validation.Struct(s.validate, input); err != nil {
		return ledger.Transaction{}, err
	}
	return s.debit(ctx, ledger.TransactionInput{
		Type:        ledger.TypePayment,
		Source:      ledger.SourceEWallet,
		Amount:      decimal.NewFromInt(input.Amount),
		Description: "QRIS - " + input.Merchant,
		Category:    "QRIS",
	})
}

// debit checks the balance covers in.Amount and records it as a settled
// negative transaction.
func (s *Service) debit(ctx context.Context, in ledger.TransactionInput) (ledger.Transaction, error) {
	balance, err := s.ledger.GetBalance(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if in.Amount.GreaterThan(balance.Amount) {
		return ledger.Transaction{}, fmt.Errorf("%w: balance %s, requested %s", ledger.ErrInsufficientFunds, balance.Amount, in.Amount)
	}

	in.Amount = in.Amount.Neg()
	tx, err := s.ledger.AddTransaction(ctx, in)
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.logger.Info("payment completed",
		slog.String("transaction_id", tx.ID),
		slog.String("category", tx.Category),
		slog.String("amount", tx.Amount.String()),
	)
	return tx, nil
}

// BillIDs returns the supported bill ids in sorted order.
func BillIDs() []string {
	ids := make([]string, 0, len(Bills))
	for id := range Bills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
