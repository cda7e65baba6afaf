package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSeedBalance is the demo opening balance in IDR.
var DefaultSeedBalance = decimal.NewFromInt(2_500_000)

// Seed is the demo dataset written the first time a wallet is read.
type Seed struct {
	Balance      decimal.Decimal
	Transactions []Transaction
}

// DefaultSeed returns the opening balance and the demo history, dated
// relative to now.
func DefaultSeed(now time.Time) Seed {
	return Seed{
		Balance:      DefaultSeedBalance,
		Transactions: DemoTransactions(now),
	}
}

// DemoTransactions returns the five settled demo entries shown on a fresh wallet.
func DemoTransactions(now time.Time) []Transaction {
	entry := func(id string, typ Type, src Source, amount int64, desc, category string, age time.Duration) Transaction {
		return Transaction{
			ID:          id,
			Type:        typ,
			Source:      src,
			Amount:      decimal.NewFromInt(amount),
			Description: desc,
			Category:    category,
			Status:      StatusSuccess,
			Date:        now.Add(-age),
		}
	}

	return []Transaction{
		entry("seed-1", TypeTopUp, SourceBank, 500_000, "Top Up via BCA", "Top Up", 2*time.Hour),
		entry("seed-2", TypePayment, SourceEWallet, -50_000, "Pulsa Telkomsel", "Pulsa", 24*time.Hour),
		entry("seed-3", TypeTransfer, SourceBank, -150_000, "Transfer ke John Doe", "Transfer", 48*time.Hour),
		entry("seed-4", TypePayment, SourceEWallet, -275_000, "Token Listrik PLN", "Listrik", 72*time.Hour),
		entry("seed-5", TypeReceive, SourceEWallet, 100_000, "Dari Sarah", "Receive", 96*time.Hour),
	}
}
