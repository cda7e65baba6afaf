package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reconciliation compares the stored balance against the balance implied by
// the settled transaction history.
type Reconciliation struct {
	Balance    decimal.Decimal `json:"balance"`
	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"`
	Settled    int             `json:"settled"`
	Pending    int             `json:"pending"`
	CheckedAt  time.Time       `json:"checkedAt"`
}

// Balanced reports whether the stored balance matches the history.
func (r Reconciliation) Balanced() bool {
	return r.Difference.IsZero()
}

// Reconcile checks that the balance equals the seed balance plus every
// successful transaction recorded after seeding. Seeded demo entries predate
// the opening balance and are not counted.
func (s *Service) Reconcile(ctx context.Context) (Reconciliation, error) {
	var r Reconciliation
	err := s.withLock(func() error {
		balance, err := s.balanceLocked(ctx)
		if err != nil {
			return err
		}
		txs, err := s.readTransactions(ctx)
		if err != nil {
			return err
		}

		expected := s.seed.Balance
		settled, pending := 0, 0
		for _, tx := range txs {
			switch tx.Status {
			case StatusPending:
				pending++
			case StatusSuccess:
				if _, seeded := s.seedIDs[tx.ID]; seeded {
					continue
				}
				settled++
				expected = expected.Add(tx.Amount)
			}
		}

		r = Reconciliation{
			Balance:    balance.Amount,
			Expected:   expected,
			Difference: balance.Amount.Sub(expected),
			Settled:    settled,
			Pending:    pending,
			CheckedAt:  s.now(),
		}
		return nil
	})
	if err != nil {
		return Reconciliation{}, fmt.Errorf("reconcile: %w", err)
	}
	return r, nil
}
