package walletstate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartwallet/smartwallet/internal/ledger"
)

func demoSnapshot() Snapshot {
	txs := ledger.DemoTransactions(start)
	txs = append([]ledger.Transaction{{
		ID: "pending", Type: ledger.TypeTopUp, Source: ledger.SourceBank, Amount: decimal.NewFromInt(200_000),
		Description: "Top Up via Bank BCA", Status: ledger.StatusPending, Date: start,
	}, {
		ID: "failed", Type: ledger.TypeTransfer, Source: ledger.SourceBank, Amount: decimal.NewFromInt(-1_000_000),
		Description: "Transfer ke Budi", Status: ledger.StatusFailed, Date: start,
	}}, txs...)
	ledger.SortByEffective(txs)
	return Snapshot{Transactions: txs}
}

func TestRecent(t *testing.T) {
	snap := demoSnapshot()

	assert.Len(t, snap.Recent(0), DefaultRecentLimit)
	assert.Len(t, snap.Recent(2), 2)
	assert.Len(t, snap.Recent(100), len(snap.Transactions))
	assert.Empty(t, Snapshot{}.Recent(5))
}

func TestTotals(t *testing.T) {
	totals := demoSnapshot().Totals()

	assert.True(t, totals.In.Equal(decimal.NewFromInt(800_000)), "in=%s", totals.In)
	assert.True(t, totals.Out.Equal(decimal.NewFromInt(475_000)), "out=%s", totals.Out)
}

func TestFilter(t *testing.T) {
	snap := demoSnapshot()

	in := snap.Filter("", DirectionIn)
	require.Len(t, in, 3)
	for _, tx := range in {
		assert.Contains(t, []ledger.Type{ledger.TypeTopUp, ledger.TypeReceive}, tx.Type)
	}

	assert.Len(t, snap.Filter("", DirectionOut), 4)
	assert.Len(t, snap.Filter("", DirectionAll), 7)

	hits := snap.Filter("  TRANSFER ", DirectionAll)
	require.Len(t, hits, 2)
	assert.Len(t, snap.Filter("transfer", DirectionIn), 0)
}

func TestGroupByDay(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	txs := []ledger.Transaction{
		{ID: "a", Date: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)},
		{ID: "b", Date: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "c", Date: time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC)},
	}

	groups := GroupByDay(txs, jakarta)
	require.Len(t, groups, 3)
	assert.Equal(t, "2 Mei 2024", groups[0].Label)
	assert.Equal(t, "1 Mei 2024", groups[1].Label)
	assert.Equal(t, "30 April 2024", groups[2].Label)

	utc := GroupByDay(txs, nil)
	require.Len(t, utc, 2)
	assert.Equal(t, []string{"a", "b"}, []string{utc[0].Transactions[0].ID, utc[0].Transactions[1].ID})
}
