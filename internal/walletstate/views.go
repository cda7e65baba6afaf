package walletstate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartwallet/smartwallet/internal/ledger"
)

// Direction filters transactions by the way money moved.
type Direction string

const (
	DirectionAll Direction = "all"
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Matches reports whether tx belongs to d. Incoming is topup and receive,
// outgoing is transfer and payment.
func (d Direction) Matches(tx ledger.Transaction) bool {
	switch d {
	case DirectionIn:
		return tx.Type == ledger.TypeTopUp || tx.Type == ledger.TypeReceive
	case DirectionOut:
		return tx.Type == ledger.TypeTransfer || tx.Type == ledger.TypePayment
	default:
		return true
	}
}

// Totals summarizes money in and out of the wallet. Failed transactions are
// not counted.
type Totals struct {
	In  decimal.Decimal `json:"in"`
	Out decimal.Decimal `json:"out"`
}

// DayGroup holds the transactions created on one calendar day.
type DayGroup struct {
	Day          time.Time            `json:"day"`
	Label        string               `json:"label"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// Recent returns the first limit transactions. A non-positive limit selects
// DefaultRecentLimit.
func (s Snapshot) Recent(limit int) []ledger.Transaction {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > len(s.Transactions) {
		limit = len(s.Transactions)
	}
	return s.Transactions[:limit:limit]
}

// Totals sums positive amounts into In and the magnitude of negative amounts
// into Out.
func (s Snapshot) Totals() Totals {
	t := Totals{In: decimal.Zero, Out: decimal.Zero}
	for _, tx := range s.Transactions {
		if tx.Status == ledger.StatusFailed {
			continue
		}
		switch {
		case tx.Amount.IsPositive():
			t.In = t.In.Add(tx.Amount)
		case tx.Amount.IsNegative():
			t.Out = t.Out.Add(tx.Amount.Abs())
		}
	}
	return t
}

// Filter returns transactions whose description contains query, ignoring
// case, and that match dir.
func (s Snapshot) Filter(query string, dir Direction) []ledger.Transaction {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]ledger.Transaction, 0, len(s.Transactions))
	for _, tx := range s.Transactions {
		if query != "" && !strings.Contains(strings.ToLower(tx.Description), query) {
			continue
		}
		if !dir.Matches(tx) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// DayLabel renders t as an Indonesian long date, e.g. "1 Mei 2024".
func DayLabel(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), indonesianMonths[t.Month()-1], t.Year())
}

// GroupByDay groups txs by creation day in loc, keeping their order. Nil loc
// means UTC.
func GroupByDay(txs []ledger.Transaction, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.UTC
	}
	var groups []DayGroup
	index := make(map[string]int)
	for _, tx := range txs {
		local := tx.Date.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		key := day.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Day: day, Label: DayLabel(day)})
		}
		groups[i].Transactions = append(groups[i].Transactions, tx)
	}
	return groups
}

// GroupByDay groups the snapshot's transactions by creation day in loc.
func (s Snapshot) GroupByDay(loc *time.Location) []DayGroup {
	return GroupByDay(s.Transactions, loc)
}
