package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartwallet/smartwallet/internal/store"
)

// ErrMalformedRecord reports a stored record that is not a JSON object. Field
// level problems never produce it; they decode to defaults instead.
var ErrMalformedRecord = errors.New("malformed record")

// Decoded is the result of a lenient decode. Defaulted is set when the stored
// value was missing or invalid and Value holds the documented default.
type Decoded[T any] struct {
	Value     T
	Defaulted bool
}

func valid[T any](v T) Decoded[T]    { return Decoded[T]{Value: v} }
func fallback[T any](v T) Decoded[T] { return Decoded[T]{Value: v, Defaulted: true} }

// DecodeAmount reads a stored amount. JSON numbers and numeric strings are
// accepted. Anything else, including null, decodes to zero with Defaulted set.
func DecodeAmount(raw json.RawMessage) Decoded[decimal.Decimal] {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fallback(decimal.Zero)
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fallback(decimal.Zero)
		}
		text = strings.TrimSpace(s)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return fallback(decimal.Zero)
	}
	return valid(d)
}

// DecodeTime reads a stored timestamp. ISO-8601 strings and epoch
// milliseconds are accepted. Invalid input yields the zero time with
// Defaulted set.
func DecodeTime(raw json.RawMessage) Decoded[time.Time] {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fallback(time.Time{})
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fallback(time.Time{})
		}
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return fallback(time.Time{})
		}
		return valid(t.UTC())
	}

	ms, err := decimal.NewFromString(string(raw))
	if err != nil {
		return fallback(time.Time{})
	}
	return valid(time.UnixMilli(ms.IntPart()).UTC())
}

// decodeOptionalTime treats absent or invalid values as not set.
func decodeOptionalTime(raw json.RawMessage) *time.Time {
	d := DecodeTime(raw)
	if d.Defaulted {
		return nil
	}
	return &d.Value
}

func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type balanceDoc struct {
	ID          string          `json:"id"`
	Amount      json.RawMessage `json:"amount"`
	Currency    string          `json:"currency"`
	LastUpdated string          `json:"lastUpdated"`
}

type transactionDoc struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Source      Source          `json:"source"`
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Status      Status          `json:"status"`
	Icon        string          `json:"icon,omitempty"`
	Date        string          `json:"date"`
	StartedAt   string          `json:"startedAt,omitempty"`
	FinishedAt  string          `json:"finishedAt,omitempty"`
}

func encodeBalance(walletID string, b WalletBalance) (store.Record, error) {
	data, err := json.Marshal(balanceDoc{
		ID:          walletID,
		Amount:      json.RawMessage(b.Amount.String()),
		Currency:    b.Currency,
		LastUpdated: formatTime(b.LastUpdated),
	})
	if err != nil {
		return store.Record{}, fmt.Errorf("encode balance: %w", err)
	}
	return store.Record{Key: walletID, Data: data}, nil
}

func encodeTransaction(tx Transaction) (store.Record, error) {
	doc := transactionDoc{
		ID:          tx.ID,
		Type:        tx.Type,
		Source:      tx.Source,
		Amount:      json.RawMessage(tx.Amount.String()),
		Description: tx.Description,
		Category:    tx.Category,
		Status:      tx.Status,
		Icon:        tx.Icon,
		Date:        formatTime(tx.Date),
	}
	if tx.StartedAt != nil {
		doc.StartedAt = formatTime(*tx.StartedAt)
	}
	if tx.FinishedAt != nil {
		doc.FinishedAt = formatTime(*tx.FinishedAt)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return store.Record{}, fmt.Errorf("encode transaction %s: %w", tx.ID, err)
	}
	return store.Record{Key: tx.ID, Data: data}, nil
}

// decodeBalance returns the balance held in rec and the names of any fields
// that fell back to defaults.
func decodeBalance(rec store.Record) (WalletBalance, []string, error) {
	fields, err := objectFields(rec)
	if err != nil {
		return WalletBalance{}, nil, err
	}

	var dflt []string
	amount := DecodeAmount(fields["amount"])
	if amount.Defaulted {
		dflt = append(dflt, "amount")
	}
	updated := DecodeTime(fields["lastUpdated"])
	if updated.Defaulted {
		dflt = append(dflt, "lastUpdated")
	}

	return WalletBalance{
		Amount:      amount.Value,
		Currency:    decodeString(fields["currency"]),
		LastUpdated: updated.Value,
	}, dflt, nil
}

// decodeTransaction returns the transaction held in rec and the names of any
// fields that fell back to defaults. A missing or unknown status is read as
// success.
func decodeTransaction(rec store.Record) (Transaction, []string, error) {
	fields, err := objectFields(rec)
	if err != nil {
		return Transaction{}, nil, err
	}

	var dflt []string
	tx := Transaction{
		ID:          decodeString(fields["id"]),
		Type:        Type(decodeString(fields["type"])),
		Source:      Source(decodeString(fields["source"])),
		Description: decodeString(fields["description"]),
		Category:    decodeString(fields["category"]),
		Status:      Status(decodeString(fields["status"])),
		Icon:        decodeString(fields["icon"]),
		StartedAt:   decodeOptionalTime(fields["startedAt"]),
		FinishedAt:  decodeOptionalTime(fields["finishedAt"]),
	}
	if tx.ID == "" {
		tx.ID = rec.Key
	}

	amount := DecodeAmount(fields["amount"])
	if amount.Defaulted {
		dflt = append(dflt, "amount")
	}
	tx.Amount = amount.Value

	date := DecodeTime(fields["date"])
	if date.Defaulted {
		dflt = append(dflt, "date")
	}
	tx.Date = date.Value

	if !tx.Status.Valid() {
		tx.Status = StatusSuccess
		dflt = append(dflt, "status")
	}
	return tx, dflt, nil
}

func objectFields(rec store.Record) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec.Data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: key %q", ErrMalformedRecord, rec.Key)
	}
	return fields, nil
}
