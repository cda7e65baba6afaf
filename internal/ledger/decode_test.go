package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartwallet/smartwallet/internal/store"
)

func TestDecodeAmount(t *testing.T) {
	cases := []struct {
		raw       string
		want      string
		defaulted bool
	}{
		{`-50000`, "-50000", false},
		{`"12500"`, "12500", false},
		{`" 75000 "`, "75000", false},
		{`1.5e3`, "1500", false},
		{`"abc"`, "0", true},
		{`null`, "0", true},
		{`true`, "0", true},
		{`{}`, "0", true},
		{``, "0", true},
	}
	for _, c := range cases {
		got := DecodeAmount(json.RawMessage(c.raw))
		assert.Equal(t, c.defaulted, got.Defaulted, "DecodeAmount(%s) defaulted", c.raw)
		assert.True(t, got.Value.Equal(decimal.RequireFromString(c.want)), "DecodeAmount(%s) = %s, want %s", c.raw, got.Value, c.want)
	}
}

func TestDecodeTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	got := DecodeTime(json.RawMessage(`"2024-05-01T16:30:00+07:00"`))
	assert.False(t, got.Defaulted)
	assert.True(t, got.Value.Equal(want), "iso string: %v", got.Value)

	got = DecodeTime(json.RawMessage(`1714555800000`))
	assert.False(t, got.Defaulted)
	assert.True(t, got.Value.Equal(want), "epoch millis: %v", got.Value)

	got = DecodeTime(json.RawMessage(`"yesterday"`))
	assert.True(t, got.Defaulted)
	assert.True(t, got.Value.IsZero())

	assert.Nil(t, decodeOptionalTime(json.RawMessage(`"nope"`)), "invalid optional time should be absent")
}

func TestTransactionRecordRoundTrip(t *testing.T) {
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(3 * time.Second)
	tx := Transaction{
		ID: "tx-1", Type: TypeTopUp, Source: SourceBank, Amount: decimal.NewFromInt(200_000),
		Description: "Top Up via Bank BCA", Category: "Top Up", Status: StatusSuccess,
		Date: started, StartedAt: &started, FinishedAt: &finished,
	}

	rec, err := encodeTransaction(tx)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Data, &raw), "stored record is not json")
	assert.Equal(t, float64(200_000), raw["amount"], "amount should be stored as a number")
	assert.Equal(t, "2024-05-01T09:00:03Z", raw["finishedAt"], "dates should be ISO-8601")

	got, dflt, err := decodeTransaction(rec)
	require.NoError(t, err)
	assert.Empty(t, dflt)
	assert.True(t, got.Amount.Equal(tx.Amount))
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(finished))
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestDecodeTransaction_Defaults(t *testing.T) {
	got, dflt, err := decodeTransaction(store.Record{Key: "legacy", Data: []byte(`{"amount":"x","type":"payment"}`)})
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.ID, "id should fall back to the record key")
	assert.Equal(t, StatusSuccess, got.Status, "missing status should read as success")
	assert.Len(t, dflt, 3, "expected amount, date and status to be defaulted, got %v", dflt)

	_, _, err = decodeTransaction(store.Record{Key: "k", Data: []byte(`[1,2]`)})
	assert.Error(t, err, "non-object record should be rejected")
}
