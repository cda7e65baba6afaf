package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Method  string `json:"method" validate:"required,oneof=bank ewallet"`
	Account string `json:"account_number" validate:"required,numeric,min=10"`
	Amount  int64  `json:"amount" validate:"min=10000"`
}

func TestStruct(t *testing.T) {
	v := New()

	require.NoError(t, Struct(v, sample{Method: "bank", Account: "081234567890", Amount: 10_000}))

	err := Struct(v, sample{Method: "cash", Account: "0812", Amount: 500})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "method must be one of [bank ewallet]")
	assert.Contains(t, err.Error(), "account_number must have at least 10 characters")
	assert.Contains(t, err.Error(), "amount must be at least 10000")
}

func TestStructNilValidator(t *testing.T) {
	err := Struct(nil, sample{})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "method is required")
}
