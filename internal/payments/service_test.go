package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartwallet/smartwallet/internal/ledger"
	"github.com/smartwallet/smartwallet/internal/notification"
	"github.com/smartwallet/smartwallet/internal/store"
	"github.com/smartwallet/smartwallet/internal/validation"
)

func newTestService(t *testing.T) (*Service, *ledger.Service, *[]notification.Event) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.Open(context.Background()))

	bus := notification.NewBus(nil)
	var events []notification.Event
	bus.Subscribe(func(_ context.Context, e notification.Event) error {
		events = append(events, e)
		return nil
	})

	l := ledger.NewService(st, bus, ledger.Options{Seed: &ledger.Seed{Balance: ledger.DefaultSeedBalance}})
	return NewService(l, nil, nil), l, &events
}

func balance(t *testing.T, l *ledger.Service) decimal.Decimal {
	t.Helper()
	b, err := l.GetBalance(context.Background())
	require.NoError(t, err)
	return b.Amount
}

func TestPayBill(t *testing.T) {
	svc, l, events := newTestService(t)

	tx, err := svc.Pay(context.Background(), PayInput{
		Bill: "pulsa", Provider: "Telkomsel", Account: "081234567890", Amount: 50_000,
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.TypePayment, tx.Type)
	assert.Equal(t, ledger.StatusSuccess, tx.Status)
	assert.Equal(t, "Pulsa Telkomsel 7890", tx.Description)
	assert.Equal(t, "Pulsa", tx.Category)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(-50_000)))
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(2_450_000)))
	require.Len(t, *events, 1)
	assert.Equal(t, notification.KindTransactionAdded, (*events)[0].Kind)
}

func TestPayBillValidation(t *testing.T) {
	svc, l, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Pay(ctx, PayInput{Bill: "pulsa", Account: "0812", Amount: 10_000})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = svc.Pay(ctx, PayInput{Bill: "casino", Account: "081234567890", Amount: 10_000})
	assert.ErrorIs(t, err, validation.ErrInvalid)
	assert.Contains(t, err.Error(), "unknown bill")

	assert.True(t, balance(t, l).Equal(ledger.DefaultSeedBalance))
}

func TestTransfer(t *testing.T) {
	svc, l, _ := newTestService(t)

	tx, err := svc.Transfer(context.Background(), TransferInput{
		Bank: "bca", AccountNumber: "1234567890", AccountName: "John Doe", Amount: 150_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Transfer ke John Doe", tx.Description)
	assert.Equal(t, ledger.SourceBank, tx.Source)
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(2_350_000)))

	tx, err = svc.Transfer(context.Background(), TransferInput{
		Method: "ewallet", Bank: "gopay", AccountNumber: "081298765432", Amount: 10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Transfer ke "+DefaultRecipientName, tx.Description)
	assert.Equal(t, ledger.SourceEWallet, tx.Source)
}

func TestTransferMinimum(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Transfer(context.Background(), TransferInput{
		Bank: "bca", AccountNumber: "1234567890", Amount: MinimumTransfer - 1,
	})
	assert.ErrorIs(t, err, validation.ErrInvalid)
}

func TestInsufficientFunds(t *testing.T) {
	svc, l, events := newTestService(t)

	_, err := svc.Transfer(context.Background(), TransferInput{
		Bank: "bni", AccountNumber: "1234567890", Amount: 2_500_001,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.True(t, balance(t, l).Equal(ledger.DefaultSeedBalance))
	assert.Empty(t, *events)

	_, err = svc.Transfer(context.Background(), TransferInput{
		Bank: "bni", AccountNumber: "1234567890", Amount: 2_500_000,
	})
	assert.NoError(t, err, "spending the whole balance is allowed")
}

func TestPayQRIS(t *testing.T) {
	svc, l, _ := newTestService(t)

	tx, err := svc.PayQRIS(context.Background(), DemoQRIS)
	require.NoError(t, err)
	assert.Equal(t, "QRIS - Toko Sembako Sejahtera", tx.Description)
	assert.Equal(t, "QRIS", tx.Category)
	assert.True(t, balance(t, l).Equal(decimal.NewFromInt(2_425_000)))

	_, err = svc.PayQRIS(context.Background(), QRISInput{Amount: 1})
	assert.ErrorIs(t, err, validation.ErrInvalid)
}

func TestBillIDsSorted(t *testing.T) {
	assert.Equal(t, []string{"game", "internet", "listrik", "pdam", "pulsa"}, BillIDs())
}
