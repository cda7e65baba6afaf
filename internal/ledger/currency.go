package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used when no currency code is supplied.
const DefaultCurrency = "IDR"

// symbols holds the id-ID display symbols of the currencies the wallet shows.
// Other codes are rendered with the ISO code itself.
var symbols = map[string]string{
	"IDR": "Rp",
	"USD": "US$",
	"EUR": "€",
	"SGD": "SGD",
	"MYR": "MYR",
	"JPY": "JP¥",
}

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatCurrency renders the magnitude of amount in Indonesian notation with
// no fraction digits, e.g. "Rp 75.000" (non-breaking space). The sign is
// dropped; callers choose their own prefix.
func FormatCurrency(amount decimal.Decimal, code string) string {
	whole := amount.Abs().Round(0).IntPart()
	return currencySymbol(code) + "\u00a0" + idPrinter.Sprintf("%d", whole)
}

func currencySymbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	if unit, err := currency.ParseISO(code); err == nil {
		code = unit.String()
	}
	if sym, ok := symbols[code]; ok {
		return sym
	}
	return code
}
