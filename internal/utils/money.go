package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fraction digits kept for every amount.
const MoneyScale = 2

const DefaultCurrency = "USD"

// FromCents converts stored minor units into a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -MoneyScale)
}

// ToCents converts a decimal amount into minor units, rounding half away from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Round(MoneyScale).Shift(MoneyScale).IntPart()
}

// RoundMoney rounds an amount to the money scale.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyScale)
}

// HasMoneyScale reports whether amount has no more than two fraction digits.
func HasMoneyScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(MoneyScale))
}

// FormatMoney keeps consistent decimal formatting for currency fields.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(MoneyScale)
}

// FormatWithCurrency renders "USD 575.00".
func FormatWithCurrency(amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", NormalizeCurrency(currency), FormatMoney(amount))
}

// NormalizeCurrency upper-cases a currency code, defaulting to USD when empty.
func NormalizeCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

// ValidCurrency reports whether c looks like an ISO 4217 alpha code.
func ValidCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
