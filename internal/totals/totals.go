// Package totals derives invoice subtotal, VAT and total from selection lines.
package totals

import (
	"strings"

	"github.com/shopspring/decimal"

	"fieldsales/backend/internal/domain"
)

// vatRate is the flat value-added tax applied to every invoice subtotal.
var vatRate = decimal.RequireFromString("0.15")

// Rate returns the VAT rate as a fraction (0.15).
func Rate() decimal.Decimal {
	return vatRate
}

// Subtotal sums unitPrice x quantity over all lines without intermediate rounding.
func Subtotal(lines []domain.SelectionEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(LineTotal(line))
	}
	return sum
}

func LineTotal(line domain.SelectionEntry) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// Tax rounds once, to two fraction digits.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(vatRate).Round(2)
}

func Compute(lines []domain.SelectionEntry) domain.Totals {
	subtotal := Subtotal(lines)
	tax := Tax(subtotal)
	return domain.Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// RatePercent is Rate expressed as a percentage (15).
func RatePercent() decimal.Decimal {
	return vatRate.Mul(decimal.NewFromInt(100))
}

// Format renders an amount with two fraction digits and comma thousands
// separators, prefixed by the currency code: "SAR 1,234.50".
func Format(amount decimal.Decimal, currency string) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.Grow(len(currency) + len(fixed) + len(whole)/3 + 2)
	if currency != "" {
		b.WriteString(currency)
		b.WriteByte(' ')
	}
	if amount.IsNegative() && !amount.Round(2).IsZero() {
		b.WriteByte('-')
	}

	rem := len(whole) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(whole[:rem])
	for i := rem; i < len(whole); i += 3 {
		b.WriteByte(',')
		b.WriteString(whole[i : i+3])
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
