package calc

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol prefixes formatted amounts.
const CurrencySymbol = "₹"

var printer = message.NewPrinter(language.English)

// FormatCurrency renders an amount with grouping separators and two decimals.
func FormatCurrency(amount decimal.Decimal) string {
	value := amount.Round(2).InexactFloat64()
	if value < 0 {
		return "-" + CurrencySymbol + printer.Sprintf("%.2f", -value)
	}
	return CurrencySymbol + printer.Sprintf("%.2f", value)
}

// FormatPercent renders a rate with one decimal.
func FormatPercent(rate float64) string {
	return printer.Sprintf("%.1f%%", rate)
}

// FormatCount renders a count with grouping separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}
