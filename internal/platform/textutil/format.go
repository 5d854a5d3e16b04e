package textutil

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var defaultPrinter = message.NewPrinter(language.English)

// Printer returns the locale-aware printer used for derived display strings.
func Printer() *message.Printer {
	return defaultPrinter
}

// FormatAmount renders a currency amount with grouping separators and two decimals,
// e.g. 1234.5 -> "1,234.50".
func FormatAmount(value float64) string {
	return defaultPrinter.Sprintf("%.2f", value)
}

// FormatCount renders an integer with grouping separators.
func FormatCount(value int) string {
	return defaultPrinter.Sprintf("%d", value)
}

// FormatPercent renders a fractional rate as a percentage, trimming trailing zeros:
// 0.12 -> "12%", 0.105 -> "10.5%".
func FormatPercent(rate float64) string {
	percent := rate * 100
	if math.Abs(percent-math.Round(percent)) < 1e-9 {
		return strconv.FormatInt(int64(math.Round(percent)), 10) + "%"
	}
	formatted := strconv.FormatFloat(percent, 'f', 2, 64)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")
	return formatted + "%"
}
