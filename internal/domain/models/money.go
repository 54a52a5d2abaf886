package models

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	currencySymbol = "₺"
	missingAmount  = "-"
)

var trPrinter = message.NewPrinter(language.Turkish)

// SharePrice splits totalPrice over totalShares rounding up to the next whole
// unit. A zero or negative share count yields 0.
func SharePrice(totalPrice float64, totalShares int) float64 {
	if totalShares <= 0 {
		return 0
	}
	return math.Ceil(totalPrice / float64(totalShares))
}

// FormatAmount renders amount as a whole number with Turkish digit grouping, e.g. 12.500.
func FormatAmount(amount float64) string {
	return trPrinter.Sprintf("%d", int64(math.Round(amount)))
}

// FormatCurrency renders amount as Turkish lira without decimals, e.g. ₺12.500.
func FormatCurrency(amount float64) string {
	rounded := math.Round(amount)
	if rounded < 0 {
		return "-" + currencySymbol + FormatAmount(-rounded)
	}
	return currencySymbol + FormatAmount(rounded)
}

// FormatOptionalCurrency is FormatCurrency with a dash for a missing amount.
// Zero is an amount, not a missing one.
func FormatOptionalCurrency(amount *float64) string {
	if amount == nil {
		return missingAmount
	}
	return FormatCurrency(*amount)
}
