package currency

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var symbols = map[Code]string{
	KES: "KES ",
	USD: "$",
	GBP: "£",
	EUR: "€",
}

// Symbol returns the display prefix for c.
func Symbol(c Code) string {
	if s, ok := symbols[c]; ok {
		return s
	}
	return string(c) + " "
}

// Convert moves value from one currency to another through USD. It returns
// 0 when either currency is missing from the table.
func Convert(value float64, from, to Code, table RateTable) float64 {
	d, ok := convert(decimal.NewFromFloat(value), from, to, table)
	if !ok {
		return 0
	}
	return d.InexactFloat64()
}

func convert(value decimal.Decimal, from, to Code, table RateTable) (decimal.Decimal, bool) {
	fromRate, ok := table.Rate(from)
	if !ok {
		return decimal.Zero, false
	}
	toRate, ok := table.Rate(to)
	if !ok {
		return decimal.Zero, false
	}
	if from == to {
		return value, true
	}
	usd := value.Div(decimal.NewFromFloat(fromRate))
	return usd.Mul(decimal.NewFromFloat(toRate)), true
}

// maxAmount is the largest whole amount that is rendered.
var maxAmount = decimal.NewFromInt(math.MaxInt64)

var printer = message.NewPrinter(language.English)

// formatAmount renders value rounded to whole units with thousands
// separators and the currency prefix. ok is false for negative amounts or
// amounts too large to render.
func formatAmount(value decimal.Decimal, c Code) (string, bool) {
	rounded := value.Round(0)
	if rounded.IsNegative() || rounded.GreaterThan(maxAmount) {
		return "", false
	}
	return Symbol(c) + printer.Sprintf("%d", rounded.IntPart()), true
}

// FormatMoney converts m into target and renders it. ok is false when m
// carries no parsed amount, when either currency has no rate in table, or
// when the converted amount cannot be rendered. A failed conversion is never
// shown as a zero price.
func FormatMoney(m Money, target Code, table RateTable) (string, bool) {
	if !m.Parsed {
		return "", false
	}
	converted, ok := convert(m.Value, m.Currency, target, table)
	if !ok {
		return "", false
	}
	return formatAmount(converted, target)
}

// Format parses label, converts it into target and renders it. Labels that
// cannot be rendered ("Price on request", unknown rates) are returned
// unchanged.
func Format(label string, target Code, table RateTable) string {
	s, ok := FormatMoney(Parse(label), target, table)
	if !ok {
		return label
	}
	return s
}
