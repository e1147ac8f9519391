// Package currency parses free-text price labels, keeps a cached table of
// exchange rates and renders amounts in a display currency.
package currency

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Code is a three-letter ISO currency code.
type Code string

const (
	KES Code = "KES"
	USD Code = "USD"
	GBP Code = "GBP"
	EUR Code = "EUR"
)

// Default is assumed when a label carries no currency marker.
const Default = KES

// Supported lists the display currencies in marker priority order.
var Supported = []Code{KES, USD, GBP, EUR}

// ParseCode maps user input ("usd", "Ksh") to a supported code.
func ParseCode(s string) (Code, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "KES", "KSH":
		return KES, true
	case "USD", "$":
		return USD, true
	case "GBP", "£":
		return GBP, true
	case "EUR", "€":
		return EUR, true
	}
	return "", false
}

// Money is a price parsed out of a display label. Value holds the digits
// exactly as written, so conversion and rounding never see float error.
//
// Parsed is false when no number could be read; Value is then 0 and must not
// be read as "free". Assumed is true when a number was read but the label had
// no currency marker, so Currency is the Default guess.
type Money struct {
	Value    decimal.Decimal `json:"value"`
	Currency Code            `json:"currency"`
	Parsed   bool            `json:"parsed"`
	Assumed  bool            `json:"assumed,omitempty"`
}

type marker struct {
	code    Code
	pattern *regexp.Regexp
}

// markers are checked in order; the first currency with a hit wins.
// Letter codes must not be embedded in a longer word ("Lakeside").
var markers = []marker{
	{KES, regexp.MustCompile(`(?i)(^|[^a-z])(kes|ksh)([^a-z]|$)`)},
	{USD, regexp.MustCompile(`(?i)(^|[^a-z])usd([^a-z]|$)|\$`)},
	{GBP, regexp.MustCompile(`(?i)(^|[^a-z])gbp([^a-z]|$)|£`)},
	{EUR, regexp.MustCompile(`(?i)(^|[^a-z])eur([^a-z]|$)|€`)},
}

var amountRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Parse reads a price label such as "KES 85,000,000" or "$450,000 USD".
// It never fails; see Money for how degraded results are flagged.
func Parse(label string) Money {
	m := Money{Currency: Default, Assumed: true}
	for _, mk := range markers {
		if mk.pattern.MatchString(label) {
			m.Currency = mk.code
			m.Assumed = false
			break
		}
	}

	cleaned := strings.ReplaceAll(label, ",", "")
	match := amountRegexp.FindString(cleaned)
	if match == "" {
		return Money{Currency: m.Currency}
	}

	d, err := decimal.NewFromString(match)
	if err != nil {
		return Money{Currency: m.Currency}
	}

	m.Value = d
	m.Parsed = true
	return m
}
