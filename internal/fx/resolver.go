// Package fx resolves free-text exchange-rate declarations into directional
// numeric rates. Resolution is pure: it returns a rate or reports that none
// could be extracted, and the caller owns any fallback policy.
package fx

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source tags how a locked rate was obtained.
type Source string

const (
	// SourceSupplier marks a rate parsed from a supplier record.
	SourceSupplier Source = "supplier"
	// SourceManual marks a rate entered by the user.
	SourceManual Source = "manual"
	// SourceDefault marks the 1.0 fallback applied when resolution failed.
	SourceDefault Source = "default"
)

// RateInfo is the rate locked onto a purchase order at creation time.
type RateInfo struct {
	Rate         decimal.Decimal `json:"rate"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Source       Source          `json:"source"`
	ResolvedAt   time.Time       `json:"resolved_at"`
}

var (
	// "1 USD = 2600 TZS", anywhere in the text
	reOneEquals = regexp.MustCompile(`(?i)1\s*([A-Z]{3})\s*=\s*([\d,]+\.?\d*)\s*([A-Z]{3})`)
	// "2600 TZS = 1 USD"
	reEqualsOne = regexp.MustCompile(`(?i)([\d,]+\.?\d*)\s*([A-Z]{3})\s*=\s*1\s*([A-Z]{3})`)
	// bare numeric literal; anchored so text carrying currency codes never
	// degrades into a guessed direct rate
	reBareNumber = regexp.MustCompile(`^([\d,]+\.?\d*)$`)
)

// Resolve parses text as a rate from one currency to another. The boolean is
// false when no rate could be extracted; Resolve never fails otherwise.
func Resolve(text, from, to string) (decimal.Decimal, bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return decimal.NewFromInt(1), true
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Decimal{}, false
	}

	if m := reOneEquals.FindStringSubmatch(text); m != nil {
		return matchPair(m[1], m[2], m[3], from, to)
	}
	if m := reEqualsOne.FindStringSubmatch(text); m != nil {
		// "<n> TZS = 1 USD" declares 1 USD = <n> TZS.
		return matchPair(m[3], m[1], m[2], from, to)
	}
	if m := reBareNumber.FindStringSubmatch(text); m != nil {
		rate, err := parseNumber(m[1])
		if err != nil || rate.IsZero() {
			return decimal.Decimal{}, false
		}
		return rate, true
	}
	return decimal.Decimal{}, false
}

// matchPair checks the declared currency pair against the requested one. A
// declaration naming other currencies fails rather than guessing.
func matchPair(declFrom, rateText, declTo, from, to string) (decimal.Decimal, bool) {
	rate, err := parseNumber(rateText)
	if err != nil || rate.IsZero() {
		return decimal.Decimal{}, false
	}
	declFrom = strings.ToUpper(declFrom)
	declTo = strings.ToUpper(declTo)
	switch {
	case declFrom == from && declTo == to:
		return rate, true
	case declFrom == to && declTo == from:
		return decimal.NewFromInt(1).Div(rate), true
	default:
		return decimal.Decimal{}, false
	}
}

func parseNumber(text string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(text, ",", ""))
}
