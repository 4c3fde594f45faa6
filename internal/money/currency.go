package money

import (
	"strings"

	"golang.org/x/text/currency"
)

// Currency describes display metadata for a supported currency.
type Currency struct {
	Code       string `json:"code"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	MinorUnits int32  `json:"minor_units"`
}

// DefaultBaseCurrency is the tenant home-reporting currency unless
// configuration overrides it.
const DefaultBaseCurrency = "TZS"

// registry holds the currencies the purchasing flow offers. Minor units for
// codes outside this table are resolved through x/text cash rounding.
var registry = map[string]Currency{
	"TZS": {Code: "TZS", Symbol: "TSh", Name: "Tanzanian Shilling", MinorUnits: 2},
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar", MinorUnits: 2},
	"EUR": {Code: "EUR", Symbol: "€", Name: "Euro", MinorUnits: 2},
	"GBP": {Code: "GBP", Symbol: "£", Name: "British Pound", MinorUnits: 2},
	"AED": {Code: "AED", Symbol: "د.إ", Name: "UAE Dirham", MinorUnits: 2},
	"CNY": {Code: "CNY", Symbol: "¥", Name: "Chinese Yuan", MinorUnits: 2},
	"KES": {Code: "KES", Symbol: "KSh", Name: "Kenyan Shilling", MinorUnits: 2},
}

// Lookup returns metadata for a currency code.
func Lookup(code string) (Currency, bool) {
	c, ok := registry[strings.ToUpper(code)]
	return c, ok
}

// Supported lists the registered currencies.
func Supported() []Currency {
	out := make([]Currency, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	return out
}

// MinorUnits reports the number of minor-unit digits for a currency code.
func MinorUnits(code string) int32 {
	if c, ok := Lookup(code); ok {
		return c.MinorUnits
	}
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ := currency.Cash.Rounding(unit)
		return int32(scale)
	}
	return 2
}

// ValidCode reports whether code parses as an ISO 4217 currency.
func ValidCode(code string) bool {
	if _, ok := Lookup(code); ok {
		return true
	}
	_, err := currency.ParseISO(code)
	return err == nil
}
