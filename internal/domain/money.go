package domain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in integer minor units (cents) with an ISO-4217
// currency code carried separately on the owning document.
type Money = int64

// Valid currency codes (ISO 4217) accepted at the engine boundary.
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
}

// ValidateCurrency checks an ISO-4217 currency code.
func ValidateCurrency(currency string) error {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if !validCurrencies[c] {
		return Validation("invalid_currency", "%s is not a valid ISO 4217 currency code", currency)
	}
	return nil
}

// ConvertMinorUnits multiplies an integer minor-unit amount by a rational
// rate and rounds half-even to the target minor unit. The rounding policy
// is fixed here; call sites never choose their own.
func ConvertMinorUnits(amount Money, rateNum, rateDen int64) Money {
	if rateDen == 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(amount), big.NewInt(rateNum))
	r := new(big.Rat).SetFrac(num, big.NewInt(rateDen))
	return ratHalfEven(r)
}

// DecimalToMinorUnits converts a decimal monetary value (major units) to
// integer minor units with half-even rounding.
func DecimalToMinorUnits(d decimal.Decimal) Money {
	cents := d.Mul(decimal.NewFromInt(100))
	return ratHalfEven(cents.Rat())
}

// MinorUnitsToDecimal converts integer minor units to a decimal in major
// units.
func MinorUnitsToDecimal(m Money) decimal.Decimal {
	return decimal.NewFromInt(m).Div(decimal.NewFromInt(100))
}

// ratHalfEven rounds a rational to the nearest integer, ties to even.
func ratHalfEven(r *big.Rat) int64 {
	num := new(big.Int).Set(r.Num())
	den := new(big.Int).Set(r.Denom())

	neg := num.Sign() < 0
	if neg {
		num.Neg(num)
	}

	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	twice := new(big.Int).Lsh(rem, 1)

	switch twice.Cmp(den) {
	case 1:
		quo.Add(quo, big.NewInt(1))
	case 0:
		if quo.Bit(0) == 1 {
			quo.Add(quo, big.NewInt(1))
		}
	}

	if neg {
		quo.Neg(quo)
	}
	return quo.Int64()
}
