// Package money keeps amounts as int64 minor units (cents).
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrOutOfRange      = errors.New("amount out of range")
)

var hundred = decimal.NewFromInt(100)

// FromDecimal converts a major-unit decimal (e.g. 10.5) to minor units.
// More than two decimal places is rejected rather than rounded.
func FromDecimal(value decimal.Decimal) (int64, error) {
	scaled := value.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooManyDecimals
	}
	if !scaled.BigInt().IsInt64() {
		return 0, ErrOutOfRange
	}
	return scaled.IntPart(), nil
}

// ApplyPercent returns minor * (1 + percent/100), rounded half-even to minor
// units. ErrOutOfRange is returned when the result does not fit in an int64.
func ApplyPercent(minor int64, percent decimal.Decimal) (int64, error) {
	factor := decimal.NewFromInt(1).Add(percent.Div(hundred))
	result := decimal.NewFromInt(minor).Mul(factor).RoundBank(0)
	if !result.BigInt().IsInt64() {
		return 0, ErrOutOfRange
	}
	return result.IntPart(), nil
}

func FormatMinor(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	formatted := fmt.Sprintf("%d.%02d", value/100, value%100)
	if negative {
		return "-" + formatted
	}
	return formatted
}
