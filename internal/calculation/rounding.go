package calculation

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// MONETARY ROUNDING
//
// Все промежуточные суммы считаются в decimal и квантуются до 4 знаков
// банковским округлением; в итоговую смету попадают целые рубли,
// округлённые HALF_UP — так, как округляет банк на витрине.

// NumericFormatError reports a value that cannot be converted to an
// exact decimal.
type NumericFormatError struct {
	Value any
}

func (e *NumericFormatError) Error() string {
	return fmt.Sprintf("cannot convert %v (%T) to decimal", e.Value, e.Value)
}

// ToDecimal converts a numeric-like value to an exact decimal using its
// canonical string form. Никогда не проходит через двоичный float для
// строковых и целочисленных входов.
func ToDecimal(val any) (decimal.Decimal, error) {
	switch v := val.(type) {
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Decimal{}, &NumericFormatError{Value: val}
		}
		return *v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, &NumericFormatError{Value: val}
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		// strconv renders the shortest exact representation, matching
		// the value as it was written in config.
		d, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
		if err != nil {
			return decimal.Decimal{}, &NumericFormatError{Value: val}
		}
		return d, nil
	case float32:
		d, err := decimal.NewFromString(strconv.FormatFloat(float64(v), 'f', -1, 32))
		if err != nil {
			return decimal.Decimal{}, &NumericFormatError{Value: val}
		}
		return d, nil
	default:
		return decimal.Decimal{}, &NumericFormatError{Value: val}
	}
}

// Quantize4 rounds to 4 decimal places, half to even. Применяется ко
// всем промежуточным конвертациям, чтобы цепочка пересчётов не копила
// систематический сдвиг.
func Quantize4(val decimal.Decimal) decimal.Decimal {
	return val.RoundBank(4)
}

// RoundRub rounds a monetary value to integer rubles, half up (away
// from zero). Only values placed into the final breakdown go through
// this.
func RoundRub(val decimal.Decimal) int64 {
	return val.Round(0).IntPart()
}

// SumDecimals adds values exactly, with no intermediate rounding.
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Decimal{}
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
