package calculation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "123.45", "123.45"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"float64 exact", 0.26, "0.26"},
		{"float64 coefficient", 96.11, "96.11"},
		{"decimal passthrough", decimal.RequireFromString("1.7"), "1.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDecimal(tt.in)
			if err != nil {
				t.Fatalf("ToDecimal(%v): %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ToDecimal(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestToDecimalBadInput(t *testing.T) {
	for _, in := range []any{"abc", "", struct{}{}, nil, []int{1}} {
		_, err := ToDecimal(in)
		if err == nil {
			t.Errorf("ToDecimal(%v) must fail", in)
			continue
		}
		var numErr *NumericFormatError
		if !errors.As(err, &numErr) {
			t.Errorf("ToDecimal(%v) error = %T, want *NumericFormatError", in, err)
		}
	}
}

func TestQuantize4BankersRounding(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.00005", "1"},       // к чётному вниз
		{"1.00015", "1.0002"},  // к чётному вверх
		{"1.00025", "1.0002"},  // к чётному вниз
		{"2.12345", "2.1234"},
		{"2.123456", "2.1235"},
	}
	for _, tt := range tests {
		got := Quantize4(decimal.RequireFromString(tt.in))
		if got.String() != tt.want {
			t.Errorf("Quantize4(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRoundRubHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"100.4", 100},
		{"100.5", 101},
		{"100.6", 101},
		{"0.49", 0},
		{"255000", 255000},
	}
	for _, tt := range tests {
		if got := RoundRub(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("RoundRub(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSumDecimalsExact(t *testing.T) {
	got := SumDecimals(
		decimal.RequireFromString("0.1"),
		decimal.RequireFromString("0.2"),
		decimal.RequireFromString("0.3"),
	)
	if got.String() != "0.6" {
		t.Errorf("SumDecimals = %s, want 0.6", got)
	}

	if !SumDecimals().IsZero() {
		t.Error("empty sum must be zero")
	}
}
