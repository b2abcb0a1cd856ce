package calculation

import (
	"strings"

	"github.com/shopspring/decimal"

	"autovedo-bot/internal/tariff"
)

// CURRENCY CONVERSION

// MissingRateError indicates a currency pair required by the calculation
// is absent from the rate table. Это дефект конфигурации, а не ошибка
// пользователя: наружу уходит как есть.
type MissingRateError struct {
	Pair string
}

func (e *MissingRateError) Error() string {
	return "missing currency rate: " + e.Pair
}

// LookupRate returns the base VALUTA/RUB rate for a currency code.
func LookupRate(rates tariff.RateTable, code string) (decimal.Decimal, error) {
	pair := strings.ToUpper(code) + "_RUB"
	rate, ok := rates[pair]
	if !ok {
		return decimal.Decimal{}, &MissingRateError{Pair: pair}
	}
	return rate, nil
}

// EffectiveRate returns the rate with the bank commission folded in:
// base * (1 + percent/100), quantized to 4 places. Zero percent returns
// the base rate untouched. Отрицательный процент проходит как скидка —
// сознательно не валидируется.
func EffectiveRate(rates tariff.RateTable, code string, bankPercent float64) (decimal.Decimal, error) {
	base, err := LookupRate(rates, code)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if bankPercent == 0 {
		return base, nil
	}
	percent, err := ToDecimal(bankPercent)
	if err != nil {
		return decimal.Decimal{}, err
	}
	factor := decimal.NewFromInt(1).Add(percent.Div(decimal.NewFromInt(100)))
	return Quantize4(base.Mul(factor)), nil
}

// Convert converts an amount from the given currency to rubles.
// bankPercent == nil means "markup not applicable": the base rate is
// used. Таможенная стоимость, страновые расходы и фрахт считаются по
// базовому курсу; отображаемая цена покупки и комиссия — по
// эффективному.
func Convert(amount decimal.Decimal, code string, rates tariff.RateTable, bankPercent *float64) (decimal.Decimal, error) {
	var rate decimal.Decimal
	var err error
	if bankPercent == nil {
		rate, err = LookupRate(rates, code)
	} else {
		rate, err = EffectiveRate(rates, code, *bankPercent)
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return Quantize4(amount.Mul(rate)), nil
}

// convertFromRub converts rubles into the target currency at the base
// rate. Used to normalize Japan expense tiers to JPY.
func convertFromRub(amountRUB decimal.Decimal, code string, rates tariff.RateTable) (decimal.Decimal, error) {
	rate, err := LookupRate(rates, code)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if rate.IsZero() {
		return decimal.Decimal{}, nil
	}
	return Quantize4(amountRUB.Div(rate)), nil
}
