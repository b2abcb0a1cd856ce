package calculation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autovedo-bot/internal/tariff"
)

func ccPtr(v int) *int { return &v }

func dPtr(s string) *tariff.Decimal {
	d := tariff.D(s)
	return &d
}

func testSnapshot() *tariff.Snapshot {
	enabled := true
	percent := 2.0
	return &tariff.Snapshot{
		Duties: tariff.DutyTable{
			ValueBrackets: []tariff.ValueBracket{
				{MaxCustomsValueEUR: dPtr("3250"), Percent: tariff.D("0.54"), MinRateEURPerCC: tariff.D("2.5")},
				{MaxCustomsValueEUR: dPtr("6500"), Percent: tariff.D("0.48"), MinRateEURPerCC: tariff.D("3.5")},
				{MaxCustomsValueEUR: dPtr("16250"), Percent: tariff.D("0.48"), MinRateEURPerCC: tariff.D("5.5")},
				{Percent: tariff.D("0.48"), MinRateEURPerCC: tariff.D("20")},
			},
			Bands: map[tariff.AgeCategory][]tariff.DutyBand{
				tariff.Age3t5: {
					{MaxCC: ccPtr(1500), RateEURPerCC: tariff.D("1.7")},
					{RateEURPerCC: tariff.D("3.6")},
				},
				tariff.AgeGT5: {
					{MaxCC: ccPtr(1500), RateEURPerCC: tariff.D("3.2")},
					{RateEURPerCC: tariff.D("5.7")},
				},
			},
		},
		Fees: map[string]tariff.CountryFees{
			"japan": {
				CountryCurrency: "JPY",
				Tiers: []tariff.PriceTier{
					{MaxPrice: dPtr("1000000"), Expenses: tariff.D("150000")},
					{MaxPrice: dPtr("3000000"), Expenses: tariff.D("220000")},
					{Expenses: tariff.D("300000")},
				},
				Freight: []tariff.FreightOption{
					{Type: "standard", Amount: tariff.D("1100"), Currency: "USD"},
					{Type: "container", Amount: tariff.D("1500"), Currency: "USD"},
				},
			},
			"uae": {
				CountryCurrency: "USD",
				BaseExpenses: map[string]tariff.Decimal{
					"broker": tariff.D("2000"),
				},
			},
		},
		Commissions: tariff.CommissionTable{
			DefaultCommissionUSD: dPtr("1000"),
			ByCountry: map[string]tariff.CountryCommission{
				"uae": {CommissionUSD: dPtr("0")},
			},
			Bank: &tariff.BankCommission{Enabled: &enabled, Percent: &percent},
		},
		Rates: tariff.RatesConfig{
			Currencies: map[string]tariff.Decimal{
				"USD_RUB": tariff.D("90.0"),
				"EUR_RUB": tariff.D("100.0"),
				"JPY_RUB": tariff.D("0.62"),
			},
			CustomsServices: map[string]tariff.Decimal{
				"japan": tariff.D("120000"),
				"uae":   tariff.D("150000"),
			},
			EraGlonassRUB: tariff.D("45000"),
			Utilization: tariff.UtilizationTable{
				BaseRateRUB: tariff.D("20000"),
				VolumeBands: []tariff.VolumeBand{
					{
						MinCC: 0,
						MaxCC: ccPtr(2000),
						PowerBrackets: []tariff.PowerBracket{
							{PowerKWMax: dPtr("117.68"), CoefficientLT3: tariff.D("0.17"), CoefficientGT3: tariff.D("0.26")},
							{CoefficientLT3: tariff.D("102.64"), CoefficientGT3: tariff.D("144.83")},
						},
					},
					{
						MinCC: 2001,
						MaxCC: ccPtr(3000),
						PowerBrackets: []tariff.PowerBracket{
							{PowerKWMax: dPtr("117.68"), CoefficientLT3: tariff.D("0.17"), CoefficientGT3: tariff.D("0.26")},
							{PowerKWMax: dPtr("139.75"), CoefficientLT3: tariff.D("96.11"), CoefficientGT3: tariff.D("128.56")},
							{PowerKWMax: dPtr("161.82"), CoefficientLT3: tariff.D("107.82"), CoefficientGT3: tariff.D("145.9")},
							{CoefficientLT3: tariff.D("146.91"), CoefficientGT3: tariff.D("203.94")},
						},
					},
				},
			},
		},
		Hash: "test-hash",
	}
}

func staticRates(snap *tariff.Snapshot) RateSet {
	return RateSet{Table: snap.Rates.Table(), Source: "static"}
}

func yearWithAge(age int) int {
	return time.Now().UTC().Year() - age
}

func TestCalculateJapanPassing(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4), // 3_5, "проходной"
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
		FreightType:   "standard",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	assert.Equal(t, tariff.Age3t5, result.Meta.AgeCategory)
	assert.Equal(t, "passing", result.Meta.PassingCategory)
	assert.Equal(t, DutyModePerCC, result.Meta.DutyFormulaMode)

	br := result.Breakdown
	// Отображаемая цена — по эффективному курсу 0.62 * 1.02.
	assert.Equal(t, int64(1581000), br.PurchasePriceRUB)
	// 1500 см³ * 1.7 €/см³ * 100 ₽/€.
	assert.Equal(t, int64(255000), br.DutiesRUB)
	// Коэффициент 0.26 * 20000.
	assert.Equal(t, int64(5200), br.UtilizationFeeRUB)
	assert.Equal(t, int64(120000), br.CustomsServicesRUB)
	assert.Equal(t, int64(45000), br.EraGlonassRUB)
	// Фрахт по базовому курсу: 1100 USD * 90.
	assert.Equal(t, int64(99000), br.FreightRUB)
	// Порог 2.5 млн JPY -> расходы 220000 JPY * 0.62.
	assert.Equal(t, int64(136400), br.CountryExpensesRUB)
	// Комиссия по эффективному курсу: 1000 USD * 91.8.
	assert.Equal(t, int64(91800), br.CompanyCommissionRUB)
	assert.Equal(t, int64(2333400), br.TotalRUB)

	require.NotNil(t, result.Meta.UtilizationCoefficient)
	assert.InDelta(t, 0.26, *result.Meta.UtilizationCoefficient, 1e-9)
	assert.InDelta(t, 80.91, result.Meta.EnginePowerKW, 1e-9)
	assert.Empty(t, result.Meta.Warnings)
}

func TestCalculateTotalIsSumOfRoundedItems(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(7),
		EngineCC:      1800,
		EnginePowerHP: 140,
		PurchasePrice: decimal.RequireFromString("777777"),
		Currency:      "JPY",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	br := result.Breakdown
	sum := br.PurchasePriceRUB + br.DutiesRUB + br.UtilizationFeeRUB +
		br.CustomsServicesRUB + br.EraGlonassRUB + br.FreightRUB +
		br.CountryExpensesRUB + br.CompanyCommissionRUB
	assert.Equal(t, sum, br.TotalRUB)
}

func TestCalculateLT3MinimumWins(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "uae",
		Year:          yearWithAge(1),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("10000"),
		Currency:      "USD",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	// 900000 ₽ / 100 = 9000 € -> брэкет ≤16250: 48% / 5.5 €/см³.
	// По проценту 4320 €, по минимуму 1500*5.5 = 8250 € — минимум выше.
	assert.Equal(t, DutyModeMinimum, result.Meta.DutyFormulaMode)
	require.NotNil(t, result.Meta.CustomsValueEUR)
	assert.InDelta(t, 9000, *result.Meta.CustomsValueEUR, 1e-9)
	assert.Equal(t, int64(825000), result.Breakdown.DutiesRUB)
}

func TestCalculateLT3PercentageWins(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "uae",
		Year:          yearWithAge(1),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("100000"),
		Currency:      "USD",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	// 90000 € -> открытый брэкет: 48% (43200 €) против 1500*20 = 30000 €.
	assert.Equal(t, DutyModePercentage, result.Meta.DutyFormulaMode)
	assert.Equal(t, int64(4320000), result.Breakdown.DutiesRUB)
}

func TestCalculateLT3BracketBoundaryInclusive(t *testing.T) {
	snap := testSnapshot()
	// 3250 € ровно: цена 325000 ₽ = 3250 € при курсе 100.
	req := Request{
		Country:       "uae",
		Year:          yearWithAge(1),
		EngineCC:      1000,
		EnginePowerHP: 70,
		PurchasePrice: decimal.RequireFromString("325000"),
		Currency:      "RUB",
	}
	snap.Rates.Currencies["RUB_RUB"] = tariff.D("1.0")

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	// Значение на границе остаётся в нижнем брэкете (54%).
	require.NotNil(t, result.Meta.DutyPercent)
	assert.InDelta(t, 0.54, *result.Meta.DutyPercent, 1e-9)
}

func TestCalculateUAECommissionZero(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "uae",
		Year:          yearWithAge(4),
		EngineCC:      2000,
		EnginePowerHP: 150,
		PurchasePrice: decimal.RequireFromString("25000"),
		Currency:      "USD",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Breakdown.CompanyCommissionRUB)
	// Расходы по стране: 2000 USD * 90 по базовому курсу.
	assert.Equal(t, int64(180000), result.Breakdown.CountryExpensesRUB)
	// Вариантов фрахта нет — строка нулевая, ошибки нет.
	assert.Equal(t, int64(0), result.Breakdown.FreightRUB)
}

func TestCalculateLegacyFlatCommission(t *testing.T) {
	snap := testSnapshot()
	snap.Commissions.ByCountry["japan"] = tariff.CountryCommission{AmountRUB: dPtr("50000")}

	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	// Плоская рублёвая форма не конвертируется и не получает наценку.
	assert.Equal(t, int64(50000), result.Breakdown.CompanyCommissionRUB)
}

func TestCalculateHighPowerUtilization(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "uae",
		Year:          yearWithAge(7), // gt5
		EngineCC:      2500,
		EnginePowerHP: 200, // 147.1 кВт -> брэкет ≤161.82 -> 145.9
		PurchasePrice: decimal.RequireFromString("15000"),
		Currency:      "USD",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	require.NotNil(t, result.Meta.UtilizationCoefficient)
	assert.InDelta(t, 145.9, *result.Meta.UtilizationCoefficient, 1e-9)
	assert.Equal(t, int64(2918000), result.Breakdown.UtilizationFeeRUB)
}

func TestCalculateNonPassengerSkipsUtilization(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
		VehicleType:   "truck",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Breakdown.UtilizationFeeRUB)
	assert.Nil(t, result.Meta.UtilizationCoefficient)
	requireWarning(t, result.Meta.Warnings, WarnCodeNonPassenger)
}

func TestCalculateUtilizationBandMiss(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      3500, // вне диапазонов фикстуры
		EnginePowerHP: 250,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Breakdown.UtilizationFeeRUB)
	requireWarning(t, result.Meta.Warnings, WarnCodeNoUtilization)
}

func TestCalculateSanctionsWarning(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:          "japan",
		Year:             yearWithAge(4),
		EngineCC:         1500,
		EnginePowerHP:    110,
		PurchasePrice:    decimal.RequireFromString("2500000"),
		Currency:         "JPY",
		SanctionsUnknown: true,
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)
	requireWarning(t, result.Meta.Warnings, WarnCodeSanctionsUnknown)
}

func TestCalculateJapanTierCurrencyWarning(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("17000"),
		Currency:      "USD",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	// Пороги в иенах, цена в долларах: порог берётся по пересчитанной
	// цене, а в метаданные уходит предупреждение.
	requireWarning(t, result.Meta.Warnings, WarnCodeJapanCurrency)
	// 17000 USD = 1.53 млн ₽ = ~2.468 млн JPY -> tier ≤3 млн -> 220000 JPY.
	assert.Equal(t, int64(136400), result.Breakdown.CountryExpensesRUB)
}

func TestCalculateMissingEURRate(t *testing.T) {
	snap := testSnapshot()
	delete(snap.Rates.Currencies, "EUR_RUB")

	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
	}

	_, err := Calculate(req, snap, staticRates(snap))
	require.Error(t, err)
	var missing *MissingRateError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "EUR_RUB", missing.Pair)
}

func TestCalculateMissingPurchaseCurrency(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("10000"),
		Currency:      "GBP",
	}

	_, err := Calculate(req, snap, staticRates(snap))
	require.Error(t, err)
	var missing *MissingRateError
	require.True(t, errors.As(err, &missing))
}

func TestCalculateDeterministic(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
		FreightType:   "container",
	}

	first, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)
	second, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	assert.Equal(t, first.Breakdown, second.Breakdown)
	assert.Equal(t, first.Meta.RatesUsed, second.Meta.RatesUsed)
}

func TestCalculateMarkupMonotonic(t *testing.T) {
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
		FreightType:   "standard",
	}

	enabled := true
	withPercent := func(p float64) *Result {
		snap := testSnapshot()
		snap.Commissions.Bank = &tariff.BankCommission{Enabled: &enabled, Percent: &p}
		result, err := Calculate(req, snap, staticRates(snap))
		require.NoError(t, err)
		return result
	}

	zero := withPercent(0)
	two := withPercent(2)
	five := withPercent(5)

	// Наценка влияет только на отображаемую цену покупки и комиссию;
	// растёт наценка — строго растут обе строки и не убывает итог.
	assert.Greater(t, two.Breakdown.PurchasePriceRUB, zero.Breakdown.PurchasePriceRUB)
	assert.Greater(t, five.Breakdown.PurchasePriceRUB, two.Breakdown.PurchasePriceRUB)
	assert.Greater(t, two.Breakdown.CompanyCommissionRUB, zero.Breakdown.CompanyCommissionRUB)
	assert.Greater(t, five.Breakdown.CompanyCommissionRUB, two.Breakdown.CompanyCommissionRUB)
	assert.GreaterOrEqual(t, two.Breakdown.TotalRUB, zero.Breakdown.TotalRUB)
	assert.GreaterOrEqual(t, five.Breakdown.TotalRUB, two.Breakdown.TotalRUB)

	assert.Equal(t, zero.Breakdown.DutiesRUB, five.Breakdown.DutiesRUB)
	assert.Equal(t, zero.Breakdown.FreightRUB, five.Breakdown.FreightRUB)
	assert.Equal(t, zero.Breakdown.CountryExpensesRUB, five.Breakdown.CountryExpensesRUB)
}

func TestCalculateZeroMarkupEquivalence(t *testing.T) {
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
	}

	// Секции банковской наценки нет вовсе.
	noSection := testSnapshot()
	noSection.Commissions.Bank = nil
	withoutSection, err := Calculate(req, noSection, staticRates(noSection))
	require.NoError(t, err)

	// Секция есть, но наценка явно 0%.
	enabled := true
	zero := 0.0
	zeroPercent := testSnapshot()
	zeroPercent.Commissions.Bank = &tariff.BankCommission{Enabled: &enabled, Percent: &zero}
	withZero, err := Calculate(req, zeroPercent, staticRates(zeroPercent))
	require.NoError(t, err)

	assert.Equal(t, withoutSection.Breakdown, withZero.Breakdown)
	assert.Equal(t, withoutSection.Meta.DetailedRatesUsed, withZero.Meta.DetailedRatesUsed)
}

func TestCalculateRatesUsedMeta(t *testing.T) {
	snap := testSnapshot()
	req := Request{
		Country:       "japan",
		Year:          yearWithAge(4),
		EngineCC:      1500,
		EnginePowerHP: 110,
		PurchasePrice: decimal.RequireFromString("2500000"),
		Currency:      "JPY",
		FreightType:   "standard",
	}

	result, err := Calculate(req, snap, staticRates(snap))
	require.NoError(t, err)

	for _, code := range []string{"JPY", "EUR", "USD"} {
		assert.Contains(t, result.Meta.RatesUsed, code+"_RUB")
		assert.Contains(t, result.Meta.DetailedRatesUsed, code)
	}
	assert.Equal(t, "100:static", result.Meta.EURRateUsed)

	usd := result.Meta.DetailedRatesUsed["USD"]
	assert.InDelta(t, 90, usd.BaseRate, 1e-9)
	assert.InDelta(t, 91.8, usd.EffectiveRate, 1e-9)
	assert.InDelta(t, 2, usd.BankCommissionPercent, 1e-9)
}

func requireWarning(t *testing.T, warnings []Warning, code string) {
	t.Helper()
	for _, w := range warnings {
		if w.Code == code {
			return
		}
	}
	t.Fatalf("warning %s not found in %v", code, warnings)
}
