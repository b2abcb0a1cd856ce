package calculation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"autovedo-bot/internal/tariff"
)

// CALCULATION ENGINE
//
// Чистый синхронный конвейер: запрос + снапшот тарифов + таблица курсов
// на входе, постатейная смета с метаданными на выходе. Движок не ходит
// в глобальное состояние и безопасен для конкурентных вызовов.
//
// Ошибкой завершается только отсутствие нужного валютного курса —
// это сломанная конфигурация, а не ошибка пользователя. Все прочие
// граничные случаи (дыры в таблицах, не-легковой тип ТС) деградируют
// до нуля с предупреждением в метаданных.

// Duty formula branches reported in metadata.
const (
	DutyModePercentage = "percentage"
	DutyModeMinimum    = "minimum"
	DutyModePerCC      = "per_cc"
)

// hpToKW is the metric horsepower to kilowatt factor.
var hpToKW = decimal.RequireFromString("0.7355")

// RateSet is the merged rate table handed to the engine, with the
// provenance of live overrides ("static" or "cbr").
type RateSet struct {
	Table  tariff.RateTable
	Source string
}

func (r RateSet) source() string {
	if r.Source == "" {
		return "static"
	}
	return r.Source
}

type dutyOutcome struct {
	amountRUB       decimal.Decimal
	mode            string
	customsValueEUR *float64
	percent         *float64
	minRatePerCC    *float64
	ratePerCC       *float64
	bracketMaxEUR   *float64
}

// Calculate runs the full import cost pipeline.
func Calculate(req Request, tables *tariff.Snapshot, rates RateSet) (*Result, error) {
	bankPercent := tables.Commissions.BankPercent()

	usedCodes := map[string]bool{strings.ToUpper(req.Currency): true}
	var warnings []Warning

	ageYears := time.Now().UTC().Year() - req.Year
	ageCategory := tariff.GetAgeCategory(ageYears)

	// Банковская комиссия не влияет на таможенную стоимость: базовая
	// цена для пошлин и порогов всегда по базовому курсу.
	purchaseRUB, err := Convert(req.PurchasePrice, req.Currency, rates.Table, nil)
	if err != nil {
		return nil, err
	}
	// Отображаемая цена покупки — по эффективному курсу.
	purchaseDisplayRUB, err := Convert(req.PurchasePrice, req.Currency, rates.Table, &bankPercent)
	if err != nil {
		return nil, err
	}

	if req.SanctionsUnknown {
		warnings = append(warnings, Warning{Code: WarnCodeSanctionsUnknown, Message: warnSanctionsUnknown})
	}

	duty, err := computeDuty(req.EngineCC, ageCategory, tables.Duties, rates.Table, purchaseRUB, &warnings)
	if err != nil {
		return nil, err
	}
	usedCodes["EUR"] = true

	expensesRUB, err := countryExpenses(req, tables, rates.Table, purchaseRUB, usedCodes, &warnings)
	if err != nil {
		return nil, err
	}

	var freightRUB decimal.Decimal
	if f := selectFreight(tables.Fees[req.Country].Freight, req.FreightType); f != nil {
		usedCodes[strings.ToUpper(f.Currency)] = true
		freightRUB, err = Convert(f.Amount.Decimal, f.Currency, rates.Table, nil)
		if err != nil {
			return nil, err
		}
	}

	customsServicesRUB := tables.Rates.CustomsServices[req.Country].Decimal
	eraGlonassRUB := tables.Rates.EraGlonassRUB.Decimal

	utilizationRUB, utilizationCoef := utilizationFee(req, ageCategory, tables.Rates.Utilization, &warnings)

	commissionRUB, usedUSD, err := commission(tables.Commissions, req.Country, rates.Table, bankPercent)
	if err != nil {
		return nil, err
	}
	if usedUSD && commissionRUB.IsPositive() {
		usedCodes["USD"] = true
	}

	breakdown := CostBreakdown{
		PurchasePriceRUB:     RoundRub(purchaseDisplayRUB),
		DutiesRUB:            RoundRub(duty.amountRUB),
		UtilizationFeeRUB:    RoundRub(utilizationRUB),
		CustomsServicesRUB:   RoundRub(customsServicesRUB),
		EraGlonassRUB:        RoundRub(eraGlonassRUB),
		FreightRUB:           RoundRub(freightRUB),
		CountryExpensesRUB:   RoundRub(expensesRUB),
		CompanyCommissionRUB: RoundRub(commissionRUB),
	}
	// Итог складывается из уже округлённых строк, чтобы сумма статей
	// всегда сходилась с итогом до копейки.
	breakdown.TotalRUB = breakdown.PurchasePriceRUB +
		breakdown.DutiesRUB +
		breakdown.UtilizationFeeRUB +
		breakdown.CustomsServicesRUB +
		breakdown.EraGlonassRUB +
		breakdown.FreightRUB +
		breakdown.CountryExpensesRUB +
		breakdown.CompanyCommissionRUB

	eurRate, err := LookupRate(rates.Table, "EUR")
	if err != nil {
		return nil, err
	}

	ratesUsed, detailedRates := collectRatesUsed(usedCodes, rates.Table, bankPercent)

	powerKW, _ := decimal.NewFromInt(int64(req.EnginePowerHP)).Mul(hpToKW).Round(2).Float64()

	meta := Meta{
		AgeYears:               ageYears,
		AgeCategory:            ageCategory,
		VolumeBand:             tables.Duties.FormatVolumeBand(ageCategory, req.EngineCC),
		PassingCategory:        tariff.GetPassingCategory(ageCategory),
		DutyFormulaMode:        duty.mode,
		EURRateUsed:            fmt.Sprintf("%s:%s", eurRate, rates.source()),
		CustomsValueEUR:        duty.customsValueEUR,
		DutyPercent:            duty.percent,
		DutyMinRateEURPerCC:    duty.minRatePerCC,
		DutyRateEURPerCC:       duty.ratePerCC,
		DutyValueBracketMaxEUR: duty.bracketMaxEUR,
		VehicleType:            req.EffectiveVehicleType(),
		EnginePowerHP:          req.EnginePowerHP,
		EnginePowerKW:          powerKW,
		UtilizationCoefficient: utilizationCoef,
		RatesUsed:              ratesUsed,
		DetailedRatesUsed:      detailedRates,
		Warnings:               warnings,
	}

	return &Result{Request: req, Meta: meta, Breakdown: breakdown}, nil
}

// computeDuty branches on age category: value brackets with the
// "больше из двух формул" rule for lt3, flat per-cc bands otherwise.
// Пошлина номинирована в евро; отсутствие курса EUR — жёсткая ошибка
// конфигурации, а не «брэкет не найден».
func computeDuty(
	engineCC int,
	cat tariff.AgeCategory,
	duties tariff.DutyTable,
	rates tariff.RateTable,
	purchaseRUB decimal.Decimal,
	warnings *[]Warning,
) (dutyOutcome, error) {
	eurRate, err := LookupRate(rates, "EUR")
	if err != nil {
		return dutyOutcome{}, err
	}

	if cat == tariff.AgeLT3 {
		customsValueEUR := Quantize4(purchaseRUB.Div(eurRate))
		out := dutyOutcome{customsValueEUR: floatPtr(customsValueEUR)}

		bracket, ok := duties.FindValueBracket(customsValueEUR)
		if !ok {
			*warnings = append(*warnings, Warning{Code: WarnCodeNoDuty, Message: warnNoDutyRate})
			return out, nil
		}
		out.percent = floatPtr(bracket.Percent.Decimal)
		out.minRatePerCC = floatPtr(bracket.MinRateEURPerCC.Decimal)
		if bracket.MaxCustomsValueEUR != nil {
			out.bracketMaxEUR = floatPtr(bracket.MaxCustomsValueEUR.Decimal)
		}

		byPercent := Quantize4(customsValueEUR.Mul(bracket.Percent.Decimal))
		byMinimum := Quantize4(bracket.MinRateEURPerCC.Mul(decimal.NewFromInt(int64(engineCC))))

		var dutyEUR decimal.Decimal
		if byPercent.GreaterThanOrEqual(byMinimum) {
			out.mode = DutyModePercentage
			dutyEUR = byPercent
		} else {
			out.mode = DutyModeMinimum
			dutyEUR = byMinimum
		}
		out.amountRUB = Quantize4(dutyEUR.Mul(eurRate))
		return out, nil
	}

	rate, ok := duties.FindRate(cat, engineCC)
	if !ok {
		*warnings = append(*warnings, Warning{Code: WarnCodeNoDuty, Message: warnNoDutyRate})
		return dutyOutcome{}, nil
	}
	return dutyOutcome{
		amountRUB: Quantize4(decimal.NewFromInt(int64(engineCC)).Mul(rate).Mul(eurRate)),
		mode:      DutyModePerCC,
		ratePerCC: floatPtr(rate),
	}, nil
}

// countryExpenses resolves the per-country fixed expenses and converts
// them to rubles at the base rate.
func countryExpenses(
	req Request,
	tables *tariff.Snapshot,
	rates tariff.RateTable,
	purchaseRUB decimal.Decimal,
	usedCodes map[string]bool,
	warnings *[]Warning,
) (decimal.Decimal, error) {
	fees := tables.Fees[req.Country]

	expensesCurrency := fees.CountryCurrency
	if expensesCurrency == "" {
		expensesCurrency = strings.ToUpper(req.Currency)
	}

	var expenses decimal.Decimal
	if len(fees.Tiers) > 0 {
		// Пороговая модель (Япония): порог сравнивается с ценой,
		// приведённой к валюте страны по базовому курсу. Если курса
		// нет — откатываемся на сырую цену запроса.
		tierPrice := req.PurchasePrice
		if converted, err := convertFromRub(purchaseRUB, expensesCurrency, rates); err == nil {
			tierPrice = converted
			usedCodes[strings.ToUpper(expensesCurrency)] = true
		}
		if !strings.EqualFold(req.Currency, expensesCurrency) {
			*warnings = append(*warnings, Warning{Code: WarnCodeJapanCurrency, Message: warnJapanTierCurrency})
		}
		expenses = findTierExpenses(fees.Tiers, tierPrice)
	} else {
		for _, v := range fees.BaseExpenses {
			expenses = expenses.Add(v.Decimal)
		}
	}

	usedCodes[strings.ToUpper(expensesCurrency)] = true
	return Convert(expenses, expensesCurrency, rates, nil)
}

// findTierExpenses picks the first tier whose inclusive upper bound
// covers the price; the last open-ended tier catches everything above.
func findTierExpenses(tiers []tariff.PriceTier, price decimal.Decimal) decimal.Decimal {
	for _, tier := range tiers {
		if tier.MaxPrice == nil || price.LessThanOrEqual(tier.MaxPrice.Decimal) {
			return tier.Expenses.Decimal
		}
	}
	return decimal.Decimal{}
}

// selectFreight picks the requested freight class, falling back to the
// first configured entry when the request names none or an unknown one.
// Nil means the country has no freight configured at all.
func selectFreight(freight []tariff.FreightOption, freightType string) *tariff.FreightOption {
	if len(freight) == 0 {
		return nil
	}
	if freightType != "" {
		for i := range freight {
			if freight[i].Type == freightType {
				return &freight[i]
			}
		}
	}
	return &freight[0]
}

// utilizationFee computes the recycling fee for passenger (M1) vehicles
// from the 2D displacement x power table.
func utilizationFee(
	req Request,
	cat tariff.AgeCategory,
	table tariff.UtilizationTable,
	warnings *[]Warning,
) (decimal.Decimal, *float64) {
	if req.EffectiveVehicleType() != VehicleTypePassenger {
		*warnings = append(*warnings, Warning{Code: WarnCodeNonPassenger, Message: warnNonPassenger})
		return decimal.Decimal{}, nil
	}

	powerKW := decimal.NewFromInt(int64(req.EnginePowerHP)).Mul(hpToKW)
	coef, ok := table.FindCoefficient(cat, req.EngineCC, powerKW)
	if !ok {
		*warnings = append(*warnings, Warning{Code: WarnCodeNoUtilization, Message: warnNoUtilization})
		return decimal.Decimal{}, nil
	}

	fee := Quantize4(table.BaseRateRUB.Mul(coef))
	return fee, floatPtr(coef)
}

// commission resolves the company commission: a per-country override
// (возможно нулевой, как для ОАЭ) or the default flat USD amount, both
// converted at the effective (markup-inflated) rate. Legacy flat-ruble
// overrides bypass conversion entirely.
func commission(
	table tariff.CommissionTable,
	country string,
	rates tariff.RateTable,
	bankPercent float64,
) (decimal.Decimal, bool, error) {
	if override, ok := table.ByCountry[country]; ok {
		if override.CommissionUSD != nil {
			amount, err := Convert(override.CommissionUSD.Decimal, "USD", rates, &bankPercent)
			return amount, true, err
		}
		if override.AmountRUB != nil {
			return override.AmountRUB.Decimal, false, nil
		}
	}

	defaultUSD := decimal.NewFromInt(1000)
	if table.DefaultCommissionUSD != nil {
		defaultUSD = table.DefaultCommissionUSD.Decimal
	}
	amount, err := Convert(defaultUSD, "USD", rates, &bankPercent)
	return amount, true, err
}

// collectRatesUsed builds both the legacy flat map and the detailed
// per-currency usage with the bank commission applied.
func collectRatesUsed(
	usedCodes map[string]bool,
	rates tariff.RateTable,
	bankPercent float64,
) (map[string]float64, map[string]RateUsage) {
	codes := make([]string, 0, len(usedCodes))
	for code := range usedCodes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	ratesUsed := make(map[string]float64)
	detailed := make(map[string]RateUsage)
	for _, code := range codes {
		pair := code + "_RUB"
		base, ok := rates[pair]
		if !ok {
			continue
		}
		baseF := base.InexactFloat64()
		ratesUsed[pair] = baseF

		effective, err := EffectiveRate(rates, code, bankPercent)
		if err != nil {
			continue
		}
		detailed[code] = RateUsage{
			BaseRate:              baseF,
			EffectiveRate:         effective.InexactFloat64(),
			BankCommissionPercent: bankPercent,
			Display:               formatRateDisplay(code, baseF, bankPercent),
		}
	}
	return ratesUsed, detailed
}

// formatRateDisplay renders "USD/RUB = 90.5 + 2%" style strings.
func formatRateDisplay(code string, base, percent float64) string {
	baseStr := strings.TrimRight(strings.TrimRight(strconv.FormatFloat(base, 'f', 2, 64), "0"), ".")
	if percent != 0 {
		return fmt.Sprintf("%s/RUB = %s + %s%%", code, baseStr, strconv.FormatFloat(percent, 'f', -1, 64))
	}
	return fmt.Sprintf("%s/RUB = %s", code, baseStr)
}

func floatPtr(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}
