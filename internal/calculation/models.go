package calculation

import (
	"github.com/shopspring/decimal"

	"autovedo-bot/internal/tariff"
)

// CALCULATION MODELS

const (
	// VehicleTypePassenger — легковой автомобиль (M1); единственный тип,
	// для которого считается утильсбор.
	VehicleTypePassenger = "passenger"

	// MinYear is the earliest model year the calculation baseline covers.
	MinYear = 1990

	// MaxEngineCC bounds engine displacement accepted at the boundary.
	MaxEngineCC = 10000

	// MaxEnginePowerHP bounds engine power accepted at the boundary.
	MaxEnginePowerHP = 2000
)

// Request is a validated import calculation request. The request
// boundary (API handler / bot dialog) performs range checks; the engine
// assumes a well-formed request and never mutates it.
type Request struct {
	Country          string          `json:"country" validate:"required,oneof=japan korea uae china"`
	Year             int             `json:"year" validate:"required"`
	EngineCC         int             `json:"engine_cc" validate:"required,gt=0,lte=10000"`
	EnginePowerHP    int             `json:"engine_power_hp" validate:"required,gt=0,lte=2000"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	Currency         string          `json:"currency" validate:"required,uppercase,len=3"`
	FreightType      string          `json:"freight_type,omitempty"`
	VehicleType      string          `json:"vehicle_type,omitempty"`
	SanctionsUnknown bool            `json:"sanctions_unknown,omitempty"`
}

// EffectiveVehicleType returns the vehicle type, defaulting to passenger.
func (r Request) EffectiveVehicleType() string {
	if r.VehicleType == "" {
		return VehicleTypePassenger
	}
	return r.VehicleType
}

// CostBreakdown holds the final itemized cost in integer rubles.
// TotalRUB равен точной сумме остальных восьми полей: каждая строка
// округляется отдельно, итог складывается из уже округлённых значений.
type CostBreakdown struct {
	PurchasePriceRUB     int64 `json:"purchase_price_rub"`
	DutiesRUB            int64 `json:"duties_rub"`
	UtilizationFeeRUB    int64 `json:"utilization_fee_rub"`
	CustomsServicesRUB   int64 `json:"customs_services_rub"`
	EraGlonassRUB        int64 `json:"era_glonass_rub"`
	FreightRUB           int64 `json:"freight_rub"`
	CountryExpensesRUB   int64 `json:"country_expenses_rub"`
	CompanyCommissionRUB int64 `json:"company_commission_rub"`
	TotalRUB             int64 `json:"total_rub"`
}

// Warning is a non-fatal business-rule notice.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RateUsage describes one currency rate consulted during a calculation,
// both raw and with the bank commission applied.
type RateUsage struct {
	BaseRate              float64 `json:"base_rate"`
	EffectiveRate         float64 `json:"effective_rate"`
	BankCommissionPercent float64 `json:"bank_commission_percent"`
	Display               string  `json:"display"`
}

// Meta explains every formula choice made by the engine.
type Meta struct {
	AgeYears               int                  `json:"age_years"`
	AgeCategory            tariff.AgeCategory   `json:"age_category"`
	VolumeBand             string               `json:"volume_band"`
	PassingCategory        string               `json:"passing_category"`
	DutyFormulaMode        string               `json:"duty_formula_mode,omitempty"`
	EURRateUsed            string               `json:"eur_rate_used,omitempty"`
	CustomsValueEUR        *float64             `json:"customs_value_eur,omitempty"`
	DutyPercent            *float64             `json:"duty_percent,omitempty"`
	DutyMinRateEURPerCC    *float64             `json:"duty_min_rate_eur_per_cc,omitempty"`
	DutyRateEURPerCC       *float64             `json:"duty_rate_eur_per_cc,omitempty"`
	DutyValueBracketMaxEUR *float64             `json:"duty_value_bracket_max_eur,omitempty"`
	VehicleType            string               `json:"vehicle_type"`
	EnginePowerHP          int                  `json:"engine_power_hp"`
	EnginePowerKW          float64              `json:"engine_power_kw"`
	UtilizationCoefficient *float64             `json:"utilization_coefficient,omitempty"`
	RatesUsed              map[string]float64   `json:"rates_used"`
	DetailedRatesUsed      map[string]RateUsage `json:"detailed_rates_used"`
	Warnings               []Warning            `json:"warnings"`
}

// Result is the full calculation output.
type Result struct {
	Request   Request       `json:"request"`
	Meta      Meta          `json:"meta"`
	Breakdown CostBreakdown `json:"breakdown"`
}
