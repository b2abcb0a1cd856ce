package tariff

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TARIFF TABLES
//
// Типизированные таможенные таблицы, загружаемые из YAML. Все списки
// порогов упорядочены по возрастанию верхней границы; последний элемент
// без границы действует как "всё, что выше". Верхняя граница всегда
// включительна: значение, равное границе, относится к нижнему диапазону.

// AgeCategory is the vehicle age class used for duty selection.
type AgeCategory string

const (
	AgeLT3 AgeCategory = "lt3" // моложе 3 лет
	Age3t5 AgeCategory = "3_5" // 3-5 лет включительно ("проходные")
	AgeGT5 AgeCategory = "gt5" // старше 5 лет
)

// Decimal is a YAML-parsable wrapper around decimal.Decimal. Scalars are
// parsed from their literal form, never through a binary float.
type Decimal struct{ decimal.Decimal }

func (d *Decimal) UnmarshalYAML(value *yaml.Node) error {
	v, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", value.Value, err)
	}
	d.Decimal = v
	return nil
}

func D(s string) Decimal {
	return Decimal{decimal.RequireFromString(s)}
}

// ValueBracket is a customs-value bracket for vehicles younger than 3
// years. Duty is max(value*Percent, MinRateEURPerCC*cc).
type ValueBracket struct {
	MaxCustomsValueEUR *Decimal `yaml:"max_customs_value_eur"`
	Percent            Decimal  `yaml:"percent"`
	MinRateEURPerCC    Decimal  `yaml:"min_rate_eur_per_cc"`
}

// DutyBand is a flat per-cc rate for a displacement range (3_5 / gt5).
type DutyBand struct {
	MaxCC        *int    `yaml:"max_cc"`
	RateEURPerCC Decimal `yaml:"rate_eur_per_cc"`
}

type DutyTable struct {
	ValueBrackets []ValueBracket
	Bands         map[AgeCategory][]DutyBand
}

// PowerBracket carries utilization coefficients for a power range.
// CoefficientLT3 applies to vehicles younger than 3 years, CoefficientGT3
// to everything else (3_5 and gt5 share a column).
type PowerBracket struct {
	PowerKWMax     *Decimal `yaml:"power_kw_max"`
	CoefficientLT3 Decimal  `yaml:"coefficient_lt3"`
	CoefficientGT3 Decimal  `yaml:"coefficient_gt3"`
}

// VolumeBand is a displacement range of the utilization table.
type VolumeBand struct {
	MinCC         int            `yaml:"min_cc"`
	MaxCC         *int           `yaml:"max_cc"`
	PowerBrackets []PowerBracket `yaml:"power_brackets"`
}

// UtilizationTable is the 2D (displacement x power) utilization fee table
// for personal M1 vehicles. Fee = BaseRateRUB * coefficient.
type UtilizationTable struct {
	BaseRateRUB Decimal      `yaml:"base_rate_rub"`
	VolumeBands []VolumeBand `yaml:"volume_bands"`
}

// CountryCommission overrides the company commission for one country.
// CommissionUSD is converted at the effective rate; AmountRUB is the
// legacy flat form that bypasses conversion entirely.
type CountryCommission struct {
	CommissionUSD *Decimal `yaml:"commission_usd"`
	AmountRUB     *Decimal `yaml:"amount_rub"`
}

type BankCommission struct {
	Enabled        *bool    `yaml:"enabled"`
	Percent        *float64 `yaml:"percent"`
	DefaultPercent float64  `yaml:"default_percent"`
}

type CommissionTable struct {
	DefaultCommissionUSD *Decimal                     `yaml:"default_commission_usd"`
	ByCountry            map[string]CountryCommission `yaml:"by_country"`
	Bank                 *BankCommission              `yaml:"bank_commission"`
}

// BankPercent returns the effective bank commission percent.
// Missing section or explicitly disabled -> 0; missing percent -> default.
func (t CommissionTable) BankPercent() float64 {
	if t.Bank == nil {
		return 0
	}
	if t.Bank.Enabled != nil && !*t.Bank.Enabled {
		return 0
	}
	if t.Bank.Percent == nil {
		return t.Bank.DefaultPercent
	}
	return *t.Bank.Percent
}

// PriceTier is one price-dependent expense tier (Japan model).
type PriceTier struct {
	MaxPrice *Decimal `yaml:"max_price"`
	Expenses Decimal  `yaml:"expenses"`
}

type FreightOption struct {
	Type     string  `yaml:"type"`
	Amount   Decimal `yaml:"amount"`
	Currency string  `yaml:"currency"`
}

// CountryFees describes per-country fixed expenses. Exactly one of Tiers
// (price-dependent) or BaseExpenses (flat named sums) is populated.
type CountryFees struct {
	CountryCurrency string             `yaml:"country_currency"`
	Tiers           []PriceTier        `yaml:"tiers"`
	BaseExpenses    map[string]Decimal `yaml:"base_expenses"`
	Freight         []FreightOption    `yaml:"freight"`
}

// RateTable maps a currency pair code ("USD_RUB") to its rate.
type RateTable map[string]decimal.Decimal

// RatesConfig is the rates.yml content: static currency rates plus the
// flat ruble-denominated fees that need no conversion.
type RatesConfig struct {
	Currencies        map[string]Decimal `yaml:"currencies"`
	LiveCurrencyCodes []string           `yaml:"live_currency_codes"`
	CustomsServices   map[string]Decimal `yaml:"customs_services"`
	EraGlonassRUB     Decimal            `yaml:"era_glonass_rub"`
	Utilization       UtilizationTable   `yaml:"utilization_m1_personal"`
}

// Table returns the static currency rates as a RateTable.
func (c RatesConfig) Table() RateTable {
	rt := make(RateTable, len(c.Currencies))
	for pair, rate := range c.Currencies {
		rt[pair] = rate.Decimal
	}
	return rt
}

// Snapshot is one immutable view of the full tariff configuration.
// A reload builds a brand-new snapshot; in-flight calculations keep
// reading the one they were handed.
type Snapshot struct {
	Duties      DutyTable
	Fees        map[string]CountryFees
	Commissions CommissionTable
	Rates       RatesConfig
	Hash        string
	LoadedAt    time.Time
}
