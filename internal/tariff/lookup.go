package tariff

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RATE LOOKUPS
//
// Чистые функции поиска по таблицам; таблицы не изменяются.

// GetAgeCategory classifies full years of age. Both boundaries (exactly
// 3 and exactly 5 years) fall into the 3_5 category.
func GetAgeCategory(ageYears int) AgeCategory {
	if ageYears < 3 {
		return AgeLT3
	}
	if ageYears <= 5 {
		return Age3t5
	}
	return AgeGT5
}

// GetPassingCategory maps an age category to the business label:
// 3-5 лет — "проходные", всё остальное — нет.
func GetPassingCategory(cat AgeCategory) string {
	if cat == Age3t5 {
		return "passing"
	}
	return "non_passing"
}

// IsPassing reports whether the category carries preferential duty treatment.
func IsPassing(cat AgeCategory) bool {
	return cat == Age3t5
}

// FindRate returns the flat per-cc duty rate for 3_5/gt5 categories.
// Scans bands in ascending order; a band with no MaxCC matches anything.
// The boolean is false only when the category has no bands at all.
func (t DutyTable) FindRate(cat AgeCategory, engineCC int) (decimal.Decimal, bool) {
	for _, band := range t.Bands[cat] {
		if band.MaxCC == nil || engineCC <= *band.MaxCC {
			return band.RateEURPerCC.Decimal, true
		}
	}
	return decimal.Decimal{}, false
}

// FindValueBracket returns the lt3 customs-value bracket containing the
// given value (EUR). The bound is inclusive: a value exactly on a
// bracket's upper bound belongs to that bracket, not the next one.
func (t DutyTable) FindValueBracket(customsValueEUR decimal.Decimal) (*ValueBracket, bool) {
	for i := range t.ValueBrackets {
		br := &t.ValueBrackets[i]
		if br.MaxCustomsValueEUR == nil || customsValueEUR.LessThanOrEqual(br.MaxCustomsValueEUR.Decimal) {
			return br, true
		}
	}
	return nil, false
}

// FormatVolumeBand renders the matched duty band for metadata display.
func (t DutyTable) FormatVolumeBand(cat AgeCategory, engineCC int) string {
	if cat == AgeLT3 && len(t.ValueBrackets) > 0 {
		return "value_brackets"
	}
	for _, band := range t.Bands[cat] {
		if band.MaxCC == nil || engineCC <= *band.MaxCC {
			if band.MaxCC != nil {
				return fmt.Sprintf("<= %d @ %s €/cc", *band.MaxCC, band.RateEURPerCC)
			}
			return fmt.Sprintf("> last @ %s €/cc", band.RateEURPerCC)
		}
	}
	return "n/a"
}

// FindCoefficient returns the utilization coefficient for the given
// displacement and power. Volume band ranges are inclusive on both ends;
// the power scan picks the first bracket whose upper bound covers the
// value, the last (unbounded) bracket catches everything above.
func (t UtilizationTable) FindCoefficient(cat AgeCategory, engineCC int, powerKW decimal.Decimal) (decimal.Decimal, bool) {
	var band *VolumeBand
	for i := range t.VolumeBands {
		b := &t.VolumeBands[i]
		if engineCC >= b.MinCC && (b.MaxCC == nil || engineCC <= *b.MaxCC) {
			band = b
			break
		}
	}
	if band == nil {
		return decimal.Decimal{}, false
	}

	for _, br := range band.PowerBrackets {
		if br.PowerKWMax == nil || powerKW.LessThanOrEqual(br.PowerKWMax.Decimal) {
			if cat == AgeLT3 {
				return br.CoefficientLT3.Decimal, true
			}
			return br.CoefficientGT3.Decimal, true
		}
	}
	return decimal.Decimal{}, false
}
