package tariff

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CONFIG LOADER
//
// Читает четыре YAML-файла тарифов и собирает иммутабельный Snapshot.
// Структурная валидация выполняется один раз здесь; движок расчёта
// таблицам доверяет.

const (
	dutiesFile      = "duties.yml"
	feesFile        = "fees.yml"
	commissionsFile = "commissions.yml"
	ratesFile       = "rates.yml"
)

// Значения по умолчанию (как в действующих тарифах 2025 года).
var (
	defaultUtilizationBase = D("20000")
	defaultEraGlonassRUB   = D("45000")
)

type dutyCategoryNode struct {
	ValueBrackets []ValueBracket `yaml:"value_brackets"`
	Bands         []DutyBand     `yaml:"bands"`
}

type dutyFileNode struct {
	AgeCategories map[AgeCategory]dutyCategoryNode `yaml:"age_categories"`
}

// Load reads the tariff directory and builds a validated Snapshot.
func Load(dir string) (*Snapshot, error) {
	hasher := sha256.New()

	readFile := func(name string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		hasher.Write(data)
		return data, nil
	}

	dutiesRaw, err := readFile(dutiesFile)
	if err != nil {
		return nil, err
	}
	feesRaw, err := readFile(feesFile)
	if err != nil {
		return nil, err
	}
	commissionsRaw, err := readFile(commissionsFile)
	if err != nil {
		return nil, err
	}
	ratesRaw, err := readFile(ratesFile)
	if err != nil {
		return nil, err
	}

	var dutyNode dutyFileNode
	if err := yaml.Unmarshal(dutiesRaw, &dutyNode); err != nil {
		return nil, fmt.Errorf("parse %s: %w", dutiesFile, err)
	}
	duties := DutyTable{Bands: make(map[AgeCategory][]DutyBand)}
	for cat, node := range dutyNode.AgeCategories {
		if cat == AgeLT3 {
			duties.ValueBrackets = node.ValueBrackets
		}
		if len(node.Bands) > 0 {
			duties.Bands[cat] = node.Bands
		}
	}

	fees := make(map[string]CountryFees)
	if err := yaml.Unmarshal(feesRaw, &fees); err != nil {
		return nil, fmt.Errorf("parse %s: %w", feesFile, err)
	}

	var commissions CommissionTable
	if err := yaml.Unmarshal(commissionsRaw, &commissions); err != nil {
		return nil, fmt.Errorf("parse %s: %w", commissionsFile, err)
	}

	var rates RatesConfig
	if err := yaml.Unmarshal(ratesRaw, &rates); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ratesFile, err)
	}
	if rates.Utilization.BaseRateRUB.IsZero() {
		rates.Utilization.BaseRateRUB = defaultUtilizationBase
	}
	if rates.EraGlonassRUB.IsZero() {
		rates.EraGlonassRUB = defaultEraGlonassRUB
	}

	snap := &Snapshot{
		Duties:      duties,
		Fees:        fees,
		Commissions: commissions,
		Rates:       rates,
		Hash:        hex.EncodeToString(hasher.Sum(nil)),
		LoadedAt:    time.Now().UTC(),
	}
	if err := snap.validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// validate checks the ordering invariants of every bracket/band list:
// ascending upper bounds, open-ended entries only in last position.
func (s *Snapshot) validate() error {
	prevValue := Decimal{}
	for i, br := range s.Duties.ValueBrackets {
		if br.MaxCustomsValueEUR == nil {
			if i != len(s.Duties.ValueBrackets)-1 {
				return fmt.Errorf("duties: open-ended value bracket %d is not last", i)
			}
			continue
		}
		if i > 0 && !prevValue.LessThan(br.MaxCustomsValueEUR.Decimal) {
			return fmt.Errorf("duties: value brackets not ascending at %d", i)
		}
		prevValue = *br.MaxCustomsValueEUR
	}

	for cat, bands := range s.Duties.Bands {
		prevCC := -1
		for i, band := range bands {
			if band.MaxCC == nil {
				if i != len(bands)-1 {
					return fmt.Errorf("duties %s: open-ended band %d is not last", cat, i)
				}
				continue
			}
			if *band.MaxCC <= prevCC {
				return fmt.Errorf("duties %s: bands not ascending at %d", cat, i)
			}
			prevCC = *band.MaxCC
		}
	}

	for i, band := range s.Rates.Utilization.VolumeBands {
		for j, br := range band.PowerBrackets {
			if br.PowerKWMax == nil && j != len(band.PowerBrackets)-1 {
				return fmt.Errorf("utilization band %d: open-ended power bracket %d is not last", i, j)
			}
		}
	}

	for country, fee := range s.Fees {
		for i, tier := range fee.Tiers {
			if tier.MaxPrice == nil && i != len(fee.Tiers)-1 {
				return fmt.Errorf("fees %s: open-ended tier %d is not last", country, i)
			}
		}
	}
	return nil
}
