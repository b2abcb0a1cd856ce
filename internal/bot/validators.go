package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"autovedo-bot/internal/calculation"
	"autovedo-bot/internal/tariff"
)

// INPUT PARSING

// Русские подписи типов фрахта для клавиатур и сметы.
var freightLabels = map[string]string{
	"standard":  "Стандартный",
	"open":      "Открытый",
	"container": "Контейнер",
}

// countryCodeFromLabel maps a keyboard button text back to the country code.
func countryCodeFromLabel(label string) (string, bool) {
	for _, c := range countryOrder {
		if c.Label == label || c.Code == strings.ToLower(strings.TrimSpace(label)) {
			return c.Code, true
		}
	}
	return "", false
}

// freightTypeFromLabel maps a button text back to the freight type key.
func freightTypeFromLabel(label string, fees tariff.CountryFees) (string, bool) {
	trimmed := strings.TrimSpace(label)
	if trimmed == buttonFreightDefault {
		return "", true
	}
	for _, f := range fees.Freight {
		if trimmed == f.Type {
			return f.Type, true
		}
		if ru, ok := freightLabels[f.Type]; ok && trimmed == ru {
			return f.Type, true
		}
	}
	return "", false
}

// currencyCodes returns the sorted list of currency codes present in the
// snapshot's rate table ("USD_RUB" → "USD").
func currencyCodes(snap *tariff.Snapshot) []string {
	seen := make(map[string]bool)
	var codes []string
	for pair := range snap.Rates.Currencies {
		code, ok := strings.CutSuffix(pair, "_RUB")
		if !ok || code == "RUB" {
			continue
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	codes = append(codes, "RUB")
	sort.Strings(codes)
	return codes
}

func parseYear(text string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("год должен быть числом, например 2019")
	}
	current := time.Now().Year()
	if year < calculation.MinYear || year > current {
		return 0, fmt.Errorf("год выпуска должен быть между %d и %d", calculation.MinYear, current)
	}
	return year, nil
}

func parseEngineCC(text string) (int, error) {
	cc, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("объём двигателя должен быть числом в куб. см, например 1500")
	}
	if cc <= 0 || cc > calculation.MaxEngineCC {
		return 0, fmt.Errorf("объём двигателя должен быть от 1 до %d куб. см", calculation.MaxEngineCC)
	}
	return cc, nil
}

func parsePowerHP(text string) (int, error) {
	hp, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("мощность должна быть числом в л.с., например 150")
	}
	if hp <= 0 || hp > calculation.MaxEnginePowerHP {
		return 0, fmt.Errorf("мощность должна быть от 1 до %d л.с.", calculation.MaxEnginePowerHP)
	}
	return hp, nil
}

// parsePrice normalizes a user-entered amount ("1 200 000", "15000.50").
func parsePrice(text string) (string, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	dec, err := calculation.ToDecimal(cleaned)
	if err != nil {
		return "", fmt.Errorf("цена должна быть числом, например 1500000")
	}
	if !dec.IsPositive() {
		return "", fmt.Errorf("цена должна быть больше нуля")
	}
	return dec.String(), nil
}

func parseCurrency(text string, snap *tariff.Snapshot) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(text))
	if len(code) != 3 {
		return "", fmt.Errorf("укажите трёхбуквенный код валюты, например USD")
	}
	for _, known := range currencyCodes(snap) {
		if code == known {
			return code, nil
		}
	}
	return "", fmt.Errorf("валюта %s не поддерживается, выберите из списка", code)
}
