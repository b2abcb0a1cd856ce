package bot

import (
	"fmt"
	"sort"
	"strings"

	"autovedo-bot/internal/calculation"
)

// RESULT RENDERING

var countryLabels = map[string]string{
	"japan": "Япония",
	"korea": "Корея",
	"uae":   "ОАЭ",
	"china": "Китай",
}

// FormatResult renders the itemized cost as a Telegram message.
func FormatResult(result *calculation.Result) string {
	var sb strings.Builder

	country := result.Request.Country
	if ru, ok := countryLabels[country]; ok {
		country = ru
	}

	sb.WriteString("📋 Расчёт стоимости ввоза\n\n")
	fmt.Fprintf(&sb, "Страна: %s\n", country)
	fmt.Fprintf(&sb, "Год выпуска: %d (возраст %d, категория %s)\n",
		result.Request.Year, result.Meta.AgeYears, ageLabel(string(result.Meta.AgeCategory)))
	fmt.Fprintf(&sb, "Двигатель: %d куб. см, %d л.с.\n",
		result.Request.EngineCC, result.Request.EnginePowerHP)
	fmt.Fprintf(&sb, "Цена: %s %s\n\n",
		result.Request.PurchasePrice.String(), result.Request.Currency)

	br := result.Breakdown
	sb.WriteString("Смета (₽):\n")
	fmt.Fprintf(&sb, "  Автомобиль: %s\n", formatRub(br.PurchasePriceRUB))
	fmt.Fprintf(&sb, "  Пошлина: %s\n", formatRub(br.DutiesRUB))
	fmt.Fprintf(&sb, "  Утильсбор: %s\n", formatRub(br.UtilizationFeeRUB))
	fmt.Fprintf(&sb, "  Услуги таможни: %s\n", formatRub(br.CustomsServicesRUB))
	fmt.Fprintf(&sb, "  ЭРА-ГЛОНАСС: %s\n", formatRub(br.EraGlonassRUB))
	fmt.Fprintf(&sb, "  Фрахт: %s\n", formatRub(br.FreightRUB))
	fmt.Fprintf(&sb, "  Расходы по стране: %s\n", formatRub(br.CountryExpensesRUB))
	fmt.Fprintf(&sb, "  Комиссия компании: %s\n", formatRub(br.CompanyCommissionRUB))
	fmt.Fprintf(&sb, "\n💰 Итого: %s ₽\n", formatRub(br.TotalRUB))

	if len(result.Meta.DetailedRatesUsed) > 0 {
		sb.WriteString("\nКурсы:\n")
		for _, code := range sortedRateCodes(result.Meta.DetailedRatesUsed) {
			fmt.Fprintf(&sb, "  %s\n", result.Meta.DetailedRatesUsed[code].Display)
		}
	}

	if len(result.Meta.Warnings) > 0 {
		sb.WriteString("\n⚠️ Обратите внимание:\n")
		for _, w := range result.Meta.Warnings {
			fmt.Fprintf(&sb, "  • %s\n", w.Message)
		}
	}

	sb.WriteString("\nНовый расчёт: /calc")
	return sb.String()
}

func ageLabel(category string) string {
	switch category {
	case "lt3":
		return "до 3 лет"
	case "3_5":
		return "3–5 лет"
	case "gt5":
		return "старше 5 лет"
	}
	return category
}

// formatRub groups digits by thousands: 1234567 → "1 234 567".
func formatRub(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if neg {
		return "-" + out
	}
	return out
}

func sortedRateCodes(rates map[string]calculation.RateUsage) []string {
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
