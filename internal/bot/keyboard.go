package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autovedo-bot/internal/tariff"
)

// BOT KEYBOARDS

// Фиксированный порядок стран для клавиатуры.
var countryOrder = []struct {
	Code  string
	Label string
}{
	{"japan", "🇯🇵 Япония"},
	{"korea", "🇰🇷 Корея"},
	{"uae", "🇦🇪 ОАЭ"},
	{"china", "🇨🇳 Китай"},
}

const (
	buttonSanctionsOK      = "Статус подтверждён"
	buttonSanctionsUnknown = "Не знаю"
	buttonFreightDefault   = "Как получится"
)

func (b *Bot) createCountryKeyboard(snap *tariff.Snapshot) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, c := range countryOrder {
		if _, ok := snap.Fees[c.Code]; !ok {
			continue
		}
		row = append(row, tgbotapi.NewKeyboardButton(c.Label))
		if len(row) == 2 {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func (b *Bot) createCurrencyKeyboard(snap *tariff.Snapshot) tgbotapi.ReplyKeyboardMarkup {
	currencies := currencyCodes(snap)
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, code := range currencies {
		row = append(row, tgbotapi.NewKeyboardButton(code))
		if len(row) == 3 {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func (b *Bot) createFreightKeyboard(fees tariff.CountryFees) tgbotapi.ReplyKeyboardMarkup {
	var buttons []tgbotapi.KeyboardButton
	for _, f := range fees.Freight {
		label := f.Type
		if ru, ok := freightLabels[f.Type]; ok {
			label = ru
		}
		buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
	}
	buttons = append(buttons, tgbotapi.NewKeyboardButton(buttonFreightDefault))
	return tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(buttons...))
}

func (b *Bot) createSanctionsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonSanctionsOK),
			tgbotapi.NewKeyboardButton(buttonSanctionsUnknown),
		),
	)
}
