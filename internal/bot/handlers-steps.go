package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"autovedo-bot/internal/calculation"
)

// STEP HANDLERS
//
// Каждый шаг валидирует ввод, сохраняет состояние и задаёт следующий
// вопрос. При ошибке ввода шаг не меняется — пользователь отвечает ещё раз.

func (b *Bot) handleCountry(ctx context.Context, chatID int64, text string) {
	code, ok := countryCodeFromLabel(text)
	if !ok {
		b.sendError(chatID, "Выберите страну кнопкой на клавиатуре")
		return
	}

	snap := b.registry.Current()
	if snap == nil {
		b.sendError(chatID, "Тарифы не загружены, попробуйте позже")
		return
	}
	if _, exists := snap.Fees[code]; !exists {
		b.sendError(chatID, "Для этой страны расчёт пока не настроен")
		return
	}

	b.advance(ctx, chatID, UserState{Step: StepYear, Country: code},
		tgbotapi.NewMessage(chatID, "Год выпуска автомобиля?"))
}

func (b *Bot) handleYear(ctx context.Context, chatID int64, text string) {
	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.handleDefault(chatID)
		return
	}

	year, err := parseYear(text)
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}

	state.Step = StepEngineCC
	state.Year = year
	b.advance(ctx, chatID, state,
		tgbotapi.NewMessage(chatID, "Объём двигателя в куб. см?"))
}

func (b *Bot) handleEngineCC(ctx context.Context, chatID int64, text string) {
	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.handleDefault(chatID)
		return
	}

	cc, err := parseEngineCC(text)
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}

	state.Step = StepPower
	state.EngineCC = cc
	b.advance(ctx, chatID, state,
		tgbotapi.NewMessage(chatID, "Мощность двигателя в л.с.?"))
}

func (b *Bot) handlePower(ctx context.Context, chatID int64, text string) {
	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.handleDefault(chatID)
		return
	}

	hp, err := parsePowerHP(text)
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}

	state.Step = StepPrice
	state.EnginePowerHP = hp
	b.advance(ctx, chatID, state,
		tgbotapi.NewMessage(chatID, "Цена автомобиля (в валюте покупки)?"))
}

func (b *Bot) handlePrice(ctx context.Context, chatID int64, text string) {
	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.handleDefault(chatID)
		return
	}

	price, err := parsePrice(text)
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}

	snap := b.registry.Current()
	if snap == nil {
		b.sendError(chatID, "Тарифы не загружены, попробуйте позже")
		return
	}

	state.Step = StepCurrency
	state.Price = price
	msg := tgbotapi.NewMessage(chatID, "В какой валюте указана цена?")
	msg.ReplyMarkup = b.createCurrencyKeyboard(snap)
	b.advance(ctx, chatID, state, msg)
}

func (b *Bot) handleCurrency(ctx context.Context, chatID int64, text string) {
	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.handleDefault(chatID)
		return
	}

	snap := b.registry.Current()
	if snap == nil {
		b.sendError(chatID, "Тарифы не загружены, попробуйте позже")
		return
	}

	currency, err := parseCurrency(text, snap)
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}
	state.Currency = currency

	fees := snap.Fees[state.Country]
	if len(fees.Freight) == 0 {
		// Для страны не настроены варианты фрахта — сразу к санкциям.
		state.Step = StepSanctions
		msg := tgbotapi.NewMessage(chatID, "Подтверждён ли несанкционный статус автомобиля?")
		msg.ReplyMarkup = b.createSanctionsKeyboard()
		b.advance(ctx, chatID, state, msg)
		return
	}

	state.Step = StepFreight
	msg := tgbotapi.NewMessage(chatID, "Какой вариант доставки?")
	msg.ReplyMarkup = b.createFreightKeyboard(fees)
	b.advance(ctx, chatID, state, msg)
}

func (b *Bot) handleFreight(ctx context.Context, chatID int64, text string) {
	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.handleDefault(chatID)
		return
	}

	snap := b.registry.Current()
	if snap == nil {
		b.sendError(chatID, "Тарифы не загружены, попробуйте позже")
		return
	}

	freightType, ok := freightTypeFromLabel(text, snap.Fees[state.Country])
	if !ok {
		b.sendError(chatID, "Выберите вариант доставки кнопкой на клавиатуре")
		return
	}

	state.Step = StepSanctions
	state.FreightType = freightType
	msg := tgbotapi.NewMessage(chatID, "Подтверждён ли несанкционный статус автомобиля?")
	msg.ReplyMarkup = b.createSanctionsKeyboard()
	b.advance(ctx, chatID, state, msg)
}

func (b *Bot) handleSanctions(ctx context.Context, chatID int64, text string) {
	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.handleDefault(chatID)
		return
	}

	switch text {
	case buttonSanctionsOK:
		state.SanctionsUnknown = false
	case buttonSanctionsUnknown:
		state.SanctionsUnknown = true
	default:
		b.sendError(chatID, "Выберите вариант кнопкой на клавиатуре")
		return
	}

	b.runCalculation(ctx, chatID, state)
}

// runCalculation builds the request from the dialog state, runs the
// engine and sends the itemized cost back to the user.
func (b *Bot) runCalculation(ctx context.Context, chatID int64, state UserState) {
	snap := b.registry.Current()
	if snap == nil {
		b.sendError(chatID, "Тарифы не загружены, попробуйте позже")
		return
	}

	price, err := calculation.ToDecimal(state.Price)
	if err != nil {
		b.logger.Error("Corrupt price in dialog state",
			zap.Int64("chat_id", chatID),
			zap.String("price", state.Price),
			zap.Error(err))
		b.sendError(chatID, "Данные расчёта повреждены, начните заново: /calc")
		b.clearState(ctx, chatID)
		return
	}

	req := calculation.Request{
		Country:          state.Country,
		Year:             state.Year,
		EngineCC:         state.EngineCC,
		EnginePowerHP:    state.EnginePowerHP,
		PurchasePrice:    price,
		Currency:         state.Currency,
		FreightType:      state.FreightType,
		SanctionsUnknown: state.SanctionsUnknown,
	}

	rateSet := b.rates.Effective(ctx, snap)

	result, err := calculation.Calculate(req, snap, rateSet)
	if err != nil {
		b.logger.Error("Calculation failed",
			zap.Int64("chat_id", chatID),
			zap.String("country", req.Country),
			zap.Error(err))
		b.sendError(chatID, "Не удалось выполнить расчёт: "+err.Error())
		b.clearState(ctx, chatID)
		return
	}

	if b.storage != nil {
		if _, err := b.storage.SaveCalculation(ctx, chatID, "bot", result, snap.Hash); err != nil {
			b.logger.Warn("Failed to persist calculation",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}

	msg := tgbotapi.NewMessage(chatID, FormatResult(result))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.sendMessage(msg)

	b.clearState(ctx, chatID)
}

// advance saves the new state and asks the next question.
func (b *Bot) advance(ctx context.Context, chatID int64, state UserState, msg tgbotapi.MessageConfig) {
	if err := b.state.Save(ctx, chatID, state); err != nil {
		b.logger.Error("Failed to save state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Ошибка при обработке запроса")
		return
	}
	b.sendMessage(msg)
}

func (b *Bot) clearState(ctx context.Context, chatID int64) {
	if err := b.state.Clear(ctx, chatID); err != nil {
		b.logger.Warn("Failed to clear state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
}
