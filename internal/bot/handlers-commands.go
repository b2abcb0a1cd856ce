package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// COMMAND HANDLERS

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command string) {
	switch command {
	case "start":
		b.handleStart(ctx, chatID)
	case "calc":
		b.beginCalculation(ctx, chatID)
	case "reload":
		b.handleReload(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	default:
		b.handleDefault(chatID)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, `Привет! 👋

Я считаю полную стоимость ввоза автомобиля: пошлина, утильсбор,
фрахт, расходы по стране и комиссия — по действующим тарифам.

Нажмите /calc, чтобы начать расчёт.`)
	b.sendMessage(msg)

	b.beginCalculation(ctx, chatID)
}

func (b *Bot) beginCalculation(ctx context.Context, chatID int64) {
	snap := b.registry.Current()
	if snap == nil {
		b.sendError(chatID, "Тарифы не загружены, попробуйте позже")
		return
	}

	if err := b.state.Save(ctx, chatID, UserState{Step: StepCountry}); err != nil {
		b.logger.Error("Failed to save state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Ошибка при обработке запроса")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Из какой страны везём автомобиль?")
	msg.ReplyMarkup = b.createCountryKeyboard(snap)
	b.sendMessage(msg)
}

// handleReload rebuilds the tariff snapshot from disk. Admin only.
func (b *Bot) handleReload(ctx context.Context, chatID int64) {
	if !b.isAdmin(chatID) {
		b.sendError(chatID, "Команда доступна только администраторам")
		return
	}

	snap, err := b.registry.Reload()
	if err != nil {
		b.logger.Error("Config reload failed", zap.Error(err))
		b.sendError(chatID, "Не удалось перезагрузить тарифы: "+err.Error())
		return
	}

	if b.storage != nil {
		if err := b.storage.SaveConfigVersion(ctx, snap.Hash, chatID); err != nil {
			b.logger.Warn("Failed to record config version", zap.Error(err))
		}
	}

	msg := tgbotapi.NewMessage(chatID, "✅ Тарифы перезагружены\nВерсия: "+snap.Hash[:12])
	b.sendMessage(msg)
}

func (b *Bot) handleHelp(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, `Команды:
/calc — начать расчёт стоимости ввоза
/start — приветствие и новый расчёт
/help — эта справка`)
	b.sendMessage(msg)
}

func (b *Bot) handleDefault(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Нажмите /calc, чтобы начать расчёт 🚗")
	b.sendMessage(msg)
}
