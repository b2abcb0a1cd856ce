package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"autovedo-bot/internal/config"
	"autovedo-bot/internal/rates"
	"autovedo-bot/internal/storage"
	"autovedo-bot/internal/tariff"
	"autovedo-bot/pkg/redis"
)

// TELEGRAM BOT
//
// Пошаговый диалог расчёта стоимости ввоза: страна → год → объём →
// мощность → цена → валюта → фрахт → санкционный статус → результат.

type Bot struct {
	bot      *tgbotapi.BotAPI
	logger   *zap.Logger
	state    *StateStorage
	storage  *storage.PostgresStorage
	registry *tariff.Registry
	rates    *rates.Service
	cfg      *config.Config
	mu       sync.Mutex
	handlers map[string]func(context.Context, int64, string)
}

func New(
	token string,
	redisClient *redis.Client,
	pgStorage *storage.PostgresStorage,
	registry *tariff.Registry,
	ratesService *rates.Service,
	logger *zap.Logger,
	cfg *config.Config,
) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Info("Bot authorized",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("id", botAPI.Self.ID))

	b := &Bot{
		bot:      botAPI,
		logger:   logger,
		state:    NewStateStorage(redisClient),
		storage:  pgStorage,
		registry: registry,
		rates:    ratesService,
		cfg:      cfg,
	}

	b.registerHandlers()
	return b, nil
}

func (b *Bot) registerHandlers() {
	b.handlers = map[string]func(context.Context, int64, string){
		StepCountry:   b.handleCountry,
		StepYear:      b.handleYear,
		StepEngineCC:  b.handleEngineCC,
		StepPower:     b.handlePower,
		StepPrice:     b.handlePrice,
		StepCurrency:  b.handleCurrency,
		StepFreight:   b.handleFreight,
		StepSanctions: b.handleSanctions,
	}
}

func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Shutting down bot")
			return nil

		case update := <-updates:
			b.mu.Lock()
			if update.Message != nil {
				b.processMessage(ctx, update.Message)
			}
			b.mu.Unlock()
		}
	}
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.logger.Debug("Processing message",
		zap.Int64("chat_id", chatID),
		zap.String("text", msg.Text))

	if msg.IsCommand() {
		b.handleCommand(ctx, chatID, msg.Command())
		return
	}

	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		// Нет состояния — предлагаем начать расчёт.
		b.handleDefault(chatID)
		return
	}

	if handler, exists := b.handlers[state.Step]; exists {
		handler(ctx, chatID, msg.Text)
	} else {
		b.handleDefault(chatID)
	}
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Int64("chat_id", msg.ChatID),
			zap.Error(err))
	}
}

func (b *Bot) sendError(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "❌ "+text)
	b.sendMessage(msg)
}

func (b *Bot) isAdmin(chatID int64) bool {
	for _, id := range b.cfg.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
