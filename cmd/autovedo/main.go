package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"autovedo-bot/internal/api"
	"autovedo-bot/internal/bot"
	"autovedo-bot/internal/config"
	"autovedo-bot/internal/rates"
	"autovedo-bot/internal/storage"
	"autovedo-bot/internal/tariff"
	"autovedo-bot/pkg/logger"
	"autovedo-bot/pkg/redis"
)

// ENTRY POINT

func main() {
	// .env удобен локально; в контейнере переменные приходят из окружения.
	_ = godotenv.Load()

	// Инициализация логгера
	zapLogger, err := logger.New()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	// Инициализация Redis клиента
	redisClient := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)

	// Инициализация PostgreSQL хранилища
	pgStorage, err := storage.NewPostgresStorage(ctx, storage.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		DBName:          cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init PostgreSQL storage", zap.Error(err))
	}
	defer pgStorage.Close()

	if err := storage.RunMigrations(ctx, pgStorage.DB(), zapLogger); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Загрузка тарифных таблиц
	registry := tariff.NewRegistry(cfg.TariffDir, zapLogger)
	if err := registry.Load(); err != nil {
		zapLogger.Fatal("Failed to load tariff config", zap.Error(err))
	}
	snap := registry.Current()
	zapLogger.Info("Tariff config loaded",
		zap.String("hash", snap.Hash),
		zap.Int("countries", len(snap.Fees)))
	if err := pgStorage.SaveConfigVersion(ctx, snap.Hash, 0); err != nil {
		zapLogger.Warn("Failed to record config version", zap.Error(err))
	}

	// Сервис курсов ЦБ
	ratesService := rates.NewService(rates.Config{
		URL:      cfg.CBRURL,
		Enabled:  cfg.EnableLiveCBR,
		CacheTTL: cfg.CBRCacheTTL,
		Timeout:  cfg.HTTPRequestTimeout,
	}, redisClient, zapLogger)

	// HTTP API
	server := api.NewServer(zapLogger, registry, ratesService, pgStorage)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting HTTP API", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("HTTP API stopped with error", zap.Error(err))
			cancel()
		}
	}()

	// Создание бота
	tgBot, err := bot.New(
		cfg.TelegramToken,
		redisClient,
		pgStorage,
		registry,
		ratesService,
		zapLogger,
		cfg,
	)
	if err != nil {
		zapLogger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Запуск бота
	if err := tgBot.Start(ctx); err != nil {
		zapLogger.Fatal("Bot stopped with error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP API shutdown failed", zap.Error(err))
	}

	zapLogger.Info("Shutdown complete")
}
