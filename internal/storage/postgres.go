package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"autovedo-bot/internal/calculation"
)

// POSTGRES STORAGE
//
// История расчётов и версии тарифной конфигурации.

type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type PostgresStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// CalculationRecord is one persisted calculation.
type CalculationRecord struct {
	ID         int64           `db:"id"`
	ChatID     int64           `db:"chat_id"`
	Source     string          `db:"source"`
	Country    string          `db:"country"`
	Request    json.RawMessage `db:"request"`
	Breakdown  json.RawMessage `db:"breakdown"`
	TotalRUB   int64           `db:"total_rub"`
	ConfigHash string          `db:"config_hash"`
	CreatedAt  time.Time       `db:"created_at"`
}

// ConfigVersion is one published tariff configuration.
type ConfigVersion struct {
	ID        int64     `db:"id"`
	Hash      string    `db:"hash"`
	LoadedBy  int64     `db:"loaded_by"`
	CreatedAt time.Time `db:"created_at"`
}

func NewPostgresStorage(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresStorage, error) {
	const operation = "storage.NewPostgresStorage"

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
	)

	var db *sqlx.DB
	var err error

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 2 * time.Minute
	retryPolicy.MaxInterval = 15 * time.Second

	logger.Info("Connecting to PostgreSQL...")

	err = backoff.RetryNotify(
		func() error {
			db, err = sqlx.ConnectContext(ctx, "postgres", connStr)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			if err = db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
		retryPolicy,
		func(err error, duration time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", duration))
		},
	)

	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect after retries: %w", operation, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("Successfully connected to PostgreSQL")
	return &PostgresStorage{db: db, logger: logger}, nil
}

// SaveCalculation persists one finished calculation. chatID is 0 for
// API-originated requests.
func (s *PostgresStorage) SaveCalculation(ctx context.Context, chatID int64, source string, result *calculation.Result, configHash string) (int64, error) {
	const operation = "storage.SaveCalculation"

	reqJSON, err := json.Marshal(result.Request)
	if err != nil {
		return 0, fmt.Errorf("%s: marshal request: %w", operation, err)
	}
	breakdownJSON, err := json.Marshal(result.Breakdown)
	if err != nil {
		return 0, fmt.Errorf("%s: marshal breakdown: %w", operation, err)
	}

	const query = `
        INSERT INTO calculations (chat_id, source, country, request, breakdown, total_rub, config_hash)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		chatID,
		source,
		result.Request.Country,
		reqJSON,
		breakdownJSON,
		result.Breakdown.TotalRUB,
		configHash,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: insert: %w", operation, err)
	}
	return id, nil
}

// RecentCalculations returns the latest calculations for a chat.
func (s *PostgresStorage) RecentCalculations(ctx context.Context, chatID int64, limit int) ([]CalculationRecord, error) {
	const query = `
        SELECT id, chat_id, source, country, request, breakdown, total_rub, config_hash, created_at
        FROM calculations
        WHERE chat_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `

	var records []CalculationRecord
	if err := s.db.SelectContext(ctx, &records, query, chatID, limit); err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}
	return records, nil
}

// SaveConfigVersion records a published tariff snapshot hash. Repeated
// publishes of the same hash are collapsed.
func (s *PostgresStorage) SaveConfigVersion(ctx context.Context, hash string, loadedBy int64) error {
	const query = `
        INSERT INTO config_versions (hash, loaded_by)
        VALUES ($1, $2)
        ON CONFLICT (hash) DO NOTHING
    `

	if _, err := s.db.ExecContext(ctx, query, hash, loadedBy); err != nil {
		return fmt.Errorf("failed to save config version: %w", err)
	}
	return nil
}

// LatestConfigVersion returns the most recently published config version.
func (s *PostgresStorage) LatestConfigVersion(ctx context.Context) (*ConfigVersion, error) {
	const query = `
        SELECT id, hash, loaded_by, created_at
        FROM config_versions
        ORDER BY created_at DESC
        LIMIT 1
    `

	var version ConfigVersion
	err := s.db.GetContext(ctx, &version, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get config version: %w", err)
	}
	return &version, nil
}

// DB exposes the underlying handle for migrations.
func (s *PostgresStorage) DB() *sql.DB {
	return s.db.DB
}

func (s *PostgresStorage) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close PostgreSQL connection", zap.Error(err))
	}
}
