package tariff

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// SNAPSHOT REGISTRY
//
// Хранит текущий снапшот тарифов за атомарным указателем. Перезагрузка
// собирает новый снапшот целиком и публикует его одним свопом, поэтому
// идущие расчёты никогда не видят наполовину обновлённую таблицу.

type Registry struct {
	dir     string
	logger  *zap.Logger
	current atomic.Pointer[Snapshot]
}

func NewRegistry(dir string, logger *zap.Logger) *Registry {
	return &Registry{dir: dir, logger: logger}
}

// Load reads the tariff directory and publishes the snapshot.
func (r *Registry) Load() error {
	snap, err := Load(r.dir)
	if err != nil {
		return fmt.Errorf("failed to load tariff config: %w", err)
	}
	r.current.Store(snap)
	r.logger.Info("Tariff config loaded",
		zap.String("hash", snap.Hash),
		zap.Time("loaded_at", snap.LoadedAt))
	return nil
}

// Current returns the active snapshot. Callers hold on to the returned
// pointer for the duration of one calculation.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Reload rebuilds the snapshot from disk. On failure the previous
// snapshot stays active.
func (r *Registry) Reload() (*Snapshot, error) {
	snap, err := Load(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tariff config: %w", err)
	}
	r.current.Store(snap)
	r.logger.Info("Tariff config reloaded", zap.String("hash", snap.Hash))
	return snap, nil
}
