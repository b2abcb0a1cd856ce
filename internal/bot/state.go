package bot

import (
	"context"
	"time"

	"autovedo-bot/pkg/redis"
)

// DIALOG STATE

const (
	StepCountry   = "country"
	StepYear      = "year"
	StepEngineCC  = "engine_cc"
	StepPower     = "power"
	StepPrice     = "price"
	StepCurrency  = "currency"
	StepFreight   = "freight"
	StepSanctions = "sanctions"
)

type UserState struct {
	Step             string `json:"step"`
	Country          string `json:"country"`
	Year             int    `json:"year"`
	EngineCC         int    `json:"engine_cc"`
	EnginePowerHP    int    `json:"engine_power_hp"`
	Price            string `json:"price"`
	Currency         string `json:"currency"`
	FreightType      string `json:"freight_type"`
	SanctionsUnknown bool   `json:"sanctions_unknown"`
}

type StateStorage struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStateStorage(redisClient *redis.Client) *StateStorage {
	return &StateStorage{
		redis: redisClient,
		ttl:   24 * time.Hour,
	}
}

func (s *StateStorage) Save(ctx context.Context, chatID int64, state UserState) error {
	return s.redis.SaveState(ctx, chatID, state)
}

func (s *StateStorage) Get(ctx context.Context, chatID int64) (UserState, error) {
	var state UserState
	if err := s.redis.GetState(ctx, chatID, &state); err != nil {
		return UserState{}, err
	}
	return state, nil
}

func (s *StateStorage) Clear(ctx context.Context, chatID int64) error {
	return s.redis.ClearState(ctx, chatID)
}
