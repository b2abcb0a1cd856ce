package rates

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autovedo-bot/internal/calculation"
	"autovedo-bot/internal/tariff"
	"autovedo-bot/pkg/redis"
)

// CBR RATES SERVICE
//
// Тянет дневные курсы ЦБ РФ (XML), кэширует разобранный результат в
// Redis и накладывает живые курсы поверх статических из rates.yml.
// Живые курсы — best effort: при любой ошибке расчёт продолжается на
// статике.

const cacheKey = "cbr:rates"

type Config struct {
	URL      string
	Enabled  bool
	CacheTTL time.Duration
	Timeout  time.Duration
}

type Service struct {
	cfg        Config
	httpClient *http.Client
	cache      *redis.Client
	logger     *zap.Logger
}

func NewService(cfg Config, cache *redis.Client, logger *zap.Logger) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger,
	}
}

type valCurs struct {
	Valutes []valute `xml:"Valute"`
}

type valute struct {
	CharCode  string `xml:"CharCode"`
	VunitRate string `xml:"VunitRate"`
}

// ParseXML extracts VALUTA_RUB pairs for the interested currency codes
// from a CBR daily-rates document. VunitRate uses a comma decimal
// separator.
func ParseXML(data []byte, interested map[string]bool) (map[string]string, error) {
	var doc valCurs
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cbr xml: %w", err)
	}

	parsed := make(map[string]string)
	for _, v := range doc.Valutes {
		code := strings.ToUpper(strings.TrimSpace(v.CharCode))
		if !interested[code] {
			continue
		}
		raw := strings.ReplaceAll(strings.TrimSpace(v.VunitRate), ",", ".")
		if _, err := decimal.NewFromString(raw); err != nil {
			continue
		}
		parsed[code+"_RUB"] = raw
	}
	return parsed, nil
}

// Fetch returns live rates, preferring the Redis cache. Nil result with
// nil error means live rates are disabled or unavailable.
func (s *Service) Fetch(ctx context.Context, codes []string) (map[string]string, error) {
	if !s.cfg.Enabled {
		return nil, nil
	}

	var cached map[string]string
	if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
		return cached, nil
	}

	interested := make(map[string]bool, len(codes))
	for _, c := range codes {
		interested[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	var parsed map[string]string
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err := backoff.RetryNotify(
		func() error {
			var fetchErr error
			parsed, fetchErr = s.fetchOnce(ctx, interested)
			return fetchErr
		},
		retryPolicy,
		func(err error, next time.Duration) {
			s.logger.Warn("CBR fetch failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("fetch cbr rates: %w", err)
	}

	if err := s.cache.SetJSON(ctx, cacheKey, parsed, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("Failed to cache CBR rates", zap.Error(err))
	}
	s.logger.Info("CBR rates fetched", zap.Int("count", len(parsed)))
	return parsed, nil
}

func (s *Service) fetchOnce(ctx context.Context, interested map[string]bool) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	parsed, err := ParseXML(body, interested)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("empty or unparsed response")
	}
	return parsed, nil
}

// Effective merges live CBR rates over the static ones from the tariff
// snapshot and reports the source used.
func (s *Service) Effective(ctx context.Context, snap *tariff.Snapshot) calculation.RateSet {
	merged := snap.Rates.Table()

	live, err := s.Fetch(ctx, snap.Rates.LiveCurrencyCodes)
	if err != nil {
		s.logger.Warn("Live CBR rates unavailable, using static", zap.Error(err))
	}
	if len(live) == 0 {
		return calculation.RateSet{Table: merged, Source: "static"}
	}

	for pair, raw := range live {
		rate, convErr := decimal.NewFromString(raw)
		if convErr != nil {
			continue
		}
		merged[pair] = rate
	}
	return calculation.RateSet{Table: merged, Source: "cbr"}
}
