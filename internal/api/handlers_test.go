package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autovedo-bot/internal/calculation"
	"autovedo-bot/internal/rates"
	"autovedo-bot/internal/tariff"
)

const testDuties = `
age_categories:
  lt3:
    value_brackets:
      - max_customs_value_eur: 16250
        percent: 0.48
        min_rate_eur_per_cc: 5.5
      - percent: 0.48
        min_rate_eur_per_cc: 20
  3_5:
    bands:
      - max_cc: 1500
        rate_eur_per_cc: 1.7
      - rate_eur_per_cc: 3.6
  gt5:
    bands:
      - rate_eur_per_cc: 5.7
`

const testFees = `
japan:
  country_currency: JPY
  tiers:
    - max_price: 3000000
      expenses: 220000
    - expenses: 300000
  freight:
    - type: standard
      amount: 1100
      currency: USD
uae:
  country_currency: USD
  base_expenses:
    broker: 2000
`

const testCommissions = `
default_commission_usd: 1000
by_country:
  uae:
    commission_usd: 0
bank_commission:
  enabled: true
  percent: 2.0
`

const testRates = `
currencies:
  USD_RUB: "90.0"
  EUR_RUB: "100.0"
  JPY_RUB: "0.62"
live_currency_codes: [USD, EUR, JPY]
customs_services:
  japan: "120000"
  uae: "150000"
utilization_m1_personal:
  volume_bands:
    - min_cc: 0
      max_cc: 3000
      power_brackets:
        - power_kw_max: 117.68
          coefficient_lt3: 0.17
          coefficient_gt3: 0.26
        - coefficient_lt3: 102.64
          coefficient_gt3: 144.83
`

func testServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"duties.yml":      testDuties,
		"fees.yml":        testFees,
		"commissions.yml": testCommissions,
		"rates.yml":       testRates,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	registry := tariff.NewRegistry(dir, zap.NewNop())
	require.NoError(t, registry.Load())

	ratesService := rates.NewService(rates.Config{Enabled: false}, nil, zap.NewNop())
	return NewServer(zap.NewNop(), registry, ratesService, nil)
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(t, testServer(t), http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleCalculate(t *testing.T) {
	srv := testServer(t)

	payload := map[string]any{
		"country":         "japan",
		"year":            time.Now().UTC().Year() - 4,
		"engine_cc":       1500,
		"engine_power_hp": 110,
		"purchase_price":  2500000,
		"currency":        "jpy", // нормализуется к верхнему регистру
		"freight_type":    "standard",
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/calculate", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result calculation.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, "JPY", result.Request.Currency)
	assert.Positive(t, result.Breakdown.TotalRUB)

	sum := result.Breakdown.PurchasePriceRUB + result.Breakdown.DutiesRUB +
		result.Breakdown.UtilizationFeeRUB + result.Breakdown.CustomsServicesRUB +
		result.Breakdown.EraGlonassRUB + result.Breakdown.FreightRUB +
		result.Breakdown.CountryExpensesRUB + result.Breakdown.CompanyCommissionRUB
	assert.Equal(t, sum, result.Breakdown.TotalRUB)
}

func TestHandleCalculateValidation(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		message string
	}{
		{
			name:    "unknown country",
			mutate:  func(p map[string]any) { p["country"] = "mars" },
			message: "oneof",
		},
		{
			name:    "future year",
			mutate:  func(p map[string]any) { p["year"] = time.Now().UTC().Year() + 1 },
			message: "future",
		},
		{
			name:    "too old",
			mutate:  func(p map[string]any) { p["year"] = 1980 },
			message: "too old",
		},
		{
			name:    "zero engine",
			mutate:  func(p map[string]any) { p["engine_cc"] = 0 },
			message: "EngineCC",
		},
		{
			name:    "negative price",
			mutate:  func(p map[string]any) { p["purchase_price"] = -1 },
			message: "purchase_price",
		},
		{
			name:    "bad currency",
			mutate:  func(p map[string]any) { p["currency"] = "DOLLARS" },
			message: "Currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := map[string]any{
				"country":         "japan",
				"year":            time.Now().UTC().Year() - 4,
				"engine_cc":       1500,
				"engine_power_hp": 110,
				"purchase_price":  2500000,
				"currency":        "JPY",
			}
			tt.mutate(payload)

			rec := doRequest(t, srv, http.MethodPost, "/api/calculate", payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestHandleCalculateBadJSON(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/calculate", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRates(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/rates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	assert.Equal(t, "static", payload["live_source"])
	assert.NotEmpty(t, payload["config_hash"])

	currencies, ok := payload["currencies"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 90.0, currencies["USD_RUB"], 1e-9)

	tiers, ok := payload["price_expense_tiers"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, tiers, "japan")
	assert.NotContains(t, tiers, "uae")
}

func TestHandleMeta(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/meta", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Countries []struct {
			Code          string   `json:"code"`
			FreightTypes  []string `json:"freight_types"`
			HasPriceTiers bool     `json:"has_price_tiers"`
		} `json:"countries"`
		AgeCategories []struct {
			Code    string `json:"code"`
			Passing bool   `json:"passing"`
		} `json:"age_categories"`
		Constraints map[string]int `json:"constraints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	assert.Len(t, payload.Countries, 2)
	for _, c := range payload.Countries {
		if c.Code == "japan" {
			assert.True(t, c.HasPriceTiers)
			assert.Equal(t, []string{"standard"}, c.FreightTypes)
		}
	}

	passing := map[string]bool{}
	for _, cat := range payload.AgeCategories {
		passing[cat.Code] = cat.Passing
	}
	assert.True(t, passing["3_5"])
	assert.False(t, passing["lt3"])
	assert.False(t, passing["gt5"])

	assert.Equal(t, calculation.MinYear, payload.Constraints["min_year"])
	assert.Equal(t, calculation.MaxEngineCC, payload.Constraints["max_engine_cc"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)

	// Один успешный расчёт, чтобы счётчик появился в выдаче.
	payload := map[string]any{
		"country":         "uae",
		"year":            time.Now().UTC().Year() - 4,
		"engine_cc":       2000,
		"engine_power_hp": 150,
		"purchase_price":  25000,
		"currency":        "USD",
	}
	rec := doRequest(t, srv, http.MethodPost, "/api/calculate", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autovedo_calculations_total")
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`country=%q`, "uae"))
}
