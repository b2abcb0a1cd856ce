package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"autovedo-bot/internal/calculation"
	"autovedo-bot/internal/tariff"
)

// API HANDLERS

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCalculate is the request boundary: it validates the payload
// (движок расчёта входные данные не перепроверяет) and runs the engine
// against the current tariff snapshot.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req calculation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))

	if errs := s.validateRequest(req); len(errs) > 0 {
		s.respondJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	snap := s.registry.Current()
	if snap == nil {
		s.respondError(w, http.StatusInternalServerError, "tariff config not loaded")
		return
	}

	result, err := calculation.Calculate(req, snap, s.rates.Effective(r.Context(), snap))
	if err != nil {
		// Отсутствующий курс — дефект развёрнутой конфигурации.
		var missing *calculation.MissingRateError
		if errors.As(err, &missing) {
			s.logger.Error("Calculation failed: missing currency rate",
				zap.String("pair", missing.Pair),
				zap.String("country", req.Country))
			s.metrics.ObserveCalculation(req.Country, "config_error", started)
			s.respondError(w, http.StatusInternalServerError, missing.Error())
			return
		}
		s.logger.Error("Calculation failed", zap.Error(err))
		s.metrics.ObserveCalculation(req.Country, "error", started)
		s.respondError(w, http.StatusInternalServerError, "calculation failed")
		return
	}

	if s.storage != nil {
		if _, err := s.storage.SaveCalculation(r.Context(), 0, "api", result, snap.Hash); err != nil {
			s.logger.Warn("Failed to persist calculation", zap.Error(err))
		}
	}

	s.metrics.ObserveCalculation(req.Country, "ok", started)
	s.respondJSON(w, http.StatusOK, result)
}

// validateRequest performs the boundary checks: struct tags plus the
// dynamic year range and a positive purchase price.
func (s *Server) validateRequest(req calculation.Request) []string {
	var messages []string

	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				messages = append(messages, fmt.Sprintf("%s: failed %s validation", fe.Field(), fe.Tag()))
			}
		} else {
			messages = append(messages, err.Error())
		}
	}

	currentYear := time.Now().UTC().Year()
	if req.Year > currentYear {
		messages = append(messages, "year cannot be in the future")
	} else if req.Year < calculation.MinYear {
		messages = append(messages, "year too old for calculation baseline")
	}

	if !req.PurchasePrice.IsPositive() {
		messages = append(messages, "purchase_price must be positive")
	}

	return messages
}

// handleRates exposes the numeric tariff data consumed by the frontend.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Current()
	if snap == nil {
		s.respondError(w, http.StatusInternalServerError, "tariff config not loaded")
		return
	}

	rateSet := s.rates.Effective(r.Context(), snap)
	currencies := make(map[string]float64, len(rateSet.Table))
	for pair, rate := range rateSet.Table {
		currencies[pair] = rate.InexactFloat64()
	}

	customsServices := make(map[string]float64, len(snap.Rates.CustomsServices))
	for country, amount := range snap.Rates.CustomsServices {
		customsServices[country] = amount.InexactFloat64()
	}

	type tierView struct {
		MaxPrice *float64 `json:"max_price"`
		Expenses float64  `json:"expenses"`
		Currency string   `json:"currency"`
	}
	tiersByCountry := make(map[string][]tierView)
	for country, fees := range snap.Fees {
		if len(fees.Tiers) == 0 {
			continue
		}
		views := make([]tierView, 0, len(fees.Tiers))
		for _, tier := range fees.Tiers {
			view := tierView{Expenses: tier.Expenses.InexactFloat64(), Currency: fees.CountryCurrency}
			if tier.MaxPrice != nil {
				bound := tier.MaxPrice.InexactFloat64()
				view.MaxPrice = &bound
			}
			views = append(views, view)
		}
		tiersByCountry[country] = views
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"generated_at":        time.Now().UTC().Format(time.RFC3339),
		"currencies":          currencies,
		"live_source":         rateSet.Source,
		"duties":              snap.Duties,
		"utilization":         snap.Rates.Utilization,
		"customs_services":    customsServices,
		"era_glonass_rub":     snap.Rates.EraGlonassRUB.InexactFloat64(),
		"price_expense_tiers": tiersByCountry,
		"config_hash":         snap.Hash,
	})
}

var countryLabels = map[string][2]string{
	"japan": {"Япония", "🇯🇵"},
	"korea": {"Корея", "🇰🇷"},
	"uae":   {"ОАЭ", "🇦🇪"},
	"china": {"Китай", "🇨🇳"},
}

var freightTypeLabels = map[string]string{
	"standard":  "Стандартный",
	"open":      "Открытый",
	"container": "Контейнер",
}

// handleMeta returns reference metadata: countries, freight classes,
// age categories and input constraints.
func (s *Server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	snap := s.registry.Current()
	if snap == nil {
		s.respondError(w, http.StatusInternalServerError, "tariff config not loaded")
		return
	}

	currentYear := time.Now().UTC().Year()

	type countryView struct {
		Code             string   `json:"code"`
		Label            string   `json:"label"`
		Emoji            string   `json:"emoji"`
		PurchaseCurrency string   `json:"purchase_currency"`
		FreightTypes     []string `json:"freight_types"`
		HasPriceTiers    bool     `json:"has_price_tiers"`
	}

	countries := make([]countryView, 0, len(snap.Fees))
	for code, fees := range snap.Fees {
		label, emoji := code, ""
		if l, ok := countryLabels[code]; ok {
			label, emoji = l[0], l[1]
		}
		freightTypes := make([]string, 0, len(fees.Freight))
		for _, f := range fees.Freight {
			freightTypes = append(freightTypes, f.Type)
		}
		countries = append(countries, countryView{
			Code:             code,
			Label:            label,
			Emoji:            emoji,
			PurchaseCurrency: fees.CountryCurrency,
			FreightTypes:     freightTypes,
			HasPriceTiers:    len(fees.Tiers) > 0,
		})
	}

	type ageView struct {
		Code    tariff.AgeCategory `json:"code"`
		Label   string             `json:"label"`
		Passing bool               `json:"passing"`
	}
	ageCategories := []ageView{
		{Code: tariff.AgeLT3, Label: "< 3 лет", Passing: tariff.IsPassing(tariff.AgeLT3)},
		{Code: tariff.Age3t5, Label: "3-5 лет", Passing: tariff.IsPassing(tariff.Age3t5)},
		{Code: tariff.AgeGT5, Label: "> 5 лет", Passing: tariff.IsPassing(tariff.AgeGT5)},
	}

	currenciesSupported := make([]string, 0, len(snap.Rates.Currencies))
	for pair := range snap.Rates.Currencies {
		currenciesSupported = append(currenciesSupported, strings.TrimSuffix(pair, "_RUB"))
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"generated_at":         time.Now().UTC().Format(time.RFC3339),
		"countries":            countries,
		"age_categories":       ageCategories,
		"freight_type_labels":  freightTypeLabels,
		"currencies_supported": currenciesSupported,
		"constraints": map[string]int{
			"min_year":      calculation.MinYear,
			"max_year":      currentYear,
			"max_engine_cc": calculation.MaxEngineCC,
			"max_power_hp":  calculation.MaxEnginePowerHP,
		},
	})
}
