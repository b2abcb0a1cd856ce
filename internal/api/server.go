package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"autovedo-bot/internal/rates"
	"autovedo-bot/internal/storage"
	"autovedo-bot/internal/tariff"
)

// HTTP API SERVER

type Server struct {
	logger   *zap.Logger
	registry *tariff.Registry
	rates    *rates.Service
	storage  *storage.PostgresStorage
	validate *validator.Validate
	metrics  *Metrics
}

func NewServer(
	logger *zap.Logger,
	registry *tariff.Registry,
	ratesService *rates.Service,
	pgStorage *storage.PostgresStorage,
) *Server {
	return &Server{
		logger:   logger,
		registry: registry,
		rates:    ratesService,
		storage:  pgStorage,
		validate: validator.New(),
		metrics:  NewMetrics(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/calculate", s.handleCalculate)
		r.Get("/rates", s.handleRates)
		r.Get("/meta", s.handleMeta)
	})
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
