// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/market"
	"github.com/brentwatch/brent-news-bot/internal/models"
	"github.com/brentwatch/brent-news-bot/internal/prediction"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Backend is the pipeline surface the routes serve
type Backend interface {
	GetMetrics() string
	RefreshNews(ctx context.Context) error
	GetNews(ctx context.Context) ([]models.NewsItem, error)
	Predict(history []models.PricePoint, news []models.NewsItem) (*models.Prediction, error)
	HistoricalData(ctx context.Context, period string) (*models.HistoricalData, error)
	CurrentPrice(ctx context.Context) (*models.CurrentPrice, error)
	AllData(ctx context.Context, period string) (*models.Dashboard, error)
}

// PredictionRequest is the body of POST /api/prediction
type PredictionRequest struct {
	HistoricalData []models.PricePoint `json:"historicalData"`
	News           []models.NewsItem   `json:"news"`
}

type handlers struct {
	backend Backend
	// trigger runs manual refreshes; replaced in tests
	trigger func(func())
}

// NewRouter wires every route onto a gorilla/mux router
func NewRouter(backend Backend) *mux.Router {
	h := &handlers{
		backend: backend,
		trigger: func(f func()) { go f() },
	}
	return h.router()
}

func (h *handlers) router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", h.metrics).Methods("GET")
	router.HandleFunc("/trigger", h.triggerRefresh).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/news", h.news).Methods("GET")
	api.HandleFunc("/prediction", h.predict).Methods("POST")
	api.HandleFunc("/historical-data", h.historicalData).Methods("GET")
	api.HandleFunc("/current-price", h.currentPrice).Methods("GET")
	api.HandleFunc("/all-data", h.allData).Methods("GET")

	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *handlers) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.backend.GetMetrics()))
}

func (h *handlers) triggerRefresh(w http.ResponseWriter, r *http.Request) {
	h.trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := h.backend.RefreshNews(ctx); err != nil {
			logrus.Errorf("Manual refresh failed: %v", err)
		}
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "News refresh triggered"})
}

func (h *handlers) news(w http.ResponseWriter, r *http.Request) {
	news, err := h.backend.GetNews(r.Context())
	if err != nil {
		logrus.Errorf("Failed to get news: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to collect news")
		return
	}
	writeJSON(w, http.StatusOK, news)
}

func (h *handlers) predict(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.HistoricalData) == 0 || len(req.News) == 0 {
		writeError(w, http.StatusBadRequest, "historicalData and news are required")
		return
	}

	p, err := h.backend.Predict(req.HistoricalData, req.News)
	if err != nil {
		var insufficient *prediction.InsufficientDataError
		if errors.As(err, &insufficient) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logrus.Errorf("Prediction failed: %v", err)
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func period(r *http.Request) string {
	if p := r.URL.Query().Get("period"); p != "" {
		return p
	}
	return market.DefaultPeriod
}

func (h *handlers) historicalData(w http.ResponseWriter, r *http.Request) {
	data, err := h.backend.HistoricalData(r.Context(), period(r))
	if err != nil {
		if errors.Is(err, market.ErrUnknownPeriod) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logrus.Errorf("Failed to get historical data: %v", err)
		writeError(w, http.StatusBadGateway, "price history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handlers) currentPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.backend.CurrentPrice(r.Context())
	if err != nil {
		logrus.Errorf("Failed to get current price: %v", err)
		writeError(w, http.StatusBadGateway, "current price unavailable")
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (h *handlers) allData(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.backend.AllData(r.Context(), period(r))
	if err != nil {
		if errors.Is(err, market.ErrUnknownPeriod) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logrus.Errorf("Failed to assemble dashboard: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
