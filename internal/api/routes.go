package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SetupRoutes configures all API routes. CORS wraps the router so preflight
// requests are answered before method matching.
func SetupRoutes(handler *Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger(handler.log))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Accounts
	api.HandleFunc("/users", handler.Register).Methods("POST")
	api.HandleFunc("/sessions", handler.Login).Methods("POST")
	api.HandleFunc("/users/{username}/preferences", handler.GetPreferences).Methods("GET")
	api.HandleFunc("/users/{username}/preferences", handler.UpdatePreferences).Methods("PUT")

	// Portfolio
	api.HandleFunc("/users/{username}/transactions", handler.RecordTransaction).Methods("POST")
	api.HandleFunc("/users/{username}/transactions", handler.ListTransactions).Methods("GET")
	api.HandleFunc("/users/{username}/portfolio", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/users/{username}/history/value", handler.ValueHistory).Methods("GET")
	api.HandleFunc("/users/{username}/history/return", handler.ReturnHistory).Methods("GET")

	// Alerts
	api.HandleFunc("/users/{username}/alerts", handler.ListAlertLevels).Methods("GET")
	api.HandleFunc("/users/{username}/notifications", handler.ListNotifications).Methods("GET")

	// Market data
	api.HandleFunc("/tickers/{symbol}/candles", handler.GetCandles).Methods("GET")
	api.HandleFunc("/tickers/{symbol}/financials", handler.GetFinancials).Methods("GET")

	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
