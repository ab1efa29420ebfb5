package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/marketdata"
	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/cindychow0101/Portfolio-tracker/internal/portfolio"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Service is the application layer the handlers call
type Service interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Preferences(ctx context.Context, username string) (models.Preferences, error)
	UpdatePreferences(ctx context.Context, username string, p models.Preferences) error
	RecordTransaction(ctx context.Context, username string, req portfolio.TradeRequest) (*models.Transaction, error)
	Transactions(ctx context.Context, username string) ([]*models.Transaction, error)
	Overview(ctx context.Context, username string) (*portfolio.Overview, error)
	ValueHistory(ctx context.Context, username string) ([]*models.Snapshot, error)
	ReturnHistory(ctx context.Context, username string) ([]*models.Snapshot, error)
	Candles(ctx context.Context, symbol string, start, end time.Time) ([]marketdata.Bar, error)
	Financials(ctx context.Context, symbol, statement, period string) (*marketdata.Statement, error)
	AlertLevels(ctx context.Context, username string) ([]*models.PriceComparison, error)
	Notifications(ctx context.Context, username string) ([]*models.Notification, error)
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	svc Service
	db  Pinger
	log zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(svc Service, db Pinger, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		db:  db,
		log: log.With().Str("component", "api").Logger(),
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /users
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /sessions
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, u)
}

// GetPreferences handles GET /users/{username}/preferences
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Preferences(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// preferencesRequest replaces all three settings, so each must be present
type preferencesRequest struct {
	NotificationsEnabled *bool            `json:"notifications_enabled"`
	PriceDropThreshold   *decimal.Decimal `json:"price_drop_threshold"`
	PriceRiseThreshold   *decimal.Decimal `json:"price_rise_threshold"`
}

func (req preferencesRequest) preferences() (models.Preferences, error) {
	switch {
	case req.NotificationsEnabled == nil:
		return models.Preferences{}, models.NewValidationError("notifications_enabled", "is required")
	case req.PriceDropThreshold == nil:
		return models.Preferences{}, models.NewValidationError("price_drop_threshold", "is required")
	case req.PriceRiseThreshold == nil:
		return models.Preferences{}, models.NewValidationError("price_rise_threshold", "is required")
	}
	return models.Preferences{
		NotificationsEnabled: *req.NotificationsEnabled,
		PriceDropThreshold:   *req.PriceDropThreshold,
		PriceRiseThreshold:   *req.PriceRiseThreshold,
	}, nil
}

// UpdatePreferences handles PUT /users/{username}/preferences
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := req.preferences()
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.svc.UpdatePreferences(r.Context(), mux.Vars(r)["username"], p); err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// RecordTransaction handles POST /users/{username}/transactions
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req portfolio.TradeRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx, err := h.svc.RecordTransaction(r.Context(), mux.Vars(r)["username"], req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, tx)
}

// ListTransactions handles GET /users/{username}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.Transactions(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}

	respondJSON(w, http.StatusOK, txs)
}

// GetPortfolio handles GET /users/{username}/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Overview(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

// ListAlertLevels handles GET /users/{username}/alerts
func (h *Handler) ListAlertLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.AlertLevels(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if levels == nil {
		levels = []*models.PriceComparison{}
	}

	respondJSON(w, http.StatusOK, levels)
}

// ListNotifications handles GET /users/{username}/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	sent, err := h.svc.Notifications(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if sent == nil {
		sent = []*models.Notification{}
	}

	respondJSON(w, http.StatusOK, sent)
}

// ValueHistory handles GET /users/{username}/history/value
func (h *Handler) ValueHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, h.svc.ValueHistory)
}

// ReturnHistory handles GET /users/{username}/history/return
func (h *Handler) ReturnHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, h.svc.ReturnHistory)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) ([]*models.Snapshot, error)) {
	points, err := fetch(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if points == nil {
		points = []*models.Snapshot{}
	}

	respondJSON(w, http.StatusOK, points)
}

// GetCandles handles GET /tickers/{symbol}/candles?start=&end=
func (h *Handler) GetCandles(w http.ResponseWriter, r *http.Request) {
	start, err := parseDate(r, "start")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	end, err := parseDate(r, "end")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	bars, err := h.svc.Candles(r.Context(), mux.Vars(r)["symbol"], start, end)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, bars)
}

// GetFinancials handles GET /tickers/{symbol}/financials?statement=&period=
func (h *Handler) GetFinancials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := h.svc.Financials(r.Context(), mux.Vars(r)["symbol"], q.Get("statement"), q.Get("period"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, st)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func parseDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, models.NewValidationError(name, "must be a date in YYYY-MM-DD form")
	}
	return t, nil
}
