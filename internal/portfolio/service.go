// Package portfolio implements the user-facing operations: accounts,
// preferences, trades and portfolio views.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/analytics"
	"github.com/cindychow0101/Portfolio-tracker/internal/fx"
	"github.com/cindychow0101/Portfolio-tracker/internal/marketdata"
	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/cindychow0101/Portfolio-tracker/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9]+)*@\w+\.\w+$`)
	quantityPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Store is the persistence used by the service
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, username string) (*models.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdatePreferences(ctx context.Context, username string, p models.Preferences) error
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
	UpsertTicker(ctx context.Context, t *models.Ticker) error
	NetQuantity(ctx context.Context, username, symbol string) (decimal.Decimal, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, username string) ([]*models.Transaction, error)
	ListHoldingsByUser(ctx context.Context, username string) ([]*models.Holding, error)
	LatestValueSnapshot(ctx context.Context, username string) (*models.Snapshot, error)
	LatestReturnSnapshot(ctx context.Context, username string) (*models.Snapshot, error)
	ValueHistory(ctx context.Context, username string) ([]*models.Snapshot, error)
	ReturnHistory(ctx context.Context, username string) ([]*models.Snapshot, error)
	ListPriceComparisons(ctx context.Context, username string) ([]*models.PriceComparison, error)
	ListNotifications(ctx context.Context, username string) ([]*models.Notification, error)
}

// Recomputer rebuilds derived state after a trade
type Recomputer interface {
	Rebuild(ctx context.Context) (*pipeline.CycleResult, error)
	EstimateSymbol(ctx context.Context, symbol string) (analytics.Estimate, error)
}

// EventPublisher announces recorded transactions
type EventPublisher interface {
	PublishTransactionRecorded(ctx context.Context, t *models.Transaction) error
}

// Service is the application layer behind the HTTP API
type Service struct {
	store             Store
	provider          marketdata.Provider
	converter         fx.Converter
	recomputer        Recomputer
	events            EventPublisher
	reportingCurrency string
	bcryptCost        int
	log               zerolog.Logger
	now               func() time.Time
}

// Deps are the collaborators a Service calls
type Deps struct {
	Store      Store
	Provider   marketdata.Provider
	Converter  fx.Converter
	Recomputer Recomputer
	Events     EventPublisher // optional
}

// NewService creates a service reporting values in reportingCurrency
func NewService(deps Deps, reportingCurrency string, log zerolog.Logger) *Service {
	if reportingCurrency == "" {
		reportingCurrency = "HKD"
	}
	return &Service{
		store:             deps.Store,
		provider:          deps.Provider,
		converter:         deps.Converter,
		recomputer:        deps.Recomputer,
		events:            deps.Events,
		reportingCurrency: reportingCurrency,
		bcryptCost:        bcrypt.DefaultCost,
		log:               log.With().Str("component", "portfolio").Logger(),
		now:               time.Now,
	}
}

// Register creates an account with default alert preferences
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	switch {
	case username == "":
		return nil, models.NewValidationError("username", "is required")
	case !emailPattern.MatchString(email):
		return nil, models.NewValidationError("email", "is not a valid address")
	case password == "":
		return nil, models.NewValidationError("password", "is required")
	}

	taken, err := s.store.UserExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if !taken {
		if taken, err = s.store.EmailExists(ctx, email); err != nil {
			return nil, err
		}
	}
	if taken {
		return nil, fmt.Errorf("username or email: %w", models.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		Username:           username,
		Email:              email,
		PasswordHash:       string(hash),
		PriceDropThreshold: models.DefaultThreshold,
		PriceRiseThreshold: models.DefaultThreshold,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info().Str("username", username).Msg("User registered")
	return u, nil
}

// Authenticate verifies a username and password
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return u, nil
}

// Preferences returns a user's alert settings
func (s *Service) Preferences(ctx context.Context, username string) (models.Preferences, error) {
	u, err := s.store.GetUser(ctx, username)
	if err != nil {
		return models.Preferences{}, err
	}
	return u.Preferences(), nil
}

// UpdatePreferences validates and stores a user's alert settings
func (s *Service) UpdatePreferences(ctx context.Context, username string, p models.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdatePreferences(ctx, username, p); err != nil {
		return err
	}
	s.log.Info().Str("username", username).Bool("notifications_enabled", p.NotificationsEnabled).Msg("Preferences updated")
	return nil
}

// TradeRequest is a long or short order as entered by the user
type TradeRequest struct {
	Symbol   string `json:"symbol"`
	Type     string `json:"transaction_type"`
	Quantity string `json:"quantity"`
}

// RecordTransaction validates an order, prices it, stores it and rebuilds
// the derived portfolio tables.
func (s *Service) RecordTransaction(ctx context.Context, username string, req TradeRequest) (*models.Transaction, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	txType := strings.ToLower(strings.TrimSpace(req.Type))
	rawQty := strings.TrimSpace(req.Quantity)

	if symbol == "" {
		return nil, models.NewValidationError("symbol", "is required")
	}
	if !quantityPattern.MatchString(rawQty) {
		return nil, models.NewValidationError("quantity", "must be a whole number greater than 0")
	}
	qty, err := strconv.ParseInt(rawQty, 10, 64)
	if err != nil || qty <= 0 {
		return nil, models.NewValidationError("quantity", "must be a whole number greater than 0")
	}
	if !models.IsValidTransactionType(txType) {
		return nil, models.NewValidationError("transaction_type", "must be long or short")
	}

	if _, err := s.store.GetUser(ctx, username); err != nil {
		return nil, err
	}

	quantity := decimal.NewFromInt(qty)
	if txType == models.TransactionShort {
		existing, err := s.store.NetQuantity(ctx, username, symbol)
		if err != nil {
			return nil, err
		}
		if quantity.GreaterThan(existing) {
			return nil, models.NewValidationError("quantity",
				fmt.Sprintf("cannot short %d of %s, existing quantity is only %s", qty, symbol, existing))
		}
	}

	quote, err := s.provider.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertTicker(ctx, s.tickerFor(ctx, quote)); err != nil {
		return nil, err
	}

	signed := models.SignedQuantity(txType, quantity)
	priceHKD := fx.ConvertOrNull(ctx, s.converter, quote.Price, quote.Currency, s.reportingCurrency, s.log)
	tx := &models.Transaction{
		Username:       username,
		Symbol:         symbol,
		Type:           txType,
		QuantityChange: signed,
		Currency:       quote.Currency,
		Price:          quote.Price.Round(2),
		PriceHKD:       priceHKD,
		ExecutedAt:     s.now().UTC(),
	}
	if priceHKD.Valid {
		tx.TotalValueHKD = decimal.NewNullDecimal(signed.Mul(priceHKD.Decimal).Round(2))
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	if _, err := s.recomputer.Rebuild(ctx); err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("Rebuild after transaction failed, next cycle will retry")
	}

	if s.events != nil {
		if err := s.events.PublishTransactionRecorded(ctx, tx); err != nil {
			s.log.Warn().Err(err).Int("transaction_id", tx.ID).Msg("Failed to publish transaction event")
		}
	}

	s.log.Info().
		Str("username", username).
		Str("symbol", symbol).
		Str("type", txType).
		Int64("quantity", qty).
		Msg("Transaction recorded")
	return tx, nil
}

// tickerFor builds the ticker row for a quote. When estimation fails the
// previously stored beta and expected return are kept.
func (s *Service) tickerFor(ctx context.Context, quote *marketdata.Quote) *models.Ticker {
	est, err := s.recomputer.EstimateSymbol(ctx, quote.Symbol)
	if err == nil {
		return pipeline.TickerFromQuote(quote, est, s.now())
	}

	s.log.Warn().Err(err).Str("symbol", quote.Symbol).Msg("Estimation failed, keeping previous beta and expected return")
	t := pipeline.TickerFromQuote(quote, analytics.Estimate{}, s.now())
	t.Beta, t.ExpectedReturn = decimal.NullDecimal{}, decimal.NullDecimal{}
	if prev, err := s.store.GetTicker(ctx, quote.Symbol); err == nil {
		t.Beta, t.ExpectedReturn = prev.Beta, prev.ExpectedReturn
	}
	return t
}

// Overview is a user's current portfolio
type Overview struct {
	Username       string              `json:"username"`
	Holdings       []*models.Holding   `json:"holdings"`
	TotalValueHKD  decimal.NullDecimal `json:"total_value_hkd"`
	ExpectedReturn decimal.NullDecimal `json:"expected_return"`
	Beta           decimal.NullDecimal `json:"beta"`
	LastSnapshot   *models.Snapshot    `json:"last_snapshot,omitempty"`
	LastReturn     *models.Snapshot    `json:"last_return_snapshot,omitempty"`
}

// Overview returns holdings with blended value, return and beta
func (s *Service) Overview(ctx context.Context, username string) (*Overview, error) {
	if _, err := s.store.GetUser(ctx, username); err != nil {
		return nil, err
	}
	holdings, err := s.store.ListHoldingsByUser(ctx, username)
	if err != nil {
		return nil, err
	}

	o := &Overview{
		Username:       username,
		Holdings:       holdings,
		TotalValueHKD:  pipeline.PortfolioValue(holdings),
		ExpectedReturn: pipeline.PortfolioReturn(holdings),
		Beta:           pipeline.PortfolioBeta(holdings),
	}
	if o.Holdings == nil {
		o.Holdings = []*models.Holding{}
	}

	if o.LastSnapshot, err = latest(s.store.LatestValueSnapshot(ctx, username)); err != nil {
		return nil, err
	}
	if o.LastReturn, err = latest(s.store.LatestReturnSnapshot(ctx, username)); err != nil {
		return nil, err
	}
	return o, nil
}

// latest treats a missing snapshot as absent
func latest(snap *models.Snapshot, err error) (*models.Snapshot, error) {
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

// AlertLevels returns the threshold levels computed for a user's holdings by
// the last cycle
func (s *Service) AlertLevels(ctx context.Context, username string) ([]*models.PriceComparison, error) {
	if _, err := s.store.GetUser(ctx, username); err != nil {
		return nil, err
	}
	return s.store.ListPriceComparisons(ctx, username)
}

// Notifications returns the alerts delivered to a user, newest first
func (s *Service) Notifications(ctx context.Context, username string) ([]*models.Notification, error) {
	if _, err := s.store.GetUser(ctx, username); err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, username)
}

// Transactions returns a user's transaction history, oldest first
func (s *Service) Transactions(ctx context.Context, username string) ([]*models.Transaction, error) {
	if _, err := s.store.GetUser(ctx, username); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, username)
}

// ValueHistory returns the appended portfolio value series
func (s *Service) ValueHistory(ctx context.Context, username string) ([]*models.Snapshot, error) {
	if _, err := s.store.GetUser(ctx, username); err != nil {
		return nil, err
	}
	return s.store.ValueHistory(ctx, username)
}

// ReturnHistory returns the appended portfolio return series
func (s *Service) ReturnHistory(ctx context.Context, username string) ([]*models.Snapshot, error) {
	if _, err := s.store.GetUser(ctx, username); err != nil {
		return nil, err
	}
	return s.store.ReturnHistory(ctx, username)
}

// Candles returns daily bars for symbol. Zero bounds default to the last year.
func (s *Service) Candles(ctx context.Context, symbol string, start, end time.Time) ([]marketdata.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, models.NewValidationError("symbol", "is required")
	}
	if end.IsZero() {
		end = s.now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -analytics.LookbackDays)
	}
	if start.After(end) {
		return nil, models.NewValidationError("start", "must not be after end")
	}

	bars, err := s.provider.History(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s between %s and %s: %w",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), marketdata.ErrNoMarketData)
	}
	return bars, nil
}

// Financials returns one financial statement for symbol
func (s *Service) Financials(ctx context.Context, symbol, statement, period string) (*marketdata.Statement, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, models.NewValidationError("symbol", "is required")
	}
	kind, err := marketdata.ParseStatementKind(statement)
	if err != nil {
		return nil, models.NewValidationError("statement", err.Error())
	}
	p, err := marketdata.ParsePeriod(period)
	if err != nil {
		return nil, models.NewValidationError("period", err.Error())
	}
	return s.provider.Financials(ctx, symbol, kind, p)
}
