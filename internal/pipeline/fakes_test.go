package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/fx"
	"github.com/cindychow0101/Portfolio-tracker/internal/marketdata"
	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/shopspring/decimal"
)

// MockStore keeps the tracker tables in memory
type MockStore struct {
	mu            sync.Mutex
	users         map[string]*models.User
	tickers       map[string]*models.Ticker
	transactions  []*models.Transaction
	holdings      []*models.Holding
	values        []*models.Snapshot
	returns       []*models.Snapshot
	comparisons   map[string]*models.PriceComparison
	notifications []*models.Notification

	ReplaceCalls int
	FailReplace  error
}

func NewMockStore() *MockStore {
	return &MockStore{
		users:       make(map[string]*models.User),
		tickers:     make(map[string]*models.Ticker),
		comparisons: make(map[string]*models.PriceComparison),
	}
}

func (m *MockStore) addUser(username string, enabled bool, drop, rise int64) {
	m.users[username] = &models.User{
		Username:             username,
		Email:                username + "@example.com",
		NotificationsEnabled: enabled,
		PriceDropThreshold:   decimal.NewFromInt(drop),
		PriceRiseThreshold:   decimal.NewFromInt(rise),
	}
}

func (m *MockStore) addTicker(symbol, currency, price string) {
	m.tickers[symbol] = &models.Ticker{
		Symbol:       symbol,
		CompanyName:  symbol + " Inc",
		Currency:     currency,
		CurrentPrice: decimal.RequireFromString(price),
	}
}

func (m *MockStore) addTransaction(username, symbol, txType string, qty int64, price string, at time.Time) {
	m.transactions = append(m.transactions, &models.Transaction{
		ID:             len(m.transactions) + 1,
		Username:       username,
		Symbol:         symbol,
		Type:           txType,
		QuantityChange: models.SignedQuantity(txType, decimal.NewFromInt(qty)),
		Currency:       m.tickers[symbol].Currency,
		Price:          decimal.RequireFromString(price),
		ExecutedAt:     at,
	})
}

func key(username, symbol string) string { return username + "/" + symbol }

func (m *MockStore) ListTickers(_ context.Context) ([]*models.Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Ticker
	for _, t := range m.tickers {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *MockStore) UpsertTicker(_ context.Context, t *models.Ticker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tickers[t.Symbol] = &cp
	return nil
}

func (m *MockStore) SumQuantities(_ context.Context) ([]*models.PositionAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := make(map[string]*models.PositionAggregate)
	for _, tx := range m.transactions {
		k := key(tx.Username, tx.Symbol)
		a, ok := sums[k]
		if !ok {
			t := m.tickers[tx.Symbol]
			a = &models.PositionAggregate{
				Username:       tx.Username,
				Symbol:         tx.Symbol,
				Currency:       t.Currency,
				CurrentPrice:   t.CurrentPrice,
				Beta:           t.Beta,
				ExpectedReturn: t.ExpectedReturn,
			}
			sums[k] = a
		}
		a.Quantity = a.Quantity.Add(tx.QuantityChange)
	}
	var out []*models.PositionAggregate
	for _, a := range sums {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i].Username, out[i].Symbol) < key(out[j].Username, out[j].Symbol) })
	return out, nil
}

func (m *MockStore) ReplaceAllHoldings(_ context.Context, holdings []*models.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceCalls++
	if m.FailReplace != nil {
		return m.FailReplace
	}
	m.holdings = nil
	for i, h := range holdings {
		cp := *h
		cp.ID = i + 1
		m.holdings = append(m.holdings, &cp)
	}
	return nil
}

func (m *MockStore) UpdateHoldingWeights(_ context.Context, weights []models.HoldingWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range weights {
		for _, h := range m.holdings {
			if h.Username == w.Username && h.Symbol == w.Symbol {
				h.Weighting = decimal.NewNullDecimal(w.Weighting)
			}
		}
	}
	return nil
}

func (m *MockStore) AppendValueSnapshots(_ context.Context, s []*models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, s...)
	return nil
}

func (m *MockStore) AppendReturnSnapshots(_ context.Context, s []*models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returns = append(m.returns, s...)
	return nil
}

func (m *MockStore) held(username, symbol string) bool {
	return m.holding(username, symbol) != nil
}

func (m *MockStore) PruneComparisons(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for k, pc := range m.comparisons {
		if !m.held(pc.Username, pc.Symbol) {
			delete(m.comparisons, k)
			removed++
		}
	}
	return removed, nil
}

func (m *MockStore) LatestLongPrices(_ context.Context) ([]*models.PriceComparison, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[string]*models.Transaction)
	for _, tx := range m.transactions {
		if tx.Type != models.TransactionLong || !m.held(tx.Username, tx.Symbol) {
			continue
		}
		k := key(tx.Username, tx.Symbol)
		if prev, ok := latest[k]; !ok || !tx.ExecutedAt.Before(prev.ExecutedAt) {
			latest[k] = tx
		}
	}

	var out []*models.PriceComparison
	for k, tx := range latest {
		u := m.users[tx.Username]
		pc := &models.PriceComparison{
			Username:             tx.Username,
			Symbol:               tx.Symbol,
			Email:                u.Email,
			LastLongPrice:        tx.Price,
			CurrentPrice:         m.tickers[tx.Symbol].CurrentPrice,
			NotificationsEnabled: u.NotificationsEnabled,
			PriceDropThreshold:   u.PriceDropThreshold,
			PriceRiseThreshold:   u.PriceRiseThreshold,
		}
		if existing, ok := m.comparisons[k]; ok {
			pc.LastNotifiedAt = existing.LastNotifiedAt
		}
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i].Username, out[i].Symbol) < key(out[j].Username, out[j].Symbol) })
	return out, nil
}

func (m *MockStore) UpsertPriceComparison(_ context.Context, pc *models.PriceComparison) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pc
	if existing, ok := m.comparisons[key(pc.Username, pc.Symbol)]; ok {
		cp.LastNotifiedAt = existing.LastNotifiedAt
	}
	m.comparisons[key(pc.Username, pc.Symbol)] = &cp
	return nil
}

func (m *MockStore) MarkNotified(_ context.Context, username, symbol string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pc, ok := m.comparisons[key(username, symbol)]
	if !ok {
		return models.ErrNotFound
	}
	t := at
	pc.LastNotifiedAt = &t
	return nil
}

func (m *MockStore) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = len(m.notifications) + 1
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *MockStore) holding(username, symbol string) *models.Holding {
	for _, h := range m.holdings {
		if h.Username == username && h.Symbol == symbol {
			return h
		}
	}
	return nil
}

// MockProvider serves canned market data
type MockProvider struct {
	mu          sync.Mutex
	quotes      map[string]*marketdata.Quote
	history     map[string][]marketdata.Bar
	failSymbols map[string]error
	riskFree    float64
	riskFreeErr error
	QuoteCalls  int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		quotes:      make(map[string]*marketdata.Quote),
		history:     make(map[string][]marketdata.Bar),
		failSymbols: make(map[string]error),
		riskFree:    0.04,
	}
}

func (m *MockProvider) setQuote(symbol, currency, price string) {
	m.quotes[symbol] = &marketdata.Quote{
		Symbol:      symbol,
		CompanyName: symbol + " Corp",
		Currency:    currency,
		Price:       decimal.RequireFromString(price),
	}
}

func (m *MockProvider) setHistory(symbol string, closes ...float64) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		bars[i] = marketdata.Bar{Date: start.AddDate(0, 0, i), Close: c, AdjustedClose: c}
	}
	m.history[symbol] = bars
}

func (m *MockProvider) Quote(_ context.Context, symbol string) (*marketdata.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuoteCalls++
	if err := m.failSymbols[symbol]; err != nil {
		return nil, err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("quote %s: %w", symbol, marketdata.ErrNoMarketData)
	}
	cp := *q
	return &cp, nil
}

func (m *MockProvider) History(_ context.Context, symbol string, _, _ time.Time) ([]marketdata.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bars, ok := m.history[symbol]
	if !ok {
		return nil, fmt.Errorf("history %s: %w", symbol, marketdata.ErrNoMarketData)
	}
	return bars, nil
}

func (m *MockProvider) Financials(_ context.Context, symbol string, kind marketdata.StatementKind, period marketdata.Period) (*marketdata.Statement, error) {
	return &marketdata.Statement{Symbol: symbol, Kind: kind, Period: period}, nil
}

func (m *MockProvider) RiskFreeRate(_ context.Context) (float64, error) {
	return m.riskFree, m.riskFreeErr
}

// MockConverter converts with fixed rates into the target currency
type MockConverter struct {
	rates map[string]decimal.Decimal // from -> multiplier
}

func (m *MockConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount.Round(2), nil
	}
	rate, ok := m.rates[strings.ToUpper(from)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s->%s", fx.ErrConversion, from, to)
	}
	return amount.Mul(rate).Round(2), nil
}

type sentMail struct {
	to, subject, body string
}

// MockSender records messages and can fail for chosen recipients
type MockSender struct {
	mu   sync.Mutex
	sent []sentMail
	fail map[string]bool
}

var errRelayDown = errors.New("relay down")

func (m *MockSender) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[to] {
		return errRelayDown
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// MockEvents records published alerts
type MockEvents struct {
	alerts []*models.Notification
}

func (m *MockEvents) PublishAlertSent(_ context.Context, n *models.Notification) error {
	m.alerts = append(m.alerts, n)
	return nil
}
