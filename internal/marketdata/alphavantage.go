package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	dateLayout      = "2006-01-02"
	maxBodyBytes    = 32 << 20
	errorBodyLength = 2048
	defaultCurrency = "USD"
)

// Config holds the Alpha Vantage client settings
type Config struct {
	BaseURL          string
	APIKey           string
	TreasuryMaturity string
	Timeout          time.Duration
	MaxRetries       int
	InitialBackoff   time.Duration
}

var _ Provider = (*AlphaVantageClient)(nil)

// AlphaVantageClient implements Provider over the Alpha Vantage query API
type AlphaVantageClient struct {
	baseURL        string
	apiKey         string
	maturity       string
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	log            zerolog.Logger
}

// NewAlphaVantageClient creates a client. Zero values fall back to defaults.
func NewAlphaVantageClient(cfg Config, log zerolog.Logger) *AlphaVantageClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co/query"
	}
	if cfg.TreasuryMaturity == "" {
		cfg.TreasuryMaturity = "10year"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	return &AlphaVantageClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		maturity:       cfg.TreasuryMaturity,
		client:         &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		log:            log.With().Str("client", "alphavantage").Logger(),
	}
}

// Quote returns the latest price, company name and currency for symbol
func (c *AlphaVantageClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := c.call(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}})
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	price, err := parseGlobalQuote(body)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	q := &Quote{Symbol: symbol, Price: price.Round(2)}

	body, err = c.call(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {symbol}})
	if err != nil {
		return nil, fmt.Errorf("overview %s: %w", symbol, err)
	}
	if q.CompanyName, q.Currency, err = parseOverview(body); err != nil {
		return nil, fmt.Errorf("overview %s: %w", symbol, err)
	}

	if q.CompanyName == "" || q.Currency == "" {
		body, err := c.call(ctx, url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {symbol}})
		if err != nil {
			return nil, fmt.Errorf("symbol search %s: %w", symbol, err)
		}
		matches, err := parseSymbolSearch(body)
		if err != nil {
			return nil, fmt.Errorf("symbol search %s: %w", symbol, err)
		}
		if m, ok := bestMatch(matches, symbol); ok {
			if q.CompanyName == "" {
				q.CompanyName = m.Name
			}
			if q.Currency == "" {
				q.Currency = m.Currency
			}
		}
	}

	if q.CompanyName == "" {
		q.CompanyName = symbol
	}
	if q.Currency == "" {
		c.log.Warn().Str("symbol", symbol).Msg("Currency unknown, assuming USD")
		q.Currency = defaultCurrency
	}
	q.Currency = strings.ToUpper(q.Currency)

	return q, nil
}

// History returns daily bars between start and end inclusive, oldest first
func (c *AlphaVantageClient) History(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	body, err := c.call(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY_ADJUSTED"},
		"symbol":     {symbol},
		"outputsize": {"full"},
	})
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	bars, err := parseDailySeries(body)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	return filterBars(bars, start, end), nil
}

// Financials returns the requested statement, newest report first
func (c *AlphaVantageClient) Financials(ctx context.Context, symbol string, kind StatementKind, period Period) (*Statement, error) {
	function, ok := statementFunctions[kind]
	if !ok {
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}
	body, err := c.call(ctx, url.Values{"function": {function}, "symbol": {symbol}})
	if err != nil {
		return nil, fmt.Errorf("financials %s: %w", symbol, err)
	}
	reports, err := parseStatement(body, period)
	if err != nil {
		return nil, fmt.Errorf("financials %s: %w", symbol, err)
	}
	return &Statement{Symbol: symbol, Kind: kind, Period: period, Reports: reports}, nil
}

// RiskFreeRate returns the latest treasury yield as a decimal fraction
func (c *AlphaVantageClient) RiskFreeRate(ctx context.Context) (float64, error) {
	body, err := c.call(ctx, url.Values{
		"function": {"TREASURY_YIELD"},
		"interval": {"daily"},
		"maturity": {c.maturity},
	})
	if err != nil {
		return 0, fmt.Errorf("risk-free rate: %w", err)
	}
	rate, err := parseTreasuryYield(body)
	if err != nil {
		return 0, fmt.Errorf("risk-free rate: %w", err)
	}
	return rate, nil
}

var statementFunctions = map[StatementKind]string{
	StatementIncome:   "INCOME_STATEMENT",
	StatementBalance:  "BALANCE_SHEET",
	StatementCashFlow: "CASH_FLOW",
}

// call performs a query with bounded exponential backoff. Rate limits,
// transport errors and 5xx responses are retried; everything else is final.
func (c *AlphaVantageClient) call(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()
	function := params.Get("function")

	var body []byte
	op := func() error {
		b, err := c.fetch(ctx, reqURL)
		if err != nil {
			return err
		}
		if err := checkAPIError(b); err != nil {
			if errors.Is(err, ErrRateLimited) {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxRetries)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Str("function", function).Dur("retry_in", wait).Msg("Market data request failed, retrying")
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *AlphaVantageClient) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLength))
		statusErr := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return b, nil
}

// checkAPIError detects the error envelopes Alpha Vantage returns with HTTP 200.
func checkAPIError(body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		if strings.Contains(trimmed, "Thank you") {
			return ErrRateLimited
		}
		return fmt.Errorf("unexpected non-JSON response: %.80s", trimmed)
	}

	var envelope struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	switch {
	case envelope.ErrorMessage != "":
		return fmt.Errorf("%w: %s", ErrNoMarketData, envelope.ErrorMessage)
	case envelope.Note != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, envelope.Note)
	case strings.Contains(strings.ToLower(envelope.Information), "premium"):
		return fmt.Errorf("premium endpoint: %s", envelope.Information)
	case envelope.Information != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, envelope.Information)
	}
	return nil
}

func parseGlobalQuote(body []byte) (decimal.Decimal, error) {
	var payload struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse quote: %w", err)
	}
	raw := payload.GlobalQuote["05. price"]
	if raw == "" {
		return decimal.Zero, ErrNoMarketData
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	return price, nil
}

func parseOverview(body []byte) (name, currency string, err error) {
	var payload struct {
		Name     string `json:"Name"`
		Currency string `json:"Currency"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", fmt.Errorf("failed to parse overview: %w", err)
	}
	if payload.Currency == "None" {
		payload.Currency = ""
	}
	return payload.Name, payload.Currency, nil
}

type symbolMatch struct {
	Symbol   string `json:"1. symbol"`
	Name     string `json:"2. name"`
	Type     string `json:"3. type"`
	Currency string `json:"8. currency"`
}

func parseSymbolSearch(body []byte) ([]symbolMatch, error) {
	var payload struct {
		BestMatches []symbolMatch `json:"bestMatches"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse symbol search: %w", err)
	}
	return payload.BestMatches, nil
}

// bestMatch prefers an exact symbol match, then the provider's top result.
func bestMatch(matches []symbolMatch, symbol string) (symbolMatch, bool) {
	for _, m := range matches {
		if strings.EqualFold(m.Symbol, symbol) {
			return m, true
		}
	}
	if len(matches) > 0 {
		return matches[0], true
	}
	return symbolMatch{}, false
}

func parseDailySeries(body []byte) ([]Bar, error) {
	var payload struct {
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse daily series: %w", err)
	}
	if len(payload.Series) == 0 {
		return nil, ErrNoMarketData
	}

	bars := make([]Bar, 0, len(payload.Series))
	for day, fields := range payload.Series {
		date, err := time.Parse(dateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", day, err)
		}
		bar := Bar{
			Date:  date,
			Open:  parseFloat(fields["1. open"]),
			High:  parseFloat(fields["2. high"]),
			Low:   parseFloat(fields["3. low"]),
			Close: parseFloat(fields["4. close"]),
		}
		if adj, ok := fields["5. adjusted close"]; ok {
			bar.AdjustedClose = parseFloat(adj)
			bar.Volume = parseInt(fields["6. volume"])
		} else {
			bar.AdjustedClose = bar.Close
			bar.Volume = parseInt(fields["5. volume"])
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func filterBars(bars []Bar, start, end time.Time) []Bar {
	from := truncateDay(start)
	to := truncateDay(end)
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Date.Before(from) {
			continue
		}
		if !end.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseTreasuryYield(body []byte) (float64, error) {
	var payload struct {
		Data []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to parse treasury yield: %w", err)
	}
	// Newest first; missing days are reported as "."
	for _, point := range payload.Data {
		v, err := strconv.ParseFloat(point.Value, 64)
		if err != nil {
			continue
		}
		return v / 100, nil
	}
	return 0, ErrNoMarketData
}

func parseStatement(body []byte, period Period) ([]Report, error) {
	var payload struct {
		Annual    []map[string]string `json:"annualReports"`
		Quarterly []map[string]string `json:"quarterlyReports"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}

	raw := payload.Annual
	if period == PeriodQuarterly {
		raw = payload.Quarterly
	}

	reports := make([]Report, 0, len(raw))
	for _, r := range raw {
		rep := Report{
			FiscalDateEnding: r["fiscalDateEnding"],
			ReportedCurrency: r["reportedCurrency"],
			Items:            make(map[string]string, len(r)),
		}
		for k, v := range r {
			if k == "fiscalDateEnding" || k == "reportedCurrency" {
				continue
			}
			rep.Items[k] = v
		}
		reports = append(reports, rep)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].FiscalDateEnding > reports[j].FiscalDateEnding
	})
	return reports, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
