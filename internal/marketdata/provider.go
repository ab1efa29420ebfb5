// Package marketdata supplies quotes, daily history, financial statements and
// the risk-free rate for ticker symbols.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoMarketData is returned when the provider has nothing for a symbol.
	ErrNoMarketData = errors.New("no market data")
	// ErrRateLimited is returned when the provider throttles the caller.
	ErrRateLimited = errors.New("market data rate limit exceeded")
)

// Quote is the latest price snapshot for a symbol
type Quote struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	Currency    string          `json:"currency"`
	Price       decimal.Decimal `json:"price"`
}

// Bar is one trading day of OHLC data
type Bar struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// StatementKind selects a financial statement
type StatementKind string

// Statement kinds
const (
	StatementIncome   StatementKind = "income"
	StatementBalance  StatementKind = "balance"
	StatementCashFlow StatementKind = "cashflow"
)

// Period selects yearly or quarterly reports
type Period string

// Report periods
const (
	PeriodYearly    Period = "yearly"
	PeriodQuarterly Period = "quarterly"
)

// Report holds the line items of one fiscal period
type Report struct {
	FiscalDateEnding string            `json:"fiscal_date_ending"`
	ReportedCurrency string            `json:"reported_currency"`
	Items            map[string]string `json:"items"`
}

// Statement is tabular financial data, newest report first. Reports is
// empty when the provider has nothing for the symbol.
type Statement struct {
	Symbol  string        `json:"symbol"`
	Kind    StatementKind `json:"kind"`
	Period  Period        `json:"period"`
	Reports []Report      `json:"reports"`
}

// Provider is the quote provider capability used by the pipeline and the API
type Provider interface {
	Quote(ctx context.Context, symbol string) (*Quote, error)
	History(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
	Financials(ctx context.Context, symbol string, kind StatementKind, period Period) (*Statement, error)
	RiskFreeRate(ctx context.Context) (float64, error)
}

// ParseStatementKind validates a statement kind name.
func ParseStatementKind(s string) (StatementKind, error) {
	switch k := StatementKind(strings.ToLower(strings.TrimSpace(s))); k {
	case StatementIncome, StatementBalance, StatementCashFlow:
		return k, nil
	case "":
		return StatementIncome, nil
	default:
		return "", fmt.Errorf("unknown statement kind %q", s)
	}
}

// ParsePeriod validates a report period name.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodYearly, PeriodQuarterly:
		return p, nil
	case "":
		return PeriodYearly, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}
