package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/analytics"
	"github.com/cindychow0101/Portfolio-tracker/internal/marketdata"
	"github.com/cindychow0101/Portfolio-tracker/internal/models"
)

// RefreshTickers updates price, beta and expected return for every stored
// ticker. A missing risk-free rate aborts the refresh; a failing symbol or an
// unavailable benchmark is skipped and reported as a *SkippedError.
func (p *Pipeline) RefreshTickers(ctx context.Context) (int, error) {
	tickers, err := p.store.ListTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tickers: %w", err)
	}
	if len(tickers) == 0 {
		return 0, nil
	}

	rf, err := p.provider.RiskFreeRate(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch risk-free rate: %w", err)
	}

	end := p.now()
	start := end.AddDate(0, 0, -analytics.LookbackDays)

	market, err := p.provider.History(ctx, p.cfg.BenchmarkSymbol, start, end)
	if err != nil {
		p.log.Error().Err(err).Str("benchmark", p.cfg.BenchmarkSymbol).Msg("Benchmark history unavailable, skipping ticker refresh")
		return 0, skipped("refresh tickers", []error{fmt.Errorf("benchmark %s: %w", p.cfg.BenchmarkSymbol, err)})
	}

	var errs []error
	refreshed := 0
	for _, t := range tickers {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if err := p.refreshTicker(ctx, t, rf, market, start, end); err != nil {
			p.log.Warn().Err(err).Str("symbol", t.Symbol).Msg("Skipping ticker")
			errs = append(errs, fmt.Errorf("ticker %s: %w", t.Symbol, err))
			continue
		}
		refreshed++
	}

	p.log.Info().Int("refreshed", refreshed).Int("skipped", len(errs)).Msg("Tickers refreshed")
	return refreshed, skipped("refresh tickers", errs)
}

func (p *Pipeline) refreshTicker(ctx context.Context, t *models.Ticker, rf float64, market []marketdata.Bar, start, end time.Time) error {
	quote, err := p.provider.Quote(ctx, t.Symbol)
	if err != nil {
		return err
	}
	history, err := p.provider.History(ctx, t.Symbol, start, end)
	if err != nil {
		return err
	}
	est, err := analytics.Calculate(history, market, rf)
	if err != nil {
		return err
	}

	updated := TickerFromQuote(quote, est, p.now())
	if err := p.store.UpsertTicker(ctx, updated); err != nil {
		return fmt.Errorf("failed to upsert ticker: %w", err)
	}
	return nil
}

// EstimateSymbol fetches everything needed to compute beta and expected
// return for one symbol.
func (p *Pipeline) EstimateSymbol(ctx context.Context, symbol string) (analytics.Estimate, error) {
	rf, err := p.provider.RiskFreeRate(ctx)
	if err != nil {
		return analytics.Estimate{}, fmt.Errorf("failed to fetch risk-free rate: %w", err)
	}

	end := p.now()
	start := end.AddDate(0, 0, -analytics.LookbackDays)

	market, err := p.provider.History(ctx, p.cfg.BenchmarkSymbol, start, end)
	if err != nil {
		return analytics.Estimate{}, fmt.Errorf("benchmark %s: %w", p.cfg.BenchmarkSymbol, err)
	}
	history, err := p.provider.History(ctx, symbol, start, end)
	if err != nil {
		return analytics.Estimate{}, err
	}
	return analytics.Calculate(history, market, rf)
}

// TickerFromQuote builds the ticker row stored for a quote and its estimate.
func TickerFromQuote(q *marketdata.Quote, est analytics.Estimate, at time.Time) *models.Ticker {
	return &models.Ticker{
		Symbol:         q.Symbol,
		CompanyName:    q.CompanyName,
		Currency:       q.Currency,
		CurrentPrice:   q.Price,
		Beta:           est.BetaValue(),
		ExpectedReturn: est.ExpectedReturnValue(),
		LastUpdated:    at.UTC(),
	}
}
