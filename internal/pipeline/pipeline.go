// Package pipeline re-derives portfolio state from the transaction log and
// current market data, then evaluates price alerts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/fx"
	"github.com/cindychow0101/Portfolio-tracker/internal/marketdata"
	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/cindychow0101/Portfolio-tracker/internal/notify"
	"github.com/rs/zerolog"
)

// Store is the persistence the pipeline reads and rewrites
type Store interface {
	ListTickers(ctx context.Context) ([]*models.Ticker, error)
	UpsertTicker(ctx context.Context, t *models.Ticker) error
	SumQuantities(ctx context.Context) ([]*models.PositionAggregate, error)
	ReplaceAllHoldings(ctx context.Context, holdings []*models.Holding) error
	UpdateHoldingWeights(ctx context.Context, weights []models.HoldingWeight) error
	AppendValueSnapshots(ctx context.Context, snapshots []*models.Snapshot) error
	AppendReturnSnapshots(ctx context.Context, snapshots []*models.Snapshot) error
	PruneComparisons(ctx context.Context) (int64, error)
	LatestLongPrices(ctx context.Context) ([]*models.PriceComparison, error)
	UpsertPriceComparison(ctx context.Context, pc *models.PriceComparison) error
	MarkNotified(ctx context.Context, username, symbol string, at time.Time) error
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// EventPublisher announces delivered alerts
type EventPublisher interface {
	PublishAlertSent(ctx context.Context, n *models.Notification) error
}

// Config holds pipeline settings
type Config struct {
	ReportingCurrency string
	BenchmarkSymbol   string
	// AlertCooldown suppresses repeat alerts for a pair; zero disables it.
	AlertCooldown time.Duration
}

// Deps are the collaborators a Pipeline calls
type Deps struct {
	Store     Store
	Provider  marketdata.Provider
	Converter fx.Converter
	Sender    notify.Sender
	Events    EventPublisher // optional
}

// CycleResult summarizes one run. Errors joins the per-entity failures that
// were skipped without aborting the run.
type CycleResult struct {
	TickersRefreshed int
	HoldingsWritten  int
	WeightsWritten   int
	SnapshotsWritten int
	Comparisons      int
	AlertsSent       int
	AlertsSuppressed int
	Errors           error
	Duration         time.Duration
}

// Pipeline runs recomputation cycles. Runs are serialized.
type Pipeline struct {
	store     Store
	provider  marketdata.Provider
	converter fx.Converter
	sender    notify.Sender
	events    EventPublisher
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// New creates a pipeline
func New(cfg Config, deps Deps, log zerolog.Logger) *Pipeline {
	if cfg.ReportingCurrency == "" {
		cfg.ReportingCurrency = "HKD"
	}
	if cfg.BenchmarkSymbol == "" {
		cfg.BenchmarkSymbol = "ACWI"
	}
	return &Pipeline{
		store:     deps.Store,
		provider:  deps.Provider,
		converter: deps.Converter,
		sender:    deps.Sender,
		events:    deps.Events,
		cfg:       cfg,
		log:       log.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
}

// RunCycle refreshes tickers, rebuilds holdings, weights and snapshots, and
// evaluates alerts. It fails only when the risk-free rate is unavailable or
// the store rejects a step.
func (p *Pipeline) RunCycle(ctx context.Context) (*CycleResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	res := &CycleResult{}
	var errs []error

	p.log.Info().Msg("Starting recomputation cycle")

	n, err := p.RefreshTickers(ctx)
	res.TickersRefreshed = n
	if err != nil {
		var se *SkippedError
		if !errors.As(err, &se) {
			return nil, err
		}
		errs = append(errs, err)
	}

	if err := p.rebuild(ctx, res); err != nil {
		return nil, err
	}

	sent, suppressed, compared, err := p.EvaluateAlerts(ctx)
	res.Comparisons, res.AlertsSent, res.AlertsSuppressed = compared, sent, suppressed
	if err != nil {
		var se *SkippedError
		if !errors.As(err, &se) {
			return nil, err
		}
		errs = append(errs, err)
	}

	res.Errors = errors.Join(errs...)
	res.Duration = p.now().Sub(start)

	evt := p.log.Info().
		Int("tickers", res.TickersRefreshed).
		Int("holdings", res.HoldingsWritten).
		Int("snapshots", res.SnapshotsWritten).
		Int("alerts_sent", res.AlertsSent).
		Dur("duration", res.Duration)
	if res.Errors != nil {
		evt = evt.AnErr("skipped", res.Errors)
	}
	evt.Msg("Successfully fetched and updated portfolio data")

	return res, nil
}

// Rebuild re-derives holdings, weights and snapshots without touching market
// data or alerts. It serializes with RunCycle.
func (p *Pipeline) Rebuild(ctx context.Context) (*CycleResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := &CycleResult{}
	if err := p.rebuild(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) rebuild(ctx context.Context, res *CycleResult) error {
	holdings, err := p.RebuildHoldings(ctx)
	if err != nil {
		return err
	}
	res.HoldingsWritten = len(holdings)

	if res.WeightsWritten, err = p.ApplyWeights(ctx, holdings); err != nil {
		return err
	}

	if res.SnapshotsWritten, err = p.AppendSnapshots(ctx, holdings); err != nil {
		return err
	}
	return nil
}

// SkippedError collects failures of individual symbols or emails that were
// skipped while the rest of the batch continued.
type SkippedError struct {
	Step string
	Errs []error
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("%s: %d skipped: %v", e.Step, len(e.Errs), errors.Join(e.Errs...))
}

func (e *SkippedError) Unwrap() []error { return e.Errs }

func skipped(step string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &SkippedError{Step: step, Errs: errs}
}
