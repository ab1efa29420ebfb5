// Package app wires the shared components used by the server and worker binaries.
package app

import (
	"context"
	"errors"

	"github.com/cindychow0101/Portfolio-tracker/internal/config"
	"github.com/cindychow0101/Portfolio-tracker/internal/database"
	"github.com/cindychow0101/Portfolio-tracker/internal/fx"
	"github.com/cindychow0101/Portfolio-tracker/internal/kafka"
	"github.com/cindychow0101/Portfolio-tracker/internal/marketdata"
	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/cindychow0101/Portfolio-tracker/internal/notify"
	"github.com/cindychow0101/Portfolio-tracker/internal/pipeline"
	"github.com/rs/zerolog"
)

// Publisher emits both event kinds and can be closed
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, t *models.Transaction) error
	PublishAlertSent(ctx context.Context, n *models.Notification) error
	Close() error
}

// App holds the connected components
type App struct {
	DB        *database.DB
	Provider  *marketdata.AlphaVantageClient
	Converter *fx.Client
	Events    Publisher
	Pipeline  *pipeline.Pipeline

	closers []func() error
}

// New connects to the database, applies migrations and builds the pipeline.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	a := &App{DB: db}
	a.closers = append(a.closers, db.Close)

	if err := db.Migrate(); err != nil {
		a.Close()
		return nil, err
	}
	log.Info().Msg("Database migrations applied")

	var cache fx.RateCache
	if cfg.Redis.Addr != "" {
		rc, err := fx.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		cache = rc
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis exchange-rate cache")
	} else {
		cache = fx.NewMemoryCache()
		log.Info().Msg("REDIS_ADDR not set, using in-memory exchange-rate cache")
	}

	a.Converter = fx.NewClient(fx.Config{
		BaseURL:  cfg.FX.BaseURL,
		Timeout:  cfg.FX.Timeout,
		CacheTTL: cfg.FX.CacheTTL,
	}, cache, log)

	a.Provider = marketdata.NewAlphaVantageClient(marketdata.Config{
		BaseURL:          cfg.MarketData.BaseURL,
		APIKey:           cfg.MarketData.APIKey,
		TreasuryMaturity: cfg.MarketData.TreasuryMaturity,
		Timeout:          cfg.MarketData.Timeout,
		MaxRetries:       cfg.MarketData.MaxRetries,
	}, log)

	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.Events = p
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka producer enabled")
	} else {
		a.Events = kafka.NopPublisher{}
		log.Info().Msg("KAFKA_BROKERS not set, events disabled")
	}
	a.closers = append(a.closers, a.Events.Close)

	a.Pipeline = pipeline.New(pipeline.Config{
		ReportingCurrency: cfg.FX.ReportingCurrency,
		BenchmarkSymbol:   cfg.MarketData.BenchmarkSymbol,
		AlertCooldown:     cfg.Scheduler.AlertCooldown,
	}, pipeline.Deps{
		Store:     db,
		Provider:  a.Provider,
		Converter: a.Converter,
		Sender:    NewSender(cfg.SMTP, log),
		Events:    a.Events,
	}, log)

	return a, nil
}

// NewSender returns an SMTP sender, or a logging sender when no SMTP
// account is configured.
func NewSender(cfg config.SMTPConfig, log zerolog.Logger) notify.Sender {
	if cfg.Username == "" {
		log.Warn().Msg("SMTP_USERNAME not set, alert emails will only be logged")
		return notify.NewLogSender(log)
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		AppPassword: cfg.AppPassword,
		From:        cfg.SenderAddress(),
	}, log)
}

// Close releases every connection in reverse order of opening
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
