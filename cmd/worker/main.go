package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/cindychow0101/Portfolio-tracker/internal/app"
	"github.com/cindychow0101/Portfolio-tracker/internal/config"
	"github.com/cindychow0101/Portfolio-tracker/internal/kafka"
	"github.com/cindychow0101/Portfolio-tracker/internal/scheduler"
	"github.com/cindychow0101/Portfolio-tracker/pkg/logger"
)

func main() {
	cfg := config.Load()

	interval := flag.Float64("interval", cfg.Scheduler.IntervalMinutes, "minutes between recomputation cycles")
	flag.Parse()
	if *interval > 0 {
		cfg.Scheduler.IntervalMinutes = *interval
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	job := scheduler.NewCycleJob(a.Pipeline, log)
	sched := scheduler.New(ctx, log)
	register := func() error { return sched.Every(cfg.Scheduler.Interval(), job) }
	if cfg.Scheduler.Cron != "" {
		register = func() error { return sched.AddJob(cfg.Scheduler.Cron, job) }
	}
	if err := register(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cycle")
	}

	if err := sched.RunNow(job); err != nil {
		log.Error().Err(err).Msg("Initial cycle failed")
	}
	sched.Start()

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, a.Pipeline, log)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Kafka consumer stopped")
			}
		}()
	}

	log.Info().Dur("interval", cfg.Scheduler.Interval()).Str("cron", cfg.Scheduler.Cron).Msg("Worker running")
	<-ctx.Done()

	log.Info().Msg("Shutting down worker...")
	sched.Stop()
	log.Info().Msg("Worker stopped")
}
