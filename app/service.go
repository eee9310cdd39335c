// Package app wires the configuration into a running scheduling service: the
// travel provider, metrics sinks, task runner, notifier and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ambuplan/api"
	"ambuplan/config"
	corelogger "ambuplan/core/logger"
	coremetrics "ambuplan/core/metrics"
	"ambuplan/core/model"
	"ambuplan/core/scheduler"
	coretasks "ambuplan/core/tasks"
	"ambuplan/core/travel"
	"ambuplan/infra/logger"
	"ambuplan/infra/maps"
	inframetrics "ambuplan/infra/metrics"
	infratasks "ambuplan/infra/tasks"
	"ambuplan/infra/notify"
)

// Service owns the long-lived components of the scheduling engine. Each
// scheduling run gets its own travel cache on top of the shared provider, so
// runs are isolated while the provider's rate limiter stays global.
type Service struct {
	cfg      *config.Config
	log      corelogger.Logger
	sink     *inframetrics.MultiSink
	provider travel.Oracle
	fallback travel.Oracle
	store    coretasks.Store
	runner   *coretasks.Runner
	redis    *infratasks.RedisStore
	notifier *notify.Notifier
	events   <-chan coretasks.Event
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	cfg.SetDefaults()
	logg := logger.New("service", cfg.LogLevel)

	sink, err := inframetrics.NewSinks(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}

	s := &Service{cfg: cfg, log: logg, sink: sink}
	s.provider, s.fallback = buildProvider(cfg.Maps, logg)

	s.store = coretasks.NewMemoryStore()
	if cfg.Tasks.Store == "redis" {
		rs, err := infratasks.NewRedisStore(cfg.Tasks.RedisURL, time.Duration(cfg.Tasks.RetentionHours)*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("redis task store: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("redis task store: %w", err)
		}
		s.redis = rs
		s.store = rs
	}

	s.runner = coretasks.NewRunner(s.store, coretasks.RunnerOptions{
		Workers:   cfg.Tasks.Workers,
		QueueSize: cfg.Tasks.QueueSize,
		Logger:    logger.New("tasks", cfg.LogLevel),
		Recorder:  sink,
	})

	if cfg.Notifier.Enabled {
		n, err := notify.New(cfg.Notifier.MQTT, logger.New("notify", cfg.LogLevel))
		if err != nil {
			s.runner.Close()
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		s.notifier = n
		s.events = s.runner.Events().Subscribe()
		go n.Run(s.events)
	}
	return s, nil
}

func buildProvider(cfg config.MapsConfig, log corelogger.Logger) (provider, fallback travel.Oracle) {
	haversine := travel.Haversine{SpeedKmh: cfg.FallbackSpeedKmh}
	if cfg.Provider == "google" {
		provider = maps.NewGoogle(cfg.APIKey, maps.GoogleOptions{
			BaseURL:           cfg.BaseURL,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
			Logger:            log,
		})
		if !cfg.FallbackDisabled {
			fallback = haversine
		}
		return provider, fallback
	}
	return haversine, nil
}

// BaseRunConfig returns the configured run defaults that API requests may
// override.
func (s *Service) BaseRunConfig() scheduler.Config {
	return s.cfg.Scheduler.ToRunConfig()
}

// newOracle builds the per-run travel cache.
func (s *Service) newOracle() travel.Oracle {
	return travel.NewCache(s.provider, travel.CacheOptions{
		Retries:  s.cfg.Maps.Retries,
		Fallback: s.fallback,
		Logger:   s.log,
		Recorder: s.sink,
	})
}

// RunSchedule executes one scheduling run and records its outcome.
func (s *Service) RunSchedule(ctx context.Context, fleet []model.Vehicle, bookings []model.Booking, alg scheduler.Algorithm, cfg scheduler.Config) (*model.Schedule, error) {
	start := time.Now()
	sched, err := scheduler.New(alg, s.newOracle(), cfg, s.log)
	if err != nil {
		return nil, err
	}
	result, err := sched.Schedule(ctx, fleet, bookings)

	rec := coremetrics.RunResult{
		Algorithm: string(alg),
		Elapsed:   time.Since(start),
		Time:      time.Now().UTC(),
	}
	if err != nil {
		rec.Status = "ERROR"
		rec.Err = err.Error()
	} else {
		rec.Status = string(result.Status)
		rec.Assigned = result.AssignedCount()
		rec.Unassigned = len(result.Unassigned)
		rec.VehiclesUsed = result.VehiclesUsed()
		rec.TotalCost = result.TotalCost
	}
	if rerr := s.sink.RecordRun(rec); rerr != nil {
		s.log.Warnf("recording run metrics: %v", rerr)
	}
	return result, err
}

// SubmitSchedule enqueues a run on the task runner.
func (s *Service) SubmitSchedule(ctx context.Context, fleet []model.Vehicle, bookings []model.Booking, alg scheduler.Algorithm, cfg scheduler.Config) (coretasks.Task, error) {
	return s.runner.Submit(ctx, func(jobCtx context.Context) (*model.Schedule, error) {
		return s.RunSchedule(jobCtx, fleet, bookings, alg, cfg)
	})
}

// Task looks up an asynchronous run by id.
func (s *Service) Task(ctx context.Context, id string) (coretasks.Task, error) {
	return s.store.Get(ctx, id)
}

// Run serves the HTTP API until ctx is cancelled. The Prometheus scrape
// endpoint, when enabled, runs on its own listener.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := inframetrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr, s.log); err != nil {
				s.log.Errorf("prometheus server: %v", err)
			}
		}()
	}
	handler := api.NewHandler(s, s.BaseRunConfig(), logger.New("api", s.cfg.LogLevel))
	return api.Serve(ctx, s.cfg.API.Addr, handler, s.log)
}

// Close releases the runner, notifier and stores. Safe to call once Run has
// returned.
func (s *Service) Close() error {
	s.runner.Close()
	if s.notifier != nil {
		s.notifier.Close()
	}
	var errs []error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
