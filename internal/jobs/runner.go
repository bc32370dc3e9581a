/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package jobs runs schedule and comparison requests asynchronously:
// callers enqueue a run, workers plan it off the request path, and
// progress flows out through the event bus for WebSocket streaming.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/fillline/internal/compare"
	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/events"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/scheduler"
	"github.com/friendsincode/fillline/internal/store"
	"github.com/friendsincode/fillline/internal/telemetry"
)

// ErrQueueFull indicates the job queue is saturated; callers should
// surface backpressure rather than block the request.
var ErrQueueFull = errors.New("jobs: queue full")

const defaultQueueSize = 64

// ScheduleRequest is one planning job.
type ScheduleRequest struct {
	Name     string
	Strategy string
	Start    time.Time
	Lots     []models.Lot
}

// ComparisonRequest is one multi-strategy comparison job.
type ComparisonRequest struct {
	Name       string
	Strategies []string
	Start      time.Time
	Lots       []models.Lot
}

type task struct {
	runID      string
	schedule   *ScheduleRequest
	comparison *ComparisonRequest
}

// Runner owns the worker pool.
type Runner struct {
	store   *store.Store
	bus     *events.Bus
	cfg     *config.Scheduling
	logger  zerolog.Logger
	queue   chan task
	workers int

	wg sync.WaitGroup
}

// New constructs a runner. workers <= 0 defaults to 2.
func New(st *store.Store, bus *events.Bus, cfg *config.Scheduling, workers int, logger zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = 2
	}
	return &Runner{
		store:   st,
		bus:     bus,
		cfg:     cfg,
		logger:  logger.With().Str("component", "jobs").Logger(),
		queue:   make(chan task, defaultQueueSize),
		workers: workers,
	}
}

// Start launches the workers. They drain the queue until ctx is
// cancelled; Wait blocks until they exit.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.work(ctx)
		}()
	}
	r.logger.Info().Int("workers", r.workers).Msg("job runner started")
}

// Wait blocks until all workers have stopped.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// EnqueueSchedule persists a pending run and queues it for planning.
func (r *Runner) EnqueueSchedule(ctx context.Context, req ScheduleRequest) (*models.ScheduleRun, error) {
	run := &models.ScheduleRun{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Strategy:  req.Strategy,
		Status:    models.RunStatusPending,
		StartTime: req.Start,
		LotCount:  len(req.Lots),
	}
	if err := r.store.CreateScheduleRun(ctx, run); err != nil {
		return nil, fmt.Errorf("persist run: %w", err)
	}

	select {
	case r.queue <- task{runID: run.ID, schedule: &req}:
		telemetry.JobQueueDepth.Inc()
	default:
		_ = r.store.FailScheduleRun(ctx, run.ID, ErrQueueFull)
		return nil, ErrQueueFull
	}

	r.bus.Publish(events.EventRunQueued, events.Payload{
		"run_id":   run.ID,
		"strategy": run.Strategy,
	})
	return run, nil
}

// EnqueueComparison persists a pending comparison and queues it.
func (r *Runner) EnqueueComparison(ctx context.Context, req ComparisonRequest) (*models.ComparisonRun, error) {
	run := &models.ComparisonRun{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Strategies: joinStrategies(req.Strategies),
		Status:     models.RunStatusPending,
		StartTime:  req.Start,
		LotCount:   len(req.Lots),
	}
	if err := r.store.CreateComparisonRun(ctx, run); err != nil {
		return nil, fmt.Errorf("persist comparison: %w", err)
	}

	select {
	case r.queue <- task{runID: run.ID, comparison: &req}:
		telemetry.JobQueueDepth.Inc()
	default:
		run.Status = models.RunStatusFailed
		run.Error = ErrQueueFull.Error()
		_ = r.store.UpdateComparisonRun(ctx, run)
		return nil, ErrQueueFull
	}

	r.bus.Publish(events.EventComparisonQueued, events.Payload{
		"run_id":     run.ID,
		"strategies": run.Strategies,
	})
	return run, nil
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			telemetry.JobQueueDepth.Dec()
			switch {
			case t.schedule != nil:
				r.runSchedule(ctx, t.runID, *t.schedule)
			case t.comparison != nil:
				r.runComparison(ctx, t.runID, *t.comparison)
			}
		}
	}
}

func (r *Runner) runSchedule(ctx context.Context, runID string, req ScheduleRequest) {
	ctx, span := telemetry.StartSpan(ctx, "jobs", "schedule.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("strategy", req.Strategy),
		attribute.Int("lots", len(req.Lots)),
	)

	log := r.logger.With().Str("run_id", runID).Str("strategy", req.Strategy).Logger()

	if err := r.store.MarkScheduleRunRunning(ctx, runID); err != nil {
		log.Error().Err(err).Msg("marking run running failed")
		return
	}
	r.bus.Publish(events.EventRunStarted, events.Payload{"run_id": runID})

	started := time.Now()
	sched, err := scheduler.Plan(log.WithContext(ctx), req.Lots, req.Start, r.cfg, req.Strategy)
	telemetry.ScheduleRunDuration.WithLabelValues(req.Strategy).Observe(time.Since(started).Seconds())

	if err != nil {
		span.RecordError(err)
		telemetry.ScheduleRunsTotal.WithLabelValues(req.Strategy, models.RunStatusFailed).Inc()
		log.Error().Err(err).Msg("planning failed")
		if dbErr := r.store.FailScheduleRun(ctx, runID, err); dbErr != nil {
			log.Error().Err(dbErr).Msg("persisting run failure failed")
		}
		r.bus.Publish(events.EventRunFailed, events.Payload{
			"run_id": runID,
			"error":  err.Error(),
		})
		return
	}

	result, err := encodeResult(runID, sched)
	if err == nil {
		err = r.store.CompleteScheduleRun(ctx, runID, result)
	}
	if err != nil {
		span.RecordError(err)
		telemetry.ScheduleRunsTotal.WithLabelValues(req.Strategy, models.RunStatusFailed).Inc()
		log.Error().Err(err).Msg("persisting run result failed")
		if dbErr := r.store.FailScheduleRun(ctx, runID, err); dbErr != nil {
			log.Error().Err(dbErr).Msg("persisting run failure failed")
		}
		r.bus.Publish(events.EventRunFailed, events.Payload{
			"run_id": runID,
			"error":  err.Error(),
		})
		return
	}

	telemetry.ScheduleRunsTotal.WithLabelValues(req.Strategy, models.RunStatusCompleted).Inc()
	log.Info().
		Float64("makespan_h", sched.MakespanHours).
		Int("activities", len(sched.Activities)).
		Msg("run completed")
	r.bus.Publish(events.EventRunCompleted, events.Payload{
		"run_id":     runID,
		"makespan_h": sched.MakespanHours,
	})
}

func (r *Runner) runComparison(ctx context.Context, runID string, req ComparisonRequest) {
	ctx, span := telemetry.StartSpan(ctx, "jobs", "comparison.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.Int("lots", len(req.Lots)),
	)

	log := r.logger.With().Str("run_id", runID).Logger()

	run := &models.ComparisonRun{ID: runID, Status: models.RunStatusRunning}
	if err := r.store.UpdateComparisonRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("marking comparison running failed")
		return
	}
	r.bus.Publish(events.EventComparisonStarted, events.Payload{"run_id": runID})

	report, err := compare.Run(log.WithContext(ctx), req.Lots, req.Start, r.cfg, req.Strategies)
	if err != nil {
		span.RecordError(err)
		telemetry.ComparisonRunsTotal.WithLabelValues(models.RunStatusFailed).Inc()
		log.Error().Err(err).Msg("comparison failed")
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		if dbErr := r.store.UpdateComparisonRun(ctx, run); dbErr != nil {
			log.Error().Err(dbErr).Msg("persisting comparison failure failed")
		}
		r.bus.Publish(events.EventComparisonFailed, events.Payload{
			"run_id": runID,
			"error":  err.Error(),
		})
		return
	}

	blob, err := json.Marshal(report)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("encoding comparison report failed")
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		_ = r.store.UpdateComparisonRun(ctx, run)
		return
	}

	run.Status = models.RunStatusCompleted
	run.Report = string(blob)
	if err := r.store.UpdateComparisonRun(ctx, run); err != nil {
		log.Error().Err(err).Msg("persisting comparison result failed")
		return
	}

	telemetry.ComparisonRunsTotal.WithLabelValues(models.RunStatusCompleted).Inc()
	log.Info().Int("strategies", len(req.Strategies)).Msg("comparison completed")
	r.bus.Publish(events.EventComparisonCompleted, events.Payload{"run_id": runID})
}

func encodeResult(runID string, sched *models.Schedule) (*models.ScheduleResult, error) {
	acts, err := json.Marshal(sched.Activities)
	if err != nil {
		return nil, fmt.Errorf("encode activities: %w", err)
	}
	kpis, err := json.Marshal(sched.KPIs)
	if err != nil {
		return nil, fmt.Errorf("encode kpis: %w", err)
	}
	return &models.ScheduleResult{
		ID:            uuid.NewString(),
		RunID:         runID,
		MakespanHours: sched.MakespanHours,
		Activities:    string(acts),
		KPIs:          string(kpis),
	}, nil
}

func joinStrategies(names []string) string {
	return strings.Join(names, ",")
}
