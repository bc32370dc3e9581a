/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the scheduling engine over HTTP: runs and
// comparisons are asynchronous jobs, validation is synchronous, and run
// progress streams over a WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/events"
	"github.com/friendsincode/fillline/internal/jobs"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/store"
	"github.com/friendsincode/fillline/internal/strategy"
	"github.com/friendsincode/fillline/internal/validate"
)

// API carries handler dependencies.
type API struct {
	store  *store.Store
	runner *jobs.Runner
	bus    *events.Bus
	sched  *config.Scheduling
	logger zerolog.Logger

	authMiddleware func(http.Handler) http.Handler
}

// New constructs the API. authMiddleware may be nil for unauthenticated
// deployments (tests, local runs).
func New(st *store.Store, runner *jobs.Runner, bus *events.Bus, sched *config.Scheduling, authMiddleware func(http.Handler) http.Handler, logger zerolog.Logger) *API {
	return &API{
		store:          st,
		runner:         runner,
		bus:            bus,
		sched:          sched,
		logger:         logger.With().Str("component", "api").Logger(),
		authMiddleware: authMiddleware,
	}
}

// Routes registers all endpoints under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/strategies", a.handleStrategies)

		r.Group(func(pr chi.Router) {
			if a.authMiddleware != nil {
				pr.Use(a.authMiddleware)
			}

			pr.Post("/validate", a.handleValidate)

			pr.Route("/schedules", func(r chi.Router) {
				r.Get("/", a.handleSchedulesList)
				r.Post("/", a.handleSchedulesCreate)
				r.Route("/{runID}", func(r chi.Router) {
					r.Get("/", a.handleSchedulesGet)
					r.Delete("/", a.handleSchedulesDelete)
				})
			})

			pr.Route("/comparisons", func(r chi.Router) {
				r.Get("/", a.handleComparisonsList)
				r.Post("/", a.handleComparisonsCreate)
				r.Get("/{runID}", a.handleComparisonsGet)
			})

			pr.Get("/events", a.handleEvents)
		})
	})
}

// lotInput is the wire form of a lot; fill hours are derived server-side.
type lotInput struct {
	LotID string `json:"lot_id"`
	Type  string `json:"type"`
	Vials int    `json:"vials"`
}

func (a *API) toLots(in []lotInput) []models.Lot {
	lots := make([]models.Lot, len(in))
	for i, l := range in {
		lots[i] = models.Lot{
			ID:        l.LotID,
			Type:      l.Type,
			Vials:     l.Vials,
			FillHours: float64(l.Vials) / a.sched.FillRateVPH,
		}
	}
	return lots
}

type scheduleRequest struct {
	Name      string     `json:"name"`
	Strategy  string     `json:"strategy"`
	StartTime time.Time  `json:"start_time"`
	Lots      []lotInput `json:"lots"`
}

type comparisonRequest struct {
	Name       string     `json:"name"`
	Strategies []string   `json:"strategies"`
	StartTime  time.Time  `json:"start_time"`
	Lots       []lotInput `json:"lots"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"strategies": strategy.Names()})
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lots []lotInput `json:"lots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	writeJSON(w, http.StatusOK, validate.Lots(a.toLots(req.Lots), a.sched))
}

func (a *API) handleSchedulesCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Lots) == 0 {
		writeError(w, http.StatusBadRequest, "lots_required")
		return
	}

	lots := a.toLots(req.Lots)
	if res := validate.Lots(lots, a.sched); !res.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	start := req.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
	}

	run, err := a.runner.EnqueueSchedule(r.Context(), jobs.ScheduleRequest{
		Name:     req.Name,
		Strategy: strategy.Resolve(req.Strategy).Name(),
		Start:    start,
		Lots:     lots,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "queue_full")
			return
		}
		a.logger.Error().Err(err).Msg("enqueue schedule failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

func (a *API) handleSchedulesList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := a.store.ListScheduleRuns(r.Context(), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("list runs failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// runResponse inlines the serialized result blobs as raw JSON.
type runResponse struct {
	*models.ScheduleRun
	Result *resultResponse `json:"result,omitempty"`
}

type resultResponse struct {
	MakespanHours float64         `json:"makespan_hours"`
	Activities    json.RawMessage `json:"activities"`
	KPIs          json.RawMessage `json:"kpis"`
}

func (a *API) handleSchedulesGet(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetScheduleRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.logger.Error().Err(err).Msg("get run failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	resp := runResponse{ScheduleRun: run}
	if run.Result != nil {
		resp.Result = &resultResponse{
			MakespanHours: run.Result.MakespanHours,
			Activities:    json.RawMessage(run.Result.Activities),
			KPIs:          json.RawMessage(run.Result.KPIs),
		}
		resp.ScheduleRun.Result = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSchedulesDelete(w http.ResponseWriter, r *http.Request) {
	err := a.store.DeleteScheduleRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.logger.Error().Err(err).Msg("delete run failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleComparisonsCreate(w http.ResponseWriter, r *http.Request) {
	var req comparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Lots) == 0 {
		writeError(w, http.StatusBadRequest, "lots_required")
		return
	}
	if len(req.Strategies) == 0 {
		req.Strategies = strategy.Names()
	}

	lots := a.toLots(req.Lots)
	if res := validate.Lots(lots, a.sched); !res.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	start := req.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
	}

	run, err := a.runner.EnqueueComparison(r.Context(), jobs.ComparisonRequest{
		Name:       req.Name,
		Strategies: req.Strategies,
		Start:      start,
		Lots:       lots,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "queue_full")
			return
		}
		a.logger.Error().Err(err).Msg("enqueue comparison failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

func (a *API) handleComparisonsList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := a.store.ListComparisonRuns(r.Context(), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("list comparisons failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type comparisonResponse struct {
	*models.ComparisonRun
	Report json.RawMessage `json:"report,omitempty"`
}

func (a *API) handleComparisonsGet(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetComparisonRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.logger.Error().Err(err).Msg("get comparison failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	resp := comparisonResponse{ComparisonRun: run}
	if run.Report != "" {
		resp.Report = json.RawMessage(run.Report)
		resp.ComparisonRun.Report = ""
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
