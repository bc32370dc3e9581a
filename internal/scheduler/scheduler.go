/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler drives a chosen strategy through the block state
// machine: it emits CLEAN/CHANGEOVER/FILL activities on a wall-clock
// timeline, enforces the per-block window capacity, and derives the run
// KPIs. Planning is pure and synchronous; one call is deterministic for a
// given (lots, config, strategy) triple.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/rules"
	"github.com/friendsincode/fillline/internal/strategy"
	"github.com/friendsincode/fillline/internal/validate"
)

// eps tolerates float drift in window-capacity comparisons.
const eps = 1e-9

// ErrNoProgress indicates the strategy could not place any lot into a
// fresh, empty window. Distinct from a normal block close: it means some
// remaining lot can never be scheduled.
var ErrNoProgress = errors.New("scheduler: no remaining lot fits an empty window")

// ErrInvariant indicates the produced timeline failed post-hoc invariant
// checks. This is a strategy-contract bug, not bad user input.
var ErrInvariant = errors.New("scheduler: schedule violates window invariants")

// state is the mutable planning cursor threaded through one run.
type state struct {
	cfg        *config.Scheduling
	activities []models.Activity
	now        time.Time
	blockStart time.Time
	windowUsed float64
	prevType   string
	blockLots  []models.Lot
}

// Plan validates the input, resolves the strategy by name, and runs the
// block state machine. The caller's lot slice is treated as read-only.
func Plan(ctx context.Context, lots []models.Lot, start time.Time, cfg *config.Scheduling, strategyName string) (*models.Schedule, error) {
	if res := validate.Lots(lots, cfg); !res.OK() {
		return nil, &validate.InputError{Result: res}
	}

	strat := strategy.Resolve(strategyName)
	log := zerolog.Ctx(ctx).With().
		Str("strategy", strat.Name()).
		Int("lots", len(lots)).
		Logger()

	remaining, err := strat.Preorder(ctx, lots, cfg)
	if err != nil {
		return nil, fmt.Errorf("preorder: %w", err)
	}

	st := newState(start, cfg)
	emptyPicks := 0

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx, ok := strat.PickNext(remaining, st.prevType, st.windowUsed, cfg)
		if !ok {
			emptyPicks++
			if emptyPicks >= 2 {
				ids := make([]string, len(remaining))
				for i, l := range remaining {
					ids[i] = l.ID
				}
				return nil, fmt.Errorf("%w: %d lot(s) left: %s", ErrNoProgress,
					len(remaining), strings.Join(ids, ", "))
			}
			st.closeBlock()
			continue
		}
		emptyPicks = 0

		lot := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		need := rules.ChangeoverHours(st.prevType, lot.Type, cfg) + lot.FillHours
		if st.windowUsed+need > cfg.WindowHours+eps {
			// Strategy contract violation; close defensively and retry.
			st.closeBlock()
			remaining = append([]models.Lot{lot}, remaining...)
			continue
		}

		st.accept(lot, need)
	}

	st.flush()

	sched := st.finish()
	if res := validate.Schedule(sched.Activities, cfg); !res.OK() {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, res.Errors)
	}

	log.Debug().
		Float64("makespan_h", sched.MakespanHours).
		Int("activities", len(sched.Activities)).
		Msg("schedule planned")
	return sched, nil
}

// PlanInOrder schedules lots exactly in the given order, opening a new
// block whenever the next lot would overflow the current window. Used as
// the baseline in given-order vs. optimized comparisons.
func PlanInOrder(ctx context.Context, lots []models.Lot, start time.Time, cfg *config.Scheduling) (*models.Schedule, error) {
	if res := validate.Lots(lots, cfg); !res.OK() {
		return nil, &validate.InputError{Result: res}
	}

	st := newState(start, cfg)

	for _, lot := range lots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		need := rules.ChangeoverHours(st.prevType, lot.Type, cfg) + lot.FillHours
		if st.windowUsed+need > cfg.WindowHours+eps {
			st.closeBlock()
			need = lot.FillHours
		}
		st.accept(lot, need)
	}

	st.flush()

	sched := st.finish()
	if res := validate.Schedule(sched.Activities, cfg); !res.OK() {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, res.Errors)
	}
	return sched, nil
}

func newState(start time.Time, cfg *config.Scheduling) *state {
	st := &state{cfg: cfg, now: start}
	st.emit(models.Activity{
		Start: start,
		End:   start.Add(hoursDur(cfg.CleanHours)),
		Kind:  models.KindClean,
		Note:  "Block reset",
	})
	st.blockStart = st.now
	return st
}

func (s *state) emit(a models.Activity) {
	s.activities = append(s.activities, a)
	s.now = a.End
}

func (s *state) accept(lot models.Lot, need float64) {
	s.blockLots = append(s.blockLots, lot)
	s.windowUsed += need
	s.prevType = lot.Type
}

// flush materializes the pending block's lots as CHANGEOVER/FILL
// activities starting at the current block start.
func (s *state) flush() {
	if len(s.blockLots) == 0 {
		s.now = s.blockStart
		return
	}

	s.now = s.blockStart
	prev := ""
	for _, lot := range s.blockLots {
		if chg := rules.ChangeoverHours(prev, lot.Type, s.cfg); chg > 0 {
			s.emit(models.Activity{
				Start:   s.now,
				End:     s.now.Add(hoursDur(chg)),
				Kind:    models.KindChangeover,
				LotType: prev + "->" + lot.Type,
				Note:    fmt.Sprintf("%gh", chg),
			})
		}
		s.emit(models.Activity{
			Start:   s.now,
			End:     s.now.Add(hoursDur(lot.FillHours)),
			Kind:    models.KindFill,
			LotID:   lot.ID,
			LotType: lot.Type,
			Note:    fmt.Sprintf("%d vials", lot.Vials),
		})
		prev = lot.Type
	}
	s.blockLots = s.blockLots[:0]
}

// closeBlock flushes the pending lots and opens a fresh window behind a
// new CLEAN activity.
func (s *state) closeBlock() {
	s.flush()
	s.emit(models.Activity{
		Start: s.now,
		End:   s.now.Add(hoursDur(s.cfg.CleanHours)),
		Kind:  models.KindClean,
		Note:  "Block reset",
	})
	s.blockStart = s.now
	s.windowUsed = 0
	s.prevType = ""
}

func (s *state) finish() *models.Schedule {
	acts := s.activities
	makespan := acts[len(acts)-1].End.Sub(acts[0].Start).Hours()

	totals := map[models.ActivityKind]float64{}
	fills := 0
	cleans := 0
	for _, a := range acts {
		totals[a.Kind] += a.Hours()
		switch a.Kind {
		case models.KindFill:
			fills++
		case models.KindClean:
			cleans++
		}
	}

	kpis := map[string]string{
		"Makespan (h)":         fmt.Sprintf("%.2f", makespan),
		"Total Clean (h)":      fmt.Sprintf("%.2f", totals[models.KindClean]),
		"Total Changeover (h)": fmt.Sprintf("%.2f", totals[models.KindChangeover]),
		"Total Fill (h)":       fmt.Sprintf("%.2f", totals[models.KindFill]),
		"Lots Scheduled":       fmt.Sprintf("%d", fills),
		"Clean Blocks":         fmt.Sprintf("%d", cleans),
	}

	return &models.Schedule{
		Activities:    acts,
		MakespanHours: makespan,
		KPIs:          kpis,
	}
}

func hoursDur(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
