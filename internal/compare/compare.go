/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package compare runs the given-order baseline plus one optimized
// schedule per requested strategy over the same lot set and reports the
// KPI deltas. Runs are independent, so they execute in parallel; each run
// gets its own copy of the lot list.
package compare

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/scheduler"
)

// GivenRunName labels the baseline row in reports.
const GivenRunName = "Given (input order)"

// kpiKeys is the fixed report column order.
var kpiKeys = []string{
	"Makespan (h)",
	"Total Clean (h)",
	"Total Changeover (h)",
	"Total Fill (h)",
	"Lots Scheduled",
	"Clean Blocks",
}

// Entry is one run in a comparison report.
type Entry struct {
	Run      string            `json:"run"`
	Strategy string            `json:"strategy,omitempty"`
	Schedule *models.Schedule  `json:"schedule"`
	Deltas   map[string]string `json:"deltas,omitempty"` // hour KPIs, relative to the baseline
	Err      string            `json:"error,omitempty"`
}

// Report is the consolidated outcome of one comparison.
type Report struct {
	Given      Entry   `json:"given"`
	Strategies []Entry `json:"strategies"`
}

// KPIKeys returns the report column order.
func KPIKeys() []string {
	return append([]string(nil), kpiKeys...)
}

// Run plans the baseline and every requested strategy. A strategy that
// fails (e.g. milp-opt over its lot bound) is reported in its entry
// rather than failing the whole comparison; only a baseline failure or
// context cancellation aborts.
func Run(ctx context.Context, lots []models.Lot, start time.Time, cfg *config.Scheduling, strategies []string) (*Report, error) {
	given, err := scheduler.PlanInOrder(ctx, cloneLots(lots), start, cfg)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	report := &Report{
		Given:      Entry{Run: GivenRunName, Schedule: given},
		Strategies: make([]Entry, len(strategies)),
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range strategies {
		g.Go(func() error {
			sched, err := scheduler.Plan(ctx, cloneLots(lots), start, cfg, name)
			entry := Entry{
				Run:      fmt.Sprintf("Optimized (%s)", name),
				Strategy: name,
			}
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				entry.Err = err.Error()
			} else {
				entry.Schedule = sched
				entry.Deltas = deltas(given.KPIs, sched.KPIs)
			}
			report.Strategies[i] = entry

			zerolog.Ctx(ctx).Debug().
				Str("strategy", name).
				Bool("failed", entry.Err != "").
				Msg("comparison run finished")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return report, nil
}

// deltas computes strategy−baseline differences for the hour-valued KPIs.
func deltas(given, other map[string]string) map[string]string {
	out := make(map[string]string, len(kpiKeys))
	for _, k := range kpiKeys {
		if len(k) < 3 || k[len(k)-3:] != "(h)" {
			continue
		}
		g, gerr := strconv.ParseFloat(given[k], 64)
		o, oerr := strconv.ParseFloat(other[k], 64)
		if gerr != nil || oerr != nil {
			continue
		}
		out[k] = fmt.Sprintf("%+.2f", o-g)
	}
	return out
}

func cloneLots(lots []models.Lot) []models.Lot {
	return append([]models.Lot(nil), lots...)
}
