/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package validate holds the pure pre-flight and post-flight checks
// around a planning run: lot-level input validation before scheduling and
// invariant checks over the produced timeline afterwards.
package validate

import (
	"fmt"
	"strings"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
)

// eps tolerates float drift when comparing accumulated durations against
// the window capacity.
const eps = 1e-6

// Result carries validation findings. Errors block scheduling; warnings
// are advisory only.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether the result carries no errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// InputError wraps a failed input validation so callers can surface the
// individual findings.
type InputError struct {
	Result Result
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input validation failed with %d error(s): %s",
		len(e.Result.Errors), strings.Join(e.Result.Errors, "; "))
}

// Lots checks config sanity and every lot before scheduling. Duplicate
// ids are warnings; everything else listed is an error.
func Lots(lots []models.Lot, cfg *config.Scheduling) Result {
	var res Result

	if cfg.FillRateVPH <= 0 {
		res.errorf("config: fill_rate_vph must be > 0")
	}
	if cfg.WindowHours <= 0 {
		res.errorf("config: window_hours must be > 0")
	}
	if cfg.CleanHours <= 0 {
		res.errorf("config: clean_hours must be > 0")
	}

	maxVials := int(max(0, cfg.WindowHours) * max(0, cfg.FillRateVPH))

	seen := make(map[string]bool, len(lots))
	for _, lot := range lots {
		id := lot.ID
		if strings.TrimSpace(id) == "" {
			res.errorf("a lot has an empty lot id")
			id = "(unknown)"
		}
		if strings.TrimSpace(lot.Type) == "" {
			res.errorf("lot %s has an empty type", id)
		}
		if lot.Vials <= 0 {
			res.errorf("lot %s: vials must be a positive integer (got %d)", id, lot.Vials)
		}

		if seen[lot.ID] {
			res.warnf("duplicate lot id: %s", lot.ID)
		}
		seen[lot.ID] = true

		if lot.FillHours > cfg.WindowHours+eps {
			res.errorf("lot %s: %d vials (~%.2f h) exceed the %g h clean window; max vials per lot at current rate: %d",
				id, lot.Vials, lot.FillHours, cfg.WindowHours, maxVials)
		}
	}

	return res
}

// Schedule checks the produced timeline: per-block non-CLEAN durations
// must stay within the window, no single FILL may exceed it, and no lot
// id may appear in more than one FILL activity.
func Schedule(activities []models.Activity, cfg *config.Scheduling) Result {
	var res Result

	windowSum := 0.0
	inBlock := false
	seenFills := make(map[string]bool)

	for _, a := range activities {
		if a.Kind == models.KindClean {
			if inBlock && windowSum > cfg.WindowHours+eps {
				res.errorf("window overrun: %.2f h > %g h", windowSum, cfg.WindowHours)
			}
			windowSum = 0.0
			inBlock = true
			continue
		}

		dur := a.Hours()
		windowSum += dur

		if a.Kind == models.KindFill {
			if dur > cfg.WindowHours+eps {
				res.errorf("lot %s FILL duration %.2f h exceeds %g h limit", a.LotID, dur, cfg.WindowHours)
			}
			if a.LotID != "" {
				if seenFills[a.LotID] {
					res.errorf("lot split detected: %s", a.LotID)
				}
				seenFills[a.LotID] = true
			}
		}
	}

	if inBlock && windowSum > cfg.WindowHours+eps {
		res.errorf("window overrun: %.2f h > %g h", windowSum, cfg.WindowHours)
	}

	return res
}
