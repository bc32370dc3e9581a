/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package strategy implements the pluggable lot-ordering strategies the
// block scheduler drives. A strategy contributes two operations: a one-time
// preorder of the full lot pool and an iterative pick of the next lot to
// place given the current window state.
package strategy

import (
	"context"
	"errors"
	"strings"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/rules"
	"github.com/friendsincode/fillline/internal/solver"
)

// eps is the feasibility tolerance used for all window comparisons.
const eps = 1e-9

// ErrTooManyLots indicates the lot count exceeds the exact optimizer's
// tractability bound.
var ErrTooManyLots = errors.New("strategy: lot count exceeds milp_max_lots")

// Strategy is the common two-operation contract. Preorder transforms the
// full lot set once (possibly identity); PickNext chooses the index of the
// next remaining lot to place, returning ok=false when nothing in the queue
// fits the remaining window capacity.
//
// Strategies never mutate the caller's slice: the scheduler owns the
// working queue and removes picked lots by index.
type Strategy interface {
	Name() string
	Preorder(ctx context.Context, lots []models.Lot, cfg *config.Scheduling) ([]models.Lot, error)
	PickNext(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling) (int, bool)
}

// Resolve maps a strategy name to an implementation. Matching is
// case-insensitive and hyphen/underscore-insensitive; unknown names fall
// back to smart-pack.
func Resolve(name string) Strategy {
	sn := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "-", "_")))
	switch sn {
	case "spt_pack", "sptpack", "spt":
		return &SptPack{}
	case "lpt_pack", "lptpack", "lpt":
		return &LptPack{}
	case "cfs_pack", "cfspack", "cfs":
		return &CfsPack{}
	case "hybrid_pack", "hybridpack", "hybrid":
		return &HybridPack{}
	case "milp_opt", "milpopt", "milp":
		return NewMilpOpt(solver.NewBranchBound())
	default:
		return &SmartPack{}
	}
}

// Names lists the canonical strategy names.
func Names() []string {
	return []string{"smart-pack", "spt-pack", "lpt-pack", "cfs-pack", "hybrid-pack", "milp-opt"}
}

// pickFirstFit is the greedy scan shared by the packing heuristics: first
// same-type candidate that fits the remaining window, otherwise the first
// candidate of any type that fits.
func pickFirstFit(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling) (int, bool) {
	for i, cand := range remaining {
		need := rules.ChangeoverHours(prevType, cand.Type, cfg) + cand.FillHours
		if windowUsed+need <= cfg.WindowHours+eps {
			if prevType == "" || cand.Type == prevType {
				return i, true
			}
		}
	}
	for i, cand := range remaining {
		need := rules.ChangeoverHours(prevType, cand.Type, cfg) + cand.FillHours
		if windowUsed+need <= cfg.WindowHours+eps {
			return i, true
		}
	}
	return 0, false
}
