/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/rules"
	"github.com/friendsincode/fillline/internal/solver"
)

// MilpOpt solves the block-assignment model exactly for small lot counts:
// it asks the optimizer for the cost-minimal grouping of lots into blocks
// and the fill order within each block, then replays that order through
// the scheduler. Preorder carries the whole plan; PickNext only follows it.
type MilpOpt struct {
	opt solver.Optimizer
}

// NewMilpOpt wraps an optimizer backend in the strategy contract.
func NewMilpOpt(opt solver.Optimizer) *MilpOpt {
	return &MilpOpt{opt: opt}
}

func (m *MilpOpt) Name() string { return "milp-opt" }

// Preorder runs the exact solve. Lot counts above the configured bound are
// rejected with ErrTooManyLots rather than attempted.
func (m *MilpOpt) Preorder(ctx context.Context, lots []models.Lot, cfg *config.Scheduling) ([]models.Lot, error) {
	n := len(lots)
	if n == 0 {
		return nil, nil
	}
	if n > cfg.MilpMaxLots {
		return nil, fmt.Errorf("%w: %d lots > %d", ErrTooManyLots, n, cfg.MilpMaxLots)
	}

	maxBlocks := cfg.MilpMaxBlocks
	if maxBlocks > n {
		maxBlocks = n
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.MilpTimeLimitSec)*time.Second)
	defer cancel()

	sol, err := m.opt.Solve(ctx, solver.Problem{
		Lots:         lots,
		WindowHours:  cfg.WindowHours,
		CleanHours:   cfg.CleanHours,
		ChgSameHours: cfg.ChgSameHours,
		ChgDiffHours: cfg.ChgDiffHours,
		MaxBlocks:    maxBlocks,
	})
	if err != nil {
		return nil, fmt.Errorf("exact optimize: %w", err)
	}
	return sol.Order(lots), nil
}

// PickNext follows the solved order: take the head of the queue if it fits
// the current window, otherwise signal a new block.
func (m *MilpOpt) PickNext(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling) (int, bool) {
	if len(remaining) == 0 {
		return 0, false
	}
	need := rules.ChangeoverHours(prevType, remaining[0].Type, cfg) + remaining[0].FillHours
	if windowUsed+need <= cfg.WindowHours+eps {
		return 0, true
	}
	return 0, false
}
