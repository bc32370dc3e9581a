/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package solver isolates the exact-optimization backend behind a small
// interface so the planning engine has no hard dependency on a specific
// solver. The built-in backend is an exact branch-and-bound search; an
// external MILP binding can be dropped in behind the same interface.
package solver

import (
	"context"
	"errors"

	"github.com/friendsincode/fillline/internal/models"
)

// ErrInfeasible indicates no feasible assignment exists (some lot cannot
// fit an empty window, or the block budget is too small).
var ErrInfeasible = errors.New("solver: problem is infeasible")

// ErrTimeout indicates the time limit expired before any feasible
// incumbent was found. A timeout with an incumbent is not an error: the
// incumbent is returned with Solution.TimedOut set.
var ErrTimeout = errors.New("solver: time limit exceeded without incumbent")

// Problem is the block-assignment model: place every lot into at most
// MaxBlocks blocks and order lots within each block, minimizing
// CleanHours per used block plus the changeover hours on consecutive
// in-block pairs, subject to per-block capacity
// sum(fill) + sum(changeovers) <= WindowHours.
type Problem struct {
	Lots         []models.Lot
	WindowHours  float64
	CleanHours   float64
	ChgSameHours float64
	ChgDiffHours float64
	MaxBlocks    int
}

// Solution is an exact or incumbent assignment.
type Solution struct {
	Blocks   [][]int // lot indexes per block, in fill order
	Cost     float64 // CleanHours*len(Blocks) + total changeover hours
	Optimal  bool    // search space exhausted
	TimedOut bool    // deadline hit; Blocks holds the best incumbent
	Nodes    int64   // search nodes explored
}

// Order flattens the block sequences into a single lot order.
func (s Solution) Order(lots []models.Lot) []models.Lot {
	out := make([]models.Lot, 0, len(lots))
	for _, block := range s.Blocks {
		for _, idx := range block {
			out = append(out, lots[idx])
		}
	}
	return out
}

// Optimizer solves a block-assignment problem. Implementations must honor
// context cancellation and return the best incumbent found so far when the
// deadline expires.
type Optimizer interface {
	Solve(ctx context.Context, p Problem) (Solution, error)
}
