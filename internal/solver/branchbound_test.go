/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package solver

import (
	"context"
	"errors"
	"testing"

	"github.com/friendsincode/fillline/internal/models"
)

func testProblem(lots []models.Lot) Problem {
	return Problem{
		Lots:         lots,
		WindowHours:  120,
		CleanHours:   24,
		ChgSameHours: 4,
		ChgDiffHours: 8,
		MaxBlocks:    len(lots),
	}
}

func TestSolveEmpty(t *testing.T) {
	sol, err := NewBranchBound().Solve(context.Background(), testProblem(nil))
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !sol.Optimal || len(sol.Blocks) != 0 {
		t.Fatalf("Solve() = %+v, want optimal empty solution", sol)
	}
}

func TestSolveSingleLot(t *testing.T) {
	lots := []models.Lot{{ID: "L1", Type: "A", Vials: 1000, FillHours: 10}}
	sol, err := NewBranchBound().Solve(context.Background(), testProblem(lots))
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if len(sol.Blocks) != 1 || len(sol.Blocks[0]) != 1 {
		t.Fatalf("Blocks = %v, want one block with one lot", sol.Blocks)
	}
	if sol.Cost != 24 {
		t.Errorf("Cost = %v, want 24 (one clean, no changeovers)", sol.Cost)
	}
}

func TestSolveGroupsSameType(t *testing.T) {
	// Four short lots, two types: optimal plan is one block with the
	// types grouped, i.e. one same-type changeover per group plus one
	// cross-type switch.
	lots := []models.Lot{
		{ID: "A1", Type: "A", FillHours: 10},
		{ID: "B1", Type: "B", FillHours: 10},
		{ID: "A2", Type: "A", FillHours: 10},
		{ID: "B2", Type: "B", FillHours: 10},
	}
	sol, err := NewBranchBound().Solve(context.Background(), testProblem(lots))
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !sol.Optimal {
		t.Fatal("expected optimal solution")
	}
	if len(sol.Blocks) != 1 {
		t.Fatalf("Blocks = %v, want single block", sol.Blocks)
	}
	// 24 clean + 4 + 8 + 4 changeovers
	if sol.Cost != 40 {
		t.Errorf("Cost = %v, want 40", sol.Cost)
	}
}

func TestSolveForcesSecondBlock(t *testing.T) {
	lots := []models.Lot{
		{ID: "L1", Type: "A", FillHours: 70},
		{ID: "L2", Type: "A", FillHours: 70},
	}
	sol, err := NewBranchBound().Solve(context.Background(), testProblem(lots))
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if len(sol.Blocks) != 2 {
		t.Fatalf("Blocks = %v, want two blocks (70+4+70 > 120)", sol.Blocks)
	}
	if sol.Cost != 48 {
		t.Errorf("Cost = %v, want 48 (two cleans)", sol.Cost)
	}
}

func TestSolveInfeasibleLot(t *testing.T) {
	lots := []models.Lot{{ID: "L1", Type: "A", FillHours: 500}}
	_, err := NewBranchBound().Solve(context.Background(), testProblem(lots))
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("Solve() error = %v, want ErrInfeasible", err)
	}
}

func TestSolveEveryLotAssignedOnce(t *testing.T) {
	lots := []models.Lot{
		{ID: "L1", Type: "A", FillHours: 30},
		{ID: "L2", Type: "B", FillHours: 45},
		{ID: "L3", Type: "A", FillHours: 25},
		{ID: "L4", Type: "C", FillHours: 60},
		{ID: "L5", Type: "B", FillHours: 15},
	}
	sol, err := NewBranchBound().Solve(context.Background(), testProblem(lots))
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	seen := map[int]bool{}
	for _, block := range sol.Blocks {
		for _, idx := range block {
			if seen[idx] {
				t.Fatalf("lot index %d assigned twice", idx)
			}
			seen[idx] = true
		}
	}
	if len(seen) != len(lots) {
		t.Fatalf("assigned %d lots, want %d", len(seen), len(lots))
	}

	order := sol.Order(lots)
	if len(order) != len(lots) {
		t.Fatalf("Order() returned %d lots, want %d", len(order), len(lots))
	}
}

func TestSolveRespectsBlockCapacity(t *testing.T) {
	lots := []models.Lot{
		{ID: "L1", Type: "A", FillHours: 50},
		{ID: "L2", Type: "B", FillHours: 50},
		{ID: "L3", Type: "A", FillHours: 50},
	}
	p := testProblem(lots)
	sol, err := NewBranchBound().Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	for _, block := range sol.Blocks {
		used := 0.0
		prev := ""
		for _, idx := range block {
			lot := lots[idx]
			if prev != "" {
				if prev == lot.Type {
					used += p.ChgSameHours
				} else {
					used += p.ChgDiffHours
				}
			}
			used += lot.FillHours
			prev = lot.Type
		}
		if used > p.WindowHours+1e-9 {
			t.Errorf("block %v uses %.2f h > window %.2f h", block, used, p.WindowHours)
		}
	}
}

func TestSolveCancelledWithoutDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The greedy seed still provides an incumbent, so a cancelled solve
	// reports TimedOut rather than failing outright.
	lots := make([]models.Lot, 12)
	for i := range lots {
		lots[i] = models.Lot{ID: string(rune('A' + i)), Type: "T", FillHours: 9}
	}
	sol, err := NewBranchBound().Solve(ctx, testProblem(lots))
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !sol.TimedOut && !sol.Optimal {
		t.Fatalf("Solve() = %+v, want incumbent or optimal", sol)
	}
}
