/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package solver

import (
	"context"
	"math"
	"sort"
)

const eps = 1e-9

// checkInterval is how many nodes between context checks.
const checkInterval = 1024

// BranchBound is the built-in exact backend: depth-first search over block
// assignments with incumbent tracking and lower-bound pruning. Blocks are
// interchangeable, so each new block is anchored on the lowest-indexed
// unassigned lot to break the symmetry.
type BranchBound struct{}

// NewBranchBound returns the default exact optimizer.
func NewBranchBound() *BranchBound {
	return &BranchBound{}
}

type bbState struct {
	p         Problem
	n         int
	ctx       context.Context
	nodes     int64
	cancelled bool

	// current partial assignment
	assigned  uint64
	blocks    [][]int
	lastType  string
	blockUsed float64
	cost      float64
	remFill   float64

	// best incumbent
	bestBlocks [][]int
	bestCost   float64
}

// Solve runs the search. On deadline expiry it returns the best incumbent
// with TimedOut set, or ErrTimeout if none was found.
func (b *BranchBound) Solve(ctx context.Context, p Problem) (Solution, error) {
	n := len(p.Lots)
	if n == 0 {
		return Solution{Optimal: true}, nil
	}
	if n > 64 {
		return Solution{}, ErrInfeasible
	}
	for _, lot := range p.Lots {
		if lot.FillHours > p.WindowHours+eps {
			return Solution{}, ErrInfeasible
		}
	}
	maxBlocks := p.MaxBlocks
	if maxBlocks <= 0 || maxBlocks > n {
		maxBlocks = n
	}
	p.MaxBlocks = maxBlocks

	st := &bbState{
		p:        p,
		n:        n,
		ctx:      ctx,
		bestCost: math.Inf(1),
	}
	for _, lot := range p.Lots {
		st.remFill += lot.FillHours
	}

	// Seed the incumbent with a greedy cluster-first first-fit order so a
	// timeout still yields a usable schedule.
	if blocks, cost, ok := greedySeed(p); ok {
		st.bestBlocks = blocks
		st.bestCost = cost
	}

	st.dfs()

	if st.cancelled {
		if st.bestBlocks == nil {
			return Solution{Nodes: st.nodes}, ErrTimeout
		}
		return Solution{Blocks: st.bestBlocks, Cost: st.bestCost, TimedOut: true, Nodes: st.nodes}, nil
	}
	if st.bestBlocks == nil {
		return Solution{Nodes: st.nodes}, ErrInfeasible
	}
	return Solution{Blocks: st.bestBlocks, Cost: st.bestCost, Optimal: true, Nodes: st.nodes}, nil
}

func (st *bbState) changeover(prev, next string) float64 {
	if prev == "" {
		return 0
	}
	if prev == next {
		return st.p.ChgSameHours
	}
	return st.p.ChgDiffHours
}

// lowerBound estimates the unavoidable remaining cleaning cost from the
// fill hours still unassigned and the capacity left in the open block.
func (st *bbState) lowerBound() float64 {
	capLeft := st.p.WindowHours - st.blockUsed
	if len(st.blocks) == 0 {
		capLeft = 0
	}
	overflow := st.remFill - capLeft
	if overflow <= eps {
		return 0
	}
	extra := math.Ceil((overflow - eps) / st.p.WindowHours)
	return extra * st.p.CleanHours
}

func (st *bbState) dfs() {
	st.nodes++
	if st.nodes%checkInterval == 0 && st.ctx.Err() != nil {
		st.cancelled = true
	}
	if st.cancelled {
		return
	}

	if st.assigned == (uint64(1)<<st.n)-1 {
		if st.cost < st.bestCost-eps {
			st.bestCost = st.cost
			st.bestBlocks = cloneBlocks(st.blocks)
		}
		return
	}

	if st.cost+st.lowerBound() >= st.bestCost-eps {
		return
	}

	// Extend the open block with any unassigned lot that fits.
	if len(st.blocks) > 0 {
		cur := len(st.blocks) - 1
		for i := 0; i < st.n; i++ {
			if st.assigned&(uint64(1)<<i) != 0 {
				continue
			}
			lot := st.p.Lots[i]
			chg := st.changeover(st.lastType, lot.Type)
			need := chg + lot.FillHours
			if st.blockUsed+need > st.p.WindowHours+eps {
				continue
			}

			prevType, prevUsed := st.lastType, st.blockUsed
			st.assigned |= uint64(1) << i
			st.blocks[cur] = append(st.blocks[cur], i)
			st.lastType = lot.Type
			st.blockUsed += need
			st.cost += chg
			st.remFill -= lot.FillHours

			st.dfs()

			st.remFill += lot.FillHours
			st.cost -= chg
			st.blockUsed = prevUsed
			st.lastType = prevType
			st.blocks[cur] = st.blocks[cur][:len(st.blocks[cur])-1]
			st.assigned &^= uint64(1) << i

			if st.cancelled {
				return
			}
		}
	}

	// Open a new block. Anchoring on the lowest unassigned index is safe
	// because block order does not change the objective.
	if len(st.blocks) < st.p.MaxBlocks {
		anchor := -1
		for i := 0; i < st.n; i++ {
			if st.assigned&(uint64(1)<<i) == 0 {
				anchor = i
				break
			}
		}
		if anchor >= 0 {
			lot := st.p.Lots[anchor]
			prevType, prevUsed := st.lastType, st.blockUsed
			st.assigned |= uint64(1) << anchor
			st.blocks = append(st.blocks, []int{anchor})
			st.lastType = lot.Type
			st.blockUsed = lot.FillHours
			st.cost += st.p.CleanHours
			st.remFill -= lot.FillHours

			st.dfs()

			st.remFill += lot.FillHours
			st.cost -= st.p.CleanHours
			st.blockUsed = prevUsed
			st.lastType = prevType
			st.blocks = st.blocks[:len(st.blocks)-1]
			st.assigned &^= uint64(1) << anchor
		}
	}
}

func cloneBlocks(blocks [][]int) [][]int {
	out := make([][]int, len(blocks))
	for i, b := range blocks {
		out[i] = append([]int(nil), b...)
	}
	return out
}

// greedySeed builds a feasible first-fit assignment: cluster lot indexes by
// type, longest types first, then pack in order. Returns ok=false when the
// packing needs more blocks than the budget allows.
func greedySeed(p Problem) ([][]int, float64, bool) {
	idx := make([]int, len(p.Lots))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		la, lb := p.Lots[idx[a]], p.Lots[idx[b]]
		if la.Type != lb.Type {
			return la.Type < lb.Type
		}
		return la.FillHours < lb.FillHours
	})

	var blocks [][]int
	cost := 0.0
	used := 0.0
	lastType := ""
	for _, i := range idx {
		lot := p.Lots[i]
		chg := 0.0
		if len(blocks) > 0 {
			if lastType == lot.Type {
				chg = p.ChgSameHours
			} else {
				chg = p.ChgDiffHours
			}
		}
		if len(blocks) == 0 || used+chg+lot.FillHours > p.WindowHours+eps {
			blocks = append(blocks, []int{i})
			cost += p.CleanHours
			used = lot.FillHours
		} else {
			cur := len(blocks) - 1
			blocks[cur] = append(blocks[cur], i)
			cost += chg
			used += chg + lot.FillHours
		}
		lastType = lot.Type
	}
	if p.MaxBlocks > 0 && len(blocks) > p.MaxBlocks {
		return nil, 0, false
	}
	return blocks, cost, true
}
