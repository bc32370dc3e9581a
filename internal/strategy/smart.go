/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package strategy

import (
	"context"
	"math"
	"sort"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/rules"
)

// infeasibleScore marks candidates that do not fit the remaining window.
const infeasibleScore = -1e9

// lookaheadWeight is the contribution of the one-step lookahead to the
// combined candidate score.
const lookaheadWeight = 0.25

// SmartPack is scored packing with a short look-ahead: candidates are
// ranked by packed hours minus a dynamic switch penalty and an
// unusable-slack penalty, the top BeamWidth survivors get a one-step
// lookahead, and ties keep first-encountered order for determinism.
type SmartPack struct{}

func (s *SmartPack) Name() string { return "smart-pack" }

// Preorder is identity: smart-pack picks by score as it goes.
func (s *SmartPack) Preorder(_ context.Context, lots []models.Lot, _ *config.Scheduling) ([]models.Lot, error) {
	return append([]models.Lot(nil), lots...), nil
}

func (s *SmartPack) PickNext(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling) (int, bool) {
	return pickScored(remaining, prevType, windowUsed, cfg, s.score)
}

func (s *SmartPack) score(prevType string, lot models.Lot, windowUsed float64, remaining []models.Lot, cfg *config.Scheduling) float64 {
	chg := rules.ChangeoverHours(prevType, lot.Type, cfg)
	need := chg + lot.FillHours
	if !fitsPadded(windowUsed, need, cfg) {
		return infeasibleScore
	}

	switchPen := 0.0
	if prevType != "" {
		base := cfg.ScoreAlpha
		if prevType == lot.Type {
			base = cfg.ScoreBeta
		}
		switchPen = base * dynamicMult(windowUsed, cfg)
	}

	slackWaste := unusableSlack(windowUsed+need, lot.Type, remaining, cfg)
	streak := 0.0
	if prevType == lot.Type {
		streak = cfg.StreakBonus
	}

	return need -
		switchPen -
		cfg.SlackWasteWeight*slackWaste +
		streak -
		0.01*lot.FillHours // mild preference for shorter fills
}

// fitsPadded applies the utilization pad on top of the window capacity.
func fitsPadded(windowUsed, need float64, cfg *config.Scheduling) bool {
	return windowUsed+need <= (cfg.WindowHours-cfg.UtilPadHours)+eps
}

// dynamicMult interpolates the switch-penalty multiplier between its
// configured bounds as the window fills up.
func dynamicMult(windowUsed float64, cfg *config.Scheduling) float64 {
	u := windowUsed / math.Max(cfg.WindowHours, eps)
	u = math.Max(0, math.Min(1, u))
	return cfg.DynamicSwitchMultMin + (cfg.DynamicSwitchMultMax-cfg.DynamicSwitchMultMin)*u
}

// minNeedAfter returns the cheapest hours any remaining lot would consume
// after prevType, or 0 when the queue is empty.
func minNeedAfter(prevType string, remaining []models.Lot, cfg *config.Scheduling) float64 {
	best := math.Inf(1)
	for _, c := range remaining {
		need := rules.ChangeoverHours(prevType, c.Type, cfg) + c.FillHours
		if need < best {
			best = need
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}

// unusableSlack is the capacity left after accepting a candidate when no
// remaining lot could fit in it; zero otherwise.
func unusableSlack(windowUsedAfter float64, newPrev string, remaining []models.Lot, cfg *config.Scheduling) float64 {
	capLeft := math.Max(0, cfg.WindowHours-windowUsedAfter)
	if capLeft <= eps {
		return 0
	}
	if minNeedAfter(newPrev, remaining, cfg) > capLeft+eps {
		return capLeft
	}
	return 0
}

type scoreFn func(prevType string, lot models.Lot, windowUsed float64, remaining []models.Lot, cfg *config.Scheduling) float64

// pickScored ranks every feasible candidate, keeps the top BeamWidth by
// base score, adds a one-step lookahead (best score of any other remaining
// candidate after tentatively accepting), and returns the best combined
// index. Stable sorting and strict-greater comparisons keep
// first-encountered order on ties.
func pickScored(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling, score scoreFn) (int, bool) {
	type scored struct {
		score float64
		idx   int
	}

	base := make([]scored, 0, len(remaining))
	for i, cand := range remaining {
		if s := score(prevType, cand, windowUsed, remaining, cfg); s > infeasibleScore {
			base = append(base, scored{score: s, idx: i})
		}
	}
	if len(base) == 0 {
		return 0, false
	}

	sort.SliceStable(base, func(i, j int) bool { return base[i].score > base[j].score })

	width := cfg.BeamWidth
	if width < 1 {
		width = 1
	}
	if width > len(base) {
		width = len(base)
	}
	top := base[:width]

	bestIdx := -1
	bestCombo := math.Inf(-1)
	for _, entry := range top {
		cand := remaining[entry.idx]
		need := rules.ChangeoverHours(prevType, cand.Type, cfg) + cand.FillHours
		if !fitsPadded(windowUsed, need, cfg) {
			continue
		}

		newUsed := windowUsed + need
		followBest := 0.0
		for j, nxt := range remaining {
			if j == entry.idx {
				continue
			}
			if s2 := score(cand.Type, nxt, newUsed, remaining, cfg); s2 > followBest {
				followBest = s2
			}
		}

		combo := entry.score + lookaheadWeight*followBest
		if combo > bestCombo {
			bestCombo = combo
			bestIdx = entry.idx
		}
	}

	if bestIdx < 0 {
		return top[0].idx, true
	}
	return bestIdx, true
}
