/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package strategy

import (
	"context"
	"math"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/rules"
)

// HybridPack is smart-pack scoring plus type-streak control: it rewards
// staying on the current type, prefers shorter fills while staying, and
// when it does switch it leans toward a type whose queue holds short jobs.
type HybridPack struct{}

func (h *HybridPack) Name() string { return "hybrid-pack" }

// Preorder is identity; ordering emerges from the scored picks.
func (h *HybridPack) Preorder(_ context.Context, lots []models.Lot, _ *config.Scheduling) ([]models.Lot, error) {
	return append([]models.Lot(nil), lots...), nil
}

func (h *HybridPack) PickNext(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling) (int, bool) {
	return pickScored(remaining, prevType, windowUsed, cfg, h.score)
}

// typeSptHint rewards switching toward a type with short jobs on the
// queue; the bonus shrinks as that type's shortest fill grows.
func typeSptHint(targetType string, remaining []models.Lot) float64 {
	shortest := math.Inf(1)
	for _, c := range remaining {
		if c.Type == targetType && c.FillHours < shortest {
			shortest = c.FillHours
		}
	}
	if math.IsInf(shortest, 1) {
		return 0
	}
	return math.Max(0, 2.0-0.02*shortest)
}

func (h *HybridPack) score(prevType string, lot models.Lot, windowUsed float64, remaining []models.Lot, cfg *config.Scheduling) float64 {
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
		switchPen = base * dynamicMult(windowUsed, cfg) * cfg.HybridSwitchPenaltyMult
	}

	slackWaste := unusableSlack(windowUsed+need, lot.Type, remaining, cfg)

	// Opening a block counts as staying: there is no streak to break yet.
	sameType := prevType == "" || prevType == lot.Type

	sameBonus := 0.0
	sptBonus := 0.0
	switchHint := 0.0
	streak := 0.0
	if sameType {
		sameBonus = cfg.HybridSameTypeBonus
		sptBonus = cfg.HybridSptWeight / math.Max(lot.FillHours, 1e-6)
		streak = cfg.StreakBonus
	} else {
		switchHint = typeSptHint(lot.Type, remaining)
	}

	return need -
		switchPen -
		cfg.SlackWasteWeight*slackWaste +
		streak +
		sameBonus +
		switchHint +
		sptBonus -
		0.005*lot.FillHours // tiny bias to let more pieces fit
}
