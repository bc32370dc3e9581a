/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package strategy

import (
	"context"
	"sort"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
)

// LptPack sorts globally by descending fill hours (largest lots first).
// This tends to improve window utilization at the cost of extra changeovers.
type LptPack struct{}

func (l *LptPack) Name() string { return "lpt-pack" }

func (l *LptPack) Preorder(_ context.Context, lots []models.Lot, _ *config.Scheduling) ([]models.Lot, error) {
	pool := append([]models.Lot(nil), lots...)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].FillHours != pool[j].FillHours {
			return pool[i].FillHours > pool[j].FillHours
		}
		if pool[i].Type != pool[j].Type {
			return pool[i].Type < pool[j].Type
		}
		return pool[i].ID < pool[j].ID
	})
	return pool, nil
}

func (l *LptPack) PickNext(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling) (int, bool) {
	return pickFirstFit(remaining, prevType, windowUsed, cfg)
}
