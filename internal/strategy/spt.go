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

// SptPack clusters by type frequency, shortest-processing-time within each
// type, then greedily fits lots inside the window.
type SptPack struct{}

func (s *SptPack) Name() string { return "spt-pack" }

func (s *SptPack) Preorder(_ context.Context, lots []models.Lot, _ *config.Scheduling) ([]models.Lot, error) {
	sizes := make(map[string]int, len(lots))
	for _, lot := range lots {
		sizes[lot.Type]++
	}

	pool := append([]models.Lot(nil), lots...)
	sort.SliceStable(pool, func(i, j int) bool {
		if sizes[pool[i].Type] != sizes[pool[j].Type] {
			return sizes[pool[i].Type] > sizes[pool[j].Type]
		}
		return pool[i].FillHours < pool[j].FillHours
	})
	return pool, nil
}

func (s *SptPack) PickNext(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling) (int, bool) {
	return pickFirstFit(remaining, prevType, windowUsed, cfg)
}
