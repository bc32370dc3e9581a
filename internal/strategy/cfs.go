/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package strategy

import (
	"context"
	"sort"
	"strings"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
)

// CfsPack is cluster-first, sequence-second: cluster lots by type, order
// the clusters (by lot count or by total fill hours, descending), and
// sequence each cluster by SPT or LPT. The picker strongly prefers staying
// inside the current cluster to minimize switches.
type CfsPack struct{}

func (c *CfsPack) Name() string { return "cfs-pack" }

func (c *CfsPack) Preorder(_ context.Context, lots []models.Lot, cfg *config.Scheduling) ([]models.Lot, error) {
	byType := make(map[string][]models.Lot)
	var typeOrder []string
	for _, lot := range lots {
		if _, ok := byType[lot.Type]; !ok {
			typeOrder = append(typeOrder, lot.Type)
		}
		byType[lot.Type] = append(byType[lot.Type], lot)
	}

	clusterOrder := c.clusterOrder(typeOrder, byType, cfg)

	ordered := make([]models.Lot, 0, len(lots))
	for _, t := range clusterOrder {
		ordered = append(ordered, c.sequenceWithin(byType[t], cfg)...)
	}
	return ordered, nil
}

func (c *CfsPack) clusterOrder(types []string, byType map[string][]models.Lot, cfg *config.Scheduling) []string {
	mode := strings.ToLower(cfg.CfsClusterOrder)
	if mode != config.CfsByTotalHours && mode != config.CfsByCount {
		mode = config.CfsByTotalHours
	}

	ordered := append([]string(nil), types...)
	if mode == config.CfsByTotalHours {
		totals := make(map[string]float64, len(byType))
		for t, group := range byType {
			for _, lot := range group {
				totals[t] += lot.FillHours
			}
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			if totals[ordered[i]] != totals[ordered[j]] {
				return totals[ordered[i]] > totals[ordered[j]]
			}
			return ordered[i] < ordered[j]
		})
		return ordered
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if len(byType[ordered[i]]) != len(byType[ordered[j]]) {
			return len(byType[ordered[i]]) > len(byType[ordered[j]])
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}

func (c *CfsPack) sequenceWithin(group []models.Lot, cfg *config.Scheduling) []models.Lot {
	ordered := append([]models.Lot(nil), group...)
	if strings.ToUpper(cfg.CfsWithin) == "LPT" {
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].FillHours != ordered[j].FillHours {
				return ordered[i].FillHours > ordered[j].FillHours
			}
			return ordered[i].ID < ordered[j].ID
		})
		return ordered
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FillHours != ordered[j].FillHours {
			return ordered[i].FillHours < ordered[j].FillHours
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func (c *CfsPack) PickNext(remaining []models.Lot, prevType string, windowUsed float64, cfg *config.Scheduling) (int, bool) {
	return pickFirstFit(remaining, prevType, windowUsed, cfg)
}
