/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rules holds the changeover-cost model for the filling line.
package rules

import "github.com/friendsincode/fillline/internal/config"

// ChangeoverHours returns the setup time incurred switching from prevType
// to nextType. An empty prevType means the first lot after a CLEAN: setup
// is absorbed by the cleaning block, so the cost is zero.
func ChangeoverHours(prevType, nextType string, cfg *config.Scheduling) float64 {
	if prevType == "" {
		return 0.0
	}
	if prevType == nextType {
		return cfg.ChgSameHours
	}
	return cfg.ChgDiffHours
}
