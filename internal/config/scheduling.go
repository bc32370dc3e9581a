/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cluster ordering modes for the cfs-pack strategy.
const (
	CfsByCount      = "by_count"
	CfsByTotalHours = "by_total_hours"
)

// Scheduling holds every tunable of the planning engine. Each field has an
// explicit default baked in by DefaultScheduling; the struct is passed by
// pointer into pure functions and never mutated after construction.
type Scheduling struct {
	// Process constants
	FillRateVPH  float64 `yaml:"fill_rate_vph"`
	CleanHours   float64 `yaml:"clean_hours"`
	WindowHours  float64 `yaml:"window_hours"`
	ChgSameHours float64 `yaml:"chg_same_hours"`
	ChgDiffHours float64 `yaml:"chg_diff_hours"`

	// Scored strategies (smart-pack, hybrid-pack)
	UtilPadHours         float64 `yaml:"util_pad_hours"`
	BeamWidth            int     `yaml:"beam_width"`
	ScoreAlpha           float64 `yaml:"score_alpha"`
	ScoreBeta            float64 `yaml:"score_beta"`
	SlackWasteWeight     float64 `yaml:"slack_waste_weight"`
	StreakBonus          float64 `yaml:"streak_bonus"`
	DynamicSwitchMultMin float64 `yaml:"dynamic_switch_mult_min"`
	DynamicSwitchMultMax float64 `yaml:"dynamic_switch_mult_max"`

	// cfs-pack
	CfsClusterOrder string `yaml:"cfs_cluster_order"` // by_count | by_total_hours
	CfsWithin       string `yaml:"cfs_within"`        // SPT | LPT

	// hybrid-pack
	HybridSameTypeBonus     float64 `yaml:"hybrid_same_type_bonus"`
	HybridSptWeight         float64 `yaml:"hybrid_spt_weight"`
	HybridSwitchPenaltyMult float64 `yaml:"hybrid_switch_penalty_mult"`

	// milp-opt
	MilpMaxLots      int `yaml:"milp_max_lots"`
	MilpMaxBlocks    int `yaml:"milp_max_blocks"`
	MilpTimeLimitSec int `yaml:"milp_time_limit_sec"`
}

// DefaultScheduling returns the engine defaults.
func DefaultScheduling() *Scheduling {
	return &Scheduling{
		FillRateVPH:  332.0 * 60.0, // 332 vials/min
		CleanHours:   24.0,
		WindowHours:  120.0,
		ChgSameHours: 4.0,
		ChgDiffHours: 8.0,

		UtilPadHours:         0.0,
		BeamWidth:            3,
		ScoreAlpha:           8.0,
		ScoreBeta:            4.0,
		SlackWasteWeight:     3.0,
		StreakBonus:          1.0,
		DynamicSwitchMultMin: 1.0,
		DynamicSwitchMultMax: 1.5,

		CfsClusterOrder: CfsByCount,
		CfsWithin:       "SPT",

		HybridSameTypeBonus:     2.0,
		HybridSptWeight:         0.5,
		HybridSwitchPenaltyMult: 1.1,

		MilpMaxLots:      30,
		MilpMaxBlocks:    30,
		MilpTimeLimitSec: 60,
	}
}

// LoadScheduling reads YAML overrides from path on top of the defaults.
// An empty path returns the defaults unchanged.
func LoadScheduling(path string) (*Scheduling, error) {
	cfg := DefaultScheduling()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scheduling config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse scheduling config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduling config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot plan with.
func (c *Scheduling) Validate() error {
	if c.FillRateVPH <= 0 {
		return fmt.Errorf("fill_rate_vph must be > 0, got %g", c.FillRateVPH)
	}
	if c.WindowHours <= 0 {
		return fmt.Errorf("window_hours must be > 0, got %g", c.WindowHours)
	}
	if c.CleanHours <= 0 {
		return fmt.Errorf("clean_hours must be > 0, got %g", c.CleanHours)
	}
	if c.ChgSameHours < 0 || c.ChgDiffHours < 0 {
		return fmt.Errorf("changeover hours must be >= 0")
	}
	if c.BeamWidth < 1 {
		return fmt.Errorf("beam_width must be >= 1, got %d", c.BeamWidth)
	}
	switch strings.ToLower(c.CfsClusterOrder) {
	case CfsByCount, CfsByTotalHours:
	default:
		return fmt.Errorf("cfs_cluster_order must be %q or %q, got %q", CfsByCount, CfsByTotalHours, c.CfsClusterOrder)
	}
	switch strings.ToUpper(c.CfsWithin) {
	case "SPT", "LPT":
	default:
		return fmt.Errorf("cfs_within must be SPT or LPT, got %q", c.CfsWithin)
	}
	if c.MilpMaxLots < 1 || c.MilpMaxBlocks < 1 || c.MilpTimeLimitSec < 1 {
		return fmt.Errorf("milp bounds must be >= 1")
	}
	return nil
}
