/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import (
	"testing"

	"github.com/friendsincode/fillline/internal/config"
)

func TestChangeoverHours(t *testing.T) {
	cfg := config.DefaultScheduling()

	tests := []struct {
		name     string
		prev     string
		next     string
		expected float64
	}{
		{"first lot after clean", "", "A", 0.0},
		{"same type", "A", "A", cfg.ChgSameHours},
		{"different type", "A", "B", cfg.ChgDiffHours},
		{"different type reversed", "B", "A", cfg.ChgDiffHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChangeoverHours(tt.prev, tt.next, cfg); got != tt.expected {
				t.Errorf("ChangeoverHours(%q, %q) = %v, want %v", tt.prev, tt.next, got, tt.expected)
			}
		})
	}
}

func TestChangeoverHoursZeroSameType(t *testing.T) {
	cfg := config.DefaultScheduling()
	cfg.ChgSameHours = 0

	if got := ChangeoverHours("A", "A", cfg); got != 0 {
		t.Errorf("ChangeoverHours with zero same-type cost = %v, want 0", got)
	}
	if got := ChangeoverHours("A", "B", cfg); got != cfg.ChgDiffHours {
		t.Errorf("ChangeoverHours cross-type = %v, want %v", got, cfg.ChgDiffHours)
	}
}
