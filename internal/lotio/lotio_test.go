/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lotio

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/validate"
)

func TestReadLots(t *testing.T) {
	cfg := config.DefaultScheduling()
	in := "Lot ID,Type,Vials\nL1,A,19920\nL2,B,9960\n"

	lots, err := ReadLots(strings.NewReader(in), cfg)
	if err != nil {
		t.Fatalf("ReadLots: %v", err)
	}
	if len(lots) != 2 {
		t.Fatalf("lots = %d, want 2", len(lots))
	}
	if lots[0].ID != "L1" || lots[0].Type != "A" || lots[0].Vials != 19920 {
		t.Fatalf("lot[0] = %+v", lots[0])
	}
	if lots[0].FillHours != 1.0 {
		t.Fatalf("lot[0].FillHours = %f, want 1.0", lots[0].FillHours)
	}
	if lots[1].FillHours != 0.5 {
		t.Fatalf("lot[1].FillHours = %f, want 0.5", lots[1].FillHours)
	}
}

func TestReadLotsHeaderVariants(t *testing.T) {
	cfg := config.DefaultScheduling()
	for _, header := range []string{"Lot ID,Type,Vials", "lot_id,type,vials", "LotID,Lot Type,Vials"} {
		in := header + "\nL1,A,100\n"
		if _, err := ReadLots(strings.NewReader(in), cfg); err != nil {
			t.Errorf("header %q rejected: %v", header, err)
		}
	}
}

func TestReadLotsErrors(t *testing.T) {
	cfg := config.DefaultScheduling()

	cases := []struct {
		name string
		in   string
	}{
		{"missing column", "Lot ID,Vials\nL1,100\n"},
		{"missing vials", "Lot ID,Type,Vials\nL1,A,\n"},
		{"non-numeric vials", "Lot ID,Type,Vials\nL1,A,many\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadLots(strings.NewReader(tc.in), cfg); err == nil {
				t.Fatal("ReadLots accepted malformed input")
			}
		})
	}

	if _, err := ReadLots(strings.NewReader("Lot ID,Type,Vials\n"), cfg); !errors.Is(err, ErrNoLots) {
		t.Fatalf("empty csv error = %v, want ErrNoLots", err)
	}
}

func TestWriteSchedule(t *testing.T) {
	start := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	acts := []models.Activity{
		{Start: start, End: start.Add(24 * time.Hour), Kind: models.KindClean, Note: "Block reset"},
		{Start: start.Add(24 * time.Hour), End: start.Add(34 * time.Hour), Kind: models.KindFill, LotID: "L1", LotType: "A", Note: "199200 vials"},
	}

	var out strings.Builder
	if err := WriteSchedule(&out, acts); err != nil {
		t.Fatalf("WriteSchedule: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if lines[0] != "Start,End,Hours,Activity,Lot ID,Type,Note" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "2026-01-05 08:00") || !strings.Contains(lines[1], "CLEAN") {
		t.Fatalf("clean row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "L1") || !strings.Contains(lines[2], "10") {
		t.Fatalf("fill row = %q", lines[2])
	}
}

func TestWriteSummary(t *testing.T) {
	kpis := map[string]string{"Makespan (h)": "78.00", "Clean Blocks": "1"}
	res := validate.Result{Warnings: []string{"duplicate lot id: L1"}}

	var out strings.Builder
	if err := WriteSummary(&out, kpis, res); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	text := out.String()
	for _, want := range []string{"=== Schedule Summary ===", "Makespan (h): 78.00", "=== Warnings ===", "duplicate lot id"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "=== Errors ===") {
		t.Fatal("summary has an errors section without errors")
	}
}

func TestReadSequence(t *testing.T) {
	seq, err := ReadSequence(strings.NewReader("Lot ID\nL2\n\nL1\n"))
	if err != nil {
		t.Fatalf("ReadSequence: %v", err)
	}
	if len(seq) != 2 || seq[0] != "L2" || seq[1] != "L1" {
		t.Fatalf("seq = %v", seq)
	}

	if _, err := ReadSequence(strings.NewReader("Other\nx\n")); err == nil {
		t.Fatal("ReadSequence accepted csv without a lot id column")
	}
}

func TestOrderBySequence(t *testing.T) {
	lots := []models.Lot{
		{ID: "L1", Type: "A"},
		{ID: "L2", Type: "B"},
		{ID: "L3", Type: "A"},
	}

	ordered, missing := OrderBySequence(lots, []string{"L3", "LX", "L1"})
	if len(missing) != 1 || missing[0] != "LX" {
		t.Fatalf("missing = %v, want [LX]", missing)
	}

	got := []string{ordered[0].ID, ordered[1].ID, ordered[2].ID}
	want := []string{"L3", "L1", "L2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
