/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/validate"
)

var testStart = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func vialLot(id, typ string, vials int, cfg *config.Scheduling) models.Lot {
	return models.Lot{ID: id, Type: typ, Vials: vials, FillHours: float64(vials) / cfg.FillRateVPH}
}

func hourLot(id, typ string, hours float64, cfg *config.Scheduling) models.Lot {
	return models.Lot{ID: id, Type: typ, Vials: int(hours * cfg.FillRateVPH), FillHours: hours}
}

func kinds(acts []models.Activity) []models.ActivityKind {
	out := make([]models.ActivityKind, len(acts))
	for i, a := range acts {
		out[i] = a.Kind
	}
	return out
}

func assertContiguous(t *testing.T, acts []models.Activity) {
	t.Helper()
	for i := 0; i+1 < len(acts); i++ {
		if !acts[i].End.Equal(acts[i+1].Start) {
			t.Fatalf("gap between activity %d (%s ends %v) and %d (starts %v)",
				i, acts[i].Kind, acts[i].End, i+1, acts[i+1].Start)
		}
	}
}

func TestPlanSingleSmallLot(t *testing.T) {
	cfg := config.DefaultScheduling()
	lots := []models.Lot{vialLot("L1", "A", 10, cfg)}

	sched, err := Plan(context.Background(), lots, testStart, cfg, "smart-pack")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	got := kinds(sched.Activities)
	if len(got) != 2 || got[0] != models.KindClean || got[1] != models.KindFill {
		t.Fatalf("activities = %v, want [CLEAN FILL]", got)
	}
	wantMakespan := cfg.CleanHours + 10.0/cfg.FillRateVPH
	if math.Abs(sched.MakespanHours-wantMakespan) > 1e-6 {
		t.Fatalf("makespan = %f, want %f", sched.MakespanHours, wantMakespan)
	}
	if sched.Activities[0].Start != testStart {
		t.Fatalf("first activity starts %v, want %v", sched.Activities[0].Start, testStart)
	}
}

func TestPlanSameTypeChangeover(t *testing.T) {
	cfg := config.DefaultScheduling()
	lots := []models.Lot{
		hourLot("L1", "A", 20, cfg),
		hourLot("L2", "A", 30, cfg),
	}

	sched, err := Plan(context.Background(), lots, testStart, cfg, "smart-pack")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	got := kinds(sched.Activities)
	want := []models.ActivityKind{models.KindClean, models.KindFill, models.KindChangeover, models.KindFill}
	if len(got) != len(want) {
		t.Fatalf("activities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("activities = %v, want %v", got, want)
		}
	}
	chg := sched.Activities[2]
	if math.Abs(chg.Hours()-cfg.ChgSameHours) > 1e-9 {
		t.Fatalf("changeover = %f h, want %f h", chg.Hours(), cfg.ChgSameHours)
	}
	assertContiguous(t, sched.Activities)
}

func TestPlanRejectsOversizedLot(t *testing.T) {
	cfg := config.DefaultScheduling()
	lots := []models.Lot{hourLot("L1", "A", 150, cfg)}

	_, err := Plan(context.Background(), lots, testStart, cfg, "smart-pack")
	var verr *validate.InputError
	if !errors.As(err, &verr) {
		t.Fatalf("Plan error = %v, want InputError", err)
	}
	if len(verr.Result.Errors) == 0 {
		t.Fatal("InputError carries no findings")
	}
}

func TestPlanForcesTwoBlocks(t *testing.T) {
	cfg := config.DefaultScheduling()
	cfg.WindowHours = 50
	cfg.CleanHours = 5

	lots := []models.Lot{
		hourLot("L1", "A", 20, cfg),
		hourLot("L2", "A", 20, cfg),
		hourLot("L3", "B", 20, cfg),
		hourLot("L4", "B", 20, cfg),
	}

	sched, err := Plan(context.Background(), lots, testStart, cfg, "spt-pack")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	cleans := 0
	fills := 0
	blockSum := 0.0
	for _, a := range sched.Activities {
		switch a.Kind {
		case models.KindClean:
			cleans++
			blockSum = 0
		case models.KindFill:
			fills++
			blockSum += a.Hours()
		default:
			blockSum += a.Hours()
		}
		if blockSum > cfg.WindowHours+1e-9 {
			t.Fatalf("block exceeds window: %f h", blockSum)
		}
	}
	if cleans != 2 {
		t.Fatalf("clean blocks = %d, want 2", cleans)
	}
	if fills != len(lots) {
		t.Fatalf("fills = %d, want %d", fills, len(lots))
	}
	assertContiguous(t, sched.Activities)
}

func TestPlanEveryLotFilledOncePerStrategy(t *testing.T) {
	cfg := config.DefaultScheduling()
	lots := []models.Lot{
		hourLot("L1", "A", 30, cfg),
		hourLot("L2", "B", 45, cfg),
		hourLot("L3", "A", 15, cfg),
		hourLot("L4", "C", 60, cfg),
		hourLot("L5", "B", 10, cfg),
	}

	for _, name := range []string{"spt-pack", "lpt-pack", "cfs-pack", "smart-pack", "hybrid-pack", "milp-opt"} {
		t.Run(name, func(t *testing.T) {
			sched, err := Plan(context.Background(), lots, testStart, cfg, name)
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}

			filled := map[string]int{}
			for _, a := range sched.Activities {
				if a.Kind == models.KindFill {
					filled[a.LotID]++
				}
			}
			if len(filled) != len(lots) {
				t.Fatalf("filled %d distinct lots, want %d", len(filled), len(lots))
			}
			for _, lot := range lots {
				if filled[lot.ID] != 1 {
					t.Fatalf("lot %s filled %d times", lot.ID, filled[lot.ID])
				}
			}
			assertContiguous(t, sched.Activities)

			if res := validate.Schedule(sched.Activities, cfg); !res.OK() {
				t.Fatalf("invariants: %v", res.Errors)
			}
		})
	}
}

func TestPlanDeterministic(t *testing.T) {
	cfg := config.DefaultScheduling()
	lots := []models.Lot{
		hourLot("L1", "A", 30, cfg),
		hourLot("L2", "B", 45, cfg),
		hourLot("L3", "A", 15, cfg),
		hourLot("L4", "B", 45, cfg),
	}

	first, err := Plan(context.Background(), lots, testStart, cfg, "hybrid-pack")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, err := Plan(context.Background(), lots, testStart, cfg, "hybrid-pack")
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if len(again.Activities) != len(first.Activities) {
			t.Fatalf("run %d: %d activities, want %d", run, len(again.Activities), len(first.Activities))
		}
		for i := range first.Activities {
			if again.Activities[i] != first.Activities[i] {
				t.Fatalf("run %d: activity %d differs: %+v vs %+v",
					run, i, again.Activities[i], first.Activities[i])
			}
		}
	}
}

func TestPlanEmptyInput(t *testing.T) {
	cfg := config.DefaultScheduling()

	sched, err := Plan(context.Background(), nil, testStart, cfg, "smart-pack")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(sched.Activities) != 1 || sched.Activities[0].Kind != models.KindClean {
		t.Fatalf("activities = %v, want a single CLEAN", kinds(sched.Activities))
	}
	if math.Abs(sched.MakespanHours-cfg.CleanHours) > 1e-9 {
		t.Fatalf("makespan = %f, want %f", sched.MakespanHours, cfg.CleanHours)
	}
}

func TestPlanNoProgressGuard(t *testing.T) {
	cfg := config.DefaultScheduling()
	// The pad makes a 100h lot unplaceable for the scored strategies even
	// though it passes input validation against the raw window.
	cfg.UtilPadHours = 30
	lots := []models.Lot{hourLot("L1", "A", 100, cfg)}

	_, err := Plan(context.Background(), lots, testStart, cfg, "smart-pack")
	if !errors.Is(err, ErrNoProgress) {
		t.Fatalf("Plan error = %v, want ErrNoProgress", err)
	}
}

func TestPlanNoProgressNamesEveryStuckLot(t *testing.T) {
	cfg := config.DefaultScheduling()
	cfg.UtilPadHours = 30
	// L0 places normally; L1 and L2 both exceed the padded window, so the
	// guard fires with two lots still queued and must report both.
	lots := []models.Lot{
		hourLot("L0", "A", 10, cfg),
		hourLot("L1", "A", 100, cfg),
		hourLot("L2", "B", 95, cfg),
	}

	_, err := Plan(context.Background(), lots, testStart, cfg, "smart-pack")
	if !errors.Is(err, ErrNoProgress) {
		t.Fatalf("Plan error = %v, want ErrNoProgress", err)
	}
	for _, id := range []string{"L1", "L2"} {
		if !strings.Contains(err.Error(), id) {
			t.Fatalf("error %q does not name stuck lot %s", err, id)
		}
	}
	if strings.Contains(err.Error(), "L0") {
		t.Fatalf("error %q names placed lot L0", err)
	}
}

func TestPlanHonorsContextCancellation(t *testing.T) {
	cfg := config.DefaultScheduling()
	lots := []models.Lot{hourLot("L1", "A", 10, cfg)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Plan(ctx, lots, testStart, cfg, "smart-pack"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Plan error = %v, want context.Canceled", err)
	}
}

func TestPlanKPIs(t *testing.T) {
	cfg := config.DefaultScheduling()
	lots := []models.Lot{
		hourLot("L1", "A", 20, cfg),
		hourLot("L2", "A", 30, cfg),
	}

	sched, err := Plan(context.Background(), lots, testStart, cfg, "smart-pack")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	want := map[string]string{
		"Makespan (h)":         "78.00",
		"Total Clean (h)":      "24.00",
		"Total Changeover (h)": "4.00",
		"Total Fill (h)":       "50.00",
		"Lots Scheduled":       "2",
		"Clean Blocks":         "1",
	}
	for k, v := range want {
		if sched.KPIs[k] != v {
			t.Errorf("KPI %q = %q, want %q", k, sched.KPIs[k], v)
		}
	}
}

func TestPlanInOrderKeepsSequence(t *testing.T) {
	cfg := config.DefaultScheduling()
	lots := []models.Lot{
		hourLot("L1", "B", 30, cfg),
		hourLot("L2", "A", 20, cfg),
		hourLot("L3", "B", 10, cfg),
	}

	sched, err := PlanInOrder(context.Background(), lots, testStart, cfg)
	if err != nil {
		t.Fatalf("PlanInOrder: %v", err)
	}

	var order []string
	for _, a := range sched.Activities {
		if a.Kind == models.KindFill {
			order = append(order, a.LotID)
		}
	}
	want := []string{"L1", "L2", "L3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fill order = %v, want %v", order, want)
		}
	}
}

func TestPlanInOrderOpensBlockOnOverflow(t *testing.T) {
	cfg := config.DefaultScheduling()
	cfg.WindowHours = 50
	cfg.CleanHours = 5

	lots := []models.Lot{
		hourLot("L1", "A", 40, cfg),
		hourLot("L2", "A", 40, cfg),
	}

	sched, err := PlanInOrder(context.Background(), lots, testStart, cfg)
	if err != nil {
		t.Fatalf("PlanInOrder: %v", err)
	}

	cleans := 0
	for _, a := range sched.Activities {
		if a.Kind == models.KindClean {
			cleans++
		}
	}
	if cleans != 2 {
		t.Fatalf("clean blocks = %d, want 2", cleans)
	}
	assertContiguous(t, sched.Activities)
}
