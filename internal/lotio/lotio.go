/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lotio reads lot and sequence CSV files and writes schedule CSV
// and summary output. Column matching is forgiving about header spelling
// so hand-edited spreadsheets keep working.
package lotio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
	"github.com/friendsincode/fillline/internal/validate"
)

// TimeFormat is the timestamp layout used in schedule CSVs.
const TimeFormat = "2006-01-02 15:04"

// ErrNoLots indicates the lot CSV parsed cleanly but contained no rows.
var ErrNoLots = errors.New("lotio: no lots found")

// lotIDHeaders are the accepted spellings of the lot id column.
var lotIDHeaders = []string{"lot id", "lotid", "lot_id"}

func findColumn(header []string, names ...string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

// ReadLots parses a lot CSV with "Lot ID", "Type" and "Vials" columns and
// derives each lot's fill hours from the configured rate.
func ReadLots(r io.Reader, cfg *config.Scheduling) ([]models.Lot, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read lot csv header: %w", err)
	}

	idCol := findColumn(header, lotIDHeaders...)
	typeCol := findColumn(header, "type", "lot type", "lot_type")
	vialsCol := findColumn(header, "vials")
	if idCol < 0 || typeCol < 0 || vialsCol < 0 {
		return nil, fmt.Errorf("lot csv missing required columns (need Lot ID, Type, Vials), got %v", header)
	}

	var lots []models.Lot
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read lot csv: %w", err)
		}
		line++

		vialsText := strings.TrimSpace(rec[vialsCol])
		if vialsText == "" {
			return nil, fmt.Errorf("lot csv line %d: missing vials value", line)
		}
		vials, err := strconv.Atoi(vialsText)
		if err != nil {
			return nil, fmt.Errorf("lot csv line %d: vials %q is not an integer", line, vialsText)
		}

		lots = append(lots, models.Lot{
			ID:        strings.TrimSpace(rec[idCol]),
			Type:      strings.TrimSpace(rec[typeCol]),
			Vials:     vials,
			FillHours: float64(vials) / cfg.FillRateVPH,
		})
	}

	if len(lots) == 0 {
		return nil, ErrNoLots
	}
	return lots, nil
}

// WriteSchedule renders a planned timeline as CSV in the report layout:
// Start, End, Hours, Activity, Lot ID, Type, Note.
func WriteSchedule(w io.Writer, activities []models.Activity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Start", "End", "Hours", "Activity", "Lot ID", "Type", "Note"}); err != nil {
		return fmt.Errorf("write schedule csv: %w", err)
	}
	for _, a := range activities {
		rec := []string{
			a.Start.Format(TimeFormat),
			a.End.Format(TimeFormat),
			strconv.FormatFloat(round2(a.Hours()), 'f', -1, 64),
			string(a.Kind),
			a.LotID,
			a.LotType,
			a.Note,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write schedule csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary renders KPIs plus validation findings as plain text.
func WriteSummary(w io.Writer, kpis map[string]string, res validate.Result) error {
	var b strings.Builder
	b.WriteString("=== Schedule Summary ===\n")

	keys := make([]string, 0, len(kpis))
	for k := range kpis {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, kpis[k])
	}

	if len(res.Errors) > 0 {
		b.WriteString("\n=== Errors ===\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	if len(res.Warnings) > 0 {
		b.WriteString("\n=== Warnings ===\n")
		for _, warn := range res.Warnings {
			fmt.Fprintf(&b, "- %s\n", warn)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ReadSequence parses a sequence CSV holding lot ids in the desired fill
// order. Blank entries are skipped.
func ReadSequence(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read sequence csv header: %w", err)
	}
	col := findColumn(header, lotIDHeaders...)
	if col < 0 {
		return nil, fmt.Errorf("sequence csv needs a Lot ID column, got %v", header)
	}

	var seq []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sequence csv: %w", err)
		}
		if id := strings.TrimSpace(rec[col]); id != "" {
			seq = append(seq, id)
		}
	}
	if len(seq) == 0 {
		return nil, errors.New("lotio: sequence csv contained no lot ids")
	}
	return seq, nil
}

// OrderBySequence reorders lots to match the given id sequence. Lots not
// named by the sequence keep their relative order at the tail; sequence
// ids with no matching lot are returned for the caller to report.
func OrderBySequence(lots []models.Lot, sequence []string) (ordered []models.Lot, missing []string) {
	byID := make(map[string]models.Lot, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}

	named := make(map[string]bool, len(sequence))
	for _, id := range sequence {
		named[id] = true
		if lot, ok := byID[id]; ok {
			ordered = append(ordered, lot)
		} else {
			missing = append(missing, id)
		}
	}
	for _, lot := range lots {
		if !named[lot.ID] {
			ordered = append(ordered, lot)
		}
	}
	return ordered, missing
}

func round2(x float64) float64 {
	return float64(int64(x*100+0.5)) / 100
}
