/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// ActivityKind enumerates the timeline segment types.
type ActivityKind string

const (
	KindClean      ActivityKind = "CLEAN"
	KindChangeover ActivityKind = "CHANGEOVER"
	KindFill       ActivityKind = "FILL"
)

// Lot is a production batch waiting to be filled. FillHours is derived
// once from Vials and the configured fill rate and never recomputed.
type Lot struct {
	ID        string  `json:"lot_id"`
	Type      string  `json:"type"`
	Vials     int     `json:"vials"`
	FillHours float64 `json:"fill_hours"`
}

// Activity is one timestamped segment of the planned timeline. Activities
// are append-only: the scheduler emits them in chronological order and no
// caller mutates them afterwards.
type Activity struct {
	Start   time.Time    `json:"start"`
	End     time.Time    `json:"end"`
	Kind    ActivityKind `json:"kind"`
	LotID   string       `json:"lot_id,omitempty"`
	LotType string       `json:"lot_type,omitempty"`
	Note    string       `json:"note,omitempty"`
}

// Hours returns the activity duration in hours.
func (a Activity) Hours() float64 {
	return a.End.Sub(a.Start).Hours()
}

// Schedule is the result of one planning run: the full ordered timeline
// plus the derived KPIs. Built once, immutable thereafter.
type Schedule struct {
	Activities    []Activity        `json:"activities"`
	MakespanHours float64           `json:"makespan_hours"`
	KPIs          map[string]string `json:"kpis"`
}

// Run status values for persisted scheduling jobs.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ScheduleRun is a persisted scheduling job.
type ScheduleRun struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Name       string `gorm:"index"`
	Strategy   string `gorm:"type:varchar(32)"`
	Status     string `gorm:"type:varchar(16);index"`
	StartTime  time.Time
	LotCount   int
	Error      string `gorm:"type:text"`
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Result *ScheduleResult `gorm:"foreignKey:RunID"`
}

// ScheduleResult stores the outcome of a completed run. Activities and
// KPIs are serialized JSON blobs; the relational layer never inspects them.
type ScheduleResult struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	RunID         string `gorm:"type:uuid;uniqueIndex"`
	MakespanHours float64
	Activities    string `gorm:"type:text"`
	KPIs          string `gorm:"type:text"`
	CreatedAt     time.Time
}

// ComparisonRun is a persisted multi-strategy comparison job.
type ComparisonRun struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Name       string `gorm:"index"`
	Strategies string `gorm:"type:text"` // comma-separated strategy names
	Status     string `gorm:"type:varchar(16);index"`
	StartTime  time.Time
	LotCount   int
	Error      string `gorm:"type:text"`
	Report     string `gorm:"type:text"` // serialized compare.Report
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
