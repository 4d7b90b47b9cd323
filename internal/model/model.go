// Package model defines shared data structures.
package model

import "time"

// RawScheduleRecord is one (waste type, month) entry from the remote
// schedule payload. Records are consumed during aggregation and never
// retained.
type RawScheduleRecord struct {
	ID          string // source record id, identifies the waste type
	Name        string
	Color       string
	Description string
	TypeID      string
	Order       string
	Month       int
	Year        int
	Days        string // delimited day-of-month list, e.g. "2;9;16;23;30"
}

// WasteTypeSchedule holds the full collection calendar for one waste type.
type WasteTypeSchedule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Color       string      `json:"color,omitempty"`
	Description string      `json:"description,omitempty"`
	TypeID      string      `json:"type_id,omitempty"`
	Order       string      `json:"order,omitempty"`
	Dates       []time.Time `json:"dates"` // ascending, de-duplicated
}

// ScheduleSnapshot is the complete result of one successful refresh.
// Snapshots are immutable once built; a new refresh replaces the whole
// snapshot rather than mutating it.
type ScheduleSnapshot struct {
	Types               map[string]*WasteTypeSchedule `json:"types"`
	RetrievedAt         time.Time                     `json:"retrieved_at"`
	ScheduleLastChanged string                        `json:"schedule_last_changed,omitempty"`
}

// Location is the resolved remote address configuration the schedule is
// fetched for. All ids are opaque values from the remote service.
type Location struct {
	CommunityID      string `json:"community_id" yaml:"communityId"`
	TownID           string `json:"town_id" yaml:"townId"`
	TownName         string `json:"town_name" yaml:"townName"`
	PeriodID         string `json:"period_id" yaml:"periodId"`
	PeriodStart      string `json:"period_start" yaml:"periodStart"`
	PeriodEnd        string `json:"period_end" yaml:"periodEnd"`
	PeriodChangeDate string `json:"period_change_date" yaml:"periodChangeDate"`
	StreetName       string `json:"street_name" yaml:"streetName"`
	StreetChoosedIDs string `json:"street_choosed_ids" yaml:"streetChoosedIds"`
	StreetID         string `json:"street_id" yaml:"streetId"`
	Number           string `json:"number" yaml:"number"`
	GroupName        string `json:"group_name" yaml:"groupName"`
}

// TypeFacts are the derived values for a single waste type relative to a
// reference date.
type TypeFacts struct {
	ID            string
	Name          string
	NextDate      *time.Time
	DaysUntil     *int
	IsToday       bool
	IsTomorrow    bool
	UpcomingDates []time.Time // up to the next 3 dates, NextDate first
}

// NextCollection describes the nearest upcoming collection across the
// monitored waste types.
type NextCollection struct {
	Date       time.Time
	Types      []string // type names collecting on that date, primary first
	DaysUntil  int
	IsToday    bool
	IsTomorrow bool
}

// DerivedFacts are computed on demand from a snapshot and a reference
// date. They are never persisted: "today" changes, so consumers must
// recompute rather than cache across day boundaries.
type DerivedFacts struct {
	Today          time.Time
	Types          map[string]TypeFacts // keyed by waste type name
	TodayTypes     []string             // monitored type names collecting today
	TomorrowTypes  []string
	AnyToday       bool
	AnyTomorrow    bool
	NextCollection *NextCollection // nil when no monitored type has a future date
}

// Settings key constants.
const (
	SettingLastRefreshError = "last_refresh_error"
)
