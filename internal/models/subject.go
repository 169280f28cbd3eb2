package models

import (
	"math"
	"time"
)

// Duration bounds for a weekly class, in hours.
const (
	MinDurationHours = 0.5
	MaxDurationHours = 8.0
)

// Subject is a weekly-recurring class owned by one user. Counters are
// mutated only through confirmed attendance-record transitions; the
// percentages are always derived, never stored.
type Subject struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Name          string    `db:"name" json:"name"`
	DayOfWeek     int       `db:"day_of_week" json:"day_of_week"` // time.Weekday numbering, 0 = Sunday
	StartTime     string    `db:"start_time" json:"start_time"`   // local "HH:MM"
	DurationHours float64   `db:"duration_hours" json:"duration_hours"`
	Total         int       `db:"total" json:"total"`
	Attended      int       `db:"attended" json:"attended"`
	MassSkipped   int       `db:"mass_skipped" json:"mass_skipped"`
	Holidays      int       `db:"holidays" json:"holidays"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Duration returns the class length as a time.Duration.
func (s *Subject) Duration() time.Duration {
	return time.Duration(s.DurationHours * float64(time.Hour))
}

// Weekday returns the recurrence day as a time.Weekday.
func (s *Subject) Weekday() time.Weekday {
	return time.Weekday(s.DayOfWeek)
}

// AttendancePercentage is the primary percentage: attended over total,
// rounded. Defined as 100 when no classes have been counted yet.
func (s *Subject) AttendancePercentage() int {
	return AttendancePercentage(s.Attended, s.Total)
}

// PercentageExcludingMassSkips removes mass-skipped classes from the
// denominator entirely.
func (s *Subject) PercentageExcludingMassSkips() int {
	return PercentageExcludingMassSkips(s.Attended, s.Total, s.MassSkipped)
}

// AttendancePercentage computes round(attended/total*100), 100 when total
// is zero.
func AttendancePercentage(attended, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(attended) / float64(total) * 100))
}

// PercentageExcludingMassSkips treats mass-skipped classes as never held.
// A non-positive adjusted denominator yields 100.
func PercentageExcludingMassSkips(attended, total, massSkipped int) int {
	denom := total - massSkipped
	if denom <= 0 {
		return 100
	}
	return int(math.Round(float64(attended) / float64(denom) * 100))
}

// ClassesNeeded returns how many consecutive attended classes are required
// to lift attended/total to at least target percent. Zero when already at
// or above target.
func ClassesNeeded(attended, total, target int) int {
	if target <= 0 || target >= 100 {
		return 0
	}
	deficit := target*total - 100*attended
	if deficit <= 0 {
		return 0
	}
	// ceil(deficit / (100 - target))
	return (deficit + (100 - target) - 1) / (100 - target)
}

// ClassesCanMiss returns how many upcoming classes may be missed while
// staying at or above target percent. Zero when already below target.
func ClassesCanMiss(attended, total, target int) int {
	if target <= 0 {
		return 0
	}
	surplus := 100*attended - target*total
	if surplus < 0 {
		return 0
	}
	return surplus / target
}

// SubjectDraft is a candidate schedule entry produced by the timetable
// image classifier, pending user confirmation before insertion.
type SubjectDraft struct {
	Name          string  `json:"name" validate:"required"`
	DayOfWeek     int     `json:"day_of_week" validate:"min=0,max=6"`
	StartTime     string  `json:"start_time" validate:"required"`
	DurationHours float64 `json:"duration_hours" validate:"min=0.5,max=8"`
}

// SubjectFilter scopes subject listing queries.
type SubjectFilter struct {
	UserID     string
	DayOfWeek  *int
	ActiveOnly bool
}
