package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttendancePercentage(t *testing.T) {
	assert.Equal(t, 100, AttendancePercentage(0, 0))
	assert.Equal(t, 70, AttendancePercentage(7, 10))
	assert.Equal(t, 0, AttendancePercentage(0, 3))
	assert.Equal(t, 67, AttendancePercentage(2, 3))
	assert.Equal(t, 100, AttendancePercentage(12, 12))
}

func TestPercentageExcludingMassSkips(t *testing.T) {
	// All classes mass-skipped: adjusted denominator hits zero.
	assert.Equal(t, 100, PercentageExcludingMassSkips(5, 10, 10))
	// Mass skips neither help nor hurt.
	assert.Equal(t, 100, PercentageExcludingMassSkips(5, 10, 5))
	assert.Equal(t, 63, PercentageExcludingMassSkips(5, 10, 2))
	// Denominator clamps rather than going negative.
	assert.Equal(t, 100, PercentageExcludingMassSkips(0, 3, 7))
}

func TestClassesNeeded(t *testing.T) {
	// 5/10 at a 75% bar: ten consecutive attended classes required.
	assert.Equal(t, 10, ClassesNeeded(5, 10, 75))
	// Already above target.
	assert.Equal(t, 0, ClassesNeeded(9, 10, 75))
	// Exactly at target.
	assert.Equal(t, 0, ClassesNeeded(3, 4, 75))
	// Degenerate targets never demand classes.
	assert.Equal(t, 0, ClassesNeeded(0, 10, 100))
	assert.Equal(t, 0, ClassesNeeded(0, 10, 0))
}

func TestClassesCanMiss(t *testing.T) {
	assert.GreaterOrEqual(t, ClassesCanMiss(9, 10, 75), 1)
	assert.Equal(t, 2, ClassesCanMiss(9, 10, 75))
	assert.Equal(t, 0, ClassesCanMiss(5, 10, 75))
	// Exactly at target: no slack.
	assert.Equal(t, 0, ClassesCanMiss(3, 4, 75))
}

func TestSubjectDerivedFields(t *testing.T) {
	s := Subject{Attended: 7, Total: 10, MassSkipped: 2, DurationHours: 1.5, DayOfWeek: 1}
	assert.Equal(t, 70, s.AttendancePercentage())
	assert.Equal(t, 88, s.PercentageExcludingMassSkips())
	assert.Equal(t, "Monday", s.Weekday().String())
	assert.Equal(t, 90.0, s.Duration().Minutes())
}
