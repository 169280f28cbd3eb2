package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
)

// NextOccurrence returns the first instant strictly after now at which the
// weekly (weekday, local "HH:MM") recurrence fires in the given timezone.
// Week steps use AddDate on the local representation so a daylight shift
// never moves the local time-of-day.
func NextOccurrence(weekday time.Weekday, startTime, timezone string, now time.Time) (time.Time, error) {
	candidate, err := occurrenceOnOrNear(weekday, startTime, timezone, now)
	if err != nil {
		return time.Time{}, err
	}
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate, nil
}

// LastOccurrence returns the most recent occurrence instant at or before now.
func LastOccurrence(weekday time.Weekday, startTime, timezone string, now time.Time) (time.Time, error) {
	candidate, err := occurrenceOnOrNear(weekday, startTime, timezone, now)
	if err != nil {
		return time.Time{}, err
	}
	if candidate.After(now) {
		candidate = candidate.AddDate(0, 0, -7)
	}
	return candidate, nil
}

// occurrenceOnOrNear projects now into the target timezone and pins it to
// the target weekday and local clock time within the current week.
func occurrenceOnOrNear(weekday time.Weekday, startTime, timezone string, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInvalidTimezone.Code, appErrors.ErrInvalidTimezone.Status, appErrors.ErrInvalidTimezone.Message)
	}
	hour, minute, err := ParseClock(startTime)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	deltaDays := int(weekday) - int(local.Weekday())
	return time.Date(local.Year(), local.Month(), local.Day()+deltaDays, hour, minute, 0, 0, loc), nil
}

// ClassDate normalises an occurrence instant to its calendar date in the
// user's timezone, the key EnsureRecord deduplicates on. The date is stored
// timezone-less at UTC midnight.
func ClassDate(occurrence time.Time, timezone string) time.Time {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	local := occurrence.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseClock parses a local "HH:MM" string.
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid time %q, expected HH:MM", value))
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid hour in %q", value))
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid minute in %q", value))
	}
	return hour, minute, nil
}
