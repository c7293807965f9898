package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mohitkumar/praxis/model"
)

// FirstRun computes the initial NextRunAt for a schedule: the first slot of
// its cadence at or after both its start date and from.
func FirstRun(s model.RecurringSchedule, from time.Time) (time.Time, error) {
	hour, minute, err := parseTimeOfDay(s.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	if s.StartDate.After(from) {
		from = s.StartDate
	}
	candidate := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	switch s.Frequency {
	case model.FREQ_DAILY:
		if candidate.Before(from) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case model.FREQ_WEEKLY:
		for int(candidate.Weekday()) != s.DayOfWeek || candidate.Before(from) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case model.FREQ_MONTHLY:
		candidate = monthSlot(candidate.Year(), candidate.Month(), s.DayOfMonth, hour, minute, from.Location())
		if candidate.Before(from) {
			candidate = monthSlot(candidate.Year(), candidate.Month()+1, s.DayOfMonth, hour, minute, from.Location())
		}
	default:
		return time.Time{}, fmt.Errorf("unknown frequency %s", s.Frequency)
	}
	return candidate, nil
}

// Advance moves NextRunAt forward from its previous slot, never from wall
// time, so late ticks do not drift the cadence. Multiple missed slots
// collapse: the caller runs once, Advance skips past all of them.
func Advance(s *model.RecurringSchedule, now time.Time) {
	next := s.NextRunAt
	for !next.After(now) {
		next = step(*s, next)
	}
	s.NextRunAt = next
}

func step(s model.RecurringSchedule, prev time.Time) time.Time {
	interval := s.Interval
	if interval < 1 {
		interval = 1
	}
	switch s.Frequency {
	case model.FREQ_WEEKLY:
		return prev.AddDate(0, 0, 7*interval)
	case model.FREQ_MONTHLY:
		return addMonths(prev, interval, s.DayOfMonth)
	default:
		return prev.AddDate(0, 0, interval)
	}
}

// addMonths steps a monthly cadence. The day of month clamps to short months
// and restores to the configured day afterwards, so a day-31 schedule runs on
// Feb 28 and is back on Mar 31.
func addMonths(prev time.Time, months int, dayOfMonth int) time.Time {
	if dayOfMonth < 1 {
		dayOfMonth = prev.Day()
	}
	total := int(prev.Month()) - 1 + months
	year := prev.Year() + total/12
	month := time.Month(total%12 + 1)
	return monthSlot(year, month, dayOfMonth, prev.Hour(), prev.Minute(), prev.Location())
}

func monthSlot(year int, month time.Month, dayOfMonth, hour, minute int, loc *time.Location) time.Time {
	if dayOfMonth < 1 {
		dayOfMonth = 1
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	day := dayOfMonth
	if day > last {
		day = last
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func parseTimeOfDay(tod string) (int, int, error) {
	parts := strings.Split(tod, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", tod)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in time of day %q", tod)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in time of day %q", tod)
	}
	return hour, minute, nil
}
