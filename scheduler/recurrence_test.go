package scheduler

import (
	"testing"
	"time"

	"github.com/mohitkumar/praxis/model"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestFirstRun(t *testing.T) {
	scenarios := map[string]struct {
		schedule model.RecurringSchedule
		from     time.Time
		want     time.Time
	}{
		"daily same day when slot ahead": {
			schedule: model.RecurringSchedule{Frequency: model.FREQ_DAILY, TimeOfDay: "09:00"},
			from:     date(2025, time.March, 10, 8, 0),
			want:     date(2025, time.March, 10, 9, 0),
		},
		"daily next day when slot passed": {
			schedule: model.RecurringSchedule{Frequency: model.FREQ_DAILY, TimeOfDay: "09:00"},
			from:     date(2025, time.March, 10, 10, 0),
			want:     date(2025, time.March, 11, 9, 0),
		},
		"weekly aligns to day of week": {
			// 2025-03-10 is a Monday; next Friday is the 14th.
			schedule: model.RecurringSchedule{Frequency: model.FREQ_WEEKLY, DayOfWeek: 5, TimeOfDay: "12:30"},
			from:     date(2025, time.March, 10, 0, 0),
			want:     date(2025, time.March, 14, 12, 30),
		},
		"monthly clamps short month": {
			schedule: model.RecurringSchedule{Frequency: model.FREQ_MONTHLY, DayOfMonth: 31, TimeOfDay: "00:00"},
			from:     date(2025, time.February, 1, 0, 0),
			want:     date(2025, time.February, 28, 0, 0),
		},
		"monthly rolls over when slot passed": {
			schedule: model.RecurringSchedule{Frequency: model.FREQ_MONTHLY, DayOfMonth: 5, TimeOfDay: "08:00"},
			from:     date(2025, time.March, 6, 0, 0),
			want:     date(2025, time.April, 5, 8, 0),
		},
		"start date in the future wins": {
			schedule: model.RecurringSchedule{Frequency: model.FREQ_DAILY, TimeOfDay: "09:00", StartDate: date(2025, time.June, 1, 0, 0)},
			from:     date(2025, time.March, 10, 8, 0),
			want:     date(2025, time.June, 1, 9, 0),
		},
	}
	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			got, err := FirstRun(scenario.schedule, scenario.from)
			require.NoError(t, err)
			require.Equal(t, scenario.want, got)
		})
	}
}

func TestFirstRunRejectsBadTimeOfDay(t *testing.T) {
	for _, tod := range []string{"", "9", "24:00", "09:60", "ab:cd"} {
		s := model.RecurringSchedule{Frequency: model.FREQ_DAILY, TimeOfDay: tod}
		_, err := FirstRun(s, date(2025, time.March, 10, 0, 0))
		require.Error(t, err, tod)
	}
}

func TestAdvanceDoesNotDriftOnLateTick(t *testing.T) {
	s := model.RecurringSchedule{
		Frequency: model.FREQ_DAILY,
		Interval:  1,
		NextRunAt: date(2025, time.March, 10, 9, 0),
	}
	// The tick fires 47 minutes late; the next slot is still 09:00 sharp.
	Advance(&s, date(2025, time.March, 10, 9, 47))
	require.Equal(t, date(2025, time.March, 11, 9, 0), s.NextRunAt)
}

func TestAdvanceCollapsesMissedSlots(t *testing.T) {
	s := model.RecurringSchedule{
		Frequency: model.FREQ_DAILY,
		Interval:  1,
		NextRunAt: date(2025, time.March, 10, 9, 0),
	}
	// Three slots were missed; Advance lands on the first future one.
	Advance(&s, date(2025, time.March, 13, 10, 0))
	require.Equal(t, date(2025, time.March, 14, 9, 0), s.NextRunAt)
}

func TestAdvanceMonthlyClampAndRestore(t *testing.T) {
	s := model.RecurringSchedule{
		Frequency:  model.FREQ_MONTHLY,
		Interval:   1,
		DayOfMonth: 31,
		NextRunAt:  date(2025, time.January, 31, 6, 0),
	}
	Advance(&s, date(2025, time.January, 31, 6, 0))
	require.Equal(t, date(2025, time.February, 28, 6, 0), s.NextRunAt)

	Advance(&s, s.NextRunAt)
	require.Equal(t, date(2025, time.March, 31, 6, 0), s.NextRunAt, "day of month restores after short month")
}

func TestAdvanceWeeklyInterval(t *testing.T) {
	s := model.RecurringSchedule{
		Frequency: model.FREQ_WEEKLY,
		Interval:  2,
		NextRunAt: date(2025, time.March, 14, 12, 30),
	}
	Advance(&s, date(2025, time.March, 14, 12, 30))
	require.Equal(t, date(2025, time.March, 28, 12, 30), s.NextRunAt)
}
