package model

import "time"

type Frequency string

const FREQ_DAILY Frequency = "daily"
const FREQ_WEEKLY Frequency = "weekly"
const FREQ_MONTHLY Frequency = "monthly"

// RecurringSchedule re-instantiates a template for a client on a fixed cadence.
// NextRunAt always advances from the previous slot, never from wall time, so a
// late tick does not drift the cadence.
type RecurringSchedule struct {
	Id         string     `json:"id"`
	TemplateId string     `json:"templateId"`
	ClientId   string     `json:"clientId"`
	Frequency  Frequency  `json:"frequency"`
	Interval   int        `json:"interval"`
	DayOfWeek  int        `json:"dayOfWeek"`
	DayOfMonth int        `json:"dayOfMonth"`
	TimeOfDay  string     `json:"timeOfDay"`
	NextRunAt  time.Time  `json:"nextRunAt"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty"`
	RunCount   int        `json:"runCount"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	IsActive   bool       `json:"isActive"`
}

type FollowupState string

const FOLLOWUP_ACTIVE FollowupState = "active"
const FOLLOWUP_PAUSED FollowupState = "paused"
const FOLLOWUP_COMPLETED FollowupState = "completed"
const FOLLOWUP_CANCELLED FollowupState = "cancelled"

// TaskFollowup nags a client about an open client-facing task. After
// EscalateAfterRuns reminders the escalation recipient is copied in; the
// followup completes itself at MaxRuns or when the task closes.
type TaskFollowup struct {
	Id                string        `json:"id"`
	AssignmentId      string        `json:"assignmentId"`
	TaskId            string        `json:"taskId"`
	State             FollowupState `json:"state"`
	NextRunAt         time.Time     `json:"nextRunAt"`
	IntervalDays      int           `json:"intervalDays"`
	RunCount          int           `json:"runCount"`
	EscalateAfterRuns int           `json:"escalateAfterRuns"`
	MaxRuns           int           `json:"maxRuns"`
	Recipient         string        `json:"recipient"`
	EscalationRef     string        `json:"escalationRef,omitempty"`
}
