package service

import (
	"github.com/google/uuid"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/scheduler"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

type ScheduleService struct {
	storage persistence.ScheduleStorage
	clock   util.Clock
}

func NewScheduleService(storage persistence.ScheduleStorage, clock util.Clock) *ScheduleService {
	return &ScheduleService{
		storage: storage,
		clock:   clock,
	}
}

// Upsert validates the cadence and computes the initial slot. Updating an
// existing schedule recomputes NextRunAt from the new cadence.
func (s *ScheduleService) Upsert(sched model.RecurringSchedule) (string, error) {
	if sched.TemplateId == "" {
		return "", model.ValidationError{Message: "templateId is required"}
	}
	if sched.ClientId == "" {
		return "", model.ValidationError{Message: "clientId is required"}
	}
	switch sched.Frequency {
	case model.FREQ_DAILY, model.FREQ_WEEKLY, model.FREQ_MONTHLY:
	default:
		return "", model.ValidationError{Message: "frequency must be daily, weekly or monthly"}
	}
	if sched.Frequency == model.FREQ_WEEKLY && (sched.DayOfWeek < 0 || sched.DayOfWeek > 6) {
		return "", model.ValidationError{Message: "dayOfWeek must be 0 through 6"}
	}
	if sched.Frequency == model.FREQ_MONTHLY && (sched.DayOfMonth < 1 || sched.DayOfMonth > 31) {
		return "", model.ValidationError{Message: "dayOfMonth must be 1 through 31"}
	}
	if sched.Interval < 1 {
		sched.Interval = 1
	}
	now := s.clock.Now()
	if sched.StartDate.IsZero() {
		sched.StartDate = now
	}
	next, err := scheduler.FirstRun(sched, now)
	if err != nil {
		return "", model.ValidationError{Message: err.Error()}
	}
	sched.NextRunAt = next
	if sched.Id == "" {
		sched.Id = uuid.New().String()
	}
	sched.IsActive = true
	if sched.EndDate != nil && !sched.NextRunAt.Before(*sched.EndDate) {
		return "", model.ValidationError{Message: "endDate is before the first run"}
	}
	if err := s.storage.SaveSchedule(sched); err != nil {
		return "", err
	}
	logger.Info("schedule saved",
		zap.String("schedule", sched.Id),
		zap.String("template", sched.TemplateId),
		zap.Time("nextRunAt", sched.NextRunAt))
	return sched.Id, nil
}

func (s *ScheduleService) Get(id string) (*model.RecurringSchedule, error) {
	return s.storage.GetSchedule(id)
}

// Cancel deactivates a schedule; already instantiated assignments live on.
func (s *ScheduleService) Cancel(id string) error {
	sched, err := s.storage.GetSchedule(id)
	if err != nil {
		return err
	}
	sched.IsActive = false
	return s.storage.SaveSchedule(*sched)
}
