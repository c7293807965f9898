package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

type instantiator interface {
	Instantiate(templateId string, version int, clientId string, name string, context map[string]any, dedupKey string) (string, error)
}

// Scheduler polls for due recurring schedules and instantiates their
// templates. The dedup key carries the slot timestamp, so a tick that fires
// twice for the same slot clones only once.
type Scheduler struct {
	storage    persistence.ScheduleStorage
	inst       instantiator
	leadership Leadership
	clock      util.Clock
	tw         *util.TickWorker
	stop       chan struct{}
}

func NewScheduler(storage persistence.ScheduleStorage, inst instantiator, leadership Leadership, clock util.Clock, pollInterval time.Duration, wg *sync.WaitGroup) *Scheduler {
	s := &Scheduler{
		storage:    storage,
		inst:       inst,
		leadership: leadership,
		clock:      clock,
		stop:       make(chan struct{}),
	}
	s.tw = util.NewTickWorker("schedule-poller", pollInterval, s.stop, s.poll, wg)
	return s
}

func (s *Scheduler) Start() {
	s.tw.Start()
}

func (s *Scheduler) Stop() {
	if s.tw.IsRunning() {
		s.tw.Stop()
	}
}

func (s *Scheduler) poll() {
	if !s.leadership.IsLeader() {
		return
	}
	now := s.clock.Now()
	due, err := s.storage.ListDueSchedules(now)
	if err != nil {
		logger.Error("listing due schedules failed", zap.Error(err))
		return
	}
	for _, schedule := range due {
		s.runDue(schedule, now)
	}
}

func (s *Scheduler) runDue(schedule model.RecurringSchedule, now time.Time) {
	if !schedule.IsActive {
		return
	}
	if schedule.EndDate != nil && now.After(*schedule.EndDate) {
		schedule.IsActive = false
		if err := s.storage.SaveSchedule(schedule); err != nil {
			logger.Error("deactivating ended schedule failed", zap.String("schedule", schedule.Id), zap.Error(err))
		}
		logger.Info("schedule ended", zap.String("schedule", schedule.Id))
		return
	}
	dedupKey := fmt.Sprintf("%s:%d", schedule.Id, schedule.NextRunAt.Unix())
	assignmentId, err := s.inst.Instantiate(schedule.TemplateId, 0, schedule.ClientId, "", nil, dedupKey)
	if err != nil {
		// NextRunAt stays put, the next tick retries this slot.
		logger.Error("scheduled instantiation failed",
			zap.String("schedule", schedule.Id),
			zap.String("template", schedule.TemplateId),
			zap.Error(err))
		return
	}
	schedule.LastRunAt = &now
	schedule.RunCount++
	Advance(&schedule, now)
	if schedule.EndDate != nil && schedule.NextRunAt.After(*schedule.EndDate) {
		schedule.IsActive = false
	}
	if err := s.storage.SaveSchedule(schedule); err != nil {
		logger.Error("saving schedule after run failed", zap.String("schedule", schedule.Id), zap.Error(err))
		return
	}
	logger.Info("schedule fired",
		zap.String("schedule", schedule.Id),
		zap.String("assignment", assignmentId),
		zap.Time("nextRunAt", schedule.NextRunAt))
}
