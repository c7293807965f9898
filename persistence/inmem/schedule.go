package inmem

import (
	"sync"
	"time"

	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
)

var _ persistence.ScheduleStorage = new(InmemScheduleStorage)

type InmemScheduleStorage struct {
	mu        sync.RWMutex
	schedules map[string][]byte
	encDec    util.EncoderDecoder[model.RecurringSchedule]
}

func NewInmemScheduleStorage() *InmemScheduleStorage {
	return &InmemScheduleStorage{
		schedules: make(map[string][]byte),
		encDec:    util.NewJsonEncoderDecoder[model.RecurringSchedule](),
	}
}

func (s *InmemScheduleStorage) SaveSchedule(sched model.RecurringSchedule) error {
	data, err := s.encDec.Encode(sched)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.Id] = data
	return nil
}

func (s *InmemScheduleStorage) GetSchedule(id string) (*model.RecurringSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.schedules[id]
	if !ok {
		return nil, model.NotFoundError{Kind: "schedule", Id: id}
	}
	return s.encDec.Decode(data)
}

func (s *InmemScheduleStorage) DeleteSchedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, id)
	return nil
}

func (s *InmemScheduleStorage) ListDueSchedules(now time.Time) ([]model.RecurringSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []model.RecurringSchedule
	for _, data := range s.schedules {
		sched, err := s.encDec.Decode(data)
		if err != nil {
			return nil, err
		}
		if sched.IsActive && !sched.NextRunAt.After(now) {
			due = append(due, *sched)
		}
	}
	return due, nil
}

var _ persistence.FollowupStorage = new(InmemFollowupStorage)

type InmemFollowupStorage struct {
	mu        sync.RWMutex
	followups map[string][]byte
	encDec    util.EncoderDecoder[model.TaskFollowup]
}

func NewInmemFollowupStorage() *InmemFollowupStorage {
	return &InmemFollowupStorage{
		followups: make(map[string][]byte),
		encDec:    util.NewJsonEncoderDecoder[model.TaskFollowup](),
	}
}

func (s *InmemFollowupStorage) SaveFollowup(f model.TaskFollowup) error {
	data, err := s.encDec.Encode(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followups[f.Id] = data
	return nil
}

func (s *InmemFollowupStorage) GetFollowup(id string) (*model.TaskFollowup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.followups[id]
	if !ok {
		return nil, model.NotFoundError{Kind: "followup", Id: id}
	}
	return s.encDec.Decode(data)
}

func (s *InmemFollowupStorage) ListDueFollowups(now time.Time) ([]model.TaskFollowup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []model.TaskFollowup
	for _, data := range s.followups {
		f, err := s.encDec.Decode(data)
		if err != nil {
			return nil, err
		}
		if f.State == model.FOLLOWUP_ACTIVE && !f.NextRunAt.After(now) {
			due = append(due, *f)
		}
	}
	return due, nil
}

func (s *InmemFollowupStorage) ListFollowupsByTask(taskId string) ([]model.TaskFollowup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []model.TaskFollowup
	for _, data := range s.followups {
		f, err := s.encDec.Decode(data)
		if err != nil {
			return nil, err
		}
		if f.TaskId == taskId {
			result = append(result, *f)
		}
	}
	return result, nil
}
