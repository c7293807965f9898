package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence/inmem"
	"github.com/mohitkumar/praxis/util"
	"github.com/stretchr/testify/require"
)

type fakeInstantiator struct {
	mu        sync.Mutex
	dedupKeys []string
	err       error
}

func (f *fakeInstantiator) Instantiate(templateId string, version int, clientId string, name string, context map[string]any, dedupKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.dedupKeys = append(f.dedupKeys, dedupKey)
	return "assignment-" + dedupKey, nil
}

func newTestScheduler(storage *inmem.InmemScheduleStorage, inst *fakeInstantiator, clock util.Clock, leader bool) *Scheduler {
	var wg sync.WaitGroup
	return NewScheduler(storage, inst, NewStaticLeadership(leader), clock, time.Second, &wg)
}

func TestSchedulerFiresDueSchedule(t *testing.T) {
	storage := inmem.NewInmemScheduleStorage()
	slot := date(2025, time.March, 10, 9, 0)
	require.NoError(t, storage.SaveSchedule(model.RecurringSchedule{
		Id:         "sched-1",
		TemplateId: "tmpl-1",
		ClientId:   "client-1",
		Frequency:  model.FREQ_DAILY,
		Interval:   1,
		TimeOfDay:  "09:00",
		NextRunAt:  slot,
		IsActive:   true,
	}))
	clock := util.NewFakeClock(slot.Add(5 * time.Minute))
	inst := &fakeInstantiator{}
	s := newTestScheduler(storage, inst, clock, true)

	s.poll()

	require.Len(t, inst.dedupKeys, 1)
	require.Contains(t, inst.dedupKeys[0], "sched-1:")

	stored, err := storage.GetSchedule("sched-1")
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 11, 9, 0), stored.NextRunAt, "next slot advances from the slot, not wall time")
	require.Equal(t, 1, stored.RunCount)
	require.NotNil(t, stored.LastRunAt)

	// Same tick again: the slot moved to the future, nothing fires.
	s.poll()
	require.Len(t, inst.dedupKeys, 1)
}

func TestSchedulerCatchUpRunsOnce(t *testing.T) {
	storage := inmem.NewInmemScheduleStorage()
	require.NoError(t, storage.SaveSchedule(model.RecurringSchedule{
		Id:         "sched-1",
		TemplateId: "tmpl-1",
		ClientId:   "client-1",
		Frequency:  model.FREQ_DAILY,
		Interval:   1,
		NextRunAt:  date(2025, time.March, 10, 9, 0),
		IsActive:   true,
	}))
	// Three days of downtime: one catch-up clone, slots collapse.
	clock := util.NewFakeClock(date(2025, time.March, 13, 12, 0))
	inst := &fakeInstantiator{}
	s := newTestScheduler(storage, inst, clock, true)

	s.poll()

	require.Len(t, inst.dedupKeys, 1)
	stored, err := storage.GetSchedule("sched-1")
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 14, 9, 0), stored.NextRunAt)
}

func TestSchedulerRetriesFailedSlot(t *testing.T) {
	storage := inmem.NewInmemScheduleStorage()
	slot := date(2025, time.March, 10, 9, 0)
	require.NoError(t, storage.SaveSchedule(model.RecurringSchedule{
		Id:         "sched-1",
		TemplateId: "tmpl-1",
		ClientId:   "client-1",
		Frequency:  model.FREQ_DAILY,
		Interval:   1,
		NextRunAt:  slot,
		IsActive:   true,
	}))
	clock := util.NewFakeClock(slot.Add(time.Minute))
	inst := &fakeInstantiator{err: errors.New("storage down")}
	s := newTestScheduler(storage, inst, clock, true)

	s.poll()

	stored, err := storage.GetSchedule("sched-1")
	require.NoError(t, err)
	require.Equal(t, slot, stored.NextRunAt, "failed slot is not consumed")

	inst.err = nil
	s.poll()
	require.Len(t, inst.dedupKeys, 1)
}

func TestSchedulerDeactivatesEndedSchedule(t *testing.T) {
	storage := inmem.NewInmemScheduleStorage()
	end := date(2025, time.March, 1, 0, 0)
	require.NoError(t, storage.SaveSchedule(model.RecurringSchedule{
		Id:         "sched-1",
		TemplateId: "tmpl-1",
		ClientId:   "client-1",
		Frequency:  model.FREQ_DAILY,
		Interval:   1,
		NextRunAt:  date(2025, time.February, 28, 9, 0),
		EndDate:    &end,
		IsActive:   true,
	}))
	clock := util.NewFakeClock(date(2025, time.March, 2, 0, 0))
	inst := &fakeInstantiator{}
	s := newTestScheduler(storage, inst, clock, true)

	s.poll()

	require.Empty(t, inst.dedupKeys)
	stored, err := storage.GetSchedule("sched-1")
	require.NoError(t, err)
	require.False(t, stored.IsActive)
}

func TestSchedulerFollowerDoesNothing(t *testing.T) {
	storage := inmem.NewInmemScheduleStorage()
	require.NoError(t, storage.SaveSchedule(model.RecurringSchedule{
		Id:         "sched-1",
		TemplateId: "tmpl-1",
		Frequency:  model.FREQ_DAILY,
		Interval:   1,
		NextRunAt:  date(2025, time.March, 10, 9, 0),
		IsActive:   true,
	}))
	clock := util.NewFakeClock(date(2025, time.March, 10, 10, 0))
	inst := &fakeInstantiator{}
	s := newTestScheduler(storage, inst, clock, false)

	s.poll()

	require.Empty(t, inst.dedupKeys)
}
