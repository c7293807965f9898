package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/mohitkumar/praxis/action"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

const REMINDER_TEMPLATE_KEY = "task_reminder"
const ESCALATION_TEMPLATE_KEY = "task_escalation"

// FollowupRunner sends periodic reminders for open client-facing tasks.
// After EscalateAfterRuns reminders the escalation recipient is notified as
// well; the followup retires itself at MaxRuns or as soon as the task is no
// longer open.
type FollowupRunner struct {
	storage     persistence.FollowupStorage
	assignments persistence.AssignmentStorage
	notifier    action.Notifier
	leadership  Leadership
	clock       util.Clock
	tw          *util.TickWorker
	stop        chan struct{}
}

func NewFollowupRunner(storage persistence.FollowupStorage, assignments persistence.AssignmentStorage, notifier action.Notifier, leadership Leadership, clock util.Clock, pollInterval time.Duration, wg *sync.WaitGroup) *FollowupRunner {
	r := &FollowupRunner{
		storage:     storage,
		assignments: assignments,
		notifier:    notifier,
		leadership:  leadership,
		clock:       clock,
		stop:        make(chan struct{}),
	}
	r.tw = util.NewTickWorker("followup-poller", pollInterval, r.stop, r.poll, wg)
	return r
}

func (r *FollowupRunner) Start() {
	r.tw.Start()
}

func (r *FollowupRunner) Stop() {
	if r.tw.IsRunning() {
		r.tw.Stop()
	}
}

func (r *FollowupRunner) poll() {
	if !r.leadership.IsLeader() {
		return
	}
	now := r.clock.Now()
	due, err := r.storage.ListDueFollowups(now)
	if err != nil {
		logger.Error("listing due followups failed", zap.Error(err))
		return
	}
	for _, f := range due {
		r.run(f, now)
	}
}

func (r *FollowupRunner) run(f model.TaskFollowup, now time.Time) {
	if f.State != model.FOLLOWUP_ACTIVE {
		return
	}
	open, taskName, err := r.taskOpen(f.TaskId)
	if err != nil {
		logger.Error("followup task lookup failed", zap.String("followup", f.Id), zap.Error(err))
		return
	}
	if !open {
		f.State = model.FOLLOWUP_COMPLETED
		r.save(f)
		return
	}
	vars := map[string]any{
		"assignmentId": f.AssignmentId,
		"taskId":       f.TaskId,
		"taskName":     taskName,
		"reminderNo":   f.RunCount + 1,
	}
	if err := r.notifier.Notify(f.Recipient, REMINDER_TEMPLATE_KEY, vars); err != nil {
		// NextRunAt stays put, the next tick retries the reminder.
		logger.Error("followup reminder failed", zap.String("followup", f.Id), zap.Error(err))
		return
	}
	f.RunCount++
	if f.EscalationRef != "" && f.RunCount > f.EscalateAfterRuns {
		if err := r.notifier.Notify(f.EscalationRef, ESCALATION_TEMPLATE_KEY, vars); err != nil {
			logger.Error("followup escalation failed", zap.String("followup", f.Id), zap.Error(err))
		}
	}
	if f.MaxRuns > 0 && f.RunCount >= f.MaxRuns {
		f.State = model.FOLLOWUP_COMPLETED
		r.save(f)
		logger.Info("followup exhausted", zap.String("followup", f.Id), zap.Int("runs", f.RunCount))
		return
	}
	interval := f.IntervalDays
	if interval < 1 {
		interval = 1
	}
	next := f.NextRunAt
	for !next.After(now) {
		next = next.AddDate(0, 0, interval)
	}
	f.NextRunAt = next
	r.save(f)
}

// taskOpen reports whether the follow-up target still needs nagging. A task
// that no longer exists counts as closed.
func (r *FollowupRunner) taskOpen(taskId string) (bool, string, error) {
	a, err := r.assignments.GetAssignmentByNode(taskId)
	if err != nil {
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			return false, "", nil
		}
		return false, "", err
	}
	if a.Status.Terminal() {
		return false, "", nil
	}
	for _, stage := range a.Stages {
		for _, step := range stage.Steps {
			for _, task := range step.Tasks {
				if task.Id == taskId {
					return !task.State.Terminal(), task.Name, nil
				}
			}
		}
	}
	return false, "", nil
}

func (r *FollowupRunner) save(f model.TaskFollowup) {
	if err := r.storage.SaveFollowup(f); err != nil {
		logger.Error("saving followup failed", zap.String("followup", f.Id), zap.Error(err))
	}
}
