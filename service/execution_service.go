package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/praxis/action"
	"github.com/mohitkumar/praxis/analytics"
	"github.com/mohitkumar/praxis/assignment"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

const maxConflictRetries = 3

// ExecutionService is the application surface over the progression engine.
// It retries optimistic concurrency conflicts, routes agent results through
// the correlation registry and retires followups when their task closes.
type ExecutionService struct {
	instantiator *assignment.Instantiator
	engine       *assignment.ProgressionEngine
	correlations *action.CorrelationRegistry
	followups    persistence.FollowupStorage
	clock        util.Clock
}

func NewExecutionService(instantiator *assignment.Instantiator, engine *assignment.ProgressionEngine, correlations *action.CorrelationRegistry, followups persistence.FollowupStorage, clock util.Clock) *ExecutionService {
	return &ExecutionService{
		instantiator: instantiator,
		engine:       engine,
		correlations: correlations,
		followups:    followups,
		clock:        clock,
	}
}

func (s *ExecutionService) Instantiate(req model.InstantiateRequest) (string, error) {
	if req.TemplateId == "" {
		return "", model.ValidationError{Message: "templateId is required"}
	}
	if req.ClientId == "" {
		return "", model.ValidationError{Message: "clientId is required"}
	}
	return s.instantiator.Instantiate(req.TemplateId, req.TemplateVersion, req.ClientId, req.Name, req.Context, req.DedupKey)
}

// ReportCompletion applies a completion event, retrying when a concurrent
// writer bumped the version between read and write.
func (s *ExecutionService) ReportCompletion(event model.CompletionEvent) (*model.Assignment, error) {
	var a *model.Assignment
	var transitions []model.NodeTransition
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		a, transitions, err = s.engine.ReportCompletion(event)
		if err == nil {
			break
		}
		var conflict model.ConcurrencyConflict
		if !errors.As(err, &conflict) {
			return nil, err
		}
		logger.Debug("completion hit version conflict, retrying",
			zap.String("node", event.NodeId),
			zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return nil, err
	}
	s.retireFollowups(transitions)
	return a, nil
}

// OnAgentResult converts an agent callback into a completion event for the
// node its correlation id was registered against. Unknown, expired and
// duplicate correlations are rejected without touching any assignment.
func (s *ExecutionService) OnAgentResult(result model.AgentResult) (*model.Assignment, error) {
	nodeId, ok := s.correlations.Claim(result.CorrelationId)
	if !ok {
		analytics.RecordRejectedCorrelation(result.CorrelationId, "unknown, expired or already consumed")
		return nil, model.ValidationError{Message: fmt.Sprintf("unknown correlation id %s", result.CorrelationId)}
	}
	if result.Error != "" {
		analytics.RecordAgentFailure(result.CorrelationId, nodeId, result.Error)
		logger.Warn("agent reported failure, task stays open",
			zap.String("node", nodeId),
			zap.String("correlationId", result.CorrelationId),
			zap.String("error", result.Error))
		return nil, nil
	}
	return s.ReportCompletion(model.CompletionEvent{
		NodeId:        nodeId,
		Source:        model.SOURCE_AGENT,
		CorrelationId: result.CorrelationId,
		Output:        result.Output,
	})
}

func (s *ExecutionService) StartTask(nodeId string) (*model.Assignment, error) {
	return s.engine.StartTask(nodeId)
}

func (s *ExecutionService) SkipNode(nodeId string) (*model.Assignment, error) {
	a, err := s.engine.SkipNode(nodeId)
	if err != nil {
		return nil, err
	}
	s.retireFollowupsForTree(a)
	return a, nil
}

func (s *ExecutionService) CancelNode(nodeId string) (*model.Assignment, error) {
	a, err := s.engine.CancelNode(nodeId)
	if err != nil {
		return nil, err
	}
	s.retireFollowupsForTree(a)
	return a, nil
}

func (s *ExecutionService) CancelAssignment(id string) (*model.Assignment, error) {
	a, err := s.engine.CancelAssignment(id)
	if err != nil {
		return nil, err
	}
	s.retireFollowupsForTree(a)
	return a, nil
}

func (s *ExecutionService) GetSnapshot(id string) (*model.Assignment, error) {
	return s.engine.GetSnapshot(id)
}

// UpsertFollowup registers a reminder loop for an open client-facing task.
func (s *ExecutionService) UpsertFollowup(f model.TaskFollowup) (string, error) {
	if f.TaskId == "" || f.AssignmentId == "" {
		return "", model.ValidationError{Message: "taskId and assignmentId are required"}
	}
	if f.Recipient == "" {
		return "", model.ValidationError{Message: "recipient is required"}
	}
	if f.IntervalDays < 1 {
		f.IntervalDays = 1
	}
	if f.Id == "" {
		f.Id = uuid.New().String()
	}
	f.State = model.FOLLOWUP_ACTIVE
	if f.NextRunAt.IsZero() {
		f.NextRunAt = s.clock.Now().Add(time.Duration(f.IntervalDays) * 24 * time.Hour)
	}
	if err := s.followups.SaveFollowup(f); err != nil {
		return "", err
	}
	return f.Id, nil
}

// PauseFollowup suspends an active reminder loop without losing it.
func (s *ExecutionService) PauseFollowup(id string) error {
	f, err := s.followups.GetFollowup(id)
	if err != nil {
		return err
	}
	if f.State != model.FOLLOWUP_ACTIVE {
		return model.PreconditionNotMet{NodeId: id, Reason: fmt.Sprintf("followup is %s", f.State)}
	}
	f.State = model.FOLLOWUP_PAUSED
	return s.followups.SaveFollowup(*f)
}

// ResumeFollowup reactivates a paused loop. A slot missed during the pause is
// not fired retroactively; the next run lands one interval out.
func (s *ExecutionService) ResumeFollowup(id string) error {
	f, err := s.followups.GetFollowup(id)
	if err != nil {
		return err
	}
	if f.State != model.FOLLOWUP_PAUSED {
		return model.PreconditionNotMet{NodeId: id, Reason: fmt.Sprintf("followup is %s", f.State)}
	}
	f.State = model.FOLLOWUP_ACTIVE
	if f.NextRunAt.Before(s.clock.Now()) {
		f.NextRunAt = s.clock.Now().Add(time.Duration(f.IntervalDays) * 24 * time.Hour)
	}
	return s.followups.SaveFollowup(*f)
}

func (s *ExecutionService) retireFollowups(transitions []model.NodeTransition) {
	for _, t := range transitions {
		if t.Kind != model.KIND_TASK || !t.To.Terminal() {
			continue
		}
		s.correlations.ReleaseNode(t.NodeId)
		s.closeFollowupsForTask(t.NodeId, model.FOLLOWUP_COMPLETED)
	}
}

func (s *ExecutionService) retireFollowupsForTree(a *model.Assignment) {
	for _, stage := range a.Stages {
		for _, step := range stage.Steps {
			for _, task := range step.Tasks {
				switch task.State {
				case model.NODE_CANCELLED:
					s.correlations.ReleaseNode(task.Id)
					s.closeFollowupsForTask(task.Id, model.FOLLOWUP_CANCELLED)
				case model.NODE_COMPLETED, model.NODE_SKIPPED:
					s.correlations.ReleaseNode(task.Id)
					s.closeFollowupsForTask(task.Id, model.FOLLOWUP_COMPLETED)
				}
			}
		}
	}
}

func (s *ExecutionService) closeFollowupsForTask(taskId string, state model.FollowupState) {
	followups, err := s.followups.ListFollowupsByTask(taskId)
	if err != nil {
		logger.Error("listing followups for task failed", zap.String("task", taskId), zap.Error(err))
		return
	}
	for _, f := range followups {
		if f.State != model.FOLLOWUP_ACTIVE && f.State != model.FOLLOWUP_PAUSED {
			continue
		}
		f.State = state
		if err := s.followups.SaveFollowup(f); err != nil {
			logger.Error("retiring followup failed", zap.String("followup", f.Id), zap.Error(err))
		}
	}
}
