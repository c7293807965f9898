package action

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mohitkumar/praxis/analytics"
	"github.com/mohitkumar/praxis/assignment"
	"github.com/mohitkumar/praxis/condition"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

type dispatchRequest struct {
	assignmentId string
	nodeId       string
	spec         model.ActionSpec
	attempt      int
}

// Dispatcher fans node completions out to their configured actions on a
// background worker. Failed executions are retried with exponential backoff
// up to the action's retry policy; exhaustion is recorded, never propagated
// back into the progression that triggered the action.
type Dispatcher struct {
	storage   persistence.AssignmentStorage
	executors map[model.ActionKind]Executor
	worker    *util.Worker
}

var _ assignment.TransitionSink = new(Dispatcher)

func NewDispatcher(storage persistence.AssignmentStorage, wg *sync.WaitGroup, capacity int) *Dispatcher {
	d := &Dispatcher{
		storage:   storage,
		executors: make(map[model.ActionKind]Executor),
	}
	d.worker = util.NewWorker("action-dispatcher", wg, d.handle, capacity)
	return d
}

func (d *Dispatcher) Register(ex Executor) {
	d.executors[ex.Kind()] = ex
}

func (d *Dispatcher) Start() {
	d.worker.Start()
}

func (d *Dispatcher) Stop() {
	d.worker.Stop()
}

func (d *Dispatcher) OnTransitions(a *model.Assignment, transitions []model.NodeTransition) {
	for _, t := range transitions {
		if t.To != model.NODE_COMPLETED {
			continue
		}
		for _, spec := range nodeActions(a, t.NodeId) {
			d.worker.Sender() <- dispatchRequest{
				assignmentId: a.Id,
				nodeId:       t.NodeId,
				spec:         spec,
				attempt:      1,
			}
		}
	}
}

func (d *Dispatcher) handle(job util.Job) error {
	req := job.(dispatchRequest)
	a, err := d.storage.GetAssignmentByNode(req.nodeId)
	if err != nil {
		return err
	}
	state, found := nodeState(a, req.nodeId)
	if !found {
		return model.NotFoundError{Kind: "node", Id: req.nodeId}
	}
	if a.Status == model.ASSIGNMENT_CANCELLED || state == model.NODE_CANCELLED {
		logger.Debug("action suppressed for cancelled node",
			zap.String("assignment", a.Id),
			zap.String("node", req.nodeId),
			zap.String("kind", string(req.spec.Kind)))
		return nil
	}
	if req.spec.Guard != "" && !d.guardPasses(a, req) {
		return nil
	}
	ex, ok := d.executors[req.spec.Kind]
	if !ok {
		analytics.RecordActionFailure(model.ActionExecutionFailure{
			NodeId:   req.nodeId,
			Kind:     req.spec.Kind,
			Attempts: req.attempt,
			Cause:    fmt.Errorf("no executor registered for kind %s", req.spec.Kind),
		})
		return fmt.Errorf("no executor registered for kind %s", req.spec.Kind)
	}
	err = ex.Execute(a, req.nodeId, req.spec)
	if err == nil {
		return nil
	}
	policy := req.spec.Retry.OrDefault()
	if req.attempt >= policy.MaxAttempts {
		logger.Error("action retries exhausted",
			zap.String("assignment", a.Id),
			zap.String("node", req.nodeId),
			zap.String("kind", string(req.spec.Kind)),
			zap.Int("attempts", req.attempt),
			zap.Error(err))
		analytics.RecordActionFailure(model.ActionExecutionFailure{
			NodeId:   req.nodeId,
			Kind:     req.spec.Kind,
			Attempts: req.attempt,
			Cause:    err,
		})
		return nil
	}
	delay := backoffDelay(policy, req.attempt)
	logger.Warn("action failed, retrying",
		zap.String("assignment", a.Id),
		zap.String("node", req.nodeId),
		zap.String("kind", string(req.spec.Kind)),
		zap.Int("attempt", req.attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
	next := req
	next.attempt++
	time.AfterFunc(delay, func() {
		d.worker.Sender() <- next
	})
	return nil
}

// guardPasses evaluates the action's guard fail-closed: a parse or
// evaluation error skips the action rather than dispatching it.
func (d *Dispatcher) guardPasses(a *model.Assignment, req dispatchRequest) bool {
	expr, err := condition.Parse(req.spec.Guard)
	if err != nil {
		logger.Warn("action guard does not parse, skipping",
			zap.String("node", req.nodeId),
			zap.Error(err))
		return false
	}
	ok, err := expr.Evaluate(assignment.ConditionEnv(a))
	if err != nil {
		logger.Warn("action guard evaluation failed, skipping",
			zap.String("node", req.nodeId),
			zap.Error(err))
		return false
	}
	if !ok {
		logger.Debug("action guard false, skipping",
			zap.String("node", req.nodeId),
			zap.String("guard", req.spec.Guard))
	}
	return ok
}

func backoffDelay(policy model.RetryPolicy, attempt int) time.Duration {
	seconds := float64(policy.InitialDelaySeconds) * math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	return time.Duration(seconds * float64(time.Second))
}

func nodeActions(a *model.Assignment, nodeId string) []model.ActionSpec {
	for _, stage := range a.Stages {
		if stage.Id == nodeId {
			return stage.OnCompleteActions
		}
		for _, step := range stage.Steps {
			if step.Id == nodeId {
				return step.OnCompleteActions
			}
			for _, task := range step.Tasks {
				if task.Id == nodeId {
					return task.OnCompleteActions
				}
			}
		}
	}
	return nil
}

func nodeState(a *model.Assignment, nodeId string) (model.NodeState, bool) {
	for _, stage := range a.Stages {
		if stage.Id == nodeId {
			return stage.State, true
		}
		for _, step := range stage.Steps {
			if step.Id == nodeId {
				return step.State, true
			}
			for _, task := range step.Tasks {
				if task.Id == nodeId {
					return task.State, true
				}
			}
		}
	}
	return "", false
}
