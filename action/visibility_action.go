package action

import (
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"go.uber.org/zap"
)

// visibilityExecutor flips a task's client visibility flag. The write goes
// through the assignment's version token like any other mutation; a
// concurrency conflict surfaces as an error and the dispatcher retries.
type visibilityExecutor struct {
	storage persistence.AssignmentStorage
}

var _ Executor = new(visibilityExecutor)

func NewVisibilityExecutor(storage persistence.AssignmentStorage) Executor {
	return &visibilityExecutor{storage: storage}
}

func (ex *visibilityExecutor) Kind() model.ActionKind {
	return model.ACTION_SET_VISIBILITY
}

func (ex *visibilityExecutor) Execute(a *model.Assignment, nodeId string, spec model.ActionSpec) error {
	fresh, err := ex.storage.GetAssignmentByNode(nodeId)
	if err != nil {
		return err
	}
	changed := false
	for _, stage := range fresh.Stages {
		for _, step := range stage.Steps {
			for _, task := range step.Tasks {
				if task.Id == nodeId && task.ClientVisible != spec.Visible {
					task.ClientVisible = spec.Visible
					changed = true
				}
			}
		}
	}
	if !changed {
		return nil
	}
	if err := ex.storage.SaveAssignment(fresh, fresh.Version); err != nil {
		return err
	}
	logger.Debug("task visibility updated",
		zap.String("assignment", fresh.Id),
		zap.String("node", nodeId),
		zap.Bool("visible", spec.Visible))
	return nil
}
