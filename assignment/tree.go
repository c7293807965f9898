package assignment

import (
	"github.com/mohitkumar/praxis/condition"
	"github.com/mohitkumar/praxis/model"
)

// nodeRef locates a node inside an assignment tree together with its parent
// chain. For a stage only stage is set; for a task all three are set.
type nodeRef struct {
	kind  model.NodeKind
	stage *model.AssignmentStage
	step  *model.AssignmentStep
	task  *model.AssignmentTask
}

func (n nodeRef) id() string {
	switch n.kind {
	case model.KIND_STAGE:
		return n.stage.Id
	case model.KIND_STEP:
		return n.step.Id
	default:
		return n.task.Id
	}
}

func findNode(a *model.Assignment, nodeId string) (nodeRef, bool) {
	for _, stage := range a.Stages {
		if stage.Id == nodeId {
			return nodeRef{kind: model.KIND_STAGE, stage: stage}, true
		}
		for _, step := range stage.Steps {
			if step.Id == nodeId {
				return nodeRef{kind: model.KIND_STEP, stage: stage, step: step}, true
			}
			for _, task := range step.Tasks {
				if task.Id == nodeId {
					return nodeRef{kind: model.KIND_TASK, stage: stage, step: step, task: task}, true
				}
			}
		}
	}
	return nodeRef{}, false
}

// nextStage returns the first not-done stage ordered after the given one.
func nextStage(a *model.Assignment, after *model.AssignmentStage) *model.AssignmentStage {
	var next *model.AssignmentStage
	for _, stage := range a.Stages {
		if stage.Order <= after.Order || stage.State.Terminal() {
			continue
		}
		if next == nil || stage.Order < next.Order {
			next = stage
		}
	}
	return next
}

func nextStep(stage *model.AssignmentStage, after *model.AssignmentStep) *model.AssignmentStep {
	var next *model.AssignmentStep
	for _, step := range stage.Steps {
		if step.Order <= after.Order || step.State.Terminal() {
			continue
		}
		if next == nil || step.Order < next.Order {
			next = step
		}
	}
	return next
}

func nextTask(step *model.AssignmentStep, after *model.AssignmentTask) *model.AssignmentTask {
	var next *model.AssignmentTask
	for _, task := range step.Tasks {
		if task.Order <= after.Order || task.State.Terminal() {
			continue
		}
		if next == nil || task.Order < next.Order {
			next = task
		}
	}
	return next
}

func firstStep(stage *model.AssignmentStage) *model.AssignmentStep {
	var first *model.AssignmentStep
	for _, step := range stage.Steps {
		if step.State.Terminal() {
			continue
		}
		if first == nil || step.Order < first.Order {
			first = step
		}
	}
	return first
}

func firstTask(step *model.AssignmentStep) *model.AssignmentTask {
	var first *model.AssignmentTask
	for _, task := range step.Tasks {
		if task.State.Terminal() {
			continue
		}
		if first == nil || task.Order < first.Order {
			first = task
		}
	}
	return first
}

// pointTo sets the assignment's current pointer to the given stage and the
// first open step/task underneath it.
func pointTo(a *model.Assignment, stage *model.AssignmentStage) {
	a.CurrentStageId = stage.Id
	a.CurrentStepId = ""
	a.CurrentTaskId = ""
	step := firstStep(stage)
	if step == nil {
		return
	}
	a.CurrentStepId = step.Id
	task := firstTask(step)
	if task != nil {
		a.CurrentTaskId = task.Id
	}
}

// ConditionEnv exposes context variables plus the completion state of every
// node, keyed by template ref since conditions are authored on the template.
func ConditionEnv(a *model.Assignment) condition.Env {
	nodes := make(map[string]bool)
	for _, stage := range a.Stages {
		nodes[stage.TemplateRef] = stage.State.Done()
		for _, step := range stage.Steps {
			nodes[step.TemplateRef] = step.State.Done()
			for _, task := range step.Tasks {
				nodes[task.TemplateRef] = task.State.Done()
				for _, item := range task.Checklists {
					nodes[item.TemplateRef] = item.Checked
				}
				for _, sub := range task.Subtasks {
					nodes[sub.TemplateRef] = sub.Completed
				}
			}
		}
	}
	vars := a.Context
	if vars == nil {
		vars = map[string]any{}
	}
	return condition.Env{Vars: vars, Nodes: nodes}
}
