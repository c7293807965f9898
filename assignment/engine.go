package assignment

import (
	"fmt"
	"time"

	"github.com/mohitkumar/praxis/analytics"
	"github.com/mohitkumar/praxis/condition"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

// TransitionSink receives the transitions of a committed progression, after
// the optimistic save succeeded. Dispatch happens outside the transaction;
// the commit is authoritative whether or not downstream actions succeed.
type TransitionSink interface {
	OnTransitions(a *model.Assignment, transitions []model.NodeTransition)
}

// ProgressionEngine is the hierarchical state machine over assignment trees.
// Every mutation loads the tree, applies transitions in memory and writes it
// back under the assignment's optimistic version token; racing writers get
// model.ConcurrencyConflict and must re-read and retry.
type ProgressionEngine struct {
	storage persistence.AssignmentStorage
	clock   util.Clock
	sink    TransitionSink
}

func NewProgressionEngine(storage persistence.AssignmentStorage, clock util.Clock) *ProgressionEngine {
	return &ProgressionEngine{
		storage: storage,
		clock:   clock,
	}
}

func (e *ProgressionEngine) SetTransitionSink(sink TransitionSink) {
	e.sink = sink
}

// ReportCompletion is the single entry point for completion events, human or
// agent. A rejected event leaves the tree untouched.
func (e *ProgressionEngine) ReportCompletion(event model.CompletionEvent) (*model.Assignment, []model.NodeTransition, error) {
	a, err := e.storage.GetAssignmentByNode(event.NodeId)
	if err != nil {
		return nil, nil, err
	}
	if a.Status.Terminal() {
		return nil, nil, model.PreconditionNotMet{NodeId: event.NodeId, Reason: fmt.Sprintf("assignment is %s", a.Status)}
	}
	expected := a.Version
	ref, ok := findNode(a, event.NodeId)
	if !ok {
		return nil, nil, model.NotFoundError{Kind: "node", Id: event.NodeId}
	}
	now := e.clock.Now()
	var transitions []model.NodeTransition
	switch ref.kind {
	case model.KIND_TASK:
		e.applyEvidence(a, ref.task, event)
		err = e.completeTask(a, ref.stage, ref.step, ref.task, now, &transitions)
	case model.KIND_STEP:
		err = e.completeStep(a, ref.stage, ref.step, now, &transitions)
	case model.KIND_STAGE:
		err = e.completeStage(a, ref.stage, now, &transitions)
	}
	if err != nil {
		return nil, nil, err
	}
	return e.commit(a, expected, transitions)
}

// StartTask begins explicit work on a leaf task, starting its ancestors and
// moving the current pointer onto it.
func (e *ProgressionEngine) StartTask(nodeId string) (*model.Assignment, error) {
	a, err := e.storage.GetAssignmentByNode(nodeId)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("assignment is %s", a.Status)}
	}
	ref, ok := findNode(a, nodeId)
	if !ok || ref.kind != model.KIND_TASK {
		return nil, model.NotFoundError{Kind: "task", Id: nodeId}
	}
	if ref.task.State.Terminal() {
		return nil, model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("task is %s", ref.task.State)}
	}
	expected := a.Version
	now := e.clock.Now()
	var transitions []model.NodeTransition
	e.ensureStarted(a, ref.stage, ref.step, now, &transitions)
	if ref.task.State == model.NODE_PENDING {
		e.transition(a, ref.task.Id, model.KIND_TASK, &ref.task.State, model.NODE_IN_PROGRESS, now, &transitions)
		ref.task.StartedAt = &now
	}
	a.CurrentStageId = ref.stage.Id
	a.CurrentStepId = ref.step.Id
	a.CurrentTaskId = ref.task.Id
	committed, _, err := e.commit(a, expected, transitions)
	return committed, err
}

// CancelNode cancels a node and all of its still-open descendants.
// Non-retroactive: completed work stays completed, dispatched actions are not
// recalled.
func (e *ProgressionEngine) CancelNode(nodeId string) (*model.Assignment, error) {
	a, err := e.storage.GetAssignmentByNode(nodeId)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("assignment is %s", a.Status)}
	}
	ref, ok := findNode(a, nodeId)
	if !ok {
		return nil, model.NotFoundError{Kind: "node", Id: nodeId}
	}
	expected := a.Version
	now := e.clock.Now()
	var transitions []model.NodeTransition
	switch ref.kind {
	case model.KIND_STAGE:
		e.cancelStage(a, ref.stage, now, &transitions)
	case model.KIND_STEP:
		e.cancelStep(a, ref.step, now, &transitions)
	case model.KIND_TASK:
		e.cancelTask(a, ref.task, now, &transitions)
	}
	if open := firstOpenStage(a); open != nil {
		if cur, ok := findNode(a, a.CurrentTaskId); !ok || cur.task == nil || cur.task.State.Terminal() {
			pointTo(a, open)
		}
	}
	committed, _, err := e.commit(a, expected, transitions)
	return committed, err
}

// SkipNode marks a node skipped. Skipped nodes satisfy parent completion
// rules the same way completed ones do, so skipping can cascade upward; open
// descendants are skipped along with the node.
func (e *ProgressionEngine) SkipNode(nodeId string) (*model.Assignment, error) {
	a, err := e.storage.GetAssignmentByNode(nodeId)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("assignment is %s", a.Status)}
	}
	ref, ok := findNode(a, nodeId)
	if !ok {
		return nil, model.NotFoundError{Kind: "node", Id: nodeId}
	}
	expected := a.Version
	now := e.clock.Now()
	var transitions []model.NodeTransition
	switch ref.kind {
	case model.KIND_TASK:
		if ref.task.State.Terminal() {
			return nil, model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("task is already %s", ref.task.State)}
		}
		e.transition(a, ref.task.Id, model.KIND_TASK, &ref.task.State, model.NODE_SKIPPED, now, &transitions)
		err = e.advanceFromTask(a, ref.stage, ref.step, ref.task, now, &transitions)
	case model.KIND_STEP:
		if ref.step.State.Terminal() {
			return nil, model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("step is already %s", ref.step.State)}
		}
		e.skipStep(a, ref.step, now, &transitions)
		err = e.advanceFromStep(a, ref.stage, ref.step, now, &transitions)
	case model.KIND_STAGE:
		if ref.stage.State.Terminal() {
			return nil, model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("stage is already %s", ref.stage.State)}
		}
		e.skipStage(a, ref.stage, now, &transitions)
		err = e.advanceFromStage(a, ref.stage, now, &transitions)
	}
	if err != nil {
		return nil, err
	}
	committed, _, err := e.commit(a, expected, transitions)
	return committed, err
}

// CancelAssignment cancels the assignment and every still-open node under it.
func (e *ProgressionEngine) CancelAssignment(id string) (*model.Assignment, error) {
	a, err := e.storage.GetAssignment(id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, model.PreconditionNotMet{NodeId: id, Reason: fmt.Sprintf("assignment is %s", a.Status)}
	}
	expected := a.Version
	now := e.clock.Now()
	var transitions []model.NodeTransition
	for _, stage := range a.Stages {
		e.cancelStage(a, stage, now, &transitions)
	}
	a.Status = model.ASSIGNMENT_CANCELLED
	committed, _, err := e.commit(a, expected, transitions)
	return committed, err
}

func (e *ProgressionEngine) GetSnapshot(id string) (*model.Assignment, error) {
	return e.storage.GetAssignment(id)
}

func (e *ProgressionEngine) commit(a *model.Assignment, expectedVersion int64, transitions []model.NodeTransition) (*model.Assignment, []model.NodeTransition, error) {
	a.RecomputeProgress()
	a.UpdatedAt = e.clock.Now()
	if err := e.storage.SaveAssignment(a, expectedVersion); err != nil {
		return nil, nil, err
	}
	for _, t := range transitions {
		analytics.RecordNodeTransition(t)
	}
	if len(transitions) > 0 {
		logger.Debug("progression committed", zap.String("assignment", a.Id), zap.Int("transitions", len(transitions)))
	}
	if e.sink != nil && len(transitions) > 0 {
		e.sink.OnTransitions(a, transitions)
	}
	return a, transitions, nil
}

func (e *ProgressionEngine) applyEvidence(a *model.Assignment, task *model.AssignmentTask, event model.CompletionEvent) {
	for _, id := range event.CheckedChecklistIds {
		for _, item := range task.Checklists {
			if item.Id == id || item.TemplateRef == id {
				item.Checked = true
			}
		}
	}
	for _, id := range event.CompletedSubtaskIds {
		for _, sub := range task.Subtasks {
			if sub.Id == id || sub.TemplateRef == id {
				sub.Completed = true
			}
		}
	}
	if len(event.Output) > 0 {
		if a.Context == nil {
			a.Context = make(map[string]any)
		}
		a.Context[task.TemplateRef] = event.Output
	}
}

func (e *ProgressionEngine) completeTask(a *model.Assignment, stage *model.AssignmentStage, step *model.AssignmentStep, task *model.AssignmentTask, now time.Time, transitions *[]model.NodeTransition) error {
	if task.State.Terminal() {
		return model.PreconditionNotMet{NodeId: task.Id, Reason: fmt.Sprintf("task is already %s", task.State)}
	}
	if reason := taskPrereqs(task); reason != "" {
		return model.PreconditionNotMet{NodeId: task.Id, Reason: reason}
	}
	if err := e.checkConditions(a, task.ProgressConditions, task.Id); err != nil {
		return err
	}
	e.ensureStarted(a, stage, step, now, transitions)
	if task.State == model.NODE_PENDING {
		e.transition(a, task.Id, model.KIND_TASK, &task.State, model.NODE_IN_PROGRESS, now, transitions)
		task.StartedAt = &now
	}
	e.transition(a, task.Id, model.KIND_TASK, &task.State, model.NODE_COMPLETED, now, transitions)
	task.CompletedAt = &now
	return e.advanceFromTask(a, stage, step, task, now, transitions)
}

func (e *ProgressionEngine) advanceFromTask(a *model.Assignment, stage *model.AssignmentStage, step *model.AssignmentStep, task *model.AssignmentTask, now time.Time, transitions *[]model.NodeTransition) error {
	if next := nextTask(step, task); next != nil {
		a.CurrentTaskId = next.Id
		return nil
	}
	if step.AutoProgress && e.stepReady(a, step) == nil {
		return e.completeStep(a, stage, step, now, transitions)
	}
	// earlier siblings may still be open, but the pointer never moves to a
	// lower order; it stays put until the step can close
	return nil
}

func (e *ProgressionEngine) completeStep(a *model.Assignment, stage *model.AssignmentStage, step *model.AssignmentStep, now time.Time, transitions *[]model.NodeTransition) error {
	if step.State.Terminal() {
		return model.PreconditionNotMet{NodeId: step.Id, Reason: fmt.Sprintf("step is already %s", step.State)}
	}
	if err := e.stepReady(a, step); err != nil {
		return err
	}
	e.ensureStarted(a, stage, nil, now, transitions)
	if step.State == model.NODE_PENDING {
		e.transition(a, step.Id, model.KIND_STEP, &step.State, model.NODE_IN_PROGRESS, now, transitions)
		step.StartedAt = &now
	}
	e.transition(a, step.Id, model.KIND_STEP, &step.State, model.NODE_COMPLETED, now, transitions)
	step.CompletedAt = &now
	return e.advanceFromStep(a, stage, step, now, transitions)
}

func (e *ProgressionEngine) advanceFromStep(a *model.Assignment, stage *model.AssignmentStage, step *model.AssignmentStep, now time.Time, transitions *[]model.NodeTransition) error {
	if next := nextStep(stage, step); next != nil {
		a.CurrentStepId = next.Id
		a.CurrentTaskId = ""
		if t := firstTask(next); t != nil {
			a.CurrentTaskId = t.Id
		}
		return nil
	}
	if stage.AutoProgress && e.stageReady(a, stage) == nil {
		return e.completeStage(a, stage, now, transitions)
	}
	return nil
}

func (e *ProgressionEngine) completeStage(a *model.Assignment, stage *model.AssignmentStage, now time.Time, transitions *[]model.NodeTransition) error {
	if stage.State.Terminal() {
		return model.PreconditionNotMet{NodeId: stage.Id, Reason: fmt.Sprintf("stage is already %s", stage.State)}
	}
	if err := e.stageReady(a, stage); err != nil {
		return err
	}
	e.ensureStarted(a, nil, nil, now, transitions)
	if stage.State == model.NODE_PENDING {
		e.transition(a, stage.Id, model.KIND_STAGE, &stage.State, model.NODE_IN_PROGRESS, now, transitions)
		stage.StartedAt = &now
	}
	e.transition(a, stage.Id, model.KIND_STAGE, &stage.State, model.NODE_COMPLETED, now, transitions)
	stage.CompletedAt = &now
	return e.advanceFromStage(a, stage, now, transitions)
}

func (e *ProgressionEngine) advanceFromStage(a *model.Assignment, stage *model.AssignmentStage, now time.Time, transitions *[]model.NodeTransition) error {
	if next := nextStage(a, stage); next != nil {
		pointTo(a, next)
		return nil
	}
	allDone := true
	for _, s := range a.Stages {
		if !s.State.Done() {
			allDone = false
			break
		}
	}
	if allDone {
		a.Status = model.ASSIGNMENT_COMPLETED
		logger.Info("assignment completed", zap.String("assignment", a.Id))
	}
	return nil
}

// stepReady checks the step's completion rule without mutating anything.
func (e *ProgressionEngine) stepReady(a *model.Assignment, step *model.AssignmentStep) error {
	if step.RequireAllTasksComplete {
		for _, task := range step.Tasks {
			if !task.State.Done() {
				return model.PreconditionNotMet{NodeId: step.Id, Reason: fmt.Sprintf("task %s is %s", task.Id, task.State)}
			}
		}
	}
	return e.checkConditions(a, step.ProgressConditions, step.Id)
}

func (e *ProgressionEngine) stageReady(a *model.Assignment, stage *model.AssignmentStage) error {
	if stage.RequireAllStepsComplete {
		for _, step := range stage.Steps {
			if !step.State.Done() {
				return model.PreconditionNotMet{NodeId: stage.Id, Reason: fmt.Sprintf("step %s is %s", step.Id, step.State)}
			}
		}
	}
	return e.checkConditions(a, stage.ProgressConditions, stage.Id)
}

// checkConditions evaluates a progress condition fail-closed: any parse or
// evaluation error rejects the transition, never permits it.
func (e *ProgressionEngine) checkConditions(a *model.Assignment, src string, nodeId string) error {
	if src == "" {
		return nil
	}
	expr, err := condition.Parse(src)
	if err != nil {
		return model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("bad condition %q: %v", src, err)}
	}
	ok, err := expr.Evaluate(ConditionEnv(a))
	if err != nil {
		return model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("condition %q: %v", src, err)}
	}
	if !ok {
		return model.PreconditionNotMet{NodeId: nodeId, Reason: fmt.Sprintf("condition %q is false", src)}
	}
	return nil
}

func (e *ProgressionEngine) ensureStarted(a *model.Assignment, stage *model.AssignmentStage, step *model.AssignmentStep, now time.Time, transitions *[]model.NodeTransition) {
	if a.Status == model.ASSIGNMENT_NOT_STARTED {
		a.Status = model.ASSIGNMENT_IN_PROGRESS
	}
	if stage != nil && stage.State == model.NODE_PENDING {
		e.transition(a, stage.Id, model.KIND_STAGE, &stage.State, model.NODE_IN_PROGRESS, now, transitions)
		stage.StartedAt = &now
	}
	if step != nil && step.State == model.NODE_PENDING {
		e.transition(a, step.Id, model.KIND_STEP, &step.State, model.NODE_IN_PROGRESS, now, transitions)
		step.StartedAt = &now
	}
}

func (e *ProgressionEngine) transition(a *model.Assignment, nodeId string, kind model.NodeKind, state *model.NodeState, to model.NodeState, now time.Time, transitions *[]model.NodeTransition) {
	*transitions = append(*transitions, model.NodeTransition{
		AssignmentId: a.Id,
		NodeId:       nodeId,
		Kind:         kind,
		From:         *state,
		To:           to,
		At:           now,
	})
	*state = to
}

func (e *ProgressionEngine) cancelStage(a *model.Assignment, stage *model.AssignmentStage, now time.Time, transitions *[]model.NodeTransition) {
	for _, step := range stage.Steps {
		e.cancelStep(a, step, now, transitions)
	}
	if !stage.State.Terminal() {
		e.transition(a, stage.Id, model.KIND_STAGE, &stage.State, model.NODE_CANCELLED, now, transitions)
	}
}

func (e *ProgressionEngine) cancelStep(a *model.Assignment, step *model.AssignmentStep, now time.Time, transitions *[]model.NodeTransition) {
	for _, task := range step.Tasks {
		e.cancelTask(a, task, now, transitions)
	}
	if !step.State.Terminal() {
		e.transition(a, step.Id, model.KIND_STEP, &step.State, model.NODE_CANCELLED, now, transitions)
	}
}

func (e *ProgressionEngine) cancelTask(a *model.Assignment, task *model.AssignmentTask, now time.Time, transitions *[]model.NodeTransition) {
	if !task.State.Terminal() {
		e.transition(a, task.Id, model.KIND_TASK, &task.State, model.NODE_CANCELLED, now, transitions)
	}
}

func (e *ProgressionEngine) skipStage(a *model.Assignment, stage *model.AssignmentStage, now time.Time, transitions *[]model.NodeTransition) {
	for _, step := range stage.Steps {
		if !step.State.Terminal() {
			e.skipStep(a, step, now, transitions)
		}
	}
	e.transition(a, stage.Id, model.KIND_STAGE, &stage.State, model.NODE_SKIPPED, now, transitions)
}

func (e *ProgressionEngine) skipStep(a *model.Assignment, step *model.AssignmentStep, now time.Time, transitions *[]model.NodeTransition) {
	for _, task := range step.Tasks {
		if !task.State.Terminal() {
			e.transition(a, task.Id, model.KIND_TASK, &task.State, model.NODE_SKIPPED, now, transitions)
		}
	}
	e.transition(a, step.Id, model.KIND_STEP, &step.State, model.NODE_SKIPPED, now, transitions)
}

func firstOpenStage(a *model.Assignment) *model.AssignmentStage {
	var first *model.AssignmentStage
	for _, stage := range a.Stages {
		if stage.State.Terminal() {
			continue
		}
		if first == nil || stage.Order < first.Order {
			first = stage
		}
	}
	return first
}

func taskPrereqs(task *model.AssignmentTask) string {
	for _, item := range task.Checklists {
		if (task.RequireAllChecklistsComplete || item.Required) && !item.Checked {
			return fmt.Sprintf("checklist %q is unchecked", item.Label)
		}
	}
	for _, sub := range task.Subtasks {
		if (task.RequireAllSubtasksComplete || sub.Required) && !sub.Completed {
			return fmt.Sprintf("subtask %q is open", sub.Title)
		}
	}
	return ""
}
