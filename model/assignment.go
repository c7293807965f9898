package model

import "time"

type NodeState string

const NODE_PENDING NodeState = "pending"
const NODE_IN_PROGRESS NodeState = "in_progress"
const NODE_COMPLETED NodeState = "completed"
const NODE_SKIPPED NodeState = "skipped"
const NODE_CANCELLED NodeState = "cancelled"

func (s NodeState) Terminal() bool {
	return s == NODE_COMPLETED || s == NODE_SKIPPED || s == NODE_CANCELLED
}

// Done reports whether the node satisfies a parent completion rule.
func (s NodeState) Done() bool {
	return s == NODE_COMPLETED || s == NODE_SKIPPED
}

type AssignmentStatus string

const ASSIGNMENT_NOT_STARTED AssignmentStatus = "not_started"
const ASSIGNMENT_IN_PROGRESS AssignmentStatus = "in_progress"
const ASSIGNMENT_WAITING_CLIENT AssignmentStatus = "waiting_client"
const ASSIGNMENT_REVIEW AssignmentStatus = "review"
const ASSIGNMENT_COMPLETED AssignmentStatus = "completed"
const ASSIGNMENT_CANCELLED AssignmentStatus = "cancelled"

func (s AssignmentStatus) Terminal() bool {
	return s == ASSIGNMENT_COMPLETED || s == ASSIGNMENT_CANCELLED
}

type NodeKind string

const KIND_STAGE NodeKind = "stage"
const KIND_STEP NodeKind = "step"
const KIND_TASK NodeKind = "task"

// Assignment is a per-client instance cloned from one template version. The
// assignment owns every node in its tree; TemplateRef on each node points back
// at the originating template node for audit only.
type Assignment struct {
	Id              string             `json:"id"`
	TemplateId      string             `json:"templateId"`
	TemplateVersion int                `json:"templateVersion"`
	ClientId        string             `json:"clientId"`
	Name            string             `json:"name"`
	Status          AssignmentStatus   `json:"status"`
	CurrentStageId  string             `json:"currentStageId"`
	CurrentStepId   string             `json:"currentStepId"`
	CurrentTaskId   string             `json:"currentTaskId"`
	Progress        int                `json:"progress"`
	Context         map[string]any     `json:"context,omitempty"`
	Version         int64              `json:"version"`
	Stages          []*AssignmentStage `json:"stages"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type AssignmentStage struct {
	Id                      string            `json:"id"`
	TemplateRef             string            `json:"templateRef"`
	Name                    string            `json:"name"`
	Order                   int               `json:"order"`
	State                   NodeState         `json:"state"`
	AutoProgress            bool              `json:"autoProgress"`
	ProgressConditions      string            `json:"progressConditions,omitempty"`
	OnCompleteActions       []ActionSpec      `json:"onCompleteActions,omitempty"`
	RequireAllStepsComplete bool              `json:"requireAllStepsComplete"`
	Steps                   []*AssignmentStep `json:"steps"`
	StartedAt               *time.Time        `json:"startedAt,omitempty"`
	CompletedAt             *time.Time        `json:"completedAt,omitempty"`
}

type AssignmentStep struct {
	Id                      string            `json:"id"`
	TemplateRef             string            `json:"templateRef"`
	Name                    string            `json:"name"`
	Order                   int               `json:"order"`
	State                   NodeState         `json:"state"`
	AutoProgress            bool              `json:"autoProgress"`
	ProgressConditions      string            `json:"progressConditions,omitempty"`
	OnCompleteActions       []ActionSpec      `json:"onCompleteActions,omitempty"`
	RequireAllTasksComplete bool              `json:"requireAllTasksComplete"`
	Tasks                   []*AssignmentTask `json:"tasks"`
	StartedAt               *time.Time        `json:"startedAt,omitempty"`
	CompletedAt             *time.Time        `json:"completedAt,omitempty"`
}

type AssignmentTask struct {
	Id                           string           `json:"id"`
	TemplateRef                  string           `json:"templateRef"`
	Name                         string           `json:"name"`
	Order                        int              `json:"order"`
	State                        NodeState        `json:"state"`
	AutoProgress                 bool             `json:"autoProgress"`
	ProgressConditions           string           `json:"progressConditions,omitempty"`
	OnCompleteActions            []ActionSpec     `json:"onCompleteActions,omitempty"`
	RequireAllChecklistsComplete bool             `json:"requireAllChecklistsComplete"`
	RequireAllSubtasksComplete   bool             `json:"requireAllSubtasksComplete"`
	ClientVisible                bool             `json:"clientVisible"`
	AssigneeRole                 string           `json:"assigneeRole,omitempty"`
	Checklists                   []*ChecklistItem `json:"checklists,omitempty"`
	Subtasks                     []*Subtask       `json:"subtasks,omitempty"`
	StartedAt                    *time.Time       `json:"startedAt,omitempty"`
	CompletedAt                  *time.Time       `json:"completedAt,omitempty"`
}

type ChecklistItem struct {
	Id          string `json:"id"`
	TemplateRef string `json:"templateRef"`
	Label       string `json:"label"`
	Required    bool   `json:"required"`
	Checked     bool   `json:"checked"`
}

type Subtask struct {
	Id          string `json:"id"`
	TemplateRef string `json:"templateRef"`
	Title       string `json:"title"`
	Required    bool   `json:"required"`
	Completed   bool   `json:"completed"`
}

// NodeCount is the total number of stage/step/task nodes in the tree.
func (a *Assignment) NodeCount() int {
	count := 0
	for _, stage := range a.Stages {
		count++
		for _, step := range stage.Steps {
			count++
			count += len(step.Tasks)
		}
	}
	return count
}

// RecomputeProgress derives the 0-100 progress value from task completion.
// Derived only, never authoritative.
func (a *Assignment) RecomputeProgress() {
	total := 0
	done := 0
	for _, stage := range a.Stages {
		for _, step := range stage.Steps {
			for _, task := range step.Tasks {
				total++
				if task.State.Done() {
					done++
				}
			}
		}
	}
	if total == 0 {
		a.Progress = 0
		return
	}
	a.Progress = done * 100 / total
}
