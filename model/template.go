package model

import "time"

type TemplateScope string

const SCOPE_GLOBAL TemplateScope = "global"
const SCOPE_ORGANIZATION TemplateScope = "organization"

type TemplateStatus string

const TEMPLATE_DRAFT TemplateStatus = "draft"
const TEMPLATE_PUBLISHED TemplateStatus = "published"

// WorkflowTemplate is the authored process definition. A published version is
// frozen; editing produces a new draft and publish bumps Version.
type WorkflowTemplate struct {
	Id        string         `json:"id"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	Scope     TemplateScope  `json:"scope"`
	Status    TemplateStatus `json:"status"`
	Version   int            `json:"version"`
	Stages    []StageDef     `json:"stages"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type StageDef struct {
	Id                      string       `json:"id"`
	Name                    string       `json:"name"`
	Order                   int          `json:"order"`
	AutoProgress            bool         `json:"autoProgress"`
	ProgressConditions      string       `json:"progressConditions,omitempty"`
	OnCompleteActions       []ActionSpec `json:"onCompleteActions,omitempty"`
	RequireAllStepsComplete bool         `json:"requireAllStepsComplete"`
	Steps                   []StepDef    `json:"steps"`
}

type StepDef struct {
	Id                      string       `json:"id"`
	Name                    string       `json:"name"`
	Order                   int          `json:"order"`
	AutoProgress            bool         `json:"autoProgress"`
	ProgressConditions      string       `json:"progressConditions,omitempty"`
	OnCompleteActions       []ActionSpec `json:"onCompleteActions,omitempty"`
	RequireAllTasksComplete bool         `json:"requireAllTasksComplete"`
	Tasks                   []TaskDef    `json:"tasks"`
}

type TaskDef struct {
	Id                           string         `json:"id"`
	Name                         string         `json:"name"`
	Order                        int            `json:"order"`
	AutoProgress                 bool           `json:"autoProgress"`
	ProgressConditions           string         `json:"progressConditions,omitempty"`
	OnCompleteActions            []ActionSpec   `json:"onCompleteActions,omitempty"`
	RequireAllChecklistsComplete bool           `json:"requireAllChecklistsComplete"`
	RequireAllSubtasksComplete   bool           `json:"requireAllSubtasksComplete"`
	ClientVisible                bool           `json:"clientVisible"`
	AssigneeRole                 string         `json:"assigneeRole,omitempty"`
	Checklists                   []ChecklistDef `json:"checklists,omitempty"`
	Subtasks                     []SubtaskDef   `json:"subtasks,omitempty"`
}

type ChecklistDef struct {
	Id       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

type SubtaskDef struct {
	Id       string `json:"id"`
	Title    string `json:"title"`
	Required bool   `json:"required"`
}

type ActionKind string

const ACTION_NOTIFY ActionKind = "notify"
const ACTION_INVOKE_AGENT ActionKind = "invoke_agent"
const ACTION_CALL_ENDPOINT ActionKind = "call_endpoint"
const ACTION_SET_VISIBILITY ActionKind = "set_visibility"

// ActionSpec is a closed tagged variant; Kind selects which parameter group is
// meaningful. New kinds are added here and in the action executors.
type ActionSpec struct {
	Kind        ActionKind     `json:"kind"`
	Guard       string         `json:"guard,omitempty"`
	Recipient   string         `json:"recipient,omitempty"`
	TemplateKey string         `json:"templateKey,omitempty"`
	AgentRef    string         `json:"agentRef,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Url         string         `json:"url,omitempty"`
	Method      string         `json:"method,omitempty"`
	Visible     bool           `json:"visible,omitempty"`
	Retry       RetryPolicy    `json:"retry"`
}

type RetryPolicy struct {
	MaxAttempts         int     `json:"maxAttempts"`
	InitialDelaySeconds int     `json:"initialDelaySeconds"`
	BackoffMultiplier   float64 `json:"backoffMultiplier"`
}

func (r RetryPolicy) OrDefault() RetryPolicy {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.InitialDelaySeconds <= 0 {
		r.InitialDelaySeconds = 1
	}
	if r.BackoffMultiplier <= 1 {
		r.BackoffMultiplier = 2
	}
	return r
}
