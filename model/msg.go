package model

import "time"

type EventSource string

const SOURCE_USER EventSource = "user"
const SOURCE_AGENT EventSource = "agent"

// CompletionEvent is the single input of the progression engine. Human
// completions and agent callbacks both arrive through this shape.
type CompletionEvent struct {
	NodeId              string         `json:"nodeId"`
	Source              EventSource    `json:"source"`
	CorrelationId       string         `json:"correlationId,omitempty"`
	CheckedChecklistIds []string       `json:"checkedChecklistIds,omitempty"`
	CompletedSubtaskIds []string       `json:"completedSubtaskIds,omitempty"`
	Output              map[string]any `json:"output,omitempty"`
}

type NodeTransition struct {
	AssignmentId string    `json:"assignmentId"`
	NodeId       string    `json:"nodeId"`
	Kind         NodeKind  `json:"kind"`
	From         NodeState `json:"from"`
	To           NodeState `json:"to"`
	At           time.Time `json:"at"`
}

type InstantiateRequest struct {
	TemplateId      string         `json:"templateId"`
	TemplateVersion int            `json:"templateVersion,omitempty"`
	ClientId        string         `json:"clientId"`
	Name            string         `json:"name,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	DedupKey        string         `json:"dedupKey,omitempty"`
}

type AgentResult struct {
	CorrelationId string         `json:"correlationId"`
	Output        map[string]any `json:"output,omitempty"`
	Error         string         `json:"error,omitempty"`
}
