package model

import "fmt"

// ValidationError covers malformed condition expressions and out-of-scope
// node references, caught at template publish.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// CloneFailure is any error during instantiation; the clone transaction is
// always rolled back before this surfaces.
type CloneFailure struct {
	TemplateId string
	Cause      error
}

func (e CloneFailure) Error() string {
	return fmt.Sprintf("clone of template %s failed: %v", e.TemplateId, e.Cause)
}

func (e CloneFailure) Unwrap() error {
	return e.Cause
}

// ConcurrencyConflict signals an optimistic-lock collision; the caller must
// re-fetch and retry.
type ConcurrencyConflict struct {
	AssignmentId string
}

func (e ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrent modification of assignment %s", e.AssignmentId)
}

// PreconditionNotMet rejects a completion event whose completion rule or
// progress condition evaluated false. Not retried automatically.
type PreconditionNotMet struct {
	NodeId string
	Reason string
}

func (e PreconditionNotMet) Error() string {
	return fmt.Sprintf("precondition not met for node %s: %s", e.NodeId, e.Reason)
}

// ActionExecutionFailure is recorded after an action exhausts its retries. It
// never rolls back the transition that triggered the action.
type ActionExecutionFailure struct {
	NodeId   string
	Kind     ActionKind
	Attempts int
	Cause    error
}

func (e ActionExecutionFailure) Error() string {
	return fmt.Sprintf("action %s on node %s failed after %d attempts: %v", e.Kind, e.NodeId, e.Attempts, e.Cause)
}

func (e ActionExecutionFailure) Unwrap() error {
	return e.Cause
}

type NotFoundError struct {
	Kind string
	Id   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}
