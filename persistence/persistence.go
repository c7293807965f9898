package persistence

import (
	"fmt"
	"time"

	"github.com/mohitkumar/praxis/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// MetadataStorage holds template drafts and the append-only published
// version history.
type MetadataStorage interface {
	SaveDraft(t model.WorkflowTemplate) error
	GetDraft(id string) (*model.WorkflowTemplate, error)
	SavePublishedVersion(t model.WorkflowTemplate) error
	GetLatestPublished(id string) (*model.WorkflowTemplate, error)
	GetVersion(id string, version int) (*model.WorkflowTemplate, error)
	ListTemplates(scope model.TemplateScope) ([]model.WorkflowTemplate, error)
}

// AssignmentStorage persists assignment trees. CreateAssignmentTree is
// all-or-nothing; SaveAssignment applies optimistic concurrency against
// expectedVersion and returns model.ConcurrencyConflict on collision.
type AssignmentStorage interface {
	CreateAssignmentTree(a *model.Assignment, dedupKey string) (string, error)
	GetAssignment(id string) (*model.Assignment, error)
	GetAssignmentByNode(nodeId string) (*model.Assignment, error)
	SaveAssignment(a *model.Assignment, expectedVersion int64) error
}

type ScheduleStorage interface {
	SaveSchedule(s model.RecurringSchedule) error
	GetSchedule(id string) (*model.RecurringSchedule, error)
	DeleteSchedule(id string) error
	ListDueSchedules(now time.Time) ([]model.RecurringSchedule, error)
}

type FollowupStorage interface {
	SaveFollowup(f model.TaskFollowup) error
	GetFollowup(id string) (*model.TaskFollowup, error)
	ListDueFollowups(now time.Time) ([]model.TaskFollowup, error)
	ListFollowupsByTask(taskId string) ([]model.TaskFollowup, error)
}
