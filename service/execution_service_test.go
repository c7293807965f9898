package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohitkumar/praxis/action"
	"github.com/mohitkumar/praxis/analytics"
	"github.com/mohitkumar/praxis/assignment"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence/inmem"
	"github.com/mohitkumar/praxis/template"
	"github.com/mohitkumar/praxis/util"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service      *ExecutionService
	correlations *action.CorrelationRegistry
	followups    *inmem.InmemFollowupStorage
	assignments  *inmem.InmemAssignmentStorage
	clock        *util.FakeClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	metadata := inmem.NewInmemMetadataStorage()
	assignments := inmem.NewInmemAssignmentStorage()
	followups := inmem.NewInmemFollowupStorage()
	clock := util.NewFakeClock(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))

	templates := template.NewStore(metadata, clock)
	id, err := templates.SaveDraft(model.WorkflowTemplate{
		Id:     "tmpl-1",
		Name:   "Onboarding",
		Status: model.TEMPLATE_DRAFT,
		Stages: []model.StageDef{{
			Id:                      "stage_intake",
			Name:                    "Intake",
			Order:                   1,
			AutoProgress:            true,
			RequireAllStepsComplete: true,
			Steps: []model.StepDef{{
				Id:                      "step_docs",
				Name:                    "Documents",
				Order:                   1,
				AutoProgress:            true,
				RequireAllTasksComplete: true,
				Tasks: []model.TaskDef{
					{Id: "task_upload", Name: "Upload docs", Order: 1},
					{Id: "task_review", Name: "Review docs", Order: 2},
				},
			}},
		}},
	})
	require.NoError(t, err)
	_, err = templates.Publish(id)
	require.NoError(t, err)

	engine := assignment.NewProgressionEngine(assignments, clock)
	instantiator := assignment.NewInstantiator(templates, assignments, clock)
	correlations := action.NewCorrelationRegistry(time.Hour)

	return &serviceFixture{
		service:      NewExecutionService(instantiator, engine, correlations, followups, clock),
		correlations: correlations,
		followups:    followups,
		assignments:  assignments,
		clock:        clock,
	}
}

func (f *serviceFixture) instantiate(t *testing.T) *model.Assignment {
	t.Helper()
	id, err := f.service.Instantiate(model.InstantiateRequest{
		TemplateId: "tmpl-1",
		ClientId:   "client-1",
	})
	require.NoError(t, err)
	a, err := f.service.GetSnapshot(id)
	require.NoError(t, err)
	return a
}

func TestInstantiateValidatesRequest(t *testing.T) {
	f := newServiceFixture(t)
	var verr model.ValidationError
	_, err := f.service.Instantiate(model.InstantiateRequest{ClientId: "client-1"})
	require.ErrorAs(t, err, &verr)
	_, err = f.service.Instantiate(model.InstantiateRequest{TemplateId: "tmpl-1"})
	require.ErrorAs(t, err, &verr)
}

func TestAgentResultCompletesTask(t *testing.T) {
	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[0].Id
	f.correlations.Register("corr-1", taskId)

	updated, err := f.service.OnAgentResult(model.AgentResult{
		CorrelationId: "corr-1",
		Output:        map[string]any{"documents": 4},
	})
	require.NoError(t, err)
	require.Equal(t, model.NODE_COMPLETED, updated.Stages[0].Steps[0].Tasks[0].State)

	snapshot, err := f.service.GetSnapshot(updated.Id)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"documents": 4.0}, snapshot.Context["task_upload"])
}

func TestAgentResultRejectedWhenUnknown(t *testing.T) {
	f := newServiceFixture(t)
	f.instantiate(t)

	var verr model.ValidationError
	_, err := f.service.OnAgentResult(model.AgentResult{CorrelationId: "never-issued"})
	require.ErrorAs(t, err, &verr)
}

func TestAgentResultDuplicateRejected(t *testing.T) {
	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[0].Id
	f.correlations.Register("corr-1", taskId)

	_, err := f.service.OnAgentResult(model.AgentResult{CorrelationId: "corr-1"})
	require.NoError(t, err)
	_, err = f.service.OnAgentResult(model.AgentResult{CorrelationId: "corr-1"})
	require.Error(t, err, "a consumed correlation must not complete the task twice")
}

func TestAgentFailureLeavesTaskOpen(t *testing.T) {
	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[0].Id
	f.correlations.Register("corr-1", taskId)

	updated, err := f.service.OnAgentResult(model.AgentResult{
		CorrelationId: "corr-1",
		Error:         "agent crashed",
	})
	require.NoError(t, err)
	require.Nil(t, updated)

	snapshot, err := f.service.GetSnapshot(a.Id)
	require.NoError(t, err)
	require.Equal(t, model.NODE_PENDING, snapshot.Stages[0].Steps[0].Tasks[0].State)
}

func TestAgentFailureWrittenToAuditLog(t *testing.T) {
	auditFile := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, analytics.InitDataCollector(analytics.DataCollectorConfig{
		FileName:      auditFile,
		CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
	}))
	defer func() {
		_ = analytics.InitDataCollector(analytics.DataCollectorConfig{CollectorType: analytics.NOOP_DATA_COLLECTOR})
	}()

	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[0].Id
	f.correlations.Register("corr-1", taskId)

	_, err := f.service.OnAgentResult(model.AgentResult{
		CorrelationId: "corr-1",
		Error:         "agent crashed",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(auditFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "agent_failure")
	require.Contains(t, string(data), "corr-1")
	require.Contains(t, string(data), "agent crashed")
}

func TestCancelTaskReleasesPendingCorrelation(t *testing.T) {
	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[0].Id
	f.correlations.Register("corr-1", taskId)

	_, err := f.service.CancelNode(taskId)
	require.NoError(t, err)

	// a late agent result for the cancelled task is rejected as unknown
	var verr model.ValidationError
	_, err = f.service.OnAgentResult(model.AgentResult{
		CorrelationId: "corr-1",
		Output:        map[string]any{"documents": 4},
	})
	require.ErrorAs(t, err, &verr)
}

func TestFollowupPauseAndResume(t *testing.T) {
	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[0].Id

	id, err := f.service.UpsertFollowup(model.TaskFollowup{
		AssignmentId: a.Id,
		TaskId:       taskId,
		IntervalDays: 2,
		MaxRuns:      5,
		Recipient:    "client@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.PauseFollowup(id))
	stored, err := f.followups.GetFollowup(id)
	require.NoError(t, err)
	require.Equal(t, model.FOLLOWUP_PAUSED, stored.State)

	// a paused followup is never due, however far the clock runs ahead
	due, err := f.followups.ListDueFollowups(f.clock.Now().Add(30 * 24 * time.Hour))
	require.NoError(t, err)
	require.Empty(t, due)

	// pausing twice is rejected
	var precondition model.PreconditionNotMet
	require.ErrorAs(t, f.service.PauseFollowup(id), &precondition)

	require.NoError(t, f.service.ResumeFollowup(id))
	stored, err = f.followups.GetFollowup(id)
	require.NoError(t, err)
	require.Equal(t, model.FOLLOWUP_ACTIVE, stored.State)
	require.True(t, stored.NextRunAt.After(f.clock.Now()))
}

func TestCancelRetiresPausedFollowup(t *testing.T) {
	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[0].Id

	id, err := f.service.UpsertFollowup(model.TaskFollowup{
		AssignmentId: a.Id,
		TaskId:       taskId,
		IntervalDays: 1,
		Recipient:    "client@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, f.service.PauseFollowup(id))

	_, err = f.service.CancelAssignment(a.Id)
	require.NoError(t, err)

	stored, err := f.followups.GetFollowup(id)
	require.NoError(t, err)
	require.Equal(t, model.FOLLOWUP_CANCELLED, stored.State)
}

func TestTaskCompletionRetiresFollowups(t *testing.T) {
	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[0].Id

	followupId, err := f.service.UpsertFollowup(model.TaskFollowup{
		AssignmentId: a.Id,
		TaskId:       taskId,
		IntervalDays: 2,
		MaxRuns:      5,
		Recipient:    "client@example.com",
	})
	require.NoError(t, err)

	_, err = f.service.ReportCompletion(model.CompletionEvent{NodeId: taskId, Source: model.SOURCE_USER})
	require.NoError(t, err)

	stored, err := f.followups.GetFollowup(followupId)
	require.NoError(t, err)
	require.Equal(t, model.FOLLOWUP_COMPLETED, stored.State)
}

func TestCancelAssignmentCancelsFollowups(t *testing.T) {
	f := newServiceFixture(t)
	a := f.instantiate(t)
	taskId := a.Stages[0].Steps[0].Tasks[1].Id

	followupId, err := f.service.UpsertFollowup(model.TaskFollowup{
		AssignmentId: a.Id,
		TaskId:       taskId,
		IntervalDays: 1,
		Recipient:    "client@example.com",
	})
	require.NoError(t, err)

	_, err = f.service.CancelAssignment(a.Id)
	require.NoError(t, err)

	stored, err := f.followups.GetFollowup(followupId)
	require.NoError(t, err)
	require.Equal(t, model.FOLLOWUP_CANCELLED, stored.State)
}
