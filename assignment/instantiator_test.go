package assignment

import (
	"errors"
	"testing"
	"time"

	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence/inmem"
	"github.com/mohitkumar/praxis/template"
	"github.com/mohitkumar/praxis/util"
	"github.com/stretchr/testify/require"
)

func taxFilingTemplate() model.WorkflowTemplate {
	return model.WorkflowTemplate{
		Id:   "tmpl-tax",
		Name: "Tax Filing",
		Stages: []model.StageDef{{
			Id:                      "stage_prep",
			Name:                    "Preparation",
			Order:                   1,
			AutoProgress:            true,
			RequireAllStepsComplete: true,
			Steps: []model.StepDef{{
				Id:                      "step_gather",
				Name:                    "Gather Documents",
				Order:                   1,
				AutoProgress:            true,
				RequireAllTasksComplete: true,
				Tasks: []model.TaskDef{
					{Id: "task_w2", Name: "Collect W-2", Order: 1},
					{Id: "task_1099", Name: "Collect 1099", Order: 2},
				},
			}, {
				Id:                      "step_review",
				Name:                    "Review",
				Order:                   2,
				AutoProgress:            true,
				RequireAllTasksComplete: true,
				ProgressConditions:      "done(task_review_docs)",
				Tasks: []model.TaskDef{
					{Id: "task_review_docs", Name: "Review documents", Order: 1},
				},
			}},
		}, {
			Id:                      "stage_file",
			Name:                    "Filing",
			Order:                   2,
			RequireAllStepsComplete: true,
			Steps: []model.StepDef{{
				Id:                      "step_submit",
				Name:                    "Submit",
				Order:                   1,
				AutoProgress:            true,
				RequireAllTasksComplete: true,
				Tasks: []model.TaskDef{{
					Id:    "task_efile",
					Name:  "E-file return",
					Order: 1,
					Checklists: []model.ChecklistDef{
						{Id: "check_signed", Label: "Return signed", Required: true},
					},
				}},
			}},
		}},
	}
}

func newFixture(t *testing.T) (*Instantiator, *inmem.InmemAssignmentStorage, *template.Store) {
	t.Helper()
	metadata := inmem.NewInmemMetadataStorage()
	storage := inmem.NewInmemAssignmentStorage()
	clock := util.NewFakeClock(time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC))
	templates := template.NewStore(metadata, clock)
	id, err := templates.SaveDraft(taxFilingTemplate())
	require.NoError(t, err)
	_, err = templates.Publish(id)
	require.NoError(t, err)
	return NewInstantiator(templates, storage, clock), storage, templates
}

func TestInstantiateClonesWholeTree(t *testing.T) {
	inst, storage, _ := newFixture(t)
	id, err := inst.Instantiate("tmpl-tax", 0, "client-1", "", map[string]any{"tier": "gold"}, "")
	require.NoError(t, err)

	a, err := storage.GetAssignment(id)
	require.NoError(t, err)
	require.Equal(t, "tmpl-tax", a.TemplateId)
	require.Equal(t, 1, a.TemplateVersion)
	require.Equal(t, "client-1", a.ClientId)
	require.Equal(t, "Tax Filing", a.Name, "name defaults to the template name")
	require.Equal(t, model.ASSIGNMENT_NOT_STARTED, a.Status)
	require.Equal(t, int64(1), a.Version)
	require.Equal(t, 7, a.NodeCount())
	require.Equal(t, "gold", a.Context["tier"])

	// fresh ids everywhere, template ids only as refs
	seen := map[string]bool{}
	for _, stage := range a.Stages {
		require.NotEqual(t, stage.TemplateRef, stage.Id)
		require.False(t, seen[stage.Id])
		seen[stage.Id] = true
		require.Equal(t, model.NODE_PENDING, stage.State)
		for _, step := range stage.Steps {
			require.NotEqual(t, step.TemplateRef, step.Id)
			require.False(t, seen[step.Id])
			seen[step.Id] = true
			require.Equal(t, model.NODE_PENDING, step.State)
			for _, task := range step.Tasks {
				require.NotEqual(t, task.TemplateRef, task.Id)
				require.False(t, seen[task.Id])
				seen[task.Id] = true
				require.Equal(t, model.NODE_PENDING, task.State)
			}
		}
	}

	// initial pointer sits on the first task of the first step of the first stage
	require.Equal(t, a.Stages[0].Id, a.CurrentStageId)
	require.Equal(t, a.Stages[0].Steps[0].Id, a.CurrentStepId)
	require.Equal(t, a.Stages[0].Steps[0].Tasks[0].Id, a.CurrentTaskId)
}

func TestInstantiatePinnedVersion(t *testing.T) {
	inst, storage, templates := newFixture(t)

	draft, err := templates.GetDraft("tmpl-tax")
	require.NoError(t, err)
	draft.Stages[0].Name = "Preparation v2"
	_, err = templates.SaveDraft(*draft)
	require.NoError(t, err)
	_, err = templates.Publish("tmpl-tax")
	require.NoError(t, err)

	id, err := inst.Instantiate("tmpl-tax", 1, "client-1", "", nil, "")
	require.NoError(t, err)
	a, err := storage.GetAssignment(id)
	require.NoError(t, err)
	require.Equal(t, 1, a.TemplateVersion)
	require.Equal(t, "Preparation", a.Stages[0].Name)

	id2, err := inst.Instantiate("tmpl-tax", 0, "client-1", "", nil, "")
	require.NoError(t, err)
	a2, err := storage.GetAssignment(id2)
	require.NoError(t, err)
	require.Equal(t, 2, a2.TemplateVersion)
	require.Equal(t, "Preparation v2", a2.Stages[0].Name)
}

func TestInstantiateDeduplicates(t *testing.T) {
	inst, storage, _ := newFixture(t)
	id1, err := inst.Instantiate("tmpl-tax", 0, "client-1", "", nil, "req-42")
	require.NoError(t, err)
	id2, err := inst.Instantiate("tmpl-tax", 0, "client-1", "", nil, "req-42")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Equal(t, 1, storage.Count())
}

func TestInstantiateIsAtomic(t *testing.T) {
	inst, storage, _ := newFixture(t)
	storage.FailNextCreate = errors.New("write interrupted")

	_, err := inst.Instantiate("tmpl-tax", 0, "client-1", "", nil, "")
	var clone model.CloneFailure
	require.ErrorAs(t, err, &clone)
	require.Equal(t, 0, storage.Count(), "a failed clone leaves no partial tree")
}

func TestInstantiateTimestampsFromClock(t *testing.T) {
	metadata := inmem.NewInmemMetadataStorage()
	storage := inmem.NewInmemAssignmentStorage()
	at := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	clock := util.NewFakeClock(at)
	templates := template.NewStore(metadata, clock)
	id, err := templates.SaveDraft(taxFilingTemplate())
	require.NoError(t, err)
	_, err = templates.Publish(id)
	require.NoError(t, err)

	inst := NewInstantiator(templates, storage, clock)
	aid, err := inst.Instantiate("tmpl-tax", 0, "client-1", "", nil, "")
	require.NoError(t, err)

	a, err := storage.GetAssignment(aid)
	require.NoError(t, err)
	require.Equal(t, at, a.CreatedAt)
	require.Equal(t, at, a.UpdatedAt)
}

func TestInstantiateUnknownTemplate(t *testing.T) {
	inst, _, _ := newFixture(t)
	_, err := inst.Instantiate("missing", 0, "client-1", "", nil, "")
	var clone model.CloneFailure
	require.ErrorAs(t, err, &clone)
}
