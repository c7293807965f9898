package template

import (
	"testing"

	"github.com/mohitkumar/praxis/model"
	"github.com/stretchr/testify/require"
)

func validTemplate() model.WorkflowTemplate {
	return model.WorkflowTemplate{
		Id:   "tmpl-1",
		Name: "Tax Filing",
		Stages: []model.StageDef{{
			Id:    "stage_prep",
			Name:  "Preparation",
			Order: 1,
			Steps: []model.StepDef{{
				Id:    "step_gather",
				Name:  "Gather",
				Order: 1,
				Tasks: []model.TaskDef{
					{Id: "task_w2", Name: "Collect W-2", Order: 1},
					{Id: "task_1099", Name: "Collect 1099", Order: 2},
				},
			}},
		}, {
			Id:    "stage_file",
			Name:  "Filing",
			Order: 2,
			Steps: []model.StepDef{{
				Id:    "step_submit",
				Name:  "Submit",
				Order: 1,
				Tasks: []model.TaskDef{{Id: "task_efile", Name: "E-file", Order: 1}},
			}},
		}},
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	tmpl := validTemplate()
	require.NoError(t, Validate(&tmpl))
}

func TestValidateRejections(t *testing.T) {
	scenarios := map[string]func(t *model.WorkflowTemplate){
		"empty name": func(t *model.WorkflowTemplate) {
			t.Name = ""
		},
		"no stages": func(t *model.WorkflowTemplate) {
			t.Stages = nil
		},
		"duplicate node id": func(t *model.WorkflowTemplate) {
			t.Stages[1].Steps[0].Tasks[0].Id = "task_w2"
		},
		"empty node id": func(t *model.WorkflowTemplate) {
			t.Stages[0].Steps[0].Id = ""
		},
		"duplicate stage order": func(t *model.WorkflowTemplate) {
			t.Stages[1].Order = 1
		},
		"duplicate task order": func(t *model.WorkflowTemplate) {
			t.Stages[0].Steps[0].Tasks[1].Order = 1
		},
		"unparseable condition": func(t *model.WorkflowTemplate) {
			t.Stages[0].ProgressConditions = "done(task_w2) and"
		},
		"condition referencing foreign subtree": func(t *model.WorkflowTemplate) {
			// stage_prep may not gate on a node under stage_file
			t.Stages[0].ProgressConditions = "done(task_efile)"
		},
		"guard referencing foreign subtree": func(t *model.WorkflowTemplate) {
			t.Stages[0].OnCompleteActions = []model.ActionSpec{{
				Kind:  model.ACTION_NOTIFY,
				Guard: "done(task_efile)",
			}}
		},
		"unknown action kind": func(t *model.WorkflowTemplate) {
			t.Stages[0].OnCompleteActions = []model.ActionSpec{{Kind: model.ActionKind("send_fax")}}
		},
	}
	for name, mutate := range scenarios {
		t.Run(name, func(t *testing.T) {
			tmpl := validTemplate()
			mutate(&tmpl)
			var verr model.ValidationError
			require.ErrorAs(t, Validate(&tmpl), &verr)
		})
	}
}

func TestValidateAllowsSubtreeRefs(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Stages[0].ProgressConditions = "done(task_w2) and done(task_1099)"
	tmpl.Stages[0].Steps[0].ProgressConditions = "done(task_w2) or done(task_1099)"
	require.NoError(t, Validate(&tmpl))
}

func TestValidateAllowsContextVarConditions(t *testing.T) {
	tmpl := validTemplate()
	// bare identifiers and $-paths are context refs, not node refs
	tmpl.Stages[0].ProgressConditions = "reviewed == true and $.client.tier == \"gold\""
	require.NoError(t, Validate(&tmpl))
}
