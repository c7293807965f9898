package assignment

import (
	"github.com/google/uuid"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/template"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

// Instantiator deep-clones a published template version into a fresh
// assignment tree for one client. The clone is all-or-nothing: the storage
// layer writes the whole tree in a single transaction or none of it.
type Instantiator struct {
	templates *template.Store
	storage   persistence.AssignmentStorage
	clock     util.Clock
}

func NewInstantiator(templates *template.Store, storage persistence.AssignmentStorage, clock util.Clock) *Instantiator {
	return &Instantiator{
		templates: templates,
		storage:   storage,
		clock:     clock,
	}
}

// Instantiate clones (templateId, version) for clientId. version 0 means the
// latest published version. dedupKey, when set, makes retries return the
// assignment created by the first attempt instead of cloning twice.
func (in *Instantiator) Instantiate(templateId string, version int, clientId string, name string, context map[string]any, dedupKey string) (string, error) {
	var tmpl *model.WorkflowTemplate
	var err error
	if version == 0 {
		tmpl, version, err = in.templates.GetPublished(templateId)
	} else {
		tmpl, err = in.templates.GetVersion(templateId, version)
	}
	if err != nil {
		return "", model.CloneFailure{TemplateId: templateId, Cause: err}
	}
	if name == "" {
		name = tmpl.Name
	}
	now := in.clock.Now()
	a := &model.Assignment{
		Id:              uuid.New().String(),
		TemplateId:      templateId,
		TemplateVersion: version,
		ClientId:        clientId,
		Name:            name,
		Status:          model.ASSIGNMENT_NOT_STARTED,
		Context:         context,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range tmpl.Stages {
		a.Stages = append(a.Stages, cloneStage(&tmpl.Stages[i]))
	}
	setInitialPointer(a)
	id, err := in.storage.CreateAssignmentTree(a, dedupKey)
	if err != nil {
		return "", model.CloneFailure{TemplateId: templateId, Cause: err}
	}
	if id != a.Id {
		logger.Info("instantiation deduplicated", zap.String("dedupKey", dedupKey), zap.String("assignment", id))
		return id, nil
	}
	logger.Info("assignment instantiated",
		zap.String("assignment", a.Id),
		zap.String("template", templateId),
		zap.Int("version", version),
		zap.String("client", clientId))
	return id, nil
}

func cloneStage(def *model.StageDef) *model.AssignmentStage {
	stage := &model.AssignmentStage{
		Id:                      uuid.New().String(),
		TemplateRef:             def.Id,
		Name:                    def.Name,
		Order:                   def.Order,
		State:                   model.NODE_PENDING,
		AutoProgress:            def.AutoProgress,
		ProgressConditions:      def.ProgressConditions,
		OnCompleteActions:       def.OnCompleteActions,
		RequireAllStepsComplete: def.RequireAllStepsComplete,
	}
	for i := range def.Steps {
		stage.Steps = append(stage.Steps, cloneStep(&def.Steps[i]))
	}
	return stage
}

func cloneStep(def *model.StepDef) *model.AssignmentStep {
	step := &model.AssignmentStep{
		Id:                      uuid.New().String(),
		TemplateRef:             def.Id,
		Name:                    def.Name,
		Order:                   def.Order,
		State:                   model.NODE_PENDING,
		AutoProgress:            def.AutoProgress,
		ProgressConditions:      def.ProgressConditions,
		OnCompleteActions:       def.OnCompleteActions,
		RequireAllTasksComplete: def.RequireAllTasksComplete,
	}
	for i := range def.Tasks {
		step.Tasks = append(step.Tasks, cloneTask(&def.Tasks[i]))
	}
	return step
}

func cloneTask(def *model.TaskDef) *model.AssignmentTask {
	task := &model.AssignmentTask{
		Id:                           uuid.New().String(),
		TemplateRef:                  def.Id,
		Name:                         def.Name,
		Order:                        def.Order,
		State:                        model.NODE_PENDING,
		AutoProgress:                 def.AutoProgress,
		ProgressConditions:           def.ProgressConditions,
		OnCompleteActions:            def.OnCompleteActions,
		RequireAllChecklistsComplete: def.RequireAllChecklistsComplete,
		RequireAllSubtasksComplete:   def.RequireAllSubtasksComplete,
		ClientVisible:                def.ClientVisible,
		AssigneeRole:                 def.AssigneeRole,
	}
	for _, c := range def.Checklists {
		task.Checklists = append(task.Checklists, &model.ChecklistItem{
			Id:          uuid.New().String(),
			TemplateRef: c.Id,
			Label:       c.Label,
			Required:    c.Required,
		})
	}
	for _, s := range def.Subtasks {
		task.Subtasks = append(task.Subtasks, &model.Subtask{
			Id:          uuid.New().String(),
			TemplateRef: s.Id,
			Title:       s.Title,
			Required:    s.Required,
		})
	}
	return task
}

func setInitialPointer(a *model.Assignment) {
	var first *model.AssignmentStage
	for _, stage := range a.Stages {
		if first == nil || stage.Order < first.Order {
			first = stage
		}
	}
	if first != nil {
		pointTo(a, first)
	}
}
