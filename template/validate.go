package template

import (
	"fmt"

	"github.com/mohitkumar/praxis/condition"
	"github.com/mohitkumar/praxis/model"
)

// Validate checks a draft before publish: unique node ids, unique sibling
// orders, parseable conditions and guards, and every done() reference scoped
// to the referring node's own subtree. Cycles are impossible once references
// cannot leave the subtree, so this is the whole publish-time gate.
func Validate(t *model.WorkflowTemplate) error {
	if t.Name == "" {
		return model.ValidationError{Message: "template name is empty"}
	}
	if len(t.Stages) == 0 {
		return model.ValidationError{Message: "template has no stages"}
	}
	seen := make(map[string]bool)
	if err := checkSiblingOrders("stage", stageOrders(t.Stages)); err != nil {
		return err
	}
	for i := range t.Stages {
		stage := &t.Stages[i]
		if err := registerNode(seen, stage.Id); err != nil {
			return err
		}
		if err := checkSiblingOrders(fmt.Sprintf("step in stage %s", stage.Id), stepOrders(stage.Steps)); err != nil {
			return err
		}
		if err := checkConditions(stage.ProgressConditions, stage.OnCompleteActions, stageDescendants(stage)); err != nil {
			return err
		}
		for j := range stage.Steps {
			step := &stage.Steps[j]
			if err := registerNode(seen, step.Id); err != nil {
				return err
			}
			if err := checkSiblingOrders(fmt.Sprintf("task in step %s", step.Id), taskOrders(step.Tasks)); err != nil {
				return err
			}
			if err := checkConditions(step.ProgressConditions, step.OnCompleteActions, stepDescendants(step)); err != nil {
				return err
			}
			for k := range step.Tasks {
				task := &step.Tasks[k]
				if err := registerNode(seen, task.Id); err != nil {
					return err
				}
				if err := checkConditions(task.ProgressConditions, task.OnCompleteActions, taskDescendants(task)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func registerNode(seen map[string]bool, id string) error {
	if id == "" {
		return model.ValidationError{Message: "node id is empty"}
	}
	if seen[id] {
		return model.ValidationError{Message: fmt.Sprintf("node id %s is duplicate", id)}
	}
	seen[id] = true
	return nil
}

func checkSiblingOrders(scope string, orders []int) error {
	seen := make(map[int]bool)
	for _, order := range orders {
		if seen[order] {
			return model.ValidationError{Message: fmt.Sprintf("duplicate %s order %d", scope, order)}
		}
		seen[order] = true
	}
	return nil
}

func checkConditions(progressConditions string, actions []model.ActionSpec, subtree map[string]bool) error {
	if err := checkExpression(progressConditions, subtree); err != nil {
		return err
	}
	for _, action := range actions {
		if err := checkExpression(action.Guard, subtree); err != nil {
			return err
		}
		switch action.Kind {
		case model.ACTION_NOTIFY, model.ACTION_INVOKE_AGENT, model.ACTION_CALL_ENDPOINT, model.ACTION_SET_VISIBILITY:
		default:
			return model.ValidationError{Message: fmt.Sprintf("unknown action kind %q", action.Kind)}
		}
	}
	return nil
}

func checkExpression(src string, subtree map[string]bool) error {
	if src == "" {
		return nil
	}
	expr, err := condition.Parse(src)
	if err != nil {
		return model.ValidationError{Message: fmt.Sprintf("bad expression %q: %v", src, err)}
	}
	for _, ref := range expr.NodeRefs() {
		if !subtree[ref] {
			return model.ValidationError{Message: fmt.Sprintf("expression %q references node %s outside its subtree", src, ref)}
		}
	}
	return nil
}

func stageOrders(stages []model.StageDef) []int {
	orders := make([]int, 0, len(stages))
	for _, s := range stages {
		orders = append(orders, s.Order)
	}
	return orders
}

func stepOrders(steps []model.StepDef) []int {
	orders := make([]int, 0, len(steps))
	for _, s := range steps {
		orders = append(orders, s.Order)
	}
	return orders
}

func taskOrders(tasks []model.TaskDef) []int {
	orders := make([]int, 0, len(tasks))
	for _, t := range tasks {
		orders = append(orders, t.Order)
	}
	return orders
}

func stageDescendants(stage *model.StageDef) map[string]bool {
	subtree := make(map[string]bool)
	for i := range stage.Steps {
		subtree[stage.Steps[i].Id] = true
		for id := range stepDescendants(&stage.Steps[i]) {
			subtree[id] = true
		}
	}
	return subtree
}

func stepDescendants(step *model.StepDef) map[string]bool {
	subtree := make(map[string]bool)
	for i := range step.Tasks {
		subtree[step.Tasks[i].Id] = true
		for id := range taskDescendants(&step.Tasks[i]) {
			subtree[id] = true
		}
	}
	return subtree
}

func taskDescendants(task *model.TaskDef) map[string]bool {
	subtree := make(map[string]bool)
	for _, c := range task.Checklists {
		subtree[c.Id] = true
	}
	for _, st := range task.Subtasks {
		subtree[st.Id] = true
	}
	return subtree
}
