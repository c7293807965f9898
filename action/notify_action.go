package action

import (
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"go.uber.org/zap"
)

type notifyExecutor struct {
	notifier Notifier
}

var _ Executor = new(notifyExecutor)

func NewNotifyExecutor(notifier Notifier) Executor {
	return &notifyExecutor{notifier: notifier}
}

func (ex *notifyExecutor) Kind() model.ActionKind {
	return model.ACTION_NOTIFY
}

func (ex *notifyExecutor) Execute(a *model.Assignment, nodeId string, spec model.ActionSpec) error {
	vars := ResolveInputParams(a.Context, spec.Input)
	err := ex.notifier.Notify(spec.Recipient, spec.TemplateKey, vars)
	if err != nil {
		return err
	}
	logger.Debug("notification sent",
		zap.String("assignment", a.Id),
		zap.String("node", nodeId),
		zap.String("recipient", spec.Recipient))
	return nil
}
