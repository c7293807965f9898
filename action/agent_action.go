package action

import (
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"go.uber.org/zap"
)

type agentExecutor struct {
	invoker      AgentInvoker
	correlations *CorrelationRegistry
}

var _ Executor = new(agentExecutor)

func NewAgentExecutor(invoker AgentInvoker, correlations *CorrelationRegistry) Executor {
	return &agentExecutor{
		invoker:      invoker,
		correlations: correlations,
	}
}

func (ex *agentExecutor) Kind() model.ActionKind {
	return model.ACTION_INVOKE_AGENT
}

func (ex *agentExecutor) Execute(a *model.Assignment, nodeId string, spec model.ActionSpec) error {
	input := ResolveInputParams(a.Context, spec.Input)
	correlationId, err := ex.invoker.Invoke(spec.AgentRef, nodeId, input)
	if err != nil {
		return err
	}
	ex.correlations.Register(correlationId, nodeId)
	logger.Info("agent invoked",
		zap.String("assignment", a.Id),
		zap.String("node", nodeId),
		zap.String("agent", spec.AgentRef),
		zap.String("correlationId", correlationId))
	return nil
}
