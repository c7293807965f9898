package analytics

import (
	"github.com/mohitkumar/praxis/model"
)

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

// AuditCollector is the observability channel for everything that must be
// visible without blocking a workflow: committed transitions, action retry
// exhaustion, agent-reported failures and rejected agent correlations.
type AuditCollector interface {
	RecordNodeTransition(t model.NodeTransition)
	RecordActionFailure(failure model.ActionExecutionFailure)
	RecordAgentFailure(correlationId string, nodeId string, cause string)
	RecordRejectedCorrelation(correlationId string, reason string)
}

var collector AuditCollector

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileAuditCollector(config.FileName)
		if err != nil {
			return err
		}
		collector = c
	default:
		collector = nil
	}
	return nil
}

func RecordNodeTransition(t model.NodeTransition) {
	if collector != nil {
		collector.RecordNodeTransition(t)
	}
}

func RecordActionFailure(failure model.ActionExecutionFailure) {
	if collector != nil {
		collector.RecordActionFailure(failure)
	}
}

func RecordAgentFailure(correlationId string, nodeId string, cause string) {
	if collector != nil {
		collector.RecordAgentFailure(correlationId, nodeId, cause)
	}
}

func RecordRejectedCorrelation(correlationId string, reason string) {
	if collector != nil {
		collector.RecordRejectedCorrelation(correlationId, reason)
	}
}
