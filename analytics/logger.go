package analytics

import (
	"os"

	"github.com/mohitkumar/praxis/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileAuditCollector struct {
	fileName string
	logger   *zap.Logger
}

var _ AuditCollector = new(LogFileAuditCollector)

func NewLogFileAuditCollector(fileName string) (*LogFileAuditCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel))
	return &LogFileAuditCollector{
		fileName: fileName,
		logger:   zap.New(core),
	}, nil
}

func (lc *LogFileAuditCollector) RecordNodeTransition(t model.NodeTransition) {
	lc.logger.Info("transition",
		zap.String("assignment", t.AssignmentId),
		zap.String("node", t.NodeId),
		zap.String("kind", string(t.Kind)),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.Time("at", t.At))
}

func (lc *LogFileAuditCollector) RecordActionFailure(failure model.ActionExecutionFailure) {
	lc.logger.Info("action_failure",
		zap.String("node", failure.NodeId),
		zap.String("kind", string(failure.Kind)),
		zap.Int("attempts", failure.Attempts),
		zap.Error(failure.Cause))
}

func (lc *LogFileAuditCollector) RecordAgentFailure(correlationId string, nodeId string, cause string) {
	lc.logger.Info("agent_failure",
		zap.String("correlationId", correlationId),
		zap.String("node", nodeId),
		zap.String("cause", cause))
}

func (lc *LogFileAuditCollector) RecordRejectedCorrelation(correlationId string, reason string) {
	lc.logger.Info("rejected_correlation",
		zap.String("correlationId", correlationId),
		zap.String("reason", reason))
}
