package action

import (
	"github.com/mohitkumar/praxis/logger"
	"go.uber.org/zap"
)

// LogNotifier is the default Notifier when no delivery channel is
// configured: every notification lands in the log instead of a mailbox.
type LogNotifier struct{}

var _ Notifier = new(LogNotifier)

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(recipient string, templateKey string, vars map[string]any) error {
	logger.Info("notification",
		zap.String("recipient", recipient),
		zap.String("template", templateKey),
		zap.Any("vars", vars))
	return nil
}
