package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport writes messages to the logger instead of sending them. Development only:
// the text body, including any code, is logged verbatim.
type LogTransport struct {
	logger *zap.Logger
}

func NewLogTransport(log *zap.Logger) *LogTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogTransport{logger: log.Named("mail")}
}

func (t *LogTransport) Deliver(_ context.Context, msg Message) error {
	t.logger.Info("dev mail",
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
