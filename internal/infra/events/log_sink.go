package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink records that an event was emitted without sending it. Used by the stub driver.
// Payloads are never logged.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, eventType, key string, body []byte) error {
	s.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", key),
		zap.Int("bytes", len(body)),
	)
	return nil
}
