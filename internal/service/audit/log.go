package audit

import (
	"context"

	"github.com/nkiryanov/sessionkeeper/internal/logger"
)

// Writes events to the service log
type LogSink struct {
	l logger.Logger
}

func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{l: l.WithGroup("audit")}
}

func (s *LogSink) Record(_ context.Context, e Event) {
	args := []any{"event", e.Name, "subject", e.Subject}
	if e.Reason != "" {
		args = append(args, "reason", e.Reason)
	}
	if e.IPAddress != "" {
		args = append(args, "ip", e.IPAddress)
	}
	for k, v := range e.Attributes {
		args = append(args, k, v)
	}

	if e.IsAlarming() {
		s.l.Warn("security event", args...)
		return
	}
	s.l.Info("security event", args...)
}
