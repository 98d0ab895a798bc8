package audit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// LogSink writes events as structured audit log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, e.Action,
		"log_type", "audit",
		"event", e.Action,
		"subject", e.Subject,
		"count", e.Count,
		"request_id", e.RequestID,
		"client_ip", e.ClientIP,
		"browser", e.Browser,
		"os", e.OS,
		"timestamp", e.Timestamp,
	)
	return nil
}

// MemorySink keeps events in memory for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}
