package store

import (
	"context"
	"time"

	"github.com/PeriniM/langsmith-bedrock-agents/observe"
)

type ListQuery struct {
	Limit  int
	Offset int
}

type MetricsQuery struct {
	Since *time.Time
}

type MetricsSummary struct {
	InvocationsStarted   int64 `json:"invocationsStarted"`
	InvocationsCompleted int64 `json:"invocationsCompleted"`
	InvocationsFailed    int64 `json:"invocationsFailed"`
	StepsTraced          int64 `json:"stepsTraced"`
	ToolCalls            int64 `json:"toolCalls"`
	ToolFailures         int64 `json:"toolFailures"`
}

// Store persists lifecycle records for later inspection, independent of
// the span export path.
type Store interface {
	SaveRecord(ctx context.Context, record observe.Record) error
	ListBySession(ctx context.Context, sessionID string, query ListQuery) ([]observe.Record, error)
	AggregateMetrics(ctx context.Context, query MetricsQuery) (MetricsSummary, error)
	Close() error
}

// Sink adapts a Store to the observe.Sink interface.
func Sink(s Store) observe.SinkFunc {
	return func(ctx context.Context, record observe.Record) error {
		return s.SaveRecord(ctx, record)
	}
}
