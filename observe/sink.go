package observe

import (
	"context"
	"sync"
)

// Sink receives lifecycle records as span construction progresses.
// Implementations must be safe for use from concurrent invocations.
type Sink interface {
	Emit(ctx context.Context, record Record) error
}

type SinkFunc func(ctx context.Context, record Record) error

func (f SinkFunc) Emit(ctx context.Context, record Record) error {
	if f == nil {
		return nil
	}
	return f(ctx, record)
}

type NoopSink struct{}

func (NoopSink) Emit(ctx context.Context, record Record) error {
	_ = ctx
	_ = record
	return nil
}

type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		filtered = append(filtered, s)
	}
	if len(filtered) == 0 {
		return NoopSink{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Emit(ctx context.Context, record Record) error {
	if m == nil {
		return nil
	}
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// AsyncSink decouples record persistence from the hot mapping path.
type AsyncSink struct {
	downstream Sink
	queue      chan Record
	once       sync.Once
	drained    chan struct{}
}

func NewAsyncSink(downstream Sink, buffer int) *AsyncSink {
	if downstream == nil {
		downstream = NoopSink{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	as := &AsyncSink{
		downstream: downstream,
		queue:      make(chan Record, buffer),
		drained:    make(chan struct{}),
	}
	go as.loop()
	return as
}

func (s *AsyncSink) Emit(ctx context.Context, record Record) error {
	if s == nil {
		return nil
	}
	record.Normalize()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.queue <- record:
		return nil
	default:
		// Drop on pressure to avoid blocking the mapping path.
		return nil
	}
}

// Close stops accepting records and waits for queued ones to drain.
func (s *AsyncSink) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() { close(s.queue) })
	<-s.drained
}

func (s *AsyncSink) loop() {
	for record := range s.queue {
		_ = s.downstream.Emit(context.Background(), record)
	}
	close(s.drained)
}
