package observe

import (
	"context"
	"io"
)

// Stream is a lazy, single-pass sequence of agent events. Next blocks
// until the next event is available and returns io.EOF once the
// underlying stream is exhausted. A Stream is not restartable; each
// invocation produces a fresh one.
type Stream interface {
	Next(ctx context.Context) (AgentEvent, error)
	Close() error
}

// SliceStream replays a fixed slice of events. It is mainly useful in
// tests and offline replay of recorded invocations.
type SliceStream struct {
	events []AgentEvent
	pos    int
}

func NewSliceStream(events ...AgentEvent) *SliceStream {
	return &SliceStream{events: events}
}

func (s *SliceStream) Next(ctx context.Context) (AgentEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *SliceStream) Close() error { return nil }
