package observe

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned by Build when the event stream ends without a
// Completion event. All spans opened up to that point are closed with an
// error status before Build returns.
var ErrTruncated = errors.New("stream truncated")

// MappingError wraps a failure to map a single event onto the span tree.
type MappingError struct {
	Event string
	Cause error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("failed to map %s event: %v", e.Event, e.Cause)
}

func (e *MappingError) Unwrap() error { return e.Cause }
