package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Status is the workflow status of a task. The wire encoding (underscores)
// is the canonical in-process representation; the dashboard encoding uses
// hyphens. Translation between the two happens here and nowhere else.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInProgress    Status = "in_progress"
	StatusPendingReview Status = "pending_review"
	StatusReadyForClose Status = "ready_for_close"
	StatusClosed        Status = "closed"
)

var ErrInvalidStatus = errors.New("invalid workflow status")

// statusOrder is the canonical progression. A task only ever moves forward
// through this list, or stays where it is.
var statusOrder = []Status{
	StatusOpen,
	StatusInProgress,
	StatusPendingReview,
	StatusReadyForClose,
	StatusClosed,
}

// AllStatuses returns the five workflow statuses in canonical order.
func AllStatuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// ParseWire validates a wire-encoded (underscore) status token.
func ParseWire(s string) (Status, error) {
	status := Status(s)
	if status.Index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// ParseUI validates a dashboard-encoded (hyphen) status token.
func ParseUI(s string) (Status, error) {
	return ParseWire(strings.ReplaceAll(s, "-", "_"))
}

// UnmarshalJSON runs every JSON-decoded status through ParseWire, so an
// out-of-set token is rejected at the ingestion boundary instead of
// entering the model silently.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseWire(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UI returns the dashboard encoding of the status.
func (s Status) UI() string {
	return strings.ReplaceAll(string(s), "_", "-")
}

// Index returns the position of the status in the canonical progression,
// or -1 if the status is not one of the five valid values.
func (s Status) Index() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool {
	return s.Index() >= 0
}

// NextStatuses returns the statuses the task may move to from s: the tail
// of the canonical progression starting at s itself. Staying in place is
// always allowed, so the result is never empty for a valid status; closed
// yields only closed.
func (s Status) NextStatuses() ([]Status, error) {
	idx := s.Index()
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
	out := make([]Status, len(statusOrder)-idx)
	copy(out, statusOrder[idx:])
	return out, nil
}

// CanTransitionTo reports whether moving from s to next is a forward (or
// in-place) move. Either status being invalid makes the move illegal.
func (s Status) CanTransitionTo(next Status) bool {
	from, to := s.Index(), next.Index()
	return from >= 0 && to >= from
}
