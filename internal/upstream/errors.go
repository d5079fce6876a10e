package upstream

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when the upstream API answers 404 for a task id.
var ErrNotFound = errors.New("task not found upstream")

// ValidationError is a 4xx rejection carrying a field-level error list.
// The dashboard renders it per field where it has a matching input.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// APIError is any other upstream rejection: a 5xx, an unexpected status,
// or a 200 with success=false in the envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}
