package task

import (
	"time"
)

// TaskOption mutates one updatable field of a task. Handlers translate a
// partial update request into a list of options; the service applies them
// to the current task before pushing it upstream.
type TaskOption func(*Task)

func WithName(name string) TaskOption {
	if name == "" {
		return nil
	}
	return func(t *Task) {
		t.Name = name
	}
}

func WithDescription(description string) TaskOption {
	return func(t *Task) {
		t.Description = description
	}
}

func WithStatus(status Status) TaskOption {
	if !status.Valid() {
		return nil
	}
	return func(t *Task) {
		t.Status = status
	}
}

func WithAssignee(id, name string) TaskOption {
	return func(t *Task) {
		t.AssigneeID = id
		t.AssigneeName = name
	}
}

func WithDueDate(dueDate *time.Time) TaskOption {
	return func(t *Task) {
		t.DueDate = dueDate
	}
}

func WithInvoiceAmount(amount *float64) TaskOption {
	return func(t *Task) {
		t.InvoiceAmount = amount
	}
}

func WithGSTOverride(pct *float64) TaskOption {
	return func(t *Task) {
		t.GSTOverride = pct
	}
}

func WithClarification(c Clarification) TaskOption {
	return func(t *Task) {
		t.Clarification = c
	}
}
