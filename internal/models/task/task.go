package task

import (
	"time"
)

// Task is the local copy of a compliance task. The upstream practice
// management API owns the canonical record; taskdesk keeps a snapshot and
// only ever writes back the fields it owns (name, description, status,
// assignee, due date, amounts, clarification).
type Task struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"task_name" db:"task_name"`
	Description  string `json:"service_description" db:"service_description"`
	ClientID     string `json:"client_id" db:"client_id"`
	ClientName   string `json:"client_name" db:"client_name"`
	AssigneeID   string `json:"assignee_id,omitempty" db:"assignee_id"`
	AssigneeName string `json:"assignee_name,omitempty" db:"assignee_name"`

	Status  Status     `json:"workflow_status" db:"workflow_status"`
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	InvoiceAmount *float64 `json:"invoice_amount,omitempty" db:"invoice_amount"`
	GSTOverride   *float64 `json:"gst_override_percentage,omitempty" db:"gst_override_percentage"`

	InvoiceID     *string `json:"invoice_id,omitempty" db:"invoice_id"`
	CreditNoteID  *string `json:"credit_note_id,omitempty" db:"credit_note_id"`
	InvoicePDFURL *string `json:"invoice_pdf_url,omitempty" db:"invoice_pdf_url"`

	Clarification Clarification `json:"clarification"`

	Comments   []Comment  `json:"comments,omitempty"`
	RunningLog []LogEntry `json:"running_log,omitempty"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Clarification records that one user has asked another for input before
// the task can proceed. It is not a workflow status.
type Clarification struct {
	Required bool   `json:"require_clarification" db:"require_clarification"`
	FromID   string `json:"clarification_from,omitempty" db:"clarification_from"`
	FromName string `json:"clarification_from_name,omitempty" db:"clarification_from_name"`
	ToID     string `json:"clarification_to,omitempty" db:"clarification_to"`
	ToName   string `json:"clarification_to_name,omitempty" db:"clarification_to_name"`
}

// Comment is append-only; comments are never edited or removed.
type Comment struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"comment_text"`
	FileURL    string    `json:"file_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LogEntry is one line of a task's append-only running log.
type LogEntry struct {
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	CreatedAt time.Time `json:"created_at"`
}

// InvoiceGenerated reports whether an invoice has been raised for the
// task. Derived from the invoice linkage, never stored.
func (t *Task) InvoiceGenerated() bool {
	return t.InvoiceID != nil
}

// Assigned reports whether the task has an assignee.
func (t *Task) Assigned() bool {
	return t.AssigneeID != ""
}

// IsOverdue reports whether the task's due date has passed. Closed tasks
// are never overdue, and a task without a due date cannot be overdue.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Status == StatusClosed || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(startOfDay(now))
}

// DueWithin reports whether the task is due in the next days days,
// counting from the start of today. Overdue tasks and tasks without a due
// date do not count.
func (t *Task) DueWithin(now time.Time, days int) bool {
	if t.DueDate == nil {
		return false
	}
	today := startOfDay(now)
	limit := today.AddDate(0, 0, days)
	return !t.DueDate.Before(today) && t.DueDate.Before(limit)
}

func startOfDay(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// AppendComment appends the comment together with the synthetic log entry
// every addition produces.
func (t *Task) AppendComment(c Comment) {
	t.Comments = append(t.Comments, c)
	t.RunningLog = append(t.RunningLog, LogEntry{
		Action:    "Comment added",
		ActorID:   c.AuthorID,
		ActorName: c.AuthorName,
		CreatedAt: c.CreatedAt,
	})
}
