// Package dto holds the JSON shapes of the dashboard API. Statuses cross
// this boundary in the dashboard (hyphen) encoding; translation to the
// wire encoding happens in the status codec, nowhere else.
package dto

import (
	"fmt"
	"time"

	"taskdesk/internal/models/task"
	"taskdesk/internal/view"
)

// TaskRow is one row of a dashboard view.
type TaskRow struct {
	ID               string     `json:"id"`
	Name             string     `json:"task_name"`
	ClientID         string     `json:"client_id"`
	ClientName       string     `json:"client_name"`
	AssigneeID       string     `json:"assignee_id,omitempty"`
	AssigneeName     string     `json:"assignee_name,omitempty"`
	Status           string     `json:"workflow_status"`
	NextStatuses     []string   `json:"next_statuses"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	IsOverdue        bool       `json:"is_overdue"`
	InvoiceGenerated bool       `json:"invoice_generated"`
	NeedsMyInput     bool       `json:"needs_my_input"`
}

// TaskDetail is the full single-task payload, comments and log included.
type TaskDetail struct {
	TaskRow
	Description   string             `json:"service_description"`
	InvoiceAmount *float64           `json:"invoice_amount,omitempty"`
	GSTOverride   *float64           `json:"gst_override_percentage,omitempty"`
	InvoiceID     *string            `json:"invoice_id,omitempty"`
	CreditNoteID  *string            `json:"credit_note_id,omitempty"`
	InvoicePDFURL *string            `json:"invoice_pdf_url,omitempty"`
	Clarification task.Clarification `json:"clarification"`
	Comments      []task.Comment     `json:"comments"`
	RunningLog    []task.LogEntry    `json:"running_log"`
	UpdatedAt     *time.Time         `json:"updated_at,omitempty"`
}

type PaginationMeta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
}

type ViewResponse struct {
	Tasks      []TaskRow      `json:"tasks"`
	Pagination PaginationMeta `json:"pagination"`
}

// UpdateTaskRequest carries the fields the dashboard may change; nil
// means "leave as is". Status arrives in the dashboard encoding.
type UpdateTaskRequest struct {
	Name                  *string    `json:"task_name,omitempty"`
	Description           *string    `json:"service_description,omitempty"`
	Status                *string    `json:"workflow_status,omitempty"`
	AssigneeID            *string    `json:"assignee_id,omitempty"`
	AssigneeName          *string    `json:"assignee_name,omitempty"`
	DueDate               *time.Time `json:"due_date,omitempty"`
	ClearDueDate          bool       `json:"clear_due_date,omitempty"`
	InvoiceAmount         *float64   `json:"invoice_amount,omitempty"`
	GSTOverride           *float64   `json:"gst_override_percentage,omitempty"`
	RequireClarification  *bool      `json:"require_clarification,omitempty"`
	ClarificationFrom     string     `json:"clarification_from,omitempty"`
	ClarificationFromName string     `json:"clarification_from_name,omitempty"`
	ClarificationTo       string     `json:"clarification_to,omitempty"`
	ClarificationToName   string     `json:"clarification_to_name,omitempty"`
}

func FromTask(t *task.Task, viewerID string, now time.Time) (TaskRow, error) {
	next, err := t.Status.NextStatuses()
	if err != nil {
		return TaskRow{}, fmt.Errorf("rendering task %s: %w", t.ID, err)
	}
	nextUI := make([]string, len(next))
	for i, st := range next {
		nextUI[i] = st.UI()
	}

	return TaskRow{
		ID:               t.ID,
		Name:             t.Name,
		ClientID:         t.ClientID,
		ClientName:       t.ClientName,
		AssigneeID:       t.AssigneeID,
		AssigneeName:     t.AssigneeName,
		Status:           t.Status.UI(),
		NextStatuses:     nextUI,
		DueDate:          t.DueDate,
		CreatedAt:        t.CreatedAt,
		IsOverdue:        t.IsOverdue(now),
		InvoiceGenerated: t.InvoiceGenerated(),
		NeedsMyInput:     t.Clarification.Required && t.Clarification.ToID == viewerID,
	}, nil
}

func FromTaskDetail(t *task.Task, viewerID string, now time.Time) (TaskDetail, error) {
	row, err := FromTask(t, viewerID, now)
	if err != nil {
		return TaskDetail{}, err
	}

	comments := t.Comments
	if comments == nil {
		comments = []task.Comment{}
	}
	runningLog := t.RunningLog
	if runningLog == nil {
		runningLog = []task.LogEntry{}
	}

	return TaskDetail{
		TaskRow:       row,
		Description:   t.Description,
		InvoiceAmount: t.InvoiceAmount,
		GSTOverride:   t.GSTOverride,
		InvoiceID:     t.InvoiceID,
		CreditNoteID:  t.CreditNoteID,
		InvoicePDFURL: t.InvoicePDFURL,
		Clarification: t.Clarification,
		Comments:      comments,
		RunningLog:    runningLog,
		UpdatedAt:     t.UpdatedAt,
	}, nil
}

func FromPage(p view.Page, viewerID string, now time.Time) (ViewResponse, error) {
	rows := make([]TaskRow, len(p.Tasks))
	for i, t := range p.Tasks {
		row, err := FromTask(t, viewerID, now)
		if err != nil {
			return ViewResponse{}, err
		}
		rows[i] = row
	}
	return ViewResponse{
		Tasks: rows,
		Pagination: PaginationMeta{
			CurrentPage: p.CurrentPage,
			TotalPages:  p.TotalPages,
			TotalItems:  p.TotalItems,
		},
	}, nil
}
