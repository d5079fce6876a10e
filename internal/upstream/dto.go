package upstream

import (
	"encoding/json"
	"time"

	"taskdesk/internal/models/task"
)

// envelope is the response wrapper every upstream endpoint uses.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Data    json.RawMessage   `json:"data,omitempty"`
}

// Pagination mirrors the upstream list metadata.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
}

type listData struct {
	Tasks      []*task.Task    `json:"tasks"`
	Pagination Pagination      `json:"pagination"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

// UpdateRequest carries exactly the fields taskdesk owns; everything else
// (invoice linkage, timestamps, ids) stays server-side.
type UpdateRequest struct {
	Name                  string      `json:"task_name"`
	Description           string      `json:"service_description"`
	DueDate               *time.Time  `json:"due_date"`
	Status                task.Status `json:"workflow_status"`
	AssigneeID            string      `json:"assignee_id"`
	InvoiceAmount         *float64    `json:"invoice_amount,omitempty"`
	GSTOverride           *float64    `json:"gst_override_percentage,omitempty"`
	RequireClarification  bool        `json:"require_clarification"`
	ClarificationFrom     string      `json:"clarification_from"`
	ClarificationFromName string      `json:"clarification_from_name"`
	ClarificationTo       string      `json:"clarification_to"`
	ClarificationToName   string      `json:"clarification_to_name"`
}

// UpdateRequestFrom builds the PUT body from a task the service has
// already applied its options to.
func UpdateRequestFrom(t *task.Task) UpdateRequest {
	return UpdateRequest{
		Name:                  t.Name,
		Description:           t.Description,
		DueDate:               t.DueDate,
		Status:                t.Status,
		AssigneeID:            t.AssigneeID,
		InvoiceAmount:         t.InvoiceAmount,
		GSTOverride:           t.GSTOverride,
		RequireClarification:  t.Clarification.Required,
		ClarificationFrom:     t.Clarification.FromID,
		ClarificationFromName: t.Clarification.FromName,
		ClarificationTo:       t.Clarification.ToID,
		ClarificationToName:   t.Clarification.ToName,
	}
}
