package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/internal/models/task"
)

func datePtr(t time.Time) *time.Time {
	return &t
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	tests := []struct {
		name   string
		status task.Status
		due    *time.Time
		want   bool
	}{
		{"past due and open", task.StatusOpen, datePtr(yesterday), true},
		{"past due and in progress", task.StatusInProgress, datePtr(yesterday), true},
		{"past due but closed", task.StatusClosed, datePtr(yesterday), false},
		{"due tomorrow", task.StatusOpen, datePtr(tomorrow), false},
		{"due earlier today", task.StatusOpen, datePtr(now.Add(-2 * time.Hour)), false},
		{"no due date", task.StatusOpen, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := &task.Task{Status: tt.status, DueDate: tt.due}
			assert.Equal(t, tt.want, tk.IsOverdue(now))
		})
	}
}

func TestDueWithin(t *testing.T) {
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	tk := &task.Task{Status: task.StatusOpen, DueDate: datePtr(now.AddDate(0, 0, 5))}
	assert.True(t, tk.DueWithin(now, 7))
	assert.False(t, tk.DueWithin(now, 3))

	overdue := &task.Task{Status: task.StatusOpen, DueDate: datePtr(now.AddDate(0, 0, -1))}
	assert.False(t, overdue.DueWithin(now, 7), "already-overdue tasks are not 'due within'")

	undated := &task.Task{Status: task.StatusOpen}
	assert.False(t, undated.DueWithin(now, 30))
}

func TestInvoiceGenerated(t *testing.T) {
	invoiceID := "INV-001"

	assert.False(t, (&task.Task{}).InvoiceGenerated())
	assert.True(t, (&task.Task{InvoiceID: &invoiceID}).InvoiceGenerated())
}

func TestAssigned(t *testing.T) {
	assert.False(t, (&task.Task{}).Assigned())
	assert.True(t, (&task.Task{AssigneeID: "u-17"}).Assigned())
}

func TestAppendCommentAddsSyntheticLogEntry(t *testing.T) {
	tk := &task.Task{ID: "t-1"}
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	tk.AppendComment(task.Comment{
		ID:         "c-1",
		AuthorID:   "u-5",
		AuthorName: "Priya",
		Text:       "uploaded the GSTR-1 workings",
		CreatedAt:  created,
	})

	require.Len(t, tk.Comments, 1)
	require.Len(t, tk.RunningLog, 1)

	entry := tk.RunningLog[0]
	assert.Equal(t, "Comment added", entry.Action)
	assert.Equal(t, "u-5", entry.ActorID)
	assert.Equal(t, "Priya", entry.ActorName)
	assert.Equal(t, created, entry.CreatedAt)
}

func TestTaskOptionsNilGuards(t *testing.T) {
	assert.Nil(t, task.WithName(""))
	assert.Nil(t, task.WithStatus(task.Status("bogus")))
	assert.NotNil(t, task.WithStatus(task.StatusClosed))
}
