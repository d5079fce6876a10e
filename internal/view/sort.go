package view

import (
	"sort"
	"strings"

	"taskdesk/internal/models/task"
)

// SortColumn is the single selectable sort key of a view.
type SortColumn string

const (
	SortByName     SortColumn = "name"
	SortByClient   SortColumn = "client"
	SortByStatus   SortColumn = "status"
	SortByAssignee SortColumn = "assignee"
	SortByCreated  SortColumn = "created"
	SortByDue      SortColumn = "due"
)

func ParseSortColumn(s string) (SortColumn, bool) {
	switch SortColumn(s) {
	case SortByName, SortByClient, SortByStatus, SortByAssignee, SortByCreated, SortByDue:
		return SortColumn(s), true
	}
	return "", false
}

// SortState is the active sort column and direction of a view.
type SortState struct {
	Column     SortColumn
	Descending bool
}

// Toggle returns the sort state after a click on col: clicking the active
// column flips direction, clicking a different column starts ascending on
// that column.
func (s SortState) Toggle(col SortColumn) SortState {
	if s.Column == col {
		return SortState{Column: col, Descending: !s.Descending}
	}
	return SortState{Column: col}
}

// sortTasks orders the slice in place. The sort is stable, so tasks with
// equal keys keep their relative order. Tasks without a due date always
// sort last on the due column, in both directions.
func (s SortState) sortTasks(tasks []*task.Task) {
	if s.Column == "" {
		return
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return s.less(tasks[i], tasks[j])
	})
}

func (s SortState) less(a, b *task.Task) bool {
	if s.Column == SortByDue {
		switch {
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case a.DueDate.Equal(*b.DueDate):
			return false
		}
		if s.Descending {
			return a.DueDate.After(*b.DueDate)
		}
		return a.DueDate.Before(*b.DueDate)
	}

	c := compareColumn(a, b, s.Column)
	if c == 0 {
		return false
	}
	if s.Descending {
		return c > 0
	}
	return c < 0
}

func compareColumn(a, b *task.Task, col SortColumn) int {
	switch col {
	case SortByName:
		return compareFold(a.Name, b.Name)
	case SortByClient:
		return compareFold(a.ClientName, b.ClientName)
	case SortByAssignee:
		return compareFold(a.AssigneeName, b.AssigneeName)
	case SortByStatus:
		// status sorts by workflow order, not alphabetically
		return a.Status.Index() - b.Status.Index()
	case SortByCreated:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return 0
	}
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
