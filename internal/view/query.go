// Package view derives the visible, ordered, paged slice of a task
// snapshot for one dashboard view. Everything here is a pure function of
// (tasks, query, now); nothing is cached or mutated.
package view

import (
	"strings"
	"time"

	"taskdesk/internal/models/task"
)

// Role selects the visibility rules of a dashboard view.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleEmployee   Role = "employee"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleSupervisor, RoleEmployee:
		return Role(s), true
	}
	return "", false
}

// DueFilter is the due-date bucket predicate. The zero value disables it.
type DueFilter string

const (
	DueAll      DueFilter = ""
	DueOverdue  DueFilter = "overdue"
	DueWithin7  DueFilter = "7"
	DueWithin15 DueFilter = "15"
	DueWithin30 DueFilter = "30"
)

var dueWithinDays = map[DueFilter]int{
	DueWithin7:  7,
	DueWithin15: 15,
	DueWithin30: 30,
}

func ParseDueFilter(s string) (DueFilter, bool) {
	switch DueFilter(s) {
	case DueAll, DueOverdue, DueWithin7, DueWithin15, DueWithin30:
		return DueFilter(s), true
	}
	return DueAll, false
}

// Query is the full view configuration. Zero values act as "all"
// sentinels: an empty Search, Status, ClientID, AssigneeID or Due filter
// disables that predicate. All active predicates must hold for a task to
// stay visible.
type Query struct {
	Role     Role
	ViewerID string

	Search     string
	Status     task.Status
	ClientID   string
	AssigneeID string
	Due        DueFilter

	// ClarificationOnly keeps only tasks whose clarification request
	// targets the viewer.
	ClarificationOnly bool

	Sort SortState
	Page int
}

// Page is one page of a derived view.
type Page struct {
	Tasks       []*task.Task
	CurrentPage int
	TotalPages  int
	TotalItems  int
}

// PageSize is fixed across every dashboard view.
const PageSize = 10

// Apply filters, sorts and paginates the snapshot for this query.
func (q Query) Apply(tasks []*task.Task, now time.Time) Page {
	filtered := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if q.matches(t, now) {
			filtered = append(filtered, t)
		}
	}

	q.Sort.sortTasks(filtered)

	return paginate(filtered, q.Page)
}

func (q Query) matches(t *task.Task, now time.Time) bool {
	if !q.roleAllows(t) {
		return false
	}
	if q.Search != "" && !matchesSearch(t, q.Search) {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.ClientID != "" && t.ClientID != q.ClientID {
		return false
	}
	if q.AssigneeID != "" && t.AssigneeID != q.AssigneeID {
		return false
	}
	if !q.dueAllows(t, now) {
		return false
	}
	if q.ClarificationOnly {
		if !t.Clarification.Required || t.Clarification.ToID != q.ViewerID {
			return false
		}
	}
	return true
}

// roleAllows applies per-view visibility: admin and supervisor views keep
// closed tasks around until they are invoiced; the employee view drops
// closed tasks outright.
func (q Query) roleAllows(t *task.Task) bool {
	if t.Status != task.StatusClosed {
		return true
	}
	switch q.Role {
	case RoleEmployee:
		return false
	default:
		return !t.InvoiceGenerated()
	}
}

func (q Query) dueAllows(t *task.Task, now time.Time) bool {
	switch q.Due {
	case DueAll:
		return true
	case DueOverdue:
		return t.IsOverdue(now)
	default:
		return t.DueWithin(now, dueWithinDays[q.Due])
	}
}

// matchesSearch is a case-insensitive substring match over name, client
// display name and description; any one field matching is enough.
func matchesSearch(t *task.Task, term string) bool {
	needle := strings.ToLower(term)
	return strings.Contains(strings.ToLower(t.Name), needle) ||
		strings.Contains(strings.ToLower(t.ClientName), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}
