package view

import (
	"taskdesk/internal/models/task"
)

// paginate slices the filtered set into fixed-size pages. The requested
// page clamps to [1, totalPages], so a view pointing past the end of a
// shrunken result set lands on the new last page instead of going blank.
func paginate(tasks []*task.Task, page int) Page {
	total := len(tasks)
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * PageSize
	end := start + PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Tasks:       tasks[start:end],
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
	}
}
