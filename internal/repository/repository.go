// Package repository defines the local task snapshot store. The store is
// a cache of the upstream task set, not a system of record: tasks are
// never created or deleted here, only replaced wholesale by a refresh or
// patched by the authoritative result of a mutation.
package repository

import (
	"context"
	"errors"

	"taskdesk/internal/models/task"
)

var ErrNotFound = errors.New("task not found in snapshot")

type TaskRepository interface {
	// ReplaceAll swaps the whole snapshot for the given task set.
	ReplaceAll(ctx context.Context, tasks []*task.Task) error
	// Upsert stores one task, inserting or overwriting by id.
	Upsert(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id string) (*task.Task, error)
	GetAll(ctx context.Context) ([]*task.Task, error)
	HealthCheck(ctx context.Context) error
}
