package service

import (
	"context"

	"taskdesk/internal/models/task"
	"taskdesk/internal/upstream"
)

// UpstreamClient is what the service needs from the practice management
// API client.
type UpstreamClient interface {
	ListAll(ctx context.Context) ([]*task.Task, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	Update(ctx context.Context, id string, update upstream.UpdateRequest) (*task.Task, error)
	AddComment(ctx context.Context, id, text string, file *upstream.Upload) (task.Comment, error)
}

// TaskRepository is the snapshot store the service reads views from.
type TaskRepository interface {
	ReplaceAll(ctx context.Context, tasks []*task.Task) error
	Upsert(ctx context.Context, t *task.Task) error
	GetByID(ctx context.Context, id string) (*task.Task, error)
	GetAll(ctx context.Context) ([]*task.Task, error)
	HealthCheck(ctx context.Context) error
}
