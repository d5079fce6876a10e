package handlers

import (
	"context"

	"taskdesk/internal/models/task"
	"taskdesk/internal/upstream"
	"taskdesk/internal/view"
)

type TaskService interface {
	Refresh(ctx context.Context) error
	ListView(ctx context.Context, q view.Query) (view.Page, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	UpdateTask(ctx context.Context, id string, options ...task.TaskOption) (*task.Task, error)
	AddComment(ctx context.Context, id, text string, file *upstream.Upload, reconcile bool) (task.Comment, error)
	HealthCheck(ctx context.Context) error
}
