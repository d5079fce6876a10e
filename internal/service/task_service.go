package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"taskdesk/internal/logger"
	"taskdesk/internal/models/task"
	"taskdesk/internal/repository"
	"taskdesk/internal/upstream"
	"taskdesk/internal/view"
)

// TaskService composes the upstream client, the local snapshot and the
// view pipeline. Business rules live here: the forward-only workflow
// transition check, the stale-refresh guard and the no-partial-state
// policy on upstream failure.
type TaskService struct {
	client UpstreamClient
	repo   TaskRepository

	// generation guards against a slow refresh landing after a newer one
	// has started and clobbering fresher data.
	generation atomic.Uint64
	commitMtx  sync.Mutex
}

func NewTaskService(client UpstreamClient, repo TaskRepository) *TaskService {
	return &TaskService{
		client: client,
		repo:   repo,
	}
}

// Refresh pulls the full task set from upstream and swaps the snapshot.
// A refresh whose fetch finishes after a newer refresh has started is
// discarded instead of committed.
func (s *TaskService) Refresh(ctx context.Context) error {
	gen := s.generation.Add(1)
	start := time.Now()

	tasks, err := s.client.ListAll(ctx)
	if err != nil {
		return s.fromUpstreamError(err)
	}

	s.commitMtx.Lock()
	defer s.commitMtx.Unlock()

	if gen != s.generation.Load() {
		logger.Info("Service: discarding superseded refresh",
			zap.Uint64("generation", gen),
			zap.Uint64("current", s.generation.Load()))
		return nil
	}

	if err := s.repo.ReplaceAll(ctx, tasks); err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}

	logger.Info("Service: snapshot refreshed",
		zap.Int("tasks", len(tasks)),
		zap.Duration("ms", time.Since(start)))
	return nil
}

// ListView derives one page of a dashboard view from the snapshot.
func (s *TaskService) ListView(ctx context.Context, q view.Query) (view.Page, error) {
	tasks, err := s.repo.GetAll(ctx)
	if err != nil {
		return view.Page{}, fmt.Errorf("reading snapshot: %w", err)
	}
	return q.Apply(tasks, time.Now()), nil
}

// GetTask fetches one task with full detail from upstream and refreshes
// its snapshot copy. If upstream is unreachable the snapshot copy is
// served instead, possibly stale.
func (s *TaskService) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.client.Get(ctx, id)
	if err == nil {
		if upsertErr := s.repo.Upsert(ctx, t); upsertErr != nil {
			logger.Warn("Service: snapshot not updated after fetch",
				zap.String("task_id", id), zap.Error(upsertErr))
		}
		return t, nil
	}

	if errors.Is(err, upstream.ErrNotFound) {
		return nil, NewNotFound(id)
	}

	cached, cacheErr := s.repo.GetByID(ctx, id)
	if cacheErr == nil {
		logger.Warn("Service: serving snapshot copy, upstream unreachable",
			zap.String("task_id", id), zap.Error(err))
		return cached, nil
	}
	return nil, s.fromUpstreamError(err)
}

// UpdateTask applies the options to the task's current state, validates
// the workflow transition, pushes the owned fields upstream and commits
// the server's authoritative response to the snapshot. Nothing local
// changes when the upstream call fails.
func (s *TaskService) UpdateTask(ctx context.Context, id string, options ...task.TaskOption) (*task.Task, error) {
	current, err := s.currentTask(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	for _, opt := range options {
		if opt != nil {
			opt(&updated)
		}
	}

	if !current.Status.CanTransitionTo(updated.Status) {
		logger.Warn("Service: backward workflow transition rejected",
			zap.String("task_id", id),
			zap.String("from", string(current.Status)),
			zap.String("to", string(updated.Status)))
		return nil, NewInvalidTransition(current.Status.UI(), updated.Status.UI())
	}

	authoritative, err := s.client.Update(ctx, id, upstream.UpdateRequestFrom(&updated))
	if err != nil {
		return nil, s.fromUpstreamError(err)
	}

	if err := s.repo.Upsert(ctx, authoritative); err != nil {
		logger.Warn("Service: snapshot not updated after task update",
			zap.String("task_id", id), zap.Error(err))
	}

	logger.Info("Service: task updated",
		zap.String("task_id", id),
		zap.String("status", string(authoritative.Status)))
	return authoritative, nil
}

// AddComment posts the comment upstream, then reflects the created
// comment and its synthetic log entry in the snapshot copy. With
// reconcile set, the full task is re-fetched afterwards to pick up any
// out-of-band changes.
func (s *TaskService) AddComment(ctx context.Context, id, text string, file *upstream.Upload, reconcile bool) (task.Comment, error) {
	if text == "" {
		return task.Comment{}, NewValidationError("comment_text", "must not be empty")
	}

	comment, err := s.client.AddComment(ctx, id, text, file)
	if err != nil {
		return task.Comment{}, s.fromUpstreamError(err)
	}

	if cached, cacheErr := s.repo.GetByID(ctx, id); cacheErr == nil {
		cached.AppendComment(comment)
		if upsertErr := s.repo.Upsert(ctx, cached); upsertErr != nil {
			logger.Warn("Service: snapshot not updated after comment",
				zap.String("task_id", id), zap.Error(upsertErr))
		}
	}

	if reconcile {
		if t, fetchErr := s.client.Get(ctx, id); fetchErr == nil {
			if upsertErr := s.repo.Upsert(ctx, t); upsertErr != nil {
				logger.Warn("Service: snapshot not updated after reconcile",
					zap.String("task_id", id), zap.Error(upsertErr))
			}
		} else {
			logger.Warn("Service: reconcile fetch failed",
				zap.String("task_id", id), zap.Error(fetchErr))
		}
	}

	return comment, nil
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// currentTask prefers the snapshot copy and falls back to upstream when
// the task has not been synced yet.
func (s *TaskService) currentTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("reading snapshot for task %s: %w", id, err)
	}

	t, err = s.client.Get(ctx, id)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return nil, NewNotFound(id)
		}
		return nil, s.fromUpstreamError(err)
	}
	return t, nil
}

// fromUpstreamError folds the upstream error taxonomy into business
// errors the handler layer knows how to render.
func (s *TaskService) fromUpstreamError(err error) error {
	var validationErr *upstream.ValidationError
	if errors.As(err, &validationErr) {
		busErr := NewBusinessError(CodeValidationError, validationErr.Message)
		for field, msg := range validationErr.Fields {
			busErr.Details[field] = msg
		}
		busErr.Err = err
		return busErr
	}

	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		return &BusinessError{
			Code:    CodeUpstreamUnavailable,
			Message: apiErr.Message,
			Details: map[string]any{"status_code": apiErr.StatusCode},
			Err:     err,
		}
	}

	return &BusinessError{
		Code:    CodeUpstreamUnavailable,
		Message: "practice management API unreachable",
		Details: map[string]any{},
		Err:     err,
	}
}
