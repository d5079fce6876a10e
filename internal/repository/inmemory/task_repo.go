package inmemory

import (
	"context"
	"sync"

	"taskdesk/internal/models/task"
	"taskdesk/internal/repository"
)

// Storage is the map-backed snapshot store used in development and tests.
type Storage struct {
	mtx   sync.RWMutex
	tasks map[string]*task.Task
	// order preserves upstream ordering across GetAll calls
	order []string
}

func NewTaskStorage() *Storage {
	return &Storage{
		tasks: make(map[string]*task.Task),
	}
}

func (s *Storage) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.tasks = make(map[string]*task.Task, len(tasks))
	s.order = make([]string, 0, len(tasks))
	for _, t := range tasks {
		if _, exists := s.tasks[t.ID]; !exists {
			s.order = append(s.order, t.ID)
		}
		s.tasks[t.ID] = clone(t)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, t *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, exists := s.tasks[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = clone(t)
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(t), nil
}

func (s *Storage) GetAll(ctx context.Context) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make([]*task.Task, 0, len(s.tasks))
	for _, id := range s.order {
		out = append(out, clone(s.tasks[id]))
	}
	return out, nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	return nil
}

// clone copies a task deeply enough that callers cannot alias the stored
// sub-entity slices.
func clone(t *task.Task) *task.Task {
	cp := *t
	if t.Comments != nil {
		cp.Comments = append([]task.Comment(nil), t.Comments...)
	}
	if t.RunningLog != nil {
		cp.RunningLog = append([]task.LogEntry(nil), t.RunningLog...)
	}
	return &cp
}
