package service_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskdesk/internal/logger"
	"taskdesk/internal/models/task"
	"taskdesk/internal/repository"
	"taskdesk/internal/service"
	"taskdesk/internal/upstream"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

type MockUpstream struct {
	mock.Mock
}

func (m *MockUpstream) ListAll(ctx context.Context) ([]*task.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockUpstream) Get(ctx context.Context, id string) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockUpstream) Update(ctx context.Context, id string, update upstream.UpdateRequest) (*task.Task, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockUpstream) AddComment(ctx context.Context, id, text string, file *upstream.Upload) (task.Comment, error) {
	args := m.Called(ctx, id, text, file)
	return args.Get(0).(task.Comment), args.Error(1)
}

var _ service.UpstreamClient = (*MockUpstream)(nil)

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) ReplaceAll(ctx context.Context, tasks []*task.Task) error {
	args := m.Called(ctx, tasks)
	return args.Error(0)
}

func (m *MockTaskRepository) Upsert(ctx context.Context, t *task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id string) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockTaskRepository) GetAll(ctx context.Context) ([]*task.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ service.TaskRepository = (*MockTaskRepository)(nil)

func TestRefreshCommitsSnapshot(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	tasks := []*task.Task{{ID: "t-1", Status: task.StatusOpen}}
	client.On("ListAll", mock.Anything).Return(tasks, nil).Once()
	repo.On("ReplaceAll", mock.Anything, tasks).Return(nil).Once()

	err := svc.Refresh(context.Background())

	require.NoError(t, err)
	client.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestRefreshUpstreamFailureLeavesSnapshotUntouched(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	client.On("ListAll", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	err := svc.Refresh(context.Background())

	require.Error(t, err)
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeUpstreamUnavailable, busErr.Code)
	repo.AssertNotCalled(t, "ReplaceAll", mock.Anything, mock.Anything)
}

func TestRefreshDiscardsSupersededResult(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	staleTasks := []*task.Task{{ID: "stale"}}
	freshTasks := []*task.Task{{ID: "fresh"}}

	// The first refresh's fetch triggers a complete second refresh before
	// returning, so by the time the first tries to commit it has been
	// superseded.
	client.On("ListAll", mock.Anything).Return(staleTasks, nil).Once().Run(func(args mock.Arguments) {
		client.On("ListAll", mock.Anything).Return(freshTasks, nil).Once()
		repo.On("ReplaceAll", mock.Anything, freshTasks).Return(nil).Once()
		require.NoError(t, svc.Refresh(context.Background()))
	})

	err := svc.Refresh(context.Background())

	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "ReplaceAll", 1)
	repo.AssertNotCalled(t, "ReplaceAll", mock.Anything, staleTasks)
}

func TestUpdateTaskRejectsBackwardTransition(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	current := &task.Task{ID: "t-1", Status: task.StatusPendingReview}
	repo.On("GetByID", mock.Anything, "t-1").Return(current, nil).Once()

	_, err := svc.UpdateTask(context.Background(), "t-1", task.WithStatus(task.StatusOpen))

	require.Error(t, err)
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeInvalidTransition, busErr.Code)

	client.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestUpdateTaskStayingInPlaceIsAllowed(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	current := &task.Task{ID: "t-1", Name: "GSTR-3B July", Status: task.StatusClosed}
	authoritative := &task.Task{ID: "t-1", Name: "GSTR-3B July (amended)", Status: task.StatusClosed}

	repo.On("GetByID", mock.Anything, "t-1").Return(current, nil).Once()
	client.On("Update", mock.Anything, "t-1", mock.Anything).Return(authoritative, nil).Once()
	repo.On("Upsert", mock.Anything, authoritative).Return(nil).Once()

	got, err := svc.UpdateTask(context.Background(), "t-1",
		task.WithName("GSTR-3B July (amended)"),
		task.WithStatus(task.StatusClosed))

	require.NoError(t, err)
	assert.Equal(t, authoritative, got)
}

func TestUpdateTaskCommitsAuthoritativeResponse(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	current := &task.Task{ID: "t-1", Status: task.StatusOpen, Name: "GSTR-1 August"}
	serverUpdatedAt := time.Now()
	authoritative := &task.Task{
		ID:        "t-1",
		Status:    task.StatusInProgress,
		Name:      "GSTR-1 August",
		UpdatedAt: &serverUpdatedAt,
	}

	repo.On("GetByID", mock.Anything, "t-1").Return(current, nil).Once()
	client.On("Update", mock.Anything, "t-1", mock.MatchedBy(func(u upstream.UpdateRequest) bool {
		return u.Status == task.StatusInProgress && u.Name == "GSTR-1 August"
	})).Return(authoritative, nil).Once()
	repo.On("Upsert", mock.Anything, authoritative).Return(nil).Once()

	got, err := svc.UpdateTask(context.Background(), "t-1", task.WithStatus(task.StatusInProgress))

	require.NoError(t, err)
	assert.Equal(t, authoritative, got, "the server response is applied directly, no refetch")
	client.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestUpdateTaskUpstreamValidationFailure(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	current := &task.Task{ID: "t-1", Status: task.StatusOpen}
	repo.On("GetByID", mock.Anything, "t-1").Return(current, nil).Once()
	client.On("Update", mock.Anything, "t-1", mock.Anything).Return(nil, &upstream.ValidationError{
		Message: "validation failed",
		Fields:  map[string]string{"invoice_amount": "must be positive"},
	}).Once()

	_, err := svc.UpdateTask(context.Background(), "t-1", task.WithInvoiceAmount(floatPtr(-5)))

	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeValidationError, busErr.Code)
	assert.Equal(t, "must be positive", busErr.Details["invoice_amount"])

	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestUpdateTaskFallsBackToUpstreamWhenNotSynced(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	current := &task.Task{ID: "t-2", Status: task.StatusOpen}
	authoritative := &task.Task{ID: "t-2", Status: task.StatusInProgress}

	repo.On("GetByID", mock.Anything, "t-2").Return(nil, repository.ErrNotFound).Once()
	client.On("Get", mock.Anything, "t-2").Return(current, nil).Once()
	client.On("Update", mock.Anything, "t-2", mock.Anything).Return(authoritative, nil).Once()
	repo.On("Upsert", mock.Anything, authoritative).Return(nil).Once()

	got, err := svc.UpdateTask(context.Background(), "t-2", task.WithStatus(task.StatusInProgress))

	require.NoError(t, err)
	assert.Equal(t, authoritative, got)
}

func TestUpdateTaskNotFoundAnywhere(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	repo.On("GetByID", mock.Anything, "ghost").Return(nil, repository.ErrNotFound).Once()
	client.On("Get", mock.Anything, "ghost").Return(nil, upstream.ErrNotFound).Once()

	_, err := svc.UpdateTask(context.Background(), "ghost")

	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeNotFound, busErr.Code)
}

func TestAddCommentRejectsEmptyText(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	_, err := svc.AddComment(context.Background(), "t-1", "", nil, false)

	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeValidationError, busErr.Code)
	client.AssertNotCalled(t, "AddComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddCommentAppendsSyntheticLogEntry(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	created := task.Comment{ID: "c-1", AuthorID: "u-4", AuthorName: "Ravi", Text: "please check annexure"}
	cached := &task.Task{ID: "t-1", Status: task.StatusOpen}

	client.On("AddComment", mock.Anything, "t-1", "please check annexure", (*upstream.Upload)(nil)).
		Return(created, nil).Once()
	repo.On("GetByID", mock.Anything, "t-1").Return(cached, nil).Once()
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(tk *task.Task) bool {
		return len(tk.Comments) == 1 &&
			len(tk.RunningLog) == 1 &&
			tk.RunningLog[0].Action == "Comment added" &&
			tk.RunningLog[0].ActorID == "u-4"
	})).Return(nil).Once()

	got, err := svc.AddComment(context.Background(), "t-1", "please check annexure", nil, false)

	require.NoError(t, err)
	assert.Equal(t, created, got)
	repo.AssertExpectations(t)
}

func TestAddCommentReconcileRefetches(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	created := task.Comment{ID: "c-2", Text: "done"}
	fresh := &task.Task{ID: "t-1", Status: task.StatusOpen, Comments: []task.Comment{created}}

	client.On("AddComment", mock.Anything, "t-1", "done", (*upstream.Upload)(nil)).Return(created, nil).Once()
	repo.On("GetByID", mock.Anything, "t-1").Return(nil, repository.ErrNotFound).Once()
	client.On("Get", mock.Anything, "t-1").Return(fresh, nil).Once()
	repo.On("Upsert", mock.Anything, fresh).Return(nil).Once()

	_, err := svc.AddComment(context.Background(), "t-1", "done", nil, true)

	require.NoError(t, err)
	client.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestGetTaskServesSnapshotWhenUpstreamDown(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	cached := &task.Task{ID: "t-1", Name: "cached copy"}

	client.On("Get", mock.Anything, "t-1").Return(nil, errors.New("dial tcp: timeout")).Once()
	repo.On("GetByID", mock.Anything, "t-1").Return(cached, nil).Once()

	got, err := svc.GetTask(context.Background(), "t-1")

	require.NoError(t, err)
	assert.Equal(t, cached, got)
}

func TestGetTaskNotFoundUpstream(t *testing.T) {
	client := new(MockUpstream)
	repo := new(MockTaskRepository)
	svc := service.NewTaskService(client, repo)

	client.On("Get", mock.Anything, "ghost").Return(nil, upstream.ErrNotFound).Once()

	_, err := svc.GetTask(context.Background(), "ghost")

	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeNotFound, busErr.Code)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
