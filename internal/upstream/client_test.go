package upstream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskdesk/internal/logger"
	"taskdesk/internal/models/task"
	"taskdesk/internal/upstream"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

func newClient(t *testing.T, handler http.Handler) *upstream.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return upstream.NewClient(server.URL, "test-token", 5*time.Second)
}

func listResponse(taskIDs []string, page, totalPages, totalItems int) map[string]any {
	tasks := make([]map[string]any, len(taskIDs))
	for i, id := range taskIDs {
		tasks[i] = map[string]any{
			"id":              id,
			"task_name":       "filing " + id,
			"workflow_status": "open",
		}
	}
	return map[string]any{
		"success": true,
		"data": map[string]any{
			"tasks": tasks,
			"pagination": map[string]any{
				"current_page": page,
				"total_pages":  totalPages,
				"total_items":  totalItems,
			},
		},
	}
}

func TestListAllSinglePage(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(listResponse([]string{"t-1", "t-2"}, 1, 1, 2))
	}))

	tasks, err := client.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t-1", tasks[0].ID)
}

func TestListAllConcatenatesPagesInOrder(t *testing.T) {
	pages := map[int][]string{
		1: {"t-01", "t-02"},
		2: {"t-03", "t-04"},
		3: {"t-05"},
	}

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)
		json.NewEncoder(w).Encode(listResponse(pages[page], page, 3, 5))
	}))

	tasks, err := client.ListAll(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(tasks))
	for i, tk := range tasks {
		ids[i] = tk.ID
	}
	assert.Equal(t, []string{"t-01", "t-02", "t-03", "t-04", "t-05"}, ids,
		"pages concatenate in ascending page order")
}

func TestListAllPropagatesPageFailure(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "shard down"})
			return
		}
		json.NewEncoder(w).Encode(listResponse([]string{"t-1"}, 1, 2, 2))
	}))

	_, err := client.ListAll(context.Background())
	require.Error(t, err)

	var apiErr *upstream.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestGetNotFound(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, upstream.ErrNotFound)
}

func TestGetDecodesFullDetail(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/t-9", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"id":              "t-9",
				"task_name":       "GSTR-9 annual return",
				"workflow_status": "pending_review",
				"comments": []map[string]any{
					{"id": "c-1", "comment_text": "first draft attached"},
				},
				"running_log": []map[string]any{
					{"action": "Task created"},
					{"action": "Comment added"},
				},
			},
		})
	}))

	got, err := client.Get(context.Background(), "t-9")
	require.NoError(t, err)
	assert.Equal(t, task.StatusPendingReview, got.Status)
	assert.Len(t, got.Comments, 1)
	assert.Len(t, got.RunningLog, 2)
}

func TestGetRejectsUnknownStatusToken(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"id":              "t-1",
				"task_name":       "filing t-1",
				"workflow_status": "archived",
			},
		})
	}))

	_, err := client.Get(context.Background(), "t-1")
	assert.ErrorIs(t, err, task.ErrInvalidStatus,
		"a status outside the workflow set never enters the model")
}

func TestListAllRejectsUnknownStatusToken(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := listResponse([]string{"t-1", "t-2"}, 1, 1, 2)
		resp["data"].(map[string]any)["tasks"].([]map[string]any)[1]["workflow_status"] = "on_hold"
		json.NewEncoder(w).Encode(resp)
	}))

	_, err := client.ListAll(context.Background())
	assert.ErrorIs(t, err, task.ErrInvalidStatus)
}

func TestUpdateSendsOnlyOwnedFields(t *testing.T) {
	var body map[string]json.RawMessage

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"id":              "t-1",
				"task_name":       "GSTR-3B July",
				"workflow_status": "in_progress",
			},
		})
	}))

	update := upstream.UpdateRequestFrom(&task.Task{
		ID:     "t-1",
		Name:   "GSTR-3B July",
		Status: task.StatusInProgress,
		// server-owned fields must not leak into the PUT body
		InvoiceID: strPtr("INV-1"),
	})

	got, err := client.Update(context.Background(), "t-1", update)
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)

	assert.Contains(t, body, "task_name")
	assert.Contains(t, body, "workflow_status")
	assert.NotContains(t, body, "invoice_id")
	assert.NotContains(t, body, "created_at")
}

func strPtr(s string) *string {
	return &s
}

func TestUpdateValidationError(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "validation failed",
			"errors": map[string]string{
				"due_date":       "must not be in the past",
				"invoice_amount": "must be positive",
			},
		})
	}))

	_, err := client.Update(context.Background(), "t-1", upstream.UpdateRequest{})
	require.Error(t, err)

	var validationErr *upstream.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "validation failed", validationErr.Message)
	assert.Equal(t, "must not be in the past", validationErr.Fields["due_date"])
	assert.Len(t, validationErr.Fields, 2)
}

func TestEnvelopeFailureBecomesAPIError(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "task is locked"})
	}))

	_, err := client.Get(context.Background(), "t-1")

	var apiErr *upstream.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "task is locked", apiErr.Message)
}

func TestAddCommentMultipart(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tasks/t-1/comments", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "please review", r.FormValue("comment_text"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "workings.xlsx", header.Filename)

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"id":           "c-7",
				"comment_text": "please review",
				"file_url":     "https://files.example/workings.xlsx",
			},
		})
	}))

	comment, err := client.AddComment(context.Background(), "t-1", "please review", &upstream.Upload{
		Name:   "workings.xlsx",
		Reader: strings.NewReader("cells"),
	})
	require.NoError(t, err)
	assert.Equal(t, "c-7", comment.ID)
	assert.Equal(t, "https://files.example/workings.xlsx", comment.FileURL)
}

func TestAddCommentWithoutFile(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		assert.Error(t, err, "no file part expected")

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"id": "c-8", "comment_text": r.FormValue("comment_text")},
		})
	}))

	comment, err := client.AddComment(context.Background(), "t-1", "status?", nil)
	require.NoError(t, err)
	assert.Equal(t, "c-8", comment.ID)
}

func TestTransportErrorIsWrapped(t *testing.T) {
	client := upstream.NewClient("http://127.0.0.1:1", "", 200*time.Millisecond)

	_, err := client.Get(context.Background(), "t-1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "calling upstream"), fmt.Sprintf("got: %v", err))
}
