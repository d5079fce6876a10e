package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"taskdesk/internal/handlers/dto"
	"taskdesk/internal/logger"
	"taskdesk/internal/models/task"
	"taskdesk/internal/upstream"
	"taskdesk/internal/view"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
	}
}

// GetViewTasks serves one page of a role-specific task view.
// GET /views/{role}/tasks
func (h *TaskHandler) GetViewTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	role, ok := view.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		logger.Warn("HTTP: unknown view role",
			zap.String("role", chi.URLParam(r, "role")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "unknown view role: "+chi.URLParam(r, "role"))
		return
	}

	query, viewerID, err := parseViewQuery(r, role)
	if err != nil {
		logger.Warn("HTTP: invalid view query",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.TaskService.ListView(r.Context(), query)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: service error", err, zap.String("operation", "list_view"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response, err := dto.FromPage(page, viewerID, time.Now())
	if err != nil {
		logger.Error("HTTP: rendering view rows", err, zap.String("operation", "list_view"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: view page served",
		zap.String("role", string(role)),
		zap.Int("rows", len(page.Tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithData(w, http.StatusOK, response)
}

func parseViewQuery(r *http.Request, role view.Role) (view.Query, string, error) {
	q := r.URL.Query()

	query := view.Query{
		Role:       role,
		Search:     q.Get("search"),
		ClientID:   q.Get("client_id"),
		AssigneeID: q.Get("assignee_id"),
		Page:       1,
	}

	if raw := q.Get("status"); raw != "" {
		status, err := task.ParseUI(raw)
		if err != nil {
			return view.Query{}, "", err
		}
		query.Status = status
	}

	if raw := q.Get("due"); raw != "" {
		due, ok := view.ParseDueFilter(raw)
		if !ok {
			return view.Query{}, "", errors.New("unknown due filter: " + raw)
		}
		query.Due = due
	}

	// clarification_for names the viewer whose pending requests the view
	// shows; it is the viewer identity for row rendering too, so the
	// filter and the needs_my_input flag never disagree.
	viewerID := q.Get("viewer_id")
	if target := q.Get("clarification_for"); target != "" {
		query.ClarificationOnly = true
		viewerID = target
	}
	query.ViewerID = viewerID

	if raw := q.Get("sort"); raw != "" {
		col, ok := view.ParseSortColumn(raw)
		if !ok {
			return view.Query{}, "", errors.New("unknown sort column: " + raw)
		}
		query.Sort = view.SortState{
			Column:     col,
			Descending: q.Get("order") == "desc",
		}
	}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return view.Query{}, "", errors.New("invalid page number: " + raw)
		}
		query.Page = page
	}

	return query, viewerID, nil
}

// GetTaskByID serves the full task detail, comments and log included.
// GET /tasks/{id}
func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")
	if id == "" {
		logger.Warn("HTTP: missing task id", zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "task id must not be empty")
		return
	}

	t, err := h.TaskService.GetTask(r.Context(), id)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: service error", err,
			zap.String("operation", "get_task"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	detail, err := dto.FromTaskDetail(t, r.URL.Query().Get("viewer_id"), time.Now())
	if err != nil {
		logger.Error("HTTP: rendering task detail", err, zap.String("operation", "get_task"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: task served",
		zap.String("task_id", t.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithData(w, http.StatusOK, detail)
}

// UpdateTaskByID pushes the fields the dashboard owns. The workflow
// status arrives in the dashboard encoding and may only move forward.
// PUT /tasks/{id}
func (h *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")
	if id == "" {
		logger.Warn("HTTP: missing task id", zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "task id must not be empty")
		return
	}

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: wrong content type",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var request dto.UpdateTaskRequest
	decoder := json.NewDecoder(r.Body)
	defer r.Body.Close()

	if err := decoder.Decode(&request); err != nil {
		logger.Warn("HTTP: invalid JSON body",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	options, err := updateOptions(request)
	if err != nil {
		logger.Warn("HTTP: invalid update request",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.TaskService.UpdateTask(r.Context(), id, options...)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: service error", err,
			zap.String("operation", "update_task"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	detail, err := dto.FromTaskDetail(updated, r.URL.Query().Get("viewer_id"), time.Now())
	if err != nil {
		logger.Error("HTTP: rendering task detail", err, zap.String("operation", "update_task"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: task updated",
		zap.String("task_id", updated.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithData(w, http.StatusOK, detail)
}

func updateOptions(request dto.UpdateTaskRequest) ([]task.TaskOption, error) {
	var options []task.TaskOption

	if request.Name != nil {
		if *request.Name == "" {
			return nil, errors.New("task_name must not be empty")
		}
		options = append(options, task.WithName(*request.Name))
	}
	if request.Description != nil {
		options = append(options, task.WithDescription(*request.Description))
	}
	if request.Status != nil {
		status, err := task.ParseUI(*request.Status)
		if err != nil {
			return nil, err
		}
		options = append(options, task.WithStatus(status))
	}
	if request.AssigneeID != nil {
		name := ""
		if request.AssigneeName != nil {
			name = *request.AssigneeName
		}
		options = append(options, task.WithAssignee(*request.AssigneeID, name))
	}
	if request.ClearDueDate {
		options = append(options, task.WithDueDate(nil))
	} else if request.DueDate != nil {
		options = append(options, task.WithDueDate(request.DueDate))
	}
	if request.InvoiceAmount != nil {
		options = append(options, task.WithInvoiceAmount(request.InvoiceAmount))
	}
	if request.GSTOverride != nil {
		options = append(options, task.WithGSTOverride(request.GSTOverride))
	}
	if request.RequireClarification != nil {
		options = append(options, task.WithClarification(task.Clarification{
			Required: *request.RequireClarification,
			FromID:   request.ClarificationFrom,
			FromName: request.ClarificationFromName,
			ToID:     request.ClarificationTo,
			ToName:   request.ClarificationToName,
		}))
	}

	return options, nil
}

// AddComment appends a comment, optionally with one attached file.
// POST /tasks/{id}/comments (multipart form)
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id := chi.URLParam(r, "id")
	if id == "" {
		logger.Warn("HTTP: missing task id", zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "task id must not be empty")
		return
	}

	if !checkContentType(r, "multipart/form-data") {
		logger.Warn("HTTP: wrong content type",
			zap.String("expected", "multipart/form-data"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be multipart/form-data")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("HTTP: invalid multipart form",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	text := r.FormValue("comment_text")
	if text == "" {
		logger.Warn("HTTP: validation error",
			zap.String("field", "comment_text"),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "comment_text must not be empty")
		return
	}

	var upload *upstream.Upload
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		upload = &upstream.Upload{Name: header.Filename, Reader: file}
	} else if !errors.Is(err, http.ErrMissingFile) {
		logger.Warn("HTTP: reading attachment",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "reading attachment: "+err.Error())
		return
	}

	reconcile := r.URL.Query().Get("reconcile") == "true"

	comment, err := h.TaskService.AddComment(r.Context(), id, text, upload, reconcile)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: service error", err,
			zap.String("operation", "add_comment"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: comment added",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithData(w, http.StatusCreated, comment)
}

// RefreshSnapshot forces a full re-sync from upstream.
// POST /refresh
func (h *TaskHandler) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if err := h.TaskService.Refresh(r.Context()); err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Error("HTTP: service error", err, zap.String("operation", "refresh"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: snapshot refreshed",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("success", true))
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: health check")

	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "degraded"),
			toPayload("error", err.Error()))
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}
