// Package upstream is the client for the practice management API that
// owns the canonical task records. It never retries on its own; callers
// decide whether a failed call is worth repeating.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskdesk/internal/logger"
	"taskdesk/internal/models/task"
)

// listPageLimit is the page size used when syncing the full task set.
const listPageLimit = 100

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// List fetches one page of tasks.
func (c *Client) List(ctx context.Context, page, limit int) ([]*task.Task, Pagination, error) {
	start := time.Now()

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	req, err := c.newRequest(ctx, http.MethodGet, "/tasks?"+q.Encode(), nil)
	if err != nil {
		return nil, Pagination{}, err
	}

	var data listData
	if err := c.do(req, &data); err != nil {
		return nil, Pagination{}, fmt.Errorf("listing tasks (page %d): %w", page, err)
	}

	if time.Since(start) > time.Second {
		logger.Warn("Upstream: slow list call",
			zap.Int("page", page),
			zap.Duration("ms", time.Since(start)))
	}

	return data.Tasks, data.Pagination, nil
}

// ListAll fetches every page of the task set. Page 1 reveals the page
// count; the remaining pages are requested concurrently and concatenated
// in ascending page order once they have all arrived.
func (c *Client) ListAll(ctx context.Context) ([]*task.Task, error) {
	first, pagination, err := c.List(ctx, 1, listPageLimit)
	if err != nil {
		return nil, err
	}
	if pagination.TotalPages <= 1 {
		return first, nil
	}

	pages := make([][]*task.Task, pagination.TotalPages)
	pages[0] = first

	g, gctx := errgroup.WithContext(ctx)
	for page := 2; page <= pagination.TotalPages; page++ {
		g.Go(func() error {
			tasks, _, err := c.List(gctx, page, listPageLimit)
			if err != nil {
				return err
			}
			pages[page-1] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]*task.Task, 0, pagination.TotalItems)
	for _, p := range pages {
		all = append(all, p...)
	}

	logger.Info("Upstream: full task set fetched",
		zap.Int("pages", pagination.TotalPages),
		zap.Int("tasks", len(all)))

	return all, nil
}

// Get fetches one task with full detail (comments and running log).
func (c *Client) Get(ctx context.Context, id string) (*task.Task, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var t task.Task
	if err := c.do(req, &t); err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", id, err)
	}
	return &t, nil
}

// Update pushes the owned fields of a task and returns the server's
// authoritative copy.
func (c *Client) Update(ctx context.Context, id string, update UpdateRequest) (*task.Task, error) {
	body, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("encoding update for task %s: %w", id, err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var t task.Task
	if err := c.do(req, &t); err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	return &t, nil
}

// Upload is an optional file attached to a comment.
type Upload struct {
	Name   string
	Reader io.Reader
}

// AddComment appends a comment to a task via the multipart endpoint and
// returns the created comment.
func (c *Client) AddComment(ctx context.Context, id, text string, file *Upload) (task.Comment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("comment_text", text); err != nil {
		return task.Comment{}, fmt.Errorf("building comment form: %w", err)
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", file.Name)
		if err != nil {
			return task.Comment{}, fmt.Errorf("building comment form: %w", err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return task.Comment{}, fmt.Errorf("reading comment attachment: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return task.Comment{}, fmt.Errorf("building comment form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/comments", &buf)
	if err != nil {
		return task.Comment{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var comment task.Comment
	if err := c.do(req, &comment); err != nil {
		return task.Comment{}, fmt.Errorf("adding comment to task %s: %w", id, err)
	}
	return comment, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes the request and decodes the envelope's data into out. All
// failure shapes collapse into the package error taxonomy here.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling upstream: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading upstream response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decoding upstream response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ValidationError{
			Message: messageOr(env.Message, "request rejected"),
			Fields:  env.Errors,
		}
	}
	if resp.StatusCode >= 500 {
		return &APIError{StatusCode: resp.StatusCode, Message: messageOr(env.Message, "server error")}
	}
	if !env.Success {
		return &APIError{Message: messageOr(env.Message, "request failed")}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding upstream payload: %w", err)
	}
	return nil
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
