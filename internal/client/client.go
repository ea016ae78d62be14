package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded %d", e.Code)
	}
	return fmt.Sprintf("server responded %d: %s", e.Code, e.Message)
}

// Client talks to the task board server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	logger  *zap.Logger

	mu        sync.RWMutex
	token     string
	listeners map[int]func(model.AuthEvent, *model.Session)
	nextID    int
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
		listeners: make(map[int]func(model.AuthEvent, *model.Session)),
	}
	for _, opt := range opts {
		opt(c)
	}
	// streams outlive any request timeout
	stream := *c.http
	stream.Timeout = 0
	c.stream = &stream
	return c
}

func (c *Client) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// InsertOnce creates a task. Requests repeating a non-empty key return the
// task the first one created instead of adding a row.
func (c *Client) InsertOnce(ctx context.Context, key string, fields model.TaskFields) (model.Task, error) {
	var task model.Task
	var h http.Header
	if key != "" {
		h = http.Header{"Idempotency-Key": []string{key}}
	}
	if err := c.do(ctx, http.MethodPost, "/api/tasks", h, fields, &task); err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (c *Client) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	var task model.Task
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), nil, patch, &task); err != nil {
		return model.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	return task, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

type Stats struct {
	ByStatus   map[model.Status]int `json:"by_status"`
	TotalTasks int                  `json:"total_tasks"`
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &s); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readStatusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readStatusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}
