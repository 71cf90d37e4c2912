package tidy3d

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// APIKeyEnv names the environment variable holding the cloud API key.
const APIKeyEnv = "TIDY3D_API_KEY"

// Task states reported by the cloud service.
const (
	StatusDraft      = "draft"
	StatusQueued     = "queued"
	StatusPreprocess = "preprocess"
	StatusRunning    = "running"
	StatusPostproc   = "postprocess"
	StatusSuccess    = "success"
	StatusError      = "error"
	StatusDiverged   = "diverged"
	StatusDeleted    = "deleted"
)

// ResultsFile is the name of the solver output on the server.
const ResultsFile = "monitor_data.hdf5"

var (
	// ErrNoAPIKey is returned when a cloud operation has no credentials.
	ErrNoAPIKey = errors.New("tidy3d: no API key")
	// ErrTaskFailed is returned when a task ends in a non-success state.
	ErrTaskFailed = errors.New("tidy3d: task failed")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tidy3d api error (%d): %s", e.StatusCode, e.Body)
}

// Task is the service's view of a simulation task.
type Task struct {
	TaskID   string  `json:"taskId"`
	TaskName string  `json:"taskName"`
	Status   string  `json:"status"`
	RealCost float64 `json:"realFlexUnit,omitempty"`
}

// Done reports whether the task reached a terminal state.
func (t Task) Done() bool {
	switch t.Status {
	case StatusSuccess, StatusError, StatusDiverged, StatusDeleted:
		return true
	}
	return false
}

// Client talks to the cloud solver's task API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient returns a client with a bounded request timeout. Polling and
// downloads rely on ctx for their overall deadline.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	if c.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("simcloud-api-key", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

// do executes a JSON request and decodes the "data" member of the reply
// into result when result is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%s %s: response has no data", method, path)
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func taskPath(id string, rest ...string) string {
	parts := append([]string{"/tidy3d/tasks", url.PathEscape(id)}, rest...)
	return strings.Join(parts, "/")
}

// CreateTask uploads a simulation document as a new draft task.
func (c *Client) CreateTask(ctx context.Context, name string, sim *Simulation) (Task, error) {
	body := struct {
		TaskName   string      `json:"taskName"`
		Simulation *Simulation `json:"simulation"`
	}{name, sim}
	var task Task
	if err := c.do(ctx, http.MethodPost, "/tidy3d/tasks", body, &task); err != nil {
		return Task{}, fmt.Errorf("create task %q: %w", name, err)
	}
	if task.TaskID == "" {
		return Task{}, fmt.Errorf("create task %q: response missing task id", name)
	}
	return task, nil
}

// EstimateCost returns the maximum cost of a task in flex credits.
func (c *Client) EstimateCost(ctx context.Context, id string) (float64, error) {
	var est struct {
		FlexUnit float64 `json:"flexUnit"`
	}
	if err := c.do(ctx, http.MethodGet, taskPath(id, "estimate-cost"), nil, &est); err != nil {
		return 0, fmt.Errorf("estimate cost %s: %w", id, err)
	}
	return est.FlexUnit, nil
}

// Submit queues a draft task for execution.
func (c *Client) Submit(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, taskPath(id, "submit"), struct{}{}, nil); err != nil {
		return fmt.Errorf("submit %s: %w", id, err)
	}
	return nil
}

// Status fetches the current state of a task.
func (c *Client) Status(ctx context.Context, id string) (Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, taskPath(id), nil, &task); err != nil {
		return Task{}, fmt.Errorf("status %s: %w", id, err)
	}
	return task, nil
}

// Wait polls a task every interval until it reaches a terminal state or
// ctx is done. A terminal state other than success wraps ErrTaskFailed.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (Task, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		task, err := c.Status(ctx, id)
		if err != nil {
			return Task{}, err
		}
		if task.Done() {
			if task.Status != StatusSuccess {
				return task, fmt.Errorf("%w: %s ended in %q", ErrTaskFailed, id, task.Status)
			}
			return task, nil
		}
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download streams a task output file to dst.
func (c *Client) Download(ctx context.Context, id, name, dst string) error {
	req, err := c.newRequest(ctx, http.MethodGet, taskPath(id, "output", url.PathEscape(name)), nil)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return fmt.Errorf("download %s/%s: %w", id, name, err)
	}
	defer resp.Body.Close()

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("download %s/%s: %w", id, name, err)
	}
	return f.Close()
}
