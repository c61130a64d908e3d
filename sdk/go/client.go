package teampulsesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Teampulse HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Report is the report document returned by the reporting endpoints.
// Fields mirror the wire format; nested sections stay generic so SDK
// consumers are not broken by additive server changes.
type Report struct {
	AvgTaskCompletionDays    float64        `json:"avgTaskCompletionDays"`
	AvgProjectCompletionDays float64        `json:"avgProjectCompletionDays"`
	ProductivityTrend        string         `json:"productivityTrend"`
	CompletionRateThisMonth  float64        `json:"completionRateThisMonth"`
	CompletionRateLastMonth  float64        `json:"completionRateLastMonth"`
	ProjectScope             map[string]any `json:"projectScope"`
	TaskScope                map[string]any `json:"taskScope"`
	TeamPerformance          map[string]any `json:"teamPerformance"`
	ScopeInfo                ScopeInfo      `json:"scopeInfo"`
}

type ScopeInfo struct {
	ScopeID   string `json:"scopeId"`
	ScopeName string `json:"scopeName"`
}

// Task represents the API task model (partial).
type Task struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	Deadline  *string `json:"deadline,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// ImportCounts reports how many entities a snapshot import touched.
type ImportCounts struct {
	Departments int `json:"departments"`
	Users       int `json:"users"`
	Projects    int `json:"projects"`
	Tasks       int `json:"tasks"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// OrganizationReport fetches the organization-wide report.
func (c *Client) OrganizationReport(ctx context.Context) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, "v0/reports/organization", nil, &resp)
	return resp, err
}

// DepartmentReport fetches the report for one department.
func (c *Client) DepartmentReport(ctx context.Context, departmentID string) (Report, error) {
	var resp Report
	endpoint := fmt.Sprintf("v0/reports/departments/%s", url.PathEscape(departmentID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ImportSnapshot posts a raw snapshot document.
func (c *Client) ImportSnapshot(ctx context.Context, snapshot []byte) (ImportCounts, error) {
	var resp struct {
		Imported ImportCounts `json:"imported"`
	}
	err := c.doRaw(ctx, http.MethodPost, "v0/snapshots/import", snapshot, &resp)
	return resp.Imported, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, projectID, title string) (Task, error) {
	body := map[string]any{
		"project_id": projectID,
		"title":      title,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// SetTaskStatus changes a task's stored status.
func (c *Client) SetTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	body := map[string]any{"status": status}
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var raw []byte
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		raw = buf.Bytes()
	}
	return c.doRaw(ctx, method, endpoint, raw, out)
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, body []byte, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
