// Package mcptools exposes the task API as MCP tools. It holds no task
// logic: every call is forwarded to the HTTP API and the response is
// handed back as is.
package mcptools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000"
	DefaultTimeout = 15 * time.Second
	tasksPath      = "/v1/tasks/"
)

// Result is what every tool returns. Data is the decoded JSON body,
// {"message": <raw body>} when the body is not JSON, or nil when it is empty.
type Result struct {
	OK     bool        `json:"ok"`
	Status int         `json:"status"`
	URL    string      `json:"url"`
	Data   interface{} `json:"data"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListTasks(ctx context.Context, params url.Values) (*Result, error) {
	u := c.baseURL + tasksPath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, isSuccess)
}

func (c *Client) CreateTask(ctx context.Context, payload map[string]interface{}) (*Result, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+tasksPath, payload, statusIs(http.StatusCreated))
}

func (c *Client) UpdateTask(ctx context.Context, id int64, payload map[string]interface{}) (*Result, error) {
	return c.do(ctx, http.MethodPatch, c.taskURL(id), payload, isSuccess)
}

func (c *Client) DeleteTask(ctx context.Context, id int64) (*Result, error) {
	return c.do(ctx, http.MethodDelete, c.taskURL(id), nil, statusIs(http.StatusNoContent))
}

func (c *Client) taskURL(id int64) string {
	return c.baseURL + tasksPath + strconv.FormatInt(id, 10)
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

func statusIs(want int) func(int) bool {
	return func(code int) bool { return code == want }
}

func (c *Client) do(ctx context.Context, method, u string, payload interface{}, ok func(int) bool) (*Result, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var data interface{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			data = map[string]interface{}{"message": string(raw)}
		}
	}

	return &Result{
		OK:     ok(resp.StatusCode),
		Status: resp.StatusCode,
		URL:    resp.Request.URL.String(),
		Data:   data,
	}, nil
}
