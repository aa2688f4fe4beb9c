package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var (
	priorities = []string{"low", "med", "high"}
	statuses   = []string{"todo", "in_progress", "done"}
)

type Tools struct {
	client *Client
}

func NewTools(client *Client) *Tools {
	return &Tools{client: client}
}

// NewServer builds an MCP server with the four task tools registered.
func NewServer(client *Client, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"to-do-list",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	NewTools(client).Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with optional filters. Returns structured JSON."),
		mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum(statuses...)),
		mcp.WithString("priority", mcp.Description("Filter by priority"), mcp.Enum(priorities...)),
		mcp.WithString("tag", mcp.Description("Only tasks carrying this tag")),
		mcp.WithString("search", mcp.Description("Case-insensitive substring of the title")),
		mcp.WithNumber("limit", mcp.Description("Page size, 1 to 200")),
		mcp.WithNumber("offset", mcp.Description("Number of matches to skip")),
	), t.ListTasks)

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task via POST /v1/tasks. Returns structured JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("description", mcp.Description("Free-form details")),
		mcp.WithString("due_date", mcp.Description("ISO-8601 UTC timestamp, e.g. 2025-09-15T12:00:00Z")),
		mcp.WithString("priority", mcp.Enum(priorities...)),
		mcp.WithArray("tags", mcp.Description("Labels"), mcp.Items(map[string]interface{}{"type": "string"})),
	), t.CreateTask)

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Partially update a task via PATCH /v1/tasks/{id}. Only the given fields change."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("title"),
		mcp.WithString("description"),
		mcp.WithString("due_date", mcp.Description("ISO-8601 UTC timestamp")),
		mcp.WithString("priority", mcp.Enum(priorities...)),
		mcp.WithString("status", mcp.Enum(statuses...)),
		mcp.WithArray("tags", mcp.Items(map[string]interface{}{"type": "string"})),
	), t.UpdateTask)

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task via DELETE /v1/tasks/{id}."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Task id")),
	), t.DeleteTask)
}

func (t *Tools) ListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	params := url.Values{}

	for _, key := range []string{"status", "priority", "tag", "search"} {
		if v, ok := args[key].(string); ok && v != "" {
			params.Set(key, v)
		}
	}
	for _, key := range []string{"limit", "offset"} {
		if _, present := args[key]; !present {
			continue
		}
		n, err := intArg(args, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		params.Set(key, strconv.FormatInt(n, 10))
	}

	return respond(t.client.ListTasks(ctx, params))
}

func (t *Tools) CreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	title, ok := args["title"].(string)
	if !ok {
		return mcp.NewToolResultError("title is required"), nil
	}
	payload := map[string]interface{}{"title": title}
	copyArgs(payload, args, "description", "due_date", "priority", "tags")

	return respond(t.client.CreateTask(ctx, payload))
}

func (t *Tools) UpdateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	id, err := intArg(args, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload := map[string]interface{}{}
	copyArgs(payload, args, "title", "description", "due_date", "priority", "status", "tags")

	return respond(t.client.UpdateTask(ctx, id, payload))
}

func (t *Tools) DeleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := intArg(request.GetArguments(), "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.client.DeleteTask(ctx, id))
}

// copyArgs forwards present keys verbatim, explicit nulls included, so the
// API can tell "clear" from "leave alone".
func copyArgs(dst, args map[string]interface{}, keys ...string) {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			dst[k] = v
		}
	}
}

// intArg accepts JSON numbers and numeric strings; fractions are rejected.
func intArg(args map[string]interface{}, key string) (int64, error) {
	switch v := args[key].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

func respond(result *Result, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
