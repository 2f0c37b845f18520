package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/smallnest/genaistack/chat"
)

var _ chat.Backend = (*Client)(nil)

// DefaultLogLimit is the number of entries WorkflowLogs asks for when the
// caller passes no limit.
const DefaultLogLimit = 50

// Execute runs a workflow against one query.
func (c *Client) Execute(ctx context.Context, req chat.ExecuteRequest) (chat.ExecuteResponse, error) {
	if req.ChatHistory == nil {
		req.ChatHistory = []chat.Turn{}
	}
	var out chat.ExecuteResponse
	if err := c.do(ctx, "chat.execute", http.MethodPost, "/chat/execute", req, &out); err != nil {
		return chat.ExecuteResponse{}, err
	}
	return out, nil
}

// History returns the stored conversation of workflowID.
func (c *Client) History(ctx context.Context, workflowID int64) ([]chat.Turn, error) {
	var out []chat.Turn
	if err := c.do(ctx, "chat.history", http.MethodGet, fmt.Sprintf("/chat/history/%d", workflowID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearHistory purges the stored conversation of workflowID.
func (c *Client) ClearHistory(ctx context.Context, workflowID int64) error {
	return c.do(ctx, "chat.clear", http.MethodDelete, fmt.Sprintf("/chat/history/%d", workflowID), nil, nil)
}

// Logs returns the step log of one execution.
func (c *Client) Logs(ctx context.Context, executionID string) ([]chat.LogEntry, error) {
	var out []chat.LogEntry
	path := "/chat/logs/" + url.PathEscape(executionID)
	if err := c.do(ctx, "chat.logs", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WorkflowLogs returns the most recent step logs of a workflow. A limit of
// zero or less asks for DefaultLogLimit entries.
func (c *Client) WorkflowLogs(ctx context.Context, workflowID int64, limit int) ([]chat.LogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	var out []chat.LogEntry
	path := fmt.Sprintf("/chat/logs/workflow/%d?limit=%d", workflowID, limit)
	if err := c.do(ctx, "chat.workflow_logs", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
