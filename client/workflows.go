package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/smallnest/genaistack/workflow"
)

var _ workflow.Gateway = (*Client)(nil)

type workflowBody struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Definition  workflow.Graph `json:"definition"`
}

func bodyOf(rec workflow.Record) workflowBody {
	def := rec.Definition
	if def.Nodes == nil {
		def.Nodes = []workflow.Node{}
	}
	if def.Edges == nil {
		def.Edges = []workflow.Edge{}
	}
	return workflowBody{Name: rec.Name, Description: rec.Description, Definition: def}
}

// Create stores a new workflow and returns it with its assigned id.
func (c *Client) Create(ctx context.Context, rec workflow.Record) (workflow.Record, error) {
	if err := rec.Validate(); err != nil {
		return workflow.Record{}, fmt.Errorf("invalid workflow: %w", err)
	}
	var out workflow.Record
	if err := c.do(ctx, "workflows.create", http.MethodPost, "/workflows", bodyOf(rec), &out); err != nil {
		return workflow.Record{}, err
	}
	return out, nil
}

// List returns every stored workflow.
func (c *Client) List(ctx context.Context) ([]workflow.Record, error) {
	var out []workflow.Record
	if err := c.do(ctx, "workflows.list", http.MethodGet, "/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns workflow id.
func (c *Client) Get(ctx context.Context, id int64) (workflow.Record, error) {
	var out workflow.Record
	if err := c.do(ctx, "workflows.get", http.MethodGet, fmt.Sprintf("/workflows/%d", id), nil, &out); err != nil {
		return workflow.Record{}, notFound(err)
	}
	return out, nil
}

// Update replaces the name and definition of workflow id.
func (c *Client) Update(ctx context.Context, id int64, rec workflow.Record) (workflow.Record, error) {
	if err := rec.Validate(); err != nil {
		return workflow.Record{}, fmt.Errorf("invalid workflow: %w", err)
	}
	var out workflow.Record
	if err := c.do(ctx, "workflows.update", http.MethodPut, fmt.Sprintf("/workflows/%d", id), bodyOf(rec), &out); err != nil {
		return workflow.Record{}, notFound(err)
	}
	return out, nil
}

// Delete removes workflow id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return notFound(c.do(ctx, "workflows.delete", http.MethodDelete, fmt.Sprintf("/workflows/%d", id), nil, nil))
}

// notFound marks a 404 with workflow.ErrNotFound while keeping the
// APIError reachable through errors.As.
func notFound(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", workflow.ErrNotFound, err)
	}
	return err
}
