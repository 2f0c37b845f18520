package main

import (
	"context"

	"github.com/smallnest/genaistack/chat"
	"github.com/smallnest/genaistack/client"
	"github.com/smallnest/genaistack/render"
)

func cmdLogs(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("logs", a)
	workflowID := fs.Int64("workflow", 0, "show the latest logs of a workflow")
	limit := fs.Int("limit", client.DefaultLogLimit, "number of entries with -workflow")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if (*workflowID == 0) == (fs.NArg() != 1) {
		return usageError("logs <execution-id> | logs -workflow <id> [-limit n]")
	}

	c, err := a.client()
	if err != nil {
		return err
	}

	var entries []chat.LogEntry
	if *workflowID != 0 {
		entries, err = c.WorkflowLogs(ctx, *workflowID, *limit)
	} else {
		entries, err = c.Logs(ctx, fs.Arg(0))
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.printf("no logs\n")
		return nil
	}
	a.printf("%s", render.NewTimeline(a.out).Render(entries))
	return nil
}
