package main

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/smallnest/genaistack/builder"
)

const workflowsUsage = "workflows list | get [-format json|mermaid|dot|ascii] <id> | save [-id id] [-name name] <file> | delete <id>"

func cmdWorkflows(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return usageError(workflowsUsage)
	}
	c, err := a.client()
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		recs, err := c.List(ctx)
		if err != nil {
			return err
		}
		for _, r := range recs {
			a.printf("%d\t%s\t%d nodes\t%s\n", r.ID, r.Name, len(r.Definition.Nodes), r.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil

	case "get":
		fs := newFlagSet("workflows get", a)
		format := fs.String("format", "json", "json, mermaid, dot or ascii")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		id, err := workflowID(fs.Args())
		if err != nil {
			return err
		}
		rec, err := c.Get(ctx, id)
		if err != nil {
			return err
		}
		if *format == "json" {
			b, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			a.printf("%s\n", b)
			return nil
		}
		out, err := draw(rec.Definition, *format)
		if err != nil {
			return err
		}
		a.printf("%s", out)
		return nil

	case "save":
		fs := newFlagSet("workflows save", a)
		id := fs.Int64("id", 0, "update this workflow instead of creating one")
		name := fs.String("name", "", "workflow name; defaults to the name in the file")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return usageError(workflowsUsage)
		}
		g, fileName, err := readDefinition(fs.Arg(0))
		if err != nil {
			return err
		}

		drafts, closeDrafts, err := openDrafts(ctx, a.cfg.Drafts)
		if err != nil {
			return err
		}
		defer closeDrafts()

		opts := []builder.Option{builder.WithLogger(a.logger)}
		if drafts != nil {
			opts = append(opts, builder.WithDrafts(drafts))
		}
		b := builder.New(c, c, opts...)
		if *id != 0 {
			if _, err := b.Load(ctx, *id); err != nil {
				return err
			}
		}
		if err := b.Graph().Replace(g); err != nil {
			return err
		}
		switch {
		case *name != "":
			b.SetName(*name)
		case fileName != "":
			b.SetName(fileName)
		}

		rec, err := b.Save(ctx)
		if err != nil {
			if d := b.DraftID(); d != "" {
				a.printf("kept draft %s\n", d)
			}
			return err
		}
		a.printf("saved workflow %d (%q)\n", rec.ID, rec.Name)
		return nil

	case "delete":
		id, err := workflowID(args[1:])
		if err != nil {
			return err
		}
		if err := c.Delete(ctx, id); err != nil {
			return err
		}
		a.printf("deleted workflow %d\n", id)
		return nil
	}
	return usageError(workflowsUsage)
}

func workflowID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, usageError(workflowsUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, &ExitError{Code: 2, Message: "invalid workflow id " + strconv.Quote(args[0])}
	}
	return id, nil
}
