package main

import (
	"context"
	"fmt"

	"github.com/smallnest/genaistack/workflow"
)

func cmdValidate(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("validate", a)
	format := fs.String("format", "", "also draw the graph: mermaid, dot or ascii")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("validate [-format mermaid|dot|ascii] <file>")
	}
	return a.validateFile(fs.Arg(0), *format)
}

// validateFile prints the verdict for one workflow file. An invalid graph
// is reported as exit code 1.
func (a *app) validateFile(path, format string) error {
	g, _, err := readDefinition(path)
	if err != nil {
		return err
	}

	v := workflow.Validate(g, workflow.Resolve(g, a.cfg.SessionDefaults()))
	for _, w := range v.Warnings {
		a.printf("warning: %s\n", w)
	}
	if !v.Valid {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%s: %s", path, v.Reason)}
	}

	a.printf("%s: ready to run\n", path)
	a.printf("order: %s\n", describeOrder(g))

	if format != "" {
		out, err := draw(g, format)
		if err != nil {
			return err
		}
		a.printf("\n%s", out)
	}
	return nil
}

func draw(g workflow.Graph, format string) (string, error) {
	ex := workflow.NewExporter(g)
	switch format {
	case "mermaid":
		return ex.DrawMermaid(), nil
	case "dot":
		return ex.DrawDOT(), nil
	case "ascii":
		return ex.DrawASCII(), nil
	}
	return "", &ExitError{Code: 2, Message: fmt.Sprintf("unknown format %q, use mermaid, dot or ascii", format)}
}
