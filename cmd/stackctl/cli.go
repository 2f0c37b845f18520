package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/smallnest/genaistack/client"
	"github.com/smallnest/genaistack/config"
	"github.com/smallnest/genaistack/log"
	"github.com/smallnest/genaistack/workflow"
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: "usage: stackctl " + fmt.Sprintf(format, args...)}
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"validate":  {"check that a workflow file can be built", cmdValidate},
	"watch":     {"re-validate a workflow file whenever it changes", cmdWatch},
	"chat":      {"chat with a workflow from a file or the backend", cmdChat},
	"workflows": {"list, get, save or delete stored workflows", cmdWorkflows},
	"drafts":    {"list or restore drafts kept after failed saves", cmdDrafts},
	"upload":    {"upload a document for retrieval", cmdUpload},
	"logs":      {"show execution logs", cmdLogs},
	"login":     {"exchange credentials for an access token", cmdLogin},
}

// app is the state shared by every command.
type app struct {
	cfg    *config.Config
	logger log.Logger
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (a *app) client() (*client.Client, error) {
	return client.New(a.cfg.ClientOptions(a.logger)...)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stackctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "stack.yaml", "YAML configuration file")
	envFile := fs.String("env", ".env", "dotenv file with credentials")
	level := fs.String("log-level", "", "override the configured log level")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "stackctl: unknown command %q\n", name)
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(config.Options{File: *configFile, DotEnv: *envFile})
	if err != nil {
		fmt.Fprintf(stderr, "stackctl: %v\n", err)
		return 2
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	logger := cfg.Logger()
	log.SetDefaultLogger(logger)

	a := &app{cfg: cfg, logger: logger, in: stdin, out: stdout, errOut: stderr}
	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			if exit.Message != "" {
				fmt.Fprintln(stderr, exit.Message)
			}
			return exit.Code
		}
		fmt.Fprintf(stderr, "stackctl %s: %v\n", name, err)
		return 1
	}
	return 0
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprint(w, "Usage:\n  stackctl [options] <command> [arguments]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprint(w, "\nOptions:\n")
	fs.PrintDefaults()
}

// newFlagSet returns a subcommand flag set that reports errors instead of
// exiting.
func newFlagSet(name string, a *app) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return &ExitError{Code: 0}
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return nil
}

// readDefinition loads a workflow file. Both a bare definition
// ({"nodes": ..., "edges": ...}) and a stored record ({"name": ...,
// "definition": ...}) are accepted.
func readDefinition(path string) (workflow.Graph, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return workflow.Graph{}, "", err
	}

	var probe struct {
		Name       string          `json:"name"`
		Definition json.RawMessage `json:"definition"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return workflow.Graph{}, "", fmt.Errorf("parse %s: %w", path, err)
	}
	if len(probe.Definition) > 0 && string(probe.Definition) != "null" {
		b = probe.Definition
	}

	g, err := workflow.ParseGraph(b, nil)
	if err != nil {
		return workflow.Graph{}, "", fmt.Errorf("parse %s: %w", path, err)
	}
	return g, probe.Name, nil
}

func describeOrder(g workflow.Graph) string {
	ids := workflow.ExecutionOrder(g)
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.Node(id); ok {
			labels = append(labels, n.Label())
		}
	}
	return strings.Join(labels, " → ")
}
