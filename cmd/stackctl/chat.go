package main

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"github.com/smallnest/genaistack/builder"
	"github.com/smallnest/genaistack/chat"
	"github.com/smallnest/genaistack/render"
)

func cmdChat(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("chat", a)
	id := fs.Int64("id", 0, "chat with a stored workflow instead of a file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if (*id == 0) == (fs.NArg() != 1) {
		return usageError("chat <file> | chat -id <workflow-id>")
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	b := builder.New(c, c,
		builder.WithLogger(a.logger),
		builder.WithDefaults(a.cfg.SessionDefaults()),
		builder.WithSessionOptions(chat.WithTimeout(a.cfg.Timeout)),
	)

	if *id != 0 {
		if _, err := b.Load(ctx, *id); err != nil {
			return err
		}
	} else {
		g, name, err := readDefinition(fs.Arg(0))
		if err != nil {
			return err
		}
		if err := b.Graph().Replace(g); err != nil {
			return err
		}
		b.SetName(name)
	}

	if v := b.Build(); !v.Valid {
		return &ExitError{Code: 1, Message: v.Reason}
	}
	sess, err := b.OpenChat(ctx)
	if err != nil {
		return err
	}
	return a.repl(ctx, sess)
}

// repl reads one message per line until /quit or end of input.
func (a *app) repl(ctx context.Context, sess *chat.Session) error {
	for _, t := range sess.Turns() {
		a.printTurn(t)
	}
	a.printf("Type a message, /logs, /clear or /quit.\n")

	timeline := render.NewTimeline(a.out)
	scanner := bufio.NewScanner(a.in)
	for {
		a.printf("> ")
		if !scanner.Scan() {
			a.printf("\n")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/logs":
			if logs := sess.Logs(); len(logs) > 0 {
				a.printf("%s", timeline.Render(logs))
			} else {
				a.printf("no execution logs yet\n")
			}
			continue
		case "/clear":
			if err := sess.ClearHistory(ctx); err != nil {
				a.printf("cleared locally, backend purge failed: %v\n", err)
			} else {
				a.printf("Chat history cleared\n")
			}
			continue
		}

		res, err := sess.Submit(ctx, line)
		if err != nil {
			if errors.Is(err, chat.ErrEmptyMessage) {
				continue
			}
			return err
		}
		a.printTurn(res.Reply)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (a *app) printTurn(t chat.Turn) {
	if t.Role == chat.RoleUser {
		a.printf("you: %s\n", t.Content)
		return
	}
	a.printf("%s\n", render.AnswerText(t.Content))
}
