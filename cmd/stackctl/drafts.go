package main

import (
	"context"
	"fmt"

	"github.com/smallnest/genaistack/builder"
	"github.com/smallnest/genaistack/config"
	"github.com/smallnest/genaistack/store"
	"github.com/smallnest/genaistack/store/memory"
	"github.com/smallnest/genaistack/store/postgres"
	"github.com/smallnest/genaistack/store/redis"
	"github.com/smallnest/genaistack/store/sqlite"
)

// openDrafts opens the configured draft store. The returned store is nil
// when drafts are turned off; close is always safe to call.
func openDrafts(ctx context.Context, cfg config.DraftConfig) (store.DraftStore, func(), error) {
	switch cfg.Driver {
	case "":
		return nil, func() {}, nil
	case "memory":
		return memory.NewMemoryDraftStore(), func() {}, nil
	case "sqlite":
		s, err := sqlite.NewSqliteDraftStore(sqlite.SqliteOptions{Path: cfg.DSN})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "redis":
		s := redis.NewRedisDraftStore(redis.RedisOptions{Addr: cfg.DSN, Prefix: cfg.Prefix, TTL: cfg.TTL})
		return s, func() { s.Close() }, nil
	case "postgres":
		s, err := postgres.NewPostgresDraftStore(ctx, postgres.PostgresOptions{ConnString: cfg.DSN})
		if err != nil {
			return nil, nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown draft driver %q", cfg.Driver)
}

func cmdDrafts(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return usageError("drafts list [-workflow id] | restore <draft-id>")
	}

	drafts, closeDrafts, err := openDrafts(ctx, a.cfg.Drafts)
	if err != nil {
		return err
	}
	defer closeDrafts()
	if drafts == nil {
		return &ExitError{Code: 1, Message: "drafts are disabled; set drafts.driver or " + config.EnvDraftDriver}
	}

	switch args[0] {
	case "list":
		fs := newFlagSet("drafts list", a)
		id := fs.Int64("workflow", 0, "workflow id; 0 lists drafts never saved")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		list, err := drafts.List(ctx, *id)
		if err != nil {
			return err
		}
		for _, d := range list {
			a.printf("%s  v%d  %s  %q  %s\n", d.ID, d.Version, d.SavedAt.Format("2006-01-02 15:04:05"), d.Name, d.Note)
		}
		return nil

	case "restore":
		if len(args) != 2 {
			return usageError("drafts restore <draft-id>")
		}
		c, err := a.client()
		if err != nil {
			return err
		}
		b := builder.New(c, c, builder.WithDrafts(drafts), builder.WithLogger(a.logger))
		d, err := b.RestoreDraft(ctx, args[1])
		if err != nil {
			return err
		}
		rec, err := b.Save(ctx)
		if err != nil {
			return err
		}
		a.printf("restored draft %s as workflow %d (%q)\n", d.ID, rec.ID, rec.Name)
		return nil
	}
	return usageError("drafts list [-workflow id] | restore <draft-id>")
}
