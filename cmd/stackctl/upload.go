package main

import (
	"context"
	"os"

	"github.com/smallnest/genaistack/client"
)

func cmdUpload(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("upload", a)
	model := fs.String("embedding-model", a.cfg.EmbeddingModel, "embedding model used to index the document")
	apiKey := fs.String("api-key", a.cfg.GeminiAPIKey, "API key for a hosted embedding model")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("upload [-embedding-model name] [-api-key key] <file>")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	c, err := a.client()
	if err != nil {
		return err
	}
	doc, err := c.Upload(ctx, path, f, client.UploadOptions{APIKey: *apiKey, EmbeddingModel: *model})
	if err != nil {
		return err
	}
	a.printf("document %d: %s -> collection %s (%d chunks)\n", doc.ID, doc.Filename, doc.CollectionName, doc.ChunksCount)
	return nil
}
