package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/smallnest/genaistack/workflow"
)

// DefaultEmbeddingModel is sent when an upload names no embedding model.
const DefaultEmbeddingModel = "local"

// Document is an uploaded file known to the backend.
type Document struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	CollectionName string    `json:"collection_name"`
	ChunksCount    int       `json:"chunks_count,omitempty"`
	Message        string    `json:"message,omitempty"`
	CreatedAt      time.Time `json:"-"`
}

// UploadOptions are the optional form fields of an upload.
type UploadOptions struct {
	APIKey         string
	EmbeddingModel string
}

// allowedExtensions mirrors what the backend can extract text from.
var allowedExtensions = map[string]bool{".pdf": true, ".txt": true, ".md": true}

// Upload sends a document for chunking and embedding.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader, opts UploadOptions) (Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return Document{}, fmt.Errorf("file type %q not supported, use .pdf, .txt or .md", ext)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return Document{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return Document{}, fmt.Errorf("copy %s: %w", filename, err)
	}
	if opts.APIKey != "" {
		if err := mw.WriteField("api_key", opts.APIKey); err != nil {
			return Document{}, err
		}
	}
	model := opts.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if err := mw.WriteField("embedding_model", model); err != nil {
		return Document{}, err
	}
	if err := mw.Close(); err != nil {
		return Document{}, fmt.Errorf("close multipart body: %w", err)
	}

	var doc Document
	if err := c.send(ctx, "documents.upload", http.MethodPost, "/documents/upload", &buf, mw.FormDataContentType(), &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Documents lists uploaded documents.
func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	var raw []struct {
		Document
		CreatedAt string `json:"created_at"`
	}
	if err := c.do(ctx, "documents.list", http.MethodGet, "/documents", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(raw))
	for _, r := range raw {
		d := r.Document
		d.CreatedAt, _ = workflow.ParseTime(r.CreatedAt)
		out = append(out, d)
	}
	return out, nil
}

// DeleteDocument removes document id and its embeddings.
func (c *Client) DeleteDocument(ctx context.Context, id int64) error {
	return c.do(ctx, "documents.delete", http.MethodDelete, fmt.Sprintf("/documents/%d", id), nil, nil)
}

// Attach writes the upload result into knowledge-base data, the way the
// editor does after a successful upload.
func (d Document) Attach(data *workflow.KnowledgeBaseData) {
	data.DocumentID = d.ID
	data.Filename = d.Filename
	data.CollectionName = d.CollectionName
}
