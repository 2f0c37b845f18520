// Package clienttest provides an in-memory stack backend for tests.
package clienttest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smallnest/genaistack/chat"
	"github.com/smallnest/genaistack/workflow"
)

// ExecuteFunc produces the reply to an execute call.
type ExecuteFunc func(req chat.ExecuteRequest) (chat.ExecuteResponse, error)

// Server is a fake backend speaking the stack HTTP API under /api.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	nextID    int64
	workflows map[int64]workflow.Record
	history   map[int64][]chat.Turn
	logs      map[string][]chat.LogEntry
	byFlow    map[int64][]chat.LogEntry
	documents map[int64]map[string]any
	failures  map[string]failure
	token     string
	execute   ExecuteFunc
	requests  []chat.ExecuteRequest
	uploads   []map[string]string
}

type failure struct {
	status int
	detail string
}

// NewServer starts a fake backend. Close it when done.
func NewServer() *Server {
	s := &Server{
		workflows: map[int64]workflow.Record{},
		history:   map[int64][]chat.Turn{},
		logs:      map[string][]chat.LogEntry{},
		byFlow:    map[int64][]chat.LogEntry{},
		documents: map[int64]map[string]any{},
		failures:  map[string]failure{},
		execute: func(req chat.ExecuteRequest) (chat.ExecuteResponse, error) {
			return chat.ExecuteResponse{Response: "echo: " + req.Query, Query: req.Query}, nil
		},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// APIURL returns the base URL to hand to client.WithBaseURL.
func (s *Server) APIURL() string {
	return s.Server.URL + "/api"
}

// SetExecute replaces the /chat/execute answer. The default echoes the
// query.
func (s *Server) SetExecute(fn ExecuteFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execute = fn
}

// Requests returns every execute body received, in order.
func (s *Server) Requests() []chat.ExecuteRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.ExecuteRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Uploads returns the form fields of every upload, in order.
func (s *Server) Uploads() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// RequireToken makes every route except login answer 401 unless the request
// carries token as a bearer credential.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Fail makes requests whose method and path start with prefix answer with
// status and {"detail": detail}. An empty detail sends a plain body.
func (s *Server) Fail(method, prefix string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+prefix] = failure{status: status, detail: detail}
}

// Heal removes every injected failure.
func (s *Server) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]failure{}
}

// Workflow returns a stored workflow.
func (s *Server) Workflow(id int64) (workflow.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.workflows[id]
	return rec, ok
}

// SetHistory stores a conversation for workflowID.
func (s *Server) SetHistory(workflowID int64, turns []chat.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[workflowID] = turns
}

// History returns the stored conversation of workflowID.
func (s *Server) History(workflowID int64) []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[workflowID]
}

// AddLogs stores step logs under executionID.
func (s *Server) AddLogs(executionID string, entries ...chat.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[executionID] = append(s.logs[executionID], entries...)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.injectFailures)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/me", s.me)

			r.Post("/workflows", s.createWorkflow)
			r.Get("/workflows", s.listWorkflows)
			r.Get("/workflows/{id}", s.getWorkflow)
			r.Put("/workflows/{id}", s.updateWorkflow)
			r.Delete("/workflows/{id}", s.deleteWorkflow)

			r.Post("/chat/execute", s.executeWorkflow)
			r.Get("/chat/history/{id}", s.getHistory)
			r.Delete("/chat/history/{id}", s.clearHistory)
			r.Get("/chat/logs/workflow/{id}", s.workflowLogs)
			r.Get("/chat/logs/{executionID}", s.executionLogs)

			r.Post("/documents/upload", s.upload)
			r.Get("/documents", s.listDocuments)
			r.Delete("/documents/{id}", s.deleteDocument)
		})
	})
	return r
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var hit *failure
		for key, f := range s.failures {
			method, prefix, _ := strings.Cut(key, " ")
			if method == r.Method && strings.HasPrefix(r.URL.Path, "/api"+prefix) {
				hit = &f
				break
			}
		}
		s.mu.Unlock()

		if hit == nil {
			next.ServeHTTP(w, r)
			return
		}
		if hit.detail == "" {
			w.WriteHeader(hit.status)
			_, _ = io.WriteString(w, http.StatusText(hit.status))
			return
		}
		writeError(w, hit.status, hit.detail)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "secret" {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		token = "test-token"
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"id": 1, "email": "dev@example.com", "name": "Dev"})
}

// recordJSON renders a workflow the way the backend does, with naive
// timestamps.
func recordJSON(rec workflow.Record) map[string]any {
	return map[string]any{
		"id":         rec.ID,
		"user_id":    1,
		"name":       rec.Name,
		"definition": rec.Definition,
		"created_at": rec.CreatedAt.Format("2006-01-02T15:04:05.000000"),
		"updated_at": rec.UpdatedAt.Format("2006-01-02T15:04:05.000000"),
	}
}

func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var rec workflow.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	s.nextID++
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec.ID, rec.CreatedAt, rec.UpdatedAt = s.nextID, now, now
	s.workflows[rec.ID] = rec
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, recordJSON(rec))
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.workflows))
	for id := int64(1); id <= s.nextID; id++ {
		if rec, ok := s.workflows[id]; ok {
			out = append(out, recordJSON(rec))
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	rec, found := s.workflows[id]
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, recordJSON(rec))
}

func (s *Server) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body workflow.Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	rec, found := s.workflows[id]
	if found {
		rec.Name = body.Name
		rec.Definition = body.Definition
		rec.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		s.workflows[id] = rec
	}
	s.mu.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, recordJSON(rec))
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	_, found := s.workflows[id]
	delete(s.workflows, id)
	s.mu.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Workflow deleted successfully"})
}

func (s *Server) executeWorkflow(w http.ResponseWriter, r *http.Request) {
	var req chat.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	execute := s.execute
	s.mu.Unlock()

	resp, err := execute(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Execution error: "+err.Error())
		return
	}
	if resp.ExecutionID == "" {
		resp.ExecutionID = uuid.NewString()
	}

	s.mu.Lock()
	if req.WorkflowID != 0 {
		s.history[req.WorkflowID] = append(s.history[req.WorkflowID],
			chat.Turn{Role: chat.RoleUser, Content: req.Query},
			chat.Turn{Role: chat.RoleAssistant, Content: resp.Response},
		)
	}
	for _, e := range resp.Logs {
		e.ExecutionID = resp.ExecutionID
		s.logs[resp.ExecutionID] = append(s.logs[resp.ExecutionID], e)
		if req.WorkflowID != 0 {
			s.byFlow[req.WorkflowID] = append(s.byFlow[req.WorkflowID], e)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	turns := s.history[id]
	s.mu.Unlock()
	if turns == nil {
		turns = []chat.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.history, id)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared"})
}

func (s *Server) executionLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := s.logs[chi.URLParam(r, "executionID")]
	s.mu.Unlock()
	if entries == nil {
		entries = []chat.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) workflowLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "limit is required")
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	entries := append([]chat.LogEntry{}, s.byFlow[id]...)
	s.mu.Unlock()

	// Newest first, like the backend.
	out := make([]chat.LogEntry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	fields := map[string]string{
		"filename":        header.Filename,
		"api_key":         r.FormValue("api_key"),
		"embedding_model": r.FormValue("embedding_model"),
		"content":         string(content),
	}
	s.uploads = append(s.uploads, fields)
	s.documents[id] = map[string]any{
		"id":              id,
		"filename":        header.Filename,
		"collection_name": fmt.Sprintf("doc_%d", id),
		"created_at":      time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":              id,
		"filename":        header.Filename,
		"collection_name": fmt.Sprintf("doc_%d", id),
		"chunks_count":    1,
		"message":         "Document uploaded and processed successfully",
	})
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.documents))
	for id := int64(1); id <= s.nextID; id++ {
		if d, ok := s.documents[id]; ok {
			out = append(out, d)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	_, found := s.documents[id]
	delete(s.documents, id)
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}
