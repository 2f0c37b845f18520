package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/genaistack/store"
)

// SqliteDraftStore implements store.DraftStore using SQLite.
type SqliteDraftStore struct {
	db        *sql.DB
	tableName string
}

var _ store.DraftStore = (*SqliteDraftStore)(nil)

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "drafts"
}

// NewSqliteDraftStore opens the database at opts.Path and creates the
// drafts table when missing.
func NewSqliteDraftStore(opts SqliteOptions) (*SqliteDraftStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "drafts"
	}

	s := &SqliteDraftStore{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteDraftStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			workflow_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			definition TEXT NOT NULL,
			note TEXT,
			saved_at DATETIME NOT NULL,
			version INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_workflow_id ON %s (workflow_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteDraftStore) Close() error {
	return s.db.Close()
}

// Save stores a draft, replacing one with the same id.
func (s *SqliteDraftStore) Save(ctx context.Context, draft *store.Draft) error {
	def, err := json.Marshal(draft.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, workflow_id, name, definition, note, saved_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			name = excluded.name,
			definition = excluded.definition,
			note = excluded.note,
			saved_at = excluded.saved_at,
			version = excluded.version
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		draft.ID,
		draft.WorkflowID,
		draft.Name,
		string(def),
		draft.Note,
		draft.SavedAt.UTC(),
		draft.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

const columns = "id, workflow_id, name, definition, note, saved_at, version"

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(row scanner) (*store.Draft, error) {
	var (
		d       store.Draft
		def     string
		note    sql.NullString
		savedAt time.Time
	)
	if err := row.Scan(&d.ID, &d.WorkflowID, &d.Name, &def, &note, &savedAt, &d.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(def), &d.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	d.Note = note.String
	d.SavedAt = savedAt.UTC()
	return &d, nil
}

// Load retrieves a draft by ID
func (s *SqliteDraftStore) Load(ctx context.Context, draftID string) (*store.Draft, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columns, s.tableName)

	d, err := scanDraft(s.db.QueryRowContext(ctx, query, draftID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrDraftNotFound, draftID)
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	return d, nil
}

// List returns the drafts of a workflow, oldest first.
func (s *SqliteDraftStore) List(ctx context.Context, workflowID int64) ([]*store.Draft, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE workflow_id = ?
		ORDER BY saved_at ASC, id ASC
	`, columns, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*store.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft row: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draft rows: %w", err)
	}
	return drafts, nil
}

// Delete removes a draft
func (s *SqliteDraftStore) Delete(ctx context.Context, draftID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, draftID); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Clear removes all drafts of a workflow
func (s *SqliteDraftStore) Clear(ctx context.Context, workflowID int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE workflow_id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, workflowID); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}
