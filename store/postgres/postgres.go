package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/genaistack/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresDraftStore implements store.DraftStore using PostgreSQL. The
// definition is stored as JSONB.
type PostgresDraftStore struct {
	pool      DBPool
	tableName string
}

var _ store.DraftStore = (*PostgresDraftStore)(nil)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "drafts"
}

// NewPostgresDraftStore connects a pool to opts.ConnString. Call InitSchema
// before first use on a fresh database.
func NewPostgresDraftStore(ctx context.Context, opts PostgresOptions) (*PostgresDraftStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresDraftStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresDraftStoreWithPool wraps an existing pool.
func NewPostgresDraftStoreWithPool(pool DBPool, tableName string) *PostgresDraftStore {
	if tableName == "" {
		tableName = "drafts"
	}
	return &PostgresDraftStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresDraftStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			workflow_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			definition JSONB NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			saved_at TIMESTAMPTZ NOT NULL,
			version INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_workflow_id ON %s (workflow_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresDraftStore) Close() {
	s.pool.Close()
}

// Save stores a draft, replacing one with the same id.
func (s *PostgresDraftStore) Save(ctx context.Context, draft *store.Draft) error {
	def, err := json.Marshal(draft.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, workflow_id, name, definition, note, saved_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			name = EXCLUDED.name,
			definition = EXCLUDED.definition,
			note = EXCLUDED.note,
			saved_at = EXCLUDED.saved_at,
			version = EXCLUDED.version
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		draft.ID,
		draft.WorkflowID,
		draft.Name,
		def,
		draft.Note,
		draft.SavedAt,
		draft.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func scanDraft(row pgx.Row) (*store.Draft, error) {
	var (
		d   store.Draft
		def []byte
	)
	if err := row.Scan(&d.ID, &d.WorkflowID, &d.Name, &def, &d.Note, &d.SavedAt, &d.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(def, &d.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	return &d, nil
}

// Load retrieves a draft by ID
func (s *PostgresDraftStore) Load(ctx context.Context, draftID string) (*store.Draft, error) {
	query := fmt.Sprintf("SELECT id, workflow_id, name, definition, note, saved_at, version FROM %s WHERE id = $1", s.tableName)

	d, err := scanDraft(s.pool.QueryRow(ctx, query, draftID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrDraftNotFound, draftID)
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	return d, nil
}

// List returns the drafts of a workflow, oldest first.
func (s *PostgresDraftStore) List(ctx context.Context, workflowID int64) ([]*store.Draft, error) {
	query := fmt.Sprintf("SELECT id, workflow_id, name, definition, note, saved_at, version FROM %s WHERE workflow_id = $1 ORDER BY saved_at ASC, id ASC", s.tableName)

	rows, err := s.pool.Query(ctx, query, workflowID)
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
func (s *PostgresDraftStore) Delete(ctx context.Context, draftID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, draftID); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Clear removes all drafts of a workflow
func (s *PostgresDraftStore) Clear(ctx context.Context, workflowID int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE workflow_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, workflowID); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}
