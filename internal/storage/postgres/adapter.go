package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	// TEXT rather than JSONB: JSONB normalizes key order, and column order is
	// derived from the key order of the first record.
	schema := `
	CREATE TABLE IF NOT EXISTS grid_collections (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		total_documents INTEGER NOT NULL,
		fields TEXT NOT NULL,
		cached_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS grid_pages (
		query_key TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		page INTEGER NOT NULL,
		page_size INTEGER NOT NULL,
		total INTEGER NOT NULL,
		payload TEXT NOT NULL,
		cached_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_grid_pages_collection ON grid_pages(collection);

	CREATE TABLE IF NOT EXISTS grid_repository_stats (
		organization TEXT NOT NULL,
		repo_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		cached_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (organization, repo_name)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveCollections replaces the cached collection list
func (s *postgresStorage) SaveCollections(ctx context.Context, collections []domain.CollectionMetadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM grid_collections`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grid_collections (name, position, total_documents, fields, cached_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, c := range collections {
		fieldsJSON, err := json.Marshal(c.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.Name, i, c.TotalDocuments, string(fieldsJSON), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetCollections returns the cached collection list in its original order
func (s *postgresStorage) GetCollections(ctx context.Context) ([]domain.CollectionMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, total_documents, fields
		FROM grid_collections
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []domain.CollectionMetadata{}
	for rows.Next() {
		var c domain.CollectionMetadata
		var fieldsJSON string
		if err := rows.Scan(&c.Name, &c.TotalDocuments, &fieldsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &c.Fields); err != nil {
			return nil, fmt.Errorf("corrupt fields of cached collection %s: %w", c.Name, err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(collections) == 0 {
		return nil, apperrors.NewNotFoundError("cached collection list")
	}
	return collections, nil
}

// SavePage stores one page under its query key
func (s *postgresStorage) SavePage(ctx context.Context, q domain.CollectionQuery, result *domain.DataGridResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO grid_pages (query_key, collection, page, page_size, total, payload, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (query_key) DO UPDATE SET
			total = EXCLUDED.total,
			payload = EXCLUDED.payload,
			cached_at = EXCLUDED.cached_at
	`, q.Key(), q.CollectionName, q.Page, q.PageSize, result.Total, string(payload), time.Now().UTC())
	return err
}

// GetPage returns the page cached for exactly this query
func (s *postgresStorage) GetPage(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM grid_pages WHERE query_key = $1`, q.Key()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("cached page %d of %s", q.Page, q.CollectionName))
	}
	if err != nil {
		return nil, err
	}

	var result domain.DataGridResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("corrupt cached page of %s: %w", q.CollectionName, err)
	}
	return &result, nil
}

// SaveRepositoryStats stores the user stats of one repository
func (s *postgresStorage) SaveRepositoryStats(ctx context.Context, stats *domain.RepositoryStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO grid_repository_stats (organization, repo_name, payload, cached_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization, repo_name) DO UPDATE SET
			payload = EXCLUDED.payload,
			cached_at = EXCLUDED.cached_at
	`, stats.Organization, stats.RepoName, string(payload), time.Now().UTC())
	return err
}

// GetRepositoryStats returns the cached user stats of one repository
func (s *postgresStorage) GetRepositoryStats(ctx context.Context, org, repo string) (*domain.RepositoryStats, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM grid_repository_stats WHERE organization = $1 AND repo_name = $2
	`, org, repo).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("cached stats of %s/%s", org, repo))
	}
	if err != nil {
		return nil, err
	}

	var stats domain.RepositoryStats
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListRepositoryStats returns every cached repository stats entry
func (s *postgresStorage) ListRepositoryStats(ctx context.Context) ([]*domain.RepositoryStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM grid_repository_stats ORDER BY organization, repo_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RepositoryStats
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var stats domain.RepositoryStats
		if err := json.Unmarshal([]byte(payload), &stats); err != nil {
			return nil, err
		}
		out = append(out, &stats)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
