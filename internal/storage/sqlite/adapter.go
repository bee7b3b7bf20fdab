package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
	"github.com/kurihiro0119/github-data-explorer/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	// Payloads are stored as TEXT so record key order survives the round trip
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		total_documents INTEGER NOT NULL,
		fields TEXT NOT NULL,
		cached_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pages (
		query_key TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		page INTEGER NOT NULL,
		page_size INTEGER NOT NULL,
		total INTEGER NOT NULL,
		payload TEXT NOT NULL,
		cached_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_collection ON pages(collection);

	CREATE TABLE IF NOT EXISTS repository_stats (
		organization TEXT NOT NULL,
		repo_name TEXT NOT NULL,
		payload TEXT NOT NULL,
		cached_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (organization, repo_name)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveCollections replaces the cached collection list
func (s *sqliteStorage) SaveCollections(ctx context.Context, collections []domain.CollectionMetadata) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM collections`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO collections (name, position, total_documents, fields, cached_at)
		VALUES (?, ?, ?, ?, ?)
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
func (s *sqliteStorage) GetCollections(ctx context.Context) ([]domain.CollectionMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, total_documents, fields
		FROM collections
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
func (s *sqliteStorage) SavePage(ctx context.Context, q domain.CollectionQuery, result *domain.DataGridResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pages (query_key, collection, page, page_size, total, payload, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, q.Key(), q.CollectionName, q.Page, q.PageSize, result.Total, string(payload), time.Now().UTC())
	return err
}

// GetPage returns the page cached for exactly this query
func (s *sqliteStorage) GetPage(ctx context.Context, q domain.CollectionQuery) (*domain.DataGridResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM pages WHERE query_key = ?`, q.Key()).Scan(&payload)
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
func (s *sqliteStorage) SaveRepositoryStats(ctx context.Context, stats *domain.RepositoryStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO repository_stats (organization, repo_name, payload, cached_at)
		VALUES (?, ?, ?, ?)
	`, stats.Organization, stats.RepoName, string(payload), time.Now().UTC())
	return err
}

// GetRepositoryStats returns the cached user stats of one repository
func (s *sqliteStorage) GetRepositoryStats(ctx context.Context, org, repo string) (*domain.RepositoryStats, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM repository_stats WHERE organization = ? AND repo_name = ?
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
func (s *sqliteStorage) ListRepositoryStats(ctx context.Context) ([]*domain.RepositoryStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM repository_stats ORDER BY organization, repo_name
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
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
