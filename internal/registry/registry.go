// Package registry provides SQLite-backed bookkeeping for uploaded intake
// documents. The registry tracks which files live in the intake directory;
// chunk data and vectors live in the knowledge store, not here.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kioku/kioku/internal/models"
)

// Registry records intake documents in a SQLite database.
type Registry struct {
	db *sql.DB
}

// Open opens or creates the registry database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Registry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Registry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS intake_documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL,
		mod_time TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_intake_documents_filename ON intake_documents(filename);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts the document, or updates the existing row with the same
// path. A document with an empty ID is assigned a fresh UUID; the assigned
// ID is written back to doc.
func (r *Registry) Upsert(ctx context.Context, doc *models.IntakeDocument) error {
	now := time.Now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO intake_documents (id, filename, path, size, mod_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   filename = excluded.filename,
		   size = excluded.size,
		   mod_time = excluded.mod_time,
		   updated_at = excluded.updated_at`,
		doc.ID, doc.Filename, doc.Path, doc.Size, doc.ModTime, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return err
	}

	// An update keeps the original row's id; read it back so the caller
	// holds the canonical one.
	return r.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM intake_documents WHERE path = ?`, doc.Path,
	).Scan(&doc.ID, &doc.CreatedAt)
}

// Get returns the document registered at path.
func (r *Registry) Get(ctx context.Context, path string) (*models.IntakeDocument, error) {
	var doc models.IntakeDocument
	err := r.db.QueryRowContext(ctx,
		`SELECT id, filename, path, size, mod_time, created_at, updated_at
		 FROM intake_documents WHERE path = ?`, path,
	).Scan(&doc.ID, &doc.Filename, &doc.Path, &doc.Size, &doc.ModTime, &doc.CreatedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", path)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns all registered documents ordered by filename.
func (r *Registry) List(ctx context.Context) ([]*models.IntakeDocument, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, filename, path, size, mod_time, created_at, updated_at
		 FROM intake_documents ORDER BY filename`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.IntakeDocument
	for rows.Next() {
		var doc models.IntakeDocument
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Path, &doc.Size, &doc.ModTime, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Delete removes the document registered at path. Deleting an unregistered
// path is not an error.
func (r *Registry) Delete(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM intake_documents WHERE path = ?`, path)
	return err
}

// Clear removes every registered document.
func (r *Registry) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM intake_documents`)
	return err
}

// Count returns the number of registered documents.
func (r *Registry) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intake_documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}
