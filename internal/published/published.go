// Package published provides SQLite-backed storage for published context
// stacks. A publish assigns a permanent id and a shareable slug; the stored
// content is the flattened markdown form, which only the serializer's
// encoder/decoder pair understands.
package published

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nibzard/ctxt/internal/apperr"
	"github.com/nibzard/ctxt/internal/checksum"
	"github.com/nibzard/ctxt/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS stacks (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	use_count  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_stacks_created ON stacks(created_at);
`

// Repo wraps a sql.DB with published-stack operations.
type Repo struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Repo, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("published: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("published: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("published: apply schema: %w", err)
	}
	return &Repo{conn: conn}, nil
}

// Close closes the underlying database connection.
func (r *Repo) Close() error {
	return r.conn.Close()
}

// Publish stores a stack permanently and returns its id.
func (r *Repo) Publish(ctx context.Context, name, flattened string) (string, error) {
	id := uuid.NewString()
	slug, err := r.uniqueSlug(ctx, Slug(name, flattened))
	if err != nil {
		return "", err
	}
	_, err = r.conn.ExecContext(ctx, `
		INSERT INTO stacks (id, slug, name, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, slug, name, flattened, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("published: insert: %w", err)
	}
	return id, nil
}

// Get returns a published stack by permanent id or slug.
func (r *Repo) Get(ctx context.Context, idOrSlug string) (*models.PublishedStack, error) {
	row := r.conn.QueryRowContext(ctx, `
		SELECT id, slug, name, content, use_count, created_at
		FROM stacks WHERE id = ? OR slug = ?
	`, idOrSlug, idOrSlug)

	var s models.PublishedStack
	err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Content, &s.UseCount, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("published: get %s: %w", idOrSlug, err)
	}
	return &s, nil
}

// List returns recently published stacks, newest first.
func (r *Repo) List(ctx context.Context, limit int) ([]models.PublishedStack, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, slug, name, content, use_count, created_at
		FROM stacks ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("published: list: %w", err)
	}
	defer rows.Close()

	var out []models.PublishedStack
	for rows.Next() {
		var s models.PublishedStack
		if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.Content, &s.UseCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("published: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// IncrementUseCount bumps the export counter for a stack. Missing stacks
// are ignored.
func (r *Repo) IncrementUseCount(ctx context.Context, id string) error {
	_, err := r.conn.ExecContext(ctx,
		`UPDATE stacks SET use_count = use_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("published: increment use count: %w", err)
	}
	return nil
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9\s-]`)
var slugSpaceRe = regexp.MustCompile(`[\s-]+`)

// Slug derives a URL-friendly slug from the stack name, falling back to a
// content hash when the name yields nothing usable.
func Slug(name, content string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugSpaceRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = strings.Trim(s[:80], "-")
	}
	if len(s) < 3 {
		return "stack-" + checksum.Short([]byte(name+content))
	}
	return s
}

// uniqueSlug appends a numeric suffix until the slug is free.
func (r *Repo) uniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for i := 1; ; i++ {
		var exists int
		err := r.conn.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM stacks WHERE slug = ?`, slug).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("published: slug check: %w", err)
		}
		if exists == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
