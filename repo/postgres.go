package repo

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client is the subset of pgxpool.Pool the postgres store uses.
type Client interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
	CREATE TABLE IF NOT EXISTS wasifs_entries (
		namespace TEXT        NOT NULL,
		path      TEXT        NOT NULL,
		parent    TEXT        NOT NULL,
		is_dir    BOOLEAN     NOT NULL,
		data      BYTEA,
		mtime     TIMESTAMPTZ NOT NULL,
		ctime     TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (namespace, path)
	);
	CREATE INDEX IF NOT EXISTS wasifs_entries_parent ON wasifs_entries (namespace, parent);
`

// PostgresStore keeps entries in a PostgreSQL table.
type PostgresStore struct {
	db    Client
	close func()
}

// OpenPostgresStore connects to dsn and ensures the entries table exists.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	const op = "repo.OpenPostgresStore"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := NewPostgresStore(pool)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing client. The caller owns its lifetime.
func NewPostgresStore(db Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the entries table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const op = "repo.PostgresStore.Migrate"

	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, namespace, name string) (Entry, error) {
	const op = "repo.PostgresStore.Load"

	query := `
		SELECT path, parent, is_dir, data, mtime, ctime
		FROM wasifs_entries
		WHERE namespace = $1 AND path = $2
	`

	var e Entry
	err := s.db.QueryRow(ctx, query, namespace, name).Scan(
		&e.Path,
		&e.Parent,
		&e.IsDir,
		&e.Data,
		&e.Mtime,
		&e.Ctime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func (s *PostgresStore) Save(ctx context.Context, namespace string, e Entry) error {
	const op = "repo.PostgresStore.Save"

	query := `
		INSERT INTO wasifs_entries (namespace, path, parent, is_dir, data, mtime, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (namespace, path)
		DO UPDATE SET is_dir = EXCLUDED.is_dir, data = EXCLUDED.data, mtime = EXCLUDED.mtime
	`

	_, err := s.db.Exec(ctx, query,
		namespace,
		e.Path,
		e.Parent,
		e.IsDir,
		e.Data,
		e.Mtime,
		e.Ctime,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) Children(ctx context.Context, namespace, dir string) ([]string, error) {
	const op = "repo.PostgresStore.Children"

	query := `
		SELECT path
		FROM wasifs_entries
		WHERE namespace = $1 AND parent = $2 AND path <> ''
		ORDER BY path
	`

	rows, err := s.db.Query(ctx, query, namespace, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = path.Base(p)
	}
	return names, nil
}

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
