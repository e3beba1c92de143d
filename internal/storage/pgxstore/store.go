// Package pgxstore реализует Storage поверх пула pgx без ORM.
// Время создания и обновления выставляет сама база (время транзакции).
package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/UkralStul/starter-repo/internal/domain"
	"github.com/UkralStul/starter-repo/internal/schema"
	"github.com/UkralStul/starter-repo/internal/storage"
)

const uniqueViolation = "23505"

// Store реализует интерфейс Storage на pgxpool.
type Store struct {
	pool  *pgxpool.Pool
	table string // имя таблицы в кавычках, вычисляется один раз

	insertSQL string
	selectSQL string
	latestSQL string
	updateSQL string
	deleteSQL string
}

var _ storage.Storage = (*Store)(nil)

// New подключается к базе и создает таблицу, если её нет.
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := newStore(pool)
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func newStore(pool *pgxpool.Pool) *Store {
	name := schema.TableName("posts")
	t := pgx.Identifier{name}.Sanitize()
	const cols = "id, created_at, updated_at, deleted_at, name"
	// updated_at не бывает меньше created_at и предыдущего значения
	const touch = "updated_at = GREATEST(now(), created_at, COALESCE(updated_at, created_at))"

	return &Store{
		pool:      pool,
		table:     t,
		insertSQL: fmt.Sprintf(`INSERT INTO %s (id, name) VALUES ($1, $2) RETURNING %s`, t, cols),
		selectSQL: fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND deleted_at IS NULL`, cols, t),
		latestSQL: fmt.Sprintf(`SELECT %s FROM %s WHERE deleted_at IS NULL ORDER BY created_at DESC LIMIT 1`, cols, t),
		updateSQL: fmt.Sprintf(`UPDATE %s SET name = $2, %s WHERE id = $1 AND deleted_at IS NULL RETURNING %s`, t, touch, cols),
		deleteSQL: fmt.Sprintf(`UPDATE %s SET deleted_at = now(), %s WHERE id = $1 AND deleted_at IS NULL RETURNING %s`, t, touch, cols),
	}
}

func (s *Store) initSchema(ctx context.Context) error {
	deletedIdx := pgx.Identifier{"idx_" + schema.TableName("posts") + "_deleted_at"}.Sanitize()
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at timestamptz NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at timestamptz,
			deleted_at timestamptz,
			name varchar(%d)
		)`, s.table, domain.PostNameMaxLen),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS name_idx ON %s (name)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (deleted_at)`, deletedIdx, s.table),
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	id := post.ID
	if id == "" {
		id = uuid.NewString()
	}
	p, err := s.scanOne(s.pool.QueryRow(ctx, s.insertSQL, id, post.Name))
	if err != nil {
		return nil, err
	}
	*post = *p
	return p, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	return s.scanOne(s.pool.QueryRow(ctx, s.selectSQL, id))
}

func (s *Store) GetLatestPost(ctx context.Context) (*domain.Post, error) {
	return s.scanOne(s.pool.QueryRow(ctx, s.latestSQL))
}

func (s *Store) UpdatePostName(ctx context.Context, id string, name *string) (*domain.Post, error) {
	return s.scanOne(s.pool.QueryRow(ctx, s.updateSQL, id, name))
}

func (s *Store) SoftDeletePost(ctx context.Context, id string) (*domain.Post, error) {
	return s.scanOne(s.pool.QueryRow(ctx, s.deleteSQL, id))
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) scanOne(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt, &p.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("post: %w", storage.ErrNotFound)
		case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
			return nil, fmt.Errorf("post: %w", storage.ErrConflict)
		}
		return nil, fmt.Errorf("post: %w", err)
	}
	return &p, nil
}
