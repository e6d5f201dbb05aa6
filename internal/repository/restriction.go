package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const restrictionColumns = "id, identifier_type, value, expires_at, created_at"

type pgRestrictionStore struct {
	pool *pgxpool.Pool
}

// NewPgRestrictionStore returns a pgx-backed RestrictionStore.
func NewPgRestrictionStore(pool *pgxpool.Pool) RestrictionStore {
	return &pgRestrictionStore{pool: pool}
}

func (s *pgRestrictionStore) Count(ctx context.Context, f RestrictionFilter) (int64, error) {
	where, args := buildWhere(f, pgPlaceholder)
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM restrictions"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count restrictions: %w", err)
	}
	return n, nil
}

func (s *pgRestrictionStore) Find(ctx context.Context, f RestrictionFilter, limit, skip int) ([]domain.Restriction, error) {
	where, args := buildWhere(f, pgPlaceholder)
	query := "SELECT " + restrictionColumns + " FROM restrictions" + where + " ORDER BY created_at, id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if skip > 0 {
		args = append(args, skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find restrictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Restriction
	for rows.Next() {
		r, err := scanRestriction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *pgRestrictionStore) InsertOne(ctx context.Context, r *domain.Restriction) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO restrictions (id, identifier_type, value, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier_type, value)
		DO UPDATE SET expires_at = EXCLUDED.expires_at,
		              created_at = EXCLUDED.created_at
		RETURNING `+restrictionColumns,
		r.ID, string(r.Type), r.Value, r.ExpiresAt, r.CreatedAt,
	)
	stored, err := scanRestriction(row)
	if err != nil {
		return fmt.Errorf("insert restriction: %w", err)
	}
	*r = *stored
	return nil
}

// FindOneAndDelete locks the first matching row before deleting it. A concurrent
// remover blocks on the lock and then finds the row gone, so only one returns it.
// A row held by a concurrent upsert is waited for, never skipped.
func (s *pgRestrictionStore) FindOneAndDelete(ctx context.Context, f RestrictionFilter) (*domain.Restriction, error) {
	where, args := buildWhere(f, pgPlaceholder)
	row := s.pool.QueryRow(ctx, `
		DELETE FROM restrictions
		WHERE id = (
			SELECT id FROM restrictions`+where+`
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE
		)
		RETURNING `+restrictionColumns, args...)

	r, err := scanRestriction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("delete restriction: %w", err)
	}
	return r, nil
}

func (s *pgRestrictionStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanRestriction(row pgx.Row) (*domain.Restriction, error) {
	var r domain.Restriction
	var typ string
	if err := row.Scan(&r.ID, &typ, &r.Value, &r.ExpiresAt, &r.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan restriction: %w", err)
	}
	r.Type = domain.IdentifierType(typ)
	return &r, nil
}

func pgPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// buildWhere renders a filter as a WHERE clause. Values are expanded one
// placeholder each so the same clause works for postgres and sqlite.
func buildWhere(f RestrictionFilter, placeholder func(int) string) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.Type != "" {
		args = append(args, string(f.Type))
		clauses = append(clauses, "identifier_type = "+placeholder(len(args)))
	}
	if len(f.Values) > 0 {
		marks := make([]string, 0, len(f.Values))
		for _, v := range f.Values {
			args = append(args, v)
			marks = append(marks, placeholder(len(args)))
		}
		clauses = append(clauses, "value IN ("+strings.Join(marks, ", ")+")")
	}
	if f.ExpiredBefore != nil {
		args = append(args, *f.ExpiredBefore)
		clauses = append(clauses, "expires_at IS NOT NULL AND expires_at < "+placeholder(len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
