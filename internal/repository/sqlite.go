package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/google/uuid"
)

// Fixed-width so stored timestamps sort and compare as text.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

type sqliteRestrictionStore struct {
	db *sql.DB
}

// NewSQLiteRestrictionStore applies the restrictions schema to db and returns a
// RestrictionStore backed by it. db should be limited to one open connection.
func NewSQLiteRestrictionStore(ctx context.Context, db *sql.DB) (RestrictionStore, error) {
	s := &sqliteRestrictionStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *sqliteRestrictionStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("init schema_migrations: %w", err)
		}
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version: 1,
			statements: []string{
				`CREATE TABLE IF NOT EXISTS restrictions (
					id              TEXT PRIMARY KEY,
					identifier_type TEXT NOT NULL CHECK(identifier_type IN ('ip_address', 'uuid', 'account_name')),
					value           TEXT NOT NULL CHECK(length(value) > 0),
					expires_at      TEXT,
					created_at      TEXT NOT NULL,
					UNIQUE(identifier_type, value)
				)`,
				"CREATE INDEX IF NOT EXISTS idx_restrictions_value ON restrictions(value)",
				"CREATE INDEX IF NOT EXISTS idx_restrictions_expires_at ON restrictions(expires_at) WHERE expires_at IS NOT NULL",
			},
		},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply version %d: %w", m.version, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", m.version); err != nil {
			return fmt.Errorf("update schema version: %w", err)
		}
	}
	return nil
}

func (s *sqliteRestrictionStore) Count(ctx context.Context, f RestrictionFilter) (int64, error) {
	where, args := s.where(f)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM restrictions"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count restrictions: %w", err)
	}
	return n, nil
}

func (s *sqliteRestrictionStore) Find(ctx context.Context, f RestrictionFilter, limit, skip int) ([]domain.Restriction, error) {
	where, args := s.where(f)
	query := "SELECT " + restrictionColumns + " FROM restrictions" + where + " ORDER BY created_at, id"
	switch {
	case limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, skip)
	case skip > 0:
		// sqlite requires a LIMIT before OFFSET; -1 means unbounded.
		query += " LIMIT -1 OFFSET ?"
		args = append(args, skip)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find restrictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Restriction
	for rows.Next() {
		r, err := scanSQLiteRestriction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *sqliteRestrictionStore) InsertOne(ctx context.Context, r *domain.Restriction) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	var expires any
	if r.ExpiresAt != nil {
		expires = formatSQLiteTime(*r.ExpiresAt)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO restrictions (id, identifier_type, value, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identifier_type, value)
		DO UPDATE SET expires_at = excluded.expires_at,
		              created_at = excluded.created_at
		RETURNING `+restrictionColumns,
		r.ID.String(), string(r.Type), r.Value, expires, formatSQLiteTime(r.CreatedAt),
	)
	stored, err := scanSQLiteRestriction(row)
	if err != nil {
		return fmt.Errorf("insert restriction: %w", err)
	}
	*r = *stored
	return nil
}

// FindOneAndDelete relies on sqlite's single writer: the subselect and the delete
// run as one statement, so no other writer can remove the row in between.
func (s *sqliteRestrictionStore) FindOneAndDelete(ctx context.Context, f RestrictionFilter) (*domain.Restriction, error) {
	where, args := s.where(f)
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM restrictions
		WHERE id = (
			SELECT id FROM restrictions`+where+`
			ORDER BY created_at, id
			LIMIT 1
		)
		RETURNING `+restrictionColumns, args...)

	r, err := scanSQLiteRestriction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete restriction: %w", err)
	}
	return r, nil
}

func (s *sqliteRestrictionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqliteRestrictionStore) where(f RestrictionFilter) (string, []interface{}) {
	where, args := buildWhere(f, func(int) string { return "?" })
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			args[i] = formatSQLiteTime(t)
		}
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRestriction(row rowScanner) (*domain.Restriction, error) {
	var (
		r         domain.Restriction
		id, typ   string
		expiresAt sql.NullString
		createdAt string
	)
	if err := row.Scan(&id, &typ, &r.Value, &expiresAt, &createdAt); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse restriction id: %w", err)
	}
	r.ID = parsedID
	r.Type = domain.IdentifierType(typ)

	if r.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if expiresAt.Valid {
		t, err := parseSQLiteTime(expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		r.ExpiresAt = &t
	}
	return &r, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(value string) (time.Time, error) {
	return time.ParseInLocation(sqliteTimeLayout, value, time.UTC)
}
