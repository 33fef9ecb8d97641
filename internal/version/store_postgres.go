package version

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"traceport/pkg/platform/sentinel"
	txcontext "traceport/pkg/platform/tx"
)

// PostgresStore persists versions in PostgreSQL. A unique constraint on
// (record_id, number) turns a lost publish race into ErrVersionConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, v Version) error {
	query := `
		INSERT INTO versions (id, record_id, number, name, sku, brand, country_of_origin, material, care, public_path, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		v.ID, v.RecordID, v.Number,
		v.Scalars.Name, v.Scalars.SKU, v.Scalars.Brand,
		v.Scalars.CountryOfOrigin, v.Scalars.Material, v.Scalars.Care,
		v.PublicPath, v.CreatedBy, v.CreatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("save version: %w", err)
	}
	return nil
}

func (s *PostgresStore) MaxNumber(ctx context.Context, recordID uuid.UUID) (int, error) {
	var max int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM versions WHERE record_id = $1`, recordID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return max, nil
}

func (s *PostgresStore) FindByNumber(ctx context.Context, recordID uuid.UUID, number int) (Version, error) {
	query := `
		SELECT id, record_id, number, name, sku, brand, country_of_origin, material, care, public_path, created_by, created_at
		FROM versions WHERE record_id = $1 AND number = $2
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, recordID, number))
}

func (s *PostgresStore) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]Version, error) {
	query := `
		SELECT id, record_id, number, name, sku, brand, country_of_origin, material, care, public_path, created_by, created_at
		FROM versions WHERE record_id = $1
		ORDER BY number
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(
			&v.ID, &v.RecordID, &v.Number,
			&v.Scalars.Name, &v.Scalars.SKU, &v.Scalars.Brand,
			&v.Scalars.CountryOfOrigin, &v.Scalars.Material, &v.Scalars.Care,
			&v.PublicPath, &v.CreatedBy, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan version row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) scanOne(row *sql.Row) (Version, error) {
	var v Version
	err := row.Scan(
		&v.ID, &v.RecordID, &v.Number,
		&v.Scalars.Name, &v.Scalars.SKU, &v.Scalars.Brand,
		&v.Scalars.CountryOfOrigin, &v.Scalars.Material, &v.Scalars.Care,
		&v.PublicPath, &v.CreatedBy, &v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Version{}, fmt.Errorf("scan version: %w", err)
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
