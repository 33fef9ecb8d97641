package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"traceport/pkg/platform/sentinel"
	txcontext "traceport/pkg/platform/tx"
)

// PostgresStore persists passports in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO passports (id, org_id, category, name, sku, brand, country_of_origin, material, care, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			brand = EXCLUDED.brand,
			country_of_origin = EXCLUDED.country_of_origin,
			material = EXCLUDED.material,
			care = EXCLUDED.care,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		rec.ID, rec.OrgID, rec.Category,
		rec.Scalars.Name, rec.Scalars.SKU, rec.Scalars.Brand,
		rec.Scalars.CountryOfOrigin, rec.Scalars.Material, rec.Scalars.Care,
		string(rec.Status), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save passport: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `
		SELECT id, org_id, category, name, sku, brand, country_of_origin, material, care, status, created_at, updated_at
		FROM passports WHERE id = $1
	`
	var rec Record
	var status string
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.OrgID, &rec.Category,
		&rec.Scalars.Name, &rec.Scalars.SKU, &rec.Scalars.Brand,
		&rec.Scalars.CountryOfOrigin, &rec.Scalars.Material, &rec.Scalars.Care,
		&status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find passport by id: %w", err)
	}
	rec.Status = Status(status)
	return &rec, nil
}

func (s *PostgresStore) UpdateScalars(ctx context.Context, id uuid.UUID, scalars Scalars) error {
	query := `
		UPDATE passports
		SET name = $2, sku = $3, brand = $4, country_of_origin = $5, material = $6, care = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, id,
		scalars.Name, scalars.SKU, scalars.Brand, scalars.CountryOfOrigin, scalars.Material, scalars.Care,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update passport scalars: %w", err)
	}
	return ensureRowAffected(res)
}

// MarkPublished flips DRAFT to PUBLISHED. The transition is one-way: a row
// already PUBLISHED is left alone and reported as success.
func (s *PostgresStore) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE passports SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, id, string(StatusPublished), time.Now())
	if err != nil {
		return fmt.Errorf("mark passport published: %w", err)
	}
	return ensureRowAffected(res)
}

func ensureRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
