package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"traceport/pkg/platform/sentinel"
	txcontext "traceport/pkg/platform/tx"
)

// PostgresStore persists draft media and version media in PostgreSQL.
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

func (s *PostgresStore) Save(ctx context.Context, m Media) error {
	query := `
		INSERT INTO media (id, record_id, file_name, content_type, size_bytes, storage_ref, role, field_key, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			content_type = EXCLUDED.content_type,
			size_bytes = EXCLUDED.size_bytes,
			storage_ref = EXCLUDED.storage_ref,
			role = EXCLUDED.role,
			field_key = EXCLUDED.field_key,
			position = EXCLUDED.position
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		m.ID, m.RecordID, m.FileName, m.ContentType, m.SizeBytes,
		m.StorageRef, m.Role, m.FieldKey, m.Position, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save media: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (Media, error) {
	query := `
		SELECT id, record_id, file_name, content_type, size_bytes, storage_ref, role, field_key, position, created_at
		FROM media WHERE id = $1
	`
	var m Media
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.RecordID, &m.FileName, &m.ContentType, &m.SizeBytes,
		&m.StorageRef, &m.Role, &m.FieldKey, &m.Position, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Media{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Media{}, fmt.Errorf("find media by id: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]Media, error) {
	query := `
		SELECT id, record_id, file_name, content_type, size_bytes, storage_ref, role, field_key, position, created_at
		FROM media WHERE record_id = $1
		ORDER BY position, created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("list media by record: %w", err)
	}
	defer rows.Close()

	var out []Media
	for rows.Next() {
		var m Media
		if err := rows.Scan(
			&m.ID, &m.RecordID, &m.FileName, &m.ContentType, &m.SizeBytes,
			&m.StorageRef, &m.Role, &m.FieldKey, &m.Position, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveVersionMedia(ctx context.Context, items []VersionMedia) error {
	query := `
		INSERT INTO version_media (id, version_id, file_name, content_type, size_bytes, storage_ref, role, field_key, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, vm := range items {
		_, err := s.execer(ctx).ExecContext(ctx, query,
			vm.ID, vm.VersionID, vm.FileName, vm.ContentType, vm.SizeBytes,
			vm.StorageRef, vm.Role, vm.FieldKey, vm.Position, vm.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("save version media: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]VersionMedia, error) {
	query := `
		SELECT id, version_id, file_name, content_type, size_bytes, storage_ref, role, field_key, position, created_at
		FROM version_media WHERE version_id = $1
		ORDER BY position, created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("list media by version: %w", err)
	}
	defer rows.Close()

	var out []VersionMedia
	for rows.Next() {
		var vm VersionMedia
		if err := rows.Scan(
			&vm.ID, &vm.VersionID, &vm.FileName, &vm.ContentType, &vm.SizeBytes,
			&vm.StorageRef, &vm.Role, &vm.FieldKey, &vm.Position, &vm.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan version media row: %w", err)
		}
		out = append(out, vm)
	}
	return out, rows.Err()
}

func (s *PostgresStore) StorageRefInUse(ctx context.Context, storageRef string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM version_media WHERE storage_ref = $1)`, storageRef,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check storage ref usage: %w", err)
	}
	return exists, nil
}
