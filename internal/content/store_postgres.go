package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"traceport/pkg/platform/sentinel"
	txcontext "traceport/pkg/platform/tx"
)

// PostgresStore persists content rows. Blocks are stored as a JSONB array.
// The schema carries a partial unique index on (record_id) WHERE NOT
// is_published, so well-formed data has exactly one live draft per record.
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

type blockRow struct {
	ID              string          `json:"id"`
	Order           int             `json:"order"`
	Content         json.RawMessage `json:"content,omitempty"`
	TemplateBlockID string          `json:"template_block_id,omitempty"`
	Data            map[string]any  `json:"data,omitempty"`
}

func marshalBlocks(blocks []Block) ([]byte, error) {
	rows := make([]blockRow, 0, len(blocks))
	for _, b := range blocks {
		row := blockRow{ID: b.ID.String(), Order: b.Order, Content: b.Content, Data: b.Data}
		if b.TemplateBlockID != uuid.Nil {
			row.TemplateBlockID = b.TemplateBlockID.String()
		}
		rows = append(rows, row)
	}
	return json.Marshal(rows)
}

func unmarshalBlocks(raw []byte) ([]Block, error) {
	var rows []blockRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(rows))
	for _, row := range rows {
		b := Block{Order: row.Order, Content: row.Content, Data: row.Data}
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("parse block id: %w", err)
		}
		b.ID = id
		if row.TemplateBlockID != "" {
			tid, err := uuid.Parse(row.TemplateBlockID)
			if err != nil {
				return nil, fmt.Errorf("parse template block id: %w", err)
			}
			b.TemplateBlockID = tid
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// FindDraftByRecord returns the live draft. If duplicates exist from
// pre-constraint data, the most recently updated row wins; this is a recovery
// path, not a steady-state mechanism.
func (s *PostgresStore) FindDraftByRecord(ctx context.Context, recordID uuid.UUID) (Draft, error) {
	query := `
		SELECT id, record_id, blocks, updated_at
		FROM content_rows
		WHERE record_id = $1 AND NOT is_published
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var d Draft
	var raw []byte
	err := s.execer(ctx).QueryRowContext(ctx, query, recordID).Scan(&d.ID, &d.RecordID, &raw, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("find draft: %w", err)
	}
	d.Blocks, err = unmarshalBlocks(raw)
	if err != nil {
		return Draft{}, fmt.Errorf("decode draft blocks: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) SaveDraft(ctx context.Context, draft Draft) error {
	if draft.IsPublished {
		return sentinel.ErrConflict
	}
	raw, err := marshalBlocks(draft.Blocks)
	if err != nil {
		return fmt.Errorf("encode draft blocks: %w", err)
	}
	query := `
		INSERT INTO content_rows (id, record_id, blocks, is_published, version_id, updated_at)
		VALUES ($1, $2, $3, FALSE, NULL, $4)
		ON CONFLICT (record_id) WHERE NOT is_published DO UPDATE SET
			blocks = EXCLUDED.blocks,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, draft.ID, draft.RecordID, raw, time.Now()); err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) SavePublished(ctx context.Context, published Draft) error {
	if !published.IsPublished || published.VersionID == nil {
		return sentinel.ErrConflict
	}
	raw, err := marshalBlocks(published.Blocks)
	if err != nil {
		return fmt.Errorf("encode published blocks: %w", err)
	}
	query := `
		INSERT INTO content_rows (id, record_id, blocks, is_published, version_id, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, published.ID, published.RecordID, raw, *published.VersionID, time.Now()); err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save published content: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindPublishedByVersion(ctx context.Context, versionID uuid.UUID) (Draft, error) {
	query := `
		SELECT id, record_id, blocks, version_id, updated_at
		FROM content_rows
		WHERE version_id = $1 AND is_published
	`
	var d Draft
	var raw []byte
	var vID uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx, query, versionID).Scan(&d.ID, &d.RecordID, &raw, &vID, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("find published content: %w", err)
	}
	d.IsPublished = true
	d.VersionID = &vID
	d.Blocks, err = unmarshalBlocks(raw)
	if err != nil {
		return Draft{}, fmt.Errorf("decode published blocks: %w", err)
	}
	return d, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
