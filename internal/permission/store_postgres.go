package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"traceport/pkg/platform/sentinel"
)

// PostgresBindingStore persists external permission bindings. A NULL sections
// column means "role defaults apply", so NULL and empty array are distinct on
// purpose.
type PostgresBindingStore struct {
	db *sql.DB
}

func NewPostgresBindingStore(db *sql.DB) *PostgresBindingStore {
	return &PostgresBindingStore{db: db}
}

func (s *PostgresBindingStore) Save(ctx context.Context, binding Binding) error {
	var sections any
	if binding.Sections != nil {
		sections = pq.StringArray(binding.Sections)
	}
	query := `
		INSERT INTO permission_bindings (record_id, actor_id, role, sections)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (record_id, actor_id) DO UPDATE SET
			role = EXCLUDED.role,
			sections = EXCLUDED.sections
	`
	if _, err := s.db.ExecContext(ctx, query, binding.RecordID, binding.ActorID, string(binding.Role), sections); err != nil {
		return fmt.Errorf("save binding: %w", err)
	}
	return nil
}

func (s *PostgresBindingStore) Find(ctx context.Context, recordID, actorID uuid.UUID) (Binding, error) {
	query := `SELECT record_id, actor_id, role, sections FROM permission_bindings WHERE record_id = $1 AND actor_id = $2`
	b, err := scanBinding(s.db.QueryRowContext(ctx, query, recordID, actorID))
	if errors.Is(err, sql.ErrNoRows) {
		return Binding{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Binding{}, fmt.Errorf("find binding: %w", err)
	}
	return b, nil
}

func (s *PostgresBindingStore) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]Binding, error) {
	query := `SELECT record_id, actor_id, role, sections FROM permission_bindings WHERE record_id = $1`
	rows, err := s.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	var out []Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (Binding, error) {
	var b Binding
	var role string
	var sections pq.StringArray
	var valid bool
	if err := row.Scan(&b.RecordID, &b.ActorID, &role, &nullStringArray{arr: &sections, valid: &valid}); err != nil {
		return Binding{}, err
	}
	b.Role = ExternalRole(role)
	if valid {
		b.Sections = []string(sections)
	}
	return b, nil
}

// nullStringArray scans a nullable text[] column, preserving the NULL vs
// empty-array distinction that the defaulting rule depends on.
type nullStringArray struct {
	arr   *pq.StringArray
	valid *bool
}

func (n *nullStringArray) Scan(src any) error {
	if src == nil {
		*n.valid = false
		return nil
	}
	*n.valid = true
	return n.arr.Scan(src)
}
