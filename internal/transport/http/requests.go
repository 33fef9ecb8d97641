package httptransport

import (
	"errors"

	"github.com/google/uuid"

	"traceport/internal/delegation"
	"traceport/internal/record"
)

type createRecordRequest struct {
	Category        string `json:"category"`
	Name            string `json:"name"`
	SKU             string `json:"sku"`
	Brand           string `json:"brand"`
	CountryOfOrigin string `json:"country_of_origin"`
	Material        string `json:"material"`
	Care            string `json:"care"`
}

func (r createRecordRequest) Validate() error {
	if r.Category == "" {
		return errors.New("category is required")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func (r createRecordRequest) scalars() record.Scalars {
	return record.Scalars{
		Name:            r.Name,
		SKU:             r.SKU,
		Brand:           r.Brand,
		CountryOfOrigin: r.CountryOfOrigin,
		Material:        r.Material,
		Care:            r.Care,
	}
}

type applyWritesRequest struct {
	Writes         map[string]any `json:"writes"`
	FieldInstances []string       `json:"field_instances"`
}

func (r applyWritesRequest) Validate() error {
	if r.Writes == nil {
		return errors.New("writes is required")
	}
	return nil
}

type issueGrantRequest struct {
	BlockIDs       []string `json:"block_ids"`
	LegacySections []string `json:"legacy_sections"`
	Mode           string   `json:"mode"`
	FieldAllowlist []string `json:"field_allowlist"`
	TTLHours       int      `json:"ttl_hours"`
}

func (r issueGrantRequest) Validate() error {
	if r.Mode == "" {
		return errors.New("mode is required")
	}
	if r.TTLHours < 0 {
		return errors.New("ttl_hours must not be negative")
	}
	return nil
}

func (r issueGrantRequest) scope() (delegation.Scope, error) {
	scope := delegation.Scope{LegacySections: r.LegacySections}
	for _, raw := range r.BlockIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return delegation.Scope{}, errors.New("block_ids must be valid uuids")
		}
		scope.BlockIDs = append(scope.BlockIDs, id)
	}
	return scope, nil
}

type submitGrantRequest struct {
	Values    map[string]any `json:"values"`
	Confirmed bool           `json:"confirmed"`
	Rejected  bool           `json:"rejected"`
	Comment   string         `json:"comment"`
}

type createBindingRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	// Sections stays a pointer: absent means "role defaults apply", while an
	// explicit empty list grants nothing.
	Sections *[]string `json:"sections"`
}

func (r createBindingRequest) Validate() error {
	if r.ActorID == "" {
		return errors.New("actor_id is required")
	}
	if r.Role == "" {
		return errors.New("role is required")
	}
	return nil
}

type attachMediaRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StorageRef  string `json:"storage_ref"`
	Role        string `json:"role"`
	FieldKey    string `json:"field_key"`
	Position    int    `json:"position"`
}

func (r attachMediaRequest) Validate() error {
	if r.FileName == "" {
		return errors.New("file_name is required")
	}
	if r.StorageRef == "" {
		return errors.New("storage_ref is required")
	}
	return nil
}
