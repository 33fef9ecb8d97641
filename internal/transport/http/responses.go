package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"traceport/internal/content"
	"traceport/internal/delegation"
	"traceport/internal/media"
	"traceport/internal/permission"
	"traceport/internal/record"
	"traceport/internal/version"
	versionservice "traceport/internal/version/service"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/httputil"
)

// writeError translates a domain error. Forbidden collapses into NotFound
// only when the actor cannot even read the record, so record existence never
// leaks across org boundaries while actors with read visibility still get an
// honest refusal. A zero record id means the operation has nothing to hide
// and the error passes through.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, actor permission.Actor, recordID uuid.UUID, err error) {
	if dErrors.HasCode(err, dErrors.CodeForbidden) {
		if h.metrics != nil {
			h.metrics.ResolverDenials.Inc()
		}
		if actor.Kind != permission.ActorPlatform && recordID != uuid.Nil && !h.canRead(r.Context(), actor, recordID) {
			err = dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
	}
	httputil.WriteError(w, err)
}

func (h *Handler) canRead(ctx context.Context, actor permission.Actor, recordID uuid.UUID) bool {
	caps, err := h.resolver.Resolve(ctx, actor, recordID, nil)
	return err == nil && caps.Read
}

type scalarsResponse struct {
	Name            string `json:"name"`
	SKU             string `json:"sku,omitempty"`
	Brand           string `json:"brand,omitempty"`
	CountryOfOrigin string `json:"country_of_origin,omitempty"`
	Material        string `json:"material,omitempty"`
	Care            string `json:"care,omitempty"`
}

type recordResponse struct {
	ID        string          `json:"id"`
	OrgID     string          `json:"org_id"`
	Category  string          `json:"category"`
	Status    string          `json:"status"`
	Scalars   scalarsResponse `json:"scalars"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func fromRecord(rec *record.Record) recordResponse {
	return recordResponse{
		ID:        rec.ID.String(),
		OrgID:     rec.OrgID.String(),
		Category:  rec.Category,
		Status:    string(rec.Status),
		Scalars:   fromScalars(rec.Scalars),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func fromScalars(s record.Scalars) scalarsResponse {
	return scalarsResponse{
		Name:            s.Name,
		SKU:             s.SKU,
		Brand:           s.Brand,
		CountryOfOrigin: s.CountryOfOrigin,
		Material:        s.Material,
		Care:            s.Care,
	}
}

type blockResponse struct {
	ID              string          `json:"id"`
	Order           int             `json:"order"`
	Content         json.RawMessage `json:"content,omitempty"`
	TemplateBlockID string          `json:"template_block_id,omitempty"`
	Data            map[string]any  `json:"data,omitempty"`
}

type draftResponse struct {
	ID        string          `json:"id"`
	RecordID  string          `json:"record_id"`
	Blocks    []blockResponse `json:"blocks"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func fromDraft(d content.Draft) draftResponse {
	resp := draftResponse{
		ID:        d.ID.String(),
		RecordID:  d.RecordID.String(),
		Blocks:    make([]blockResponse, 0, len(d.Blocks)),
		UpdatedAt: d.UpdatedAt,
	}
	for _, b := range d.Blocks {
		br := blockResponse{ID: b.ID.String(), Order: b.Order, Content: b.Content, Data: b.Data}
		if b.TemplateBound() {
			br.TemplateBlockID = b.TemplateBlockID.String()
		}
		resp.Blocks = append(resp.Blocks, br)
	}
	return resp
}

type grantResponse struct {
	Token          string    `json:"token"`
	RecordID       string    `json:"record_id"`
	Mode           string    `json:"mode"`
	BlockIDs       []string  `json:"block_ids,omitempty"`
	LegacySections []string  `json:"legacy_sections,omitempty"`
	FieldAllowlist []string  `json:"field_allowlist,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	Status         string    `json:"status"`
}

func fromGrant(g delegation.Grant) grantResponse {
	resp := grantResponse{
		Token:          g.Token,
		RecordID:       g.RecordID.String(),
		Mode:           string(g.Mode),
		LegacySections: g.Scope.LegacySections,
		FieldAllowlist: g.FieldAllowlist,
		ExpiresAt:      g.ExpiresAt,
		Status:         string(g.Status),
	}
	for _, id := range g.Scope.BlockIDs {
		resp.BlockIDs = append(resp.BlockIDs, id.String())
	}
	return resp
}

type viewFieldResponse struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Value    any    `json:"value,omitempty"`
}

type viewBlockResponse struct {
	ID      string              `json:"id"`
	Key     string              `json:"key"`
	Section string              `json:"section"`
	Fields  []viewFieldResponse `json:"fields"`
}

type contributorViewResponse struct {
	RecordID string              `json:"record_id"`
	Mode     string              `json:"mode"`
	Blocks   []viewBlockResponse `json:"blocks"`
}

func fromContributorView(v delegation.ContributorView) contributorViewResponse {
	resp := contributorViewResponse{
		RecordID: v.RecordID.String(),
		Mode:     string(v.Mode),
		Blocks:   make([]viewBlockResponse, 0, len(v.Blocks)),
	}
	for _, b := range v.Blocks {
		vb := viewBlockResponse{ID: b.ID.String(), Key: b.Key, Section: b.Section}
		for _, f := range b.Fields {
			vb.Fields = append(vb.Fields, viewFieldResponse{
				Key:      f.Key,
				Label:    f.Label,
				Type:     string(f.Type),
				Required: f.Required,
				Value:    f.Value,
			})
		}
		resp.Blocks = append(resp.Blocks, vb)
	}
	return resp
}

type versionResponse struct {
	ID         string          `json:"id"`
	RecordID   string          `json:"record_id"`
	Number     int             `json:"version"`
	Scalars    scalarsResponse `json:"scalars"`
	PublicPath string          `json:"public_path"`
	CreatedAt  time.Time       `json:"created_at"`
}

func fromVersion(v version.Version) versionResponse {
	return versionResponse{
		ID:         v.ID.String(),
		RecordID:   v.RecordID.String(),
		Number:     v.Number,
		Scalars:    fromScalars(v.Scalars),
		PublicPath: v.PublicPath,
		CreatedAt:  v.CreatedAt,
	}
}

type versionMediaResponse struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	StorageRef  string `json:"storage_ref"`
	Role        string `json:"role,omitempty"`
	FieldKey    string `json:"field_key,omitempty"`
	Position    int    `json:"position"`
}

type snapshotResponse struct {
	versionResponse
	Blocks []blockResponse        `json:"blocks"`
	Media  []versionMediaResponse `json:"media"`
}

func fromSnapshot(snap versionservice.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		versionResponse: fromVersion(snap.Version),
		Blocks:          make([]blockResponse, 0, len(snap.Blocks)),
		Media:           make([]versionMediaResponse, 0, len(snap.Media)),
	}
	for _, b := range snap.Blocks {
		br := blockResponse{ID: b.ID.String(), Order: b.Order, Content: b.Content, Data: b.Data}
		if b.TemplateBound() {
			br.TemplateBlockID = b.TemplateBlockID.String()
		}
		resp.Blocks = append(resp.Blocks, br)
	}
	for _, vm := range snap.Media {
		resp.Media = append(resp.Media, versionMediaResponse{
			ID:          vm.ID.String(),
			FileName:    vm.FileName,
			ContentType: vm.ContentType,
			SizeBytes:   vm.SizeBytes,
			StorageRef:  vm.StorageRef,
			Role:        vm.Role,
			FieldKey:    vm.FieldKey,
			Position:    vm.Position,
		})
	}
	return resp
}

type mediaResponse struct {
	ID          string    `json:"id"`
	RecordID    string    `json:"record_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	StorageRef  string    `json:"storage_ref"`
	Role        string    `json:"role,omitempty"`
	FieldKey    string    `json:"field_key,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

func fromMedia(m media.Media) mediaResponse {
	return mediaResponse{
		ID:          m.ID.String(),
		RecordID:    m.RecordID.String(),
		FileName:    m.FileName,
		ContentType: m.ContentType,
		SizeBytes:   m.SizeBytes,
		StorageRef:  m.StorageRef,
		Role:        m.Role,
		FieldKey:    m.FieldKey,
		Position:    m.Position,
		CreatedAt:   m.CreatedAt,
	}
}

type bindingResponse struct {
	RecordID string   `json:"record_id"`
	ActorID  string   `json:"actor_id"`
	Role     string   `json:"role"`
	Sections []string `json:"sections,omitempty"`
}

func fromBinding(b permission.Binding) bindingResponse {
	return bindingResponse{
		RecordID: b.RecordID.String(),
		ActorID:  b.ActorID.String(),
		Role:     string(b.Role),
		Sections: b.Sections,
	}
}
