package httptransport

import (
	"net/http"

	"traceport/internal/content"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/httputil"
)

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}

	caps, err := h.resolver.Resolve(r.Context(), actor, recordID, nil)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	if !caps.Read {
		h.writeError(w, r, actor, recordID, dErrors.New(dErrors.CodeForbidden, "actor cannot read this passport"))
		return
	}

	draft, err := h.contents.GetDraft(r.Context(), recordID)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromDraft(draft))
}

func (h *Handler) handleApplyFieldWrites(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}
	req, ok := httputil.Decode[applyWritesRequest](w, r)
	if !ok {
		return
	}

	caps, err := h.resolver.Resolve(r.Context(), actor, recordID, nil)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	if !caps.CanWrite() {
		h.writeError(w, r, actor, recordID, dErrors.New(dErrors.CodeForbidden, "actor cannot write this passport"))
		return
	}

	// Full editors write unscoped; everyone else is narrowed to the sections
	// and blocks their capability set names.
	var scope *content.WriterScope
	if !caps.WriteAll {
		scope = &content.WriterScope{
			BlockIDs: caps.WritableBlocks,
			Sections: caps.WritableSections,
		}
	}

	draft, err := h.contents.ApplyFieldWrites(r.Context(), actor.ID.String(), recordID, req.Writes, req.FieldInstances, scope)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromDraft(draft))
}
