package httptransport

import (
	"net/http"

	"github.com/google/uuid"

	"traceport/pkg/platform/httputil"
)

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[createRecordRequest](w, r)
	if !ok {
		return
	}

	rec, err := h.records.Create(r.Context(), actor, req.Category, req.scalars())
	if err != nil {
		h.writeError(w, r, actor, uuid.Nil, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromRecord(rec))
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}

	rec, err := h.records.Get(r.Context(), actor, recordID)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromRecord(rec))
}
