package httptransport

import (
	"net/http"

	"github.com/google/uuid"

	"traceport/internal/permission"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/httputil"
)

func (h *Handler) handleCreateBinding(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}
	req, ok := httputil.Decode[createBindingRequest](w, r)
	if !ok {
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "actor_id must be a valid uuid"))
		return
	}

	binding := permission.Binding{
		RecordID: recordID,
		ActorID:  actorID,
		Role:     permission.ExternalRole(req.Role),
	}
	if req.Sections != nil {
		binding.Sections = *req.Sections
	}

	created, err := h.bindings.Create(r.Context(), actor, binding)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromBinding(created))
}

func (h *Handler) handleListBindings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}

	bindings, err := h.bindings.List(r.Context(), actor, recordID)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	resp := make([]bindingResponse, 0, len(bindings))
	for _, b := range bindings {
		resp = append(resp, fromBinding(b))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
