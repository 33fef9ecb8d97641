package httptransport

import (
	"net/http"

	"github.com/google/uuid"

	"traceport/internal/media"
	"traceport/pkg/platform/httputil"
)

func (h *Handler) handleAttachMedia(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}
	req, ok := httputil.Decode[attachMediaRequest](w, r)
	if !ok {
		return
	}

	attached, err := h.medias.Attach(r.Context(), actor, recordID, media.AttachInput{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		StorageRef:  req.StorageRef,
		Role:        req.Role,
		FieldKey:    req.FieldKey,
		Position:    req.Position,
	})
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromMedia(attached))
}

func (h *Handler) handleListMedia(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}

	items, err := h.medias.List(r.Context(), actor, recordID)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	resp := make([]mediaResponse, 0, len(items))
	for _, m := range items {
		resp = append(resp, fromMedia(m))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	mediaID, ok := parseUUIDParam(w, r, "mediaID")
	if !ok {
		return
	}

	// The media service hides records the actor cannot read, so its errors
	// need no collapse here.
	if err := h.medias.Delete(r.Context(), actor, mediaID); err != nil {
		h.writeError(w, r, actor, uuid.Nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
