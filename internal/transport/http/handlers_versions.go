package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/httputil"
)

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}

	v, err := h.versions.Publish(r.Context(), actor, recordID)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromVersion(v))
}

func (h *Handler) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "number must be an integer"))
		return
	}

	snap, err := h.versions.GetVersion(r.Context(), recordID, number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromSnapshot(snap))
}

func (h *Handler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}

	versions, err := h.versions.ListVersions(r.Context(), recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, fromVersion(v))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
