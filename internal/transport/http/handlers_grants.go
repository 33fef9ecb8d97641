package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"traceport/internal/delegation"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/httputil"
)

func (h *Handler) handleIssueGrant(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	recordID, ok := parseUUIDParam(w, r, "recordID")
	if !ok {
		return
	}
	req, ok := httputil.Decode[issueGrantRequest](w, r)
	if !ok {
		return
	}
	scope, err := req.scope()
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	ttl := h.grantTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	grant, err := h.grants.Issue(r.Context(), actor, recordID, scope, delegation.Mode(req.Mode), req.FieldAllowlist, ttl)
	if err != nil {
		h.writeError(w, r, actor, recordID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromGrant(grant))
}

func (h *Handler) handleRedeemGrant(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}

	view, err := h.grants.Redeem(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromContributorView(view))
}

func (h *Handler) handleSubmitGrant(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}
	req, ok := httputil.Decode[submitGrantRequest](w, r)
	if !ok {
		return
	}

	conf := delegation.Confirmation{
		Confirmed: req.Confirmed,
		Rejected:  req.Rejected,
		Comment:   req.Comment,
	}
	if err := h.grants.Submit(r.Context(), token, req.Values, conf); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}
