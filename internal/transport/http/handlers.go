package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"traceport/internal/permission"
	"traceport/internal/platform/middleware"
	dErrors "traceport/pkg/domain-errors"
	"traceport/pkg/platform/httputil"
)

// actor pulls the authenticated actor set by RequireActor. A miss means the
// route was mounted without the middleware.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (permission.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "actor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return permission.Actor{}, false
	}
	return actor, true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, name+" must be a valid uuid"))
		return uuid.Nil, false
	}
	return id, true
}
