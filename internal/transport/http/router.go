// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; capability decisions stay in the core.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	contentservice "traceport/internal/content/service"
	delegationservice "traceport/internal/delegation/service"
	"traceport/internal/media"
	"traceport/internal/permission"
	"traceport/internal/platform/metrics"
	"traceport/internal/platform/middleware"
	recordservice "traceport/internal/record/service"
	versionservice "traceport/internal/version/service"
)

// Handler wires passport endpoints to the domain services.
type Handler struct {
	logger   *slog.Logger
	parser   *middleware.ActorParser
	resolver *permission.Resolver

	records  *recordservice.Service
	contents *contentservice.Service
	grants   *delegationservice.Service
	versions *versionservice.Service
	bindings *permission.BindingService
	medias   *media.Service

	metrics  *metrics.Metrics
	grantTTL time.Duration
}

// New constructs the handler.
func New(
	logger *slog.Logger,
	parser *middleware.ActorParser,
	resolver *permission.Resolver,
	records *recordservice.Service,
	contents *contentservice.Service,
	grants *delegationservice.Service,
	versions *versionservice.Service,
	bindings *permission.BindingService,
	medias *media.Service,
	m *metrics.Metrics,
	grantTTL time.Duration,
) *Handler {
	return &Handler{
		logger:   logger,
		parser:   parser,
		resolver: resolver,
		records:  records,
		contents: contents,
		grants:   grants,
		versions: versions,
		bindings: bindings,
		medias:   medias,
		metrics:  m,
		grantTTL: grantTTL,
	}
}

// NewRouter builds the full route tree. Contributor and public passport
// endpoints skip actor authentication on purpose: grants are token-in-path
// and version reads are the public surface of a published passport.
func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public surface.
	r.Get("/grants/{token}", h.handleRedeemGrant)
	r.Post("/grants/{token}/submit", h.handleSubmitGrant)
	r.Get("/passports/{recordID}/versions", h.handleListVersions)
	r.Get("/passports/{recordID}/versions/{number}", h.handleGetVersion)

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor(h.parser, h.logger))

		r.Post("/records", h.handleCreateRecord)
		r.Get("/records/{recordID}", h.handleGetRecord)

		r.Get("/records/{recordID}/draft", h.handleGetDraft)
		r.Patch("/records/{recordID}/draft", h.handleApplyFieldWrites)

		r.Post("/records/{recordID}/publish", h.handlePublish)

		r.Post("/records/{recordID}/grants", h.handleIssueGrant)

		r.Post("/records/{recordID}/bindings", h.handleCreateBinding)
		r.Get("/records/{recordID}/bindings", h.handleListBindings)

		r.Post("/records/{recordID}/media", h.handleAttachMedia)
		r.Get("/records/{recordID}/media", h.handleListMedia)
		r.Delete("/media/{mediaID}", h.handleDeleteMedia)
	})

	return r
}
