// Package server implements the HTTP server and routing logic.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maruel/markdb/internal/contract"
	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/server/handlers"
	"github.com/maruel/markdb/internal/server/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes carries what every wrapped endpoint needs.
type routes struct {
	mux      *http.ServeMux
	svc      *handlers.Services
	cfg      *handlers.Config
	limiters *ratelimit.Config
}

func handle[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](rt *routes, pattern string, fn func(context.Context, PtrIn) (*Out, error)) {
	rt.mux.Handle(pattern, Wrap(fn, rt.svc, rt.cfg, rt.limiters))
}

// NewRouter creates and configures the HTTP router.
//
// API endpoints are served at /api/*, Prometheus metrics at /metrics. reg
// may be nil to disable metrics. limiters may be nil to disable rate
// limiting. The document history endpoints are only registered when
// svc.History is set.
func NewRouter(svc *handlers.Services, cfg *handlers.Config, limiters *ratelimit.Config, reg *prometheus.Registry) http.Handler {
	rt := &routes{mux: &http.ServeMux{}, svc: svc, cfg: cfg, limiters: limiters}
	uh := handlers.NewUserHandler(svc)
	th := handlers.NewTagHandler(svc)
	sh := handlers.NewSchemaHandler(svc)
	dh := handlers.NewDocumentHandler(svc)
	vh := handlers.NewValidateHandler(svc)
	ah := handlers.NewAdminHandler(svc, cfg.AdminPassword)
	hh := handlers.NewHealthHandler(svc, cfg)

	handle(rt, "GET /api/health", hh.GetHealth)
	rt.mux.HandleFunc("GET /api/contract", serveContract)

	// Users
	handle(rt, "GET /api/users", uh.ListUsers)
	handle(rt, "GET /api/users/{id}", uh.GetUser)
	handle(rt, "POST /api/users", uh.CreateUser)
	handle(rt, "PUT /api/users/{id}", uh.UpdateUser)
	handle(rt, "DELETE /api/users/{id}", uh.DeleteUser)
	handle(rt, "POST /api/users/login", uh.Login)

	// Tags
	handle(rt, "GET /api/tags", th.ListTags)
	handle(rt, "GET /api/tags/{id}", th.GetTag)
	handle(rt, "POST /api/tags", th.CreateTag)
	handle(rt, "PUT /api/tags/{id}", th.UpdateTag)
	handle(rt, "DELETE /api/tags/{id}", th.DeleteTag)

	// Schemas
	handle(rt, "GET /api/schemas", sh.ListSchemas)
	handle(rt, "GET /api/schemas/{id}", sh.GetSchema)
	handle(rt, "POST /api/schemas", sh.CreateSchema)
	handle(rt, "PUT /api/schemas/{id}", sh.UpdateSchema)
	handle(rt, "DELETE /api/schemas/{id}", sh.DeleteSchema)

	// Documents
	handle(rt, "GET /api/documents", dh.ListDocuments)
	handle(rt, "GET /api/documents/{id}", dh.GetDocument)
	handle(rt, "POST /api/documents", dh.CreateDocument)
	handle(rt, "PUT /api/documents/{id}", dh.UpdateDocument)
	handle(rt, "DELETE /api/documents/{id}", dh.DeleteDocument)
	rt.mux.HandleFunc("GET /api/documents/{id}/html", dh.RenderHTML)
	if svc.History != nil {
		handle(rt, "GET /api/documents/{id}/history", dh.DocumentHistory)
		handle(rt, "GET /api/documents/{id}/history/{hash}", dh.DocumentVersion)
	}

	handle(rt, "POST /api/validate", vh.Validate)
	handle(rt, "POST /api/admin/wipe", ah.Wipe)

	var h http.Handler = rt.mux
	if reg != nil {
		rt.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		h = instrument(reg, h)
	}
	return LogRequests(h, cfg.TrustedProxies)
}

// instrument counts requests and measures their latency.
func instrument(reg prometheus.Registerer, next http.Handler) http.Handler {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "markdb_http_requests_total",
		Help: "Number of HTTP requests, by status code and method.",
	}, []string{"code", "method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "markdb_http_request_duration_seconds",
		Help:    "Latency of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"code", "method"})
	reg.MustRegister(requests, duration)
	return promhttp.InstrumentHandlerCounter(requests, promhttp.InstrumentHandlerDuration(duration, next))
}

// serveContract writes the JSON Schema of every API type.
func serveContract(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(contract.Schemas()); err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode contract", "err", err)
	}
}
