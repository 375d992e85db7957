package httpapi

import (
	"context"
	"net/http"
	"time"

	"hik-access-bridge/internal/media"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Router wraps the standard http.ServeMux; path parameters are parsed by the handlers.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler registers an http.Handler (static files, /metrics).
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterWebhookRoutes the terminal's notification target. Any method is acknowledged.
func (r *Router) RegisterWebhookRoutes(h *WebhookHandler) {
	r.HandleHandler("/api/hikvision/event", h)
}

func (r *Router) RegisterSyncRoutes(h *SyncHandler) {
	r.Handle("/api/clientes", method(http.MethodGet, h.ListCustomers))
	r.Handle("/api/sync-all", method(http.MethodPost, h.StartSync))
	r.Handle("/api/sync/status", method(http.MethodGet, h.Status))
	r.Handle("/api/sync/report.xlsx", method(http.MethodGet, h.Report))
}

func (r *Router) RegisterCustomerRoutes(h *CustomerHandler) {
	r.HandleHandler(customerPrefix, h)
}

func (r *Router) RegisterEventRoutes(h *EventHandler) {
	r.Handle("/api/eventos/ultimo-local", method(http.MethodGet, h.LastLocal))
	r.Handle("/api/eventos/radar", method(http.MethodGet, h.Radar))
}

func (r *Router) RegisterDoorRoutes(h *DoorHandler) {
	r.HandleHandler(doorPrefix, h)
}

// RegisterSystemRoutes static media, metrics and health. Each check names an
// optional backend; a failing one turns /health into 503.
func (r *Router) RegisterSystemRoutes(uploadsDir string, checks map[string]func(context.Context) error) {
	r.HandleHandler(media.URLPrefix, http.StripPrefix(media.URLPrefix, http.FileServer(http.Dir(uploadsDir))))
	r.HandleHandler("/metrics", promhttp.Handler())
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				r.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
				components[name] = "down: " + err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			components[name] = "up"
		}
		writeJSON(w, code, map[string]any{"status": status, "components": components})
	})
}
