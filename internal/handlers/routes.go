package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the full router. metricsHandler serves the Prometheus
// registry; pass nil to omit it.
func (h *Handler) Routes(metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.Healthz)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	// Public viewer surface.
	r.Get("/api/showcases/{showcaseID}/status", h.Status)
	r.Get("/api/showcases/{showcaseID}/qr", h.QRCode)
	r.Get("/ws/showcases/{showcaseID}", h.ViewerWS)

	// Operator surface, session cookie required.
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Post("/api/showcases", h.CreateTimeline)
		r.Get("/api/showcases", h.ListTimelines)
		r.Get("/api/showcases/{showcaseID}", h.AdminView)
		r.Delete("/api/showcases/{showcaseID}", h.DeleteTimeline)

		r.Post("/api/showcases/{showcaseID}/advance", h.Advance)
		r.Post("/api/showcases/{showcaseID}/pause", h.Pause)
		r.Post("/api/showcases/{showcaseID}/resume", h.Resume)
		r.Post("/api/showcases/{showcaseID}/extend", h.ExtendTime)
		r.Post("/api/showcases/{showcaseID}/override", h.SetOverride)
		r.Delete("/api/showcases/{showcaseID}/override", h.ClearOverride)
		r.Post("/api/showcases/{showcaseID}/force-start", h.ForceStart)
		r.Post("/api/showcases/{showcaseID}/stop", h.Stop)
		r.Post("/api/showcases/{showcaseID}/cancel", h.Cancel)

		r.Put("/api/showcases/{showcaseID}/config", h.UpdateConfig)
		r.Put("/api/showcases/{showcaseID}/performances", h.Reschedule)
		r.Post("/api/showcases/{showcaseID}/refresh-durations", h.RefreshDurations)

		r.Get("/ws/operator/{showcaseID}", h.OperatorWS)
	})

	return r
}

// requestLogger logs requests when HTTP logging is toggled on. Websocket and
// scrape endpoints are always skipped to keep the log readable.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.httpLogging || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr)
	})
}
