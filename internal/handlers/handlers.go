// Package handlers wires the HTTP API: public status endpoints, the
// cookie-protected operator API, and the websocket entry points.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/showcaselive/showtime/internal/auth"
	"github.com/showcaselive/showtime/internal/logger"
	"github.com/showcaselive/showtime/internal/models"
	"github.com/showcaselive/showtime/internal/services"
	"github.com/showcaselive/showtime/internal/websocket"
)

// Handler holds the dependencies of every route.
type Handler struct {
	timelines *services.TimelineService
	auth      *auth.Service
	hub       *websocket.Hub
	log       logger.Logger

	// baseURL is the externally reachable address encoded into QR codes.
	baseURL string

	httpLogging bool
}

// Option configures optional handler behavior.
type Option func(*Handler)

// WithHTTPLogging turns on per-request logging.
func WithHTTPLogging(enabled bool) Option {
	return func(h *Handler) { h.httpLogging = enabled }
}

// New creates the handler set.
func New(timelines *services.TimelineService, authSvc *auth.Service, hub *websocket.Hub, log logger.Logger, baseURL string, opts ...Option) *Handler {
	h := &Handler{
		timelines: timelines,
		auth:      authSvc,
		hub:       hub,
		log:       log,
		baseURL:   baseURL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Login exchanges the operator password for a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	token, ok := h.auth.Login(req.Password)
	if !ok {
		h.log.Warn("failed operator login", "remote", r.RemoteAddr)
		respondJSON(w, http.StatusUnauthorized, APIError{Error: "invalid password"})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(auth.SessionTTL),
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

// Logout invalidates the operator session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.auth.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Status is the public current-state endpoint viewers poll as a websocket
// fallback.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.timelines.Status(chi.URLParam(r, "showcaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// QRCode renders a PNG QR code pointing at the public live page for the
// showcase, for display on the broadcast overlay.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	showcaseID := chi.URLParam(r, "showcaseID")
	url := fmt.Sprintf("%s/live/%s", h.baseURL, showcaseID)
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		h.log.Error("generating qr code", "showcase_id", showcaseID, "error", err)
		respondJSON(w, http.StatusInternalServerError, APIError{Error: "internal error"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// ViewerWS subscribes a viewer connection to live updates for a showcase.
func (h *Handler) ViewerWS(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(h.hub, h.log, chi.URLParam(r, "showcaseID"), true, w, r)
}

// OperatorWS subscribes an operator console; it does not count as audience.
func (h *Handler) OperatorWS(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(h.hub, h.log, chi.URLParam(r, "showcaseID"), false, w, r)
}

// CreateTimeline builds a new showcase timeline.
func (h *Handler) CreateTimeline(w http.ResponseWriter, r *http.Request) {
	var req services.CreateTimelineInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	tl, err := h.timelines.CreateTimeline(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tl)
}

// ListTimelines returns all timelines for the operator console.
func (h *Handler) ListTimelines(w http.ResponseWriter, r *http.Request) {
	tls, err := h.timelines.ListTimelines()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tls)
}

// AdminView returns the full aggregate.
func (h *Handler) AdminView(w http.ResponseWriter, r *http.Request) {
	tl, err := h.timelines.AdminView(chi.URLParam(r, "showcaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tl)
}

// Advance moves the showcase to its next phase.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	view, err := h.timelines.Advance(chi.URLParam(r, "showcaseID"), req.FromPhase, actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Pause freezes the timeline.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	view, err := h.timelines.Pause(chi.URLParam(r, "showcaseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Resume unfreezes the timeline.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	view, err := h.timelines.Resume(chi.URLParam(r, "showcaseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ExtendTime adjusts a phase's duration.
func (h *Handler) ExtendTime(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	view, err := h.timelines.ExtendTime(chi.URLParam(r, "showcaseID"), req.Phase, req.DeltaMinutes, actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// SetOverride pins the current phase manually.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	view, err := h.timelines.SetManualOverride(chi.URLParam(r, "showcaseID"), req.Phase, actor(r), req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ClearOverride removes a manual override.
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	view, err := h.timelines.ClearManualOverride(chi.URLParam(r, "showcaseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ForceStart takes the event live now.
func (h *Handler) ForceStart(w http.ResponseWriter, r *http.Request) {
	view, err := h.timelines.ForceStart(chi.URLParam(r, "showcaseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Stop ends the event immediately.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	view, err := h.timelines.Stop(chi.URLParam(r, "showcaseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Cancel abandons the event.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	view, err := h.timelines.Cancel(chi.URLParam(r, "showcaseID"), actor(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// UpdateConfig replaces the duration tunables of a pre-live event.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.Config
	if err := decodeJSON(r, &cfg); err != nil {
		respondError(w, err)
		return
	}
	tl, err := h.timelines.UpdateConfig(chi.URLParam(r, "showcaseID"), cfg)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tl)
}

// Reschedule replaces the performance lineup of a pre-live event.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	tl, err := h.timelines.ReschedulePerformances(r.Context(), chi.URLParam(r, "showcaseID"), req.Contestants)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tl)
}

// RefreshDurations re-probes media durations for a pre-live lineup.
func (h *Handler) RefreshDurations(w http.ResponseWriter, r *http.Request) {
	tl, err := h.timelines.RefreshDurations(r.Context(), chi.URLParam(r, "showcaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tl)
}

// DeleteTimeline removes a timeline that never went live.
func (h *Handler) DeleteTimeline(w http.ResponseWriter, r *http.Request) {
	if err := h.timelines.DeleteTimeline(chi.URLParam(r, "showcaseID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// actor identifies the operator issuing a command for the audit trail.
func actor(r *http.Request) string {
	if name := r.Header.Get("X-Operator"); name != "" {
		return name
	}
	return "operator"
}
