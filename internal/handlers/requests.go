package handlers

import "github.com/showcaselive/showtime/internal/models"

type loginRequest struct {
	Password string `json:"password"`
}

type advanceRequest struct {
	// FromPhase guards against double submission; empty means unconditional.
	FromPhase string `json:"from_phase,omitempty"`
}

type extendRequest struct {
	Phase        models.PhaseName `json:"phase"`
	DeltaMinutes float64          `json:"delta_minutes"`
}

type overrideRequest struct {
	Phase  models.PhaseName `json:"phase"`
	Reason string           `json:"reason,omitempty"`
}

type rescheduleRequest struct {
	Contestants []models.Contestant `json:"contestants"`
}
