// Package timeline holds the core scheduling and phase state machine logic
// for a live showcase event. Everything here is a pure function of the
// Timeline aggregate and an injected wall-clock instant; persistence and
// locking are the caller's responsibility.
package timeline

import (
	"time"

	"github.com/showcaselive/showtime/internal/models"
)

// DefaultCountdownHorizon is how far out the terminal countdown phase ends
// when no next-event date is known.
const DefaultCountdownHorizon = 30 * 24 * time.Hour

// MinPhaseMinutes is the floor below which a time reduction is rejected.
const MinPhaseMinutes = 1.0

// Template returns the fixed, ordered phase catalog with default durations
// taken from cfg. The performance and commercial durations are placeholders;
// Generate replaces them with computed values.
func Template(cfg models.Config) []models.Phase {
	return []models.Phase{
		{Name: models.PhaseWelcome, DurationMinutes: cfg.WelcomeMinutes, Status: models.StatusPending},
		{Name: models.PhasePerformance, Status: models.StatusPending},
		{Name: models.PhaseCommercial, DurationMinutes: cfg.CommercialMinutes, Status: models.StatusPending},
		{Name: models.PhaseVoting, DurationMinutes: cfg.VotingMinutes, Status: models.StatusPending},
		{Name: models.PhaseWinner, DurationMinutes: cfg.WinnerMinutes, Status: models.StatusPending},
		{Name: models.PhaseThankYou, DurationMinutes: cfg.ThankYouMinutes, Status: models.StatusPending},
		{Name: models.PhaseCountdown, Status: models.StatusPending},
	}
}

// minutesToDuration converts fractional minutes to a time.Duration.
func minutesToDuration(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// countdownEnd returns the open-ended countdown phase's end: the externally
// supplied next-event date when known and in the future of start, otherwise
// the default horizon.
func countdownEnd(start time.Time, nextEvent *time.Time) time.Time {
	if nextEvent != nil && nextEvent.After(start) {
		return *nextEvent
	}
	return start.Add(DefaultCountdownHorizon)
}
