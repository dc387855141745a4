package timeline

import (
	"time"

	"github.com/showcaselive/showtime/internal/models"
)

// PerformanceMinutes returns the performance phase's duration. It is derived,
// never set directly: the live sum of scheduled performance slots, or
// contestantCount x fallbackMinutes when no performances exist yet (0 when
// the contestant set is empty).
func PerformanceMinutes(perfs []models.Performance, contestantCount int, fallbackMinutes float64) float64 {
	if len(perfs) == 0 {
		return float64(contestantCount) * fallbackMinutes
	}
	return TotalSeconds(perfs) / 60
}

// CommercialMinutes sums the actual ad clip lengths, capping each clip at
// capMinutes to bound the worst case. With no clips it falls back to the
// configured commercial duration.
func CommercialMinutes(clips []models.AdClip, capMinutes, fallbackMinutes float64) float64 {
	if len(clips) == 0 {
		return fallbackMinutes
	}
	var total float64
	for _, clip := range clips {
		minutes := clip.DurationSeconds / 60
		if minutes < 0 {
			minutes = 0
		}
		if capMinutes > 0 && minutes > capMinutes {
			minutes = capMinutes
		}
		total += minutes
	}
	return total
}

// Generate lays out all phases strictly in sequence order from anchor.
// performanceMinutes and commercialMinutes are the computed durations for
// those two phases (see PerformanceMinutes / CommercialMinutes). The terminal
// countdown phase is open-ended: duration 0, end at the next-event date or
// the default horizon. Re-running Generate with identical inputs produces
// identical windows.
//
// Side effect: cfg.TotalMinutes is recomputed as the sum of all
// finite-duration phases.
func Generate(cfg *models.Config, anchor time.Time, performanceMinutes, commercialMinutes float64, nextEvent *time.Time) []models.Phase {
	phases := Template(*cfg)

	cursor := anchor
	var total float64
	for i := range phases {
		ph := &phases[i]
		switch ph.Name {
		case models.PhasePerformance:
			ph.DurationMinutes = performanceMinutes
		case models.PhaseCommercial:
			ph.DurationMinutes = commercialMinutes
		}

		ph.StartTime = cursor
		if ph.Name == models.PhaseCountdown {
			ph.DurationMinutes = 0
			ph.EndTime = countdownEnd(cursor, nextEvent)
		} else {
			ph.EndTime = cursor.Add(minutesToDuration(ph.DurationMinutes))
			total += ph.DurationMinutes
		}
		cursor = ph.EndTime
	}

	cfg.TotalMinutes = total
	return phases
}

// Cascade re-chains every phase window after index from so that
// startTime[i+1] == endTime[i]. Non-countdown phases keep their durations;
// the countdown phase keeps its externally supplied end unless the shift
// pushed its start past it, in which case the end is re-defaulted.
func Cascade(phases []models.Phase, from int, nextEvent *time.Time) {
	for i := from + 1; i < len(phases); i++ {
		phases[i].StartTime = phases[i-1].EndTime
		if phases[i].Name == models.PhaseCountdown {
			if !phases[i].EndTime.After(phases[i].StartTime) {
				phases[i].EndTime = countdownEnd(phases[i].StartTime, nextEvent)
			}
		} else {
			phases[i].EndTime = phases[i].StartTime.Add(minutesToDuration(phases[i].DurationMinutes))
		}
	}
}

// RecomputeTotal refreshes the derived total-minutes figure after any phase
// duration change.
func RecomputeTotal(tl *models.Timeline) {
	var total float64
	for i := range tl.Phases {
		if tl.Phases[i].Name == models.PhaseCountdown {
			continue
		}
		total += tl.Phases[i].DurationMinutes
	}
	tl.Config.TotalMinutes = total
}

// Regenerate recomputes every phase window from scratch at anchor using the
// timeline's current performance and commercial facts, then re-anchors the
// performance slots inside the new performance window. Idempotent; safe to
// call repeatedly before the event goes live.
func Regenerate(tl *models.Timeline, anchor time.Time, maxAdClipMinutes float64) {
	perfMinutes := PerformanceMinutes(tl.Performances, len(tl.Performances), tl.Config.PerformanceSlotFallbackMinutes)
	commercialMinutes := CommercialMinutes(tl.AdClips, maxAdClipMinutes, tl.Config.CommercialMinutes)
	tl.Phases = Generate(&tl.Config, anchor, perfMinutes, commercialMinutes, tl.NextEventAt)
	if i := tl.PhaseIndex(models.PhasePerformance); i >= 0 {
		Reanchor(tl.Performances, tl.Phases[i].StartTime)
	}
}
