package timeline

import (
	"time"

	"github.com/showcaselive/showtime/internal/errors"
	"github.com/showcaselive/showtime/internal/models"
)

// Resolution is the typed answer to "what is current now". Callers decide
// whether a repaired or recovered state is worth alerting on; the machine
// never signals degradation through logs alone.
type Resolution struct {
	Phase    *models.Phase // nil when no phase is current
	Index    int           // -1 when none
	Repaired bool          // statuses were normalized on the way to this answer
	Changed  bool          // the aggregate was mutated and must be persisted
	Reason   string
}

// Resolve answers the current-phase query for the given instant. It is the
// only code path allowed to read or write phase statuses and currentPhase;
// it lazily repairs inconsistent state (multiple actives, missed
// transitions) and detects natural event completion via countdown expiry.
func Resolve(tl *models.Timeline, now time.Time) Resolution {
	if tl.EventStatus.Terminal() || !tl.IsLive {
		return Resolution{Index: -1, Reason: "event not live"}
	}

	// Frozen: no time-based computation while paused.
	if tl.IsPaused {
		idx, repaired := repairActive(tl)
		if idx < 0 {
			return Resolution{Index: -1, Repaired: repaired, Changed: repaired, Reason: "paused with no active phase"}
		}
		return Resolution{Phase: &tl.Phases[idx], Index: idx, Repaired: repaired, Changed: repaired, Reason: "paused"}
	}

	idx, repaired := repairActive(tl)
	changed := repaired
	reason := "active phase"

	if oIdx := overrideIndex(tl); oIdx >= 0 && oIdx != idx {
		normalize(tl, oIdx)
		idx = oIdx
		changed = true
		reason = "manual override"
	}

	if idx >= 0 && tl.Phases[idx].Name == models.PhaseCountdown && now.After(tl.Phases[idx].EndTime) {
		tl.Phases[idx].Status = models.StatusCompleted
		endEvent(tl)
		return Resolution{Index: -1, Repaired: repaired, Changed: true, Reason: "countdown expired"}
	}

	if idx >= 0 {
		return Resolution{Phase: &tl.Phases[idx], Index: idx, Repaired: repaired, Changed: changed, Reason: reason}
	}

	// Resilience against missed transitions: no explicit active phase, so
	// recover from the time window that contains now.
	if w := windowIndex(tl, now); w >= 0 {
		normalize(tl, w)
		return Resolution{Phase: &tl.Phases[w], Index: w, Repaired: true, Changed: true, Reason: "recovered from time window"}
	}

	// Past the end of the whole chain: the event concluded without anyone
	// observing the countdown expiry.
	if n := len(tl.Phases); n > 0 && tl.Phases[n-1].Name == models.PhaseCountdown && now.After(tl.Phases[n-1].EndTime) {
		tl.Phases[n-1].Status = models.StatusCompleted
		endEvent(tl)
		return Resolution{Index: -1, Repaired: repaired, Changed: true, Reason: "countdown expired"}
	}

	return Resolution{Index: -1, Repaired: repaired, Changed: changed, Reason: "no active phase"}
}

// Advance completes the currently active phase and activates the next one in
// sequence. It is forward-only and refuses to run while paused or when the
// event is not live. The performance phase's duration is recomputed from the
// live sum of slots at the moment it activates, so late duration corrections
// take effect exactly when performances begin.
func Advance(tl *models.Timeline, now time.Time) (Resolution, bool) {
	if tl.EventStatus.Terminal() || !tl.IsLive || tl.IsPaused {
		return Resolution{Index: -1, Reason: "advance not permitted"}, false
	}

	idx, _ := repairActive(tl)
	if idx < 0 {
		idx = windowIndex(tl, now)
	}
	if idx < 0 {
		return Resolution{Index: -1, Reason: "no phase to advance"}, false
	}

	tl.Phases[idx].Status = models.StatusCompleted
	if tl.Phases[idx].Name == models.PhasePerformance {
		completeActivePerformances(tl)
	}

	next := idx + 1
	if next >= len(tl.Phases) {
		endEvent(tl)
		return Resolution{Index: -1, Changed: true, Reason: "final phase completed"}, true
	}

	ph := &tl.Phases[next]
	if ph.Name == models.PhasePerformance {
		ph.DurationMinutes = TotalSeconds(tl.Performances) / 60
	}
	ph.StartTime = now
	if ph.Name == models.PhaseCountdown {
		ph.DurationMinutes = 0
		ph.EndTime = countdownEnd(now, tl.NextEventAt)
	} else {
		ph.EndTime = now.Add(minutesToDuration(ph.DurationMinutes))
	}
	normalize(tl, next)
	Cascade(tl.Phases, next, tl.NextEventAt)

	if ph.Name == models.PhasePerformance {
		startPerformances(tl, now)
	}

	return Resolution{Phase: ph, Index: next, Changed: true, Reason: "advanced"}, true
}

// CurrentPerformance returns the contestant slot playing at now: an
// explicitly active one when present, else a time-window match. The second
// return is false when neither exists, a degraded state the caller may
// choose to report.
func CurrentPerformance(tl *models.Timeline, now time.Time) (*models.Performance, bool) {
	for i := range tl.Performances {
		if tl.Performances[i].Status == models.StatusActive {
			return &tl.Performances[i], true
		}
	}
	for i := range tl.Performances {
		p := &tl.Performances[i]
		if p.Status != models.StatusCompleted && !p.StartTime.After(now) && !p.EndTime.Before(now) {
			return p, true
		}
	}
	return nil, false
}

// ExtendPhase adjusts the named phase's end by deltaMinutes (negative =
// reduce) and shifts every subsequent phase by the same delta. A reduction
// that would leave the phase under the minimum floor is rejected with the
// timeline unmodified; appending the audit entry is the caller's job.
//
// The performance phase's duration is always the slot total, so a change to
// it lands on the last open slot rather than the phase record. That keeps
// the two in agreement and survives the recomputation on phase entry.
func ExtendPhase(tl *models.Timeline, name models.PhaseName, deltaMinutes float64) error {
	idx := tl.PhaseIndex(name)
	if idx < 0 {
		return errors.NotFoundf("phase %s not found", name)
	}
	ph := &tl.Phases[idx]
	if ph.Status == models.StatusCompleted {
		return errors.Preconditionf("phase %s is already completed", name)
	}
	if name == models.PhaseCountdown {
		return errors.Validation("countdown phase is open-ended and cannot be extended")
	}
	newDuration := ph.DurationMinutes + deltaMinutes
	if newDuration < MinPhaseMinutes {
		return errors.Validationf("phase %s duration would drop to %.1f minutes (minimum %.0f)", name, newDuration, MinPhaseMinutes)
	}

	if name == models.PhasePerformance {
		slot := lastOpenSlot(tl)
		if slot == nil {
			return errors.Validation("no open performance slot to adjust")
		}
		newSeconds := slot.VideoDurationSeconds + deltaMinutes*60
		if newSeconds < 0 {
			return errors.Validationf("reduction exceeds the last slot's %.0f seconds", slot.VideoDurationSeconds)
		}
		slot.VideoDurationSeconds = newSeconds
		slot.EndTime = slot.EndTime.Add(minutesToDuration(deltaMinutes))
		ph.DurationMinutes = TotalSeconds(tl.Performances) / 60
	} else {
		ph.DurationMinutes = newDuration
	}
	ph.EndTime = ph.EndTime.Add(minutesToDuration(deltaMinutes))
	Cascade(tl.Phases, idx, tl.NextEventAt)
	RecomputeTotal(tl)
	return nil
}

// lastOpenSlot returns the last performance slot that has not completed.
func lastOpenSlot(tl *models.Timeline) *models.Performance {
	for i := len(tl.Performances) - 1; i >= 0; i-- {
		if tl.Performances[i].Status != models.StatusCompleted {
			return &tl.Performances[i]
		}
	}
	return nil
}

// repairActive collapses any multi-active corruption to a single active
// phase. With more than one active the stored currentPhase wins; failing
// that, the latest start time (ties resolve to the later sequence index).
// Earlier phases are forced completed and later ones pending.
func repairActive(tl *models.Timeline) (int, bool) {
	var active []int
	for i := range tl.Phases {
		if tl.Phases[i].Status == models.StatusActive {
			active = append(active, i)
		}
	}
	switch len(active) {
	case 0:
		return -1, false
	case 1:
		return active[0], false
	}

	chosen := active[0]
	for _, i := range active {
		if string(tl.Phases[i].Name) == tl.CurrentPhase {
			chosen = i
			break
		}
		if !tl.Phases[i].StartTime.Before(tl.Phases[chosen].StartTime) {
			chosen = i
		}
	}
	normalize(tl, chosen)
	return chosen, true
}

// overrideIndex returns the phase index pinned by an active manual override,
// or -1. A stale override (naming a completed phase) is ignored so the
// forward-only invariant holds.
func overrideIndex(tl *models.Timeline) int {
	o := tl.ManualOverride
	if o == nil || !o.Active {
		return -1
	}
	idx := tl.PhaseIndex(o.Phase)
	if idx < 0 || tl.Phases[idx].Status == models.StatusCompleted {
		return -1
	}
	return idx
}

// windowIndex finds the first non-completed phase whose window contains now.
func windowIndex(tl *models.Timeline, now time.Time) int {
	for i := range tl.Phases {
		ph := &tl.Phases[i]
		if ph.Status == models.StatusCompleted {
			continue
		}
		if !ph.StartTime.After(now) && !ph.EndTime.Before(now) {
			return i
		}
	}
	return -1
}

// normalize forces the timeline into the single-active shape around idx:
// earlier phases completed, idx active, later phases pending.
func normalize(tl *models.Timeline, idx int) {
	for i := range tl.Phases {
		switch {
		case i < idx:
			tl.Phases[i].Status = models.StatusCompleted
		case i == idx:
			tl.Phases[i].Status = models.StatusActive
		default:
			tl.Phases[i].Status = models.StatusPending
		}
	}
	tl.CurrentPhase = string(tl.Phases[idx].Name)
}

// endEvent terminates the timeline: natural countdown expiry and the last
// phase completing both land here.
func endEvent(tl *models.Timeline) {
	tl.CurrentPhase = models.CurrentPhaseEnded
	tl.EventStatus = models.EventCompleted
	tl.IsLive = false
}

// startPerformances resets the slot list to a single unambiguous "now
// playing" entry: non-completed slots go back to pending, windows re-anchor
// at now, and the first remaining slot (by order) activates.
func startPerformances(tl *models.Timeline, now time.Time) {
	for i := range tl.Performances {
		if tl.Performances[i].Status != models.StatusCompleted {
			tl.Performances[i].Status = models.StatusPending
		}
	}
	Reanchor(tl.Performances, now)
	for i := range tl.Performances {
		if tl.Performances[i].Status == models.StatusPending {
			tl.Performances[i].Status = models.StatusActive
			return
		}
	}
}

// completeActivePerformances closes out any still-active slot when the
// performance phase itself completes.
func completeActivePerformances(tl *models.Timeline) {
	for i := range tl.Performances {
		if tl.Performances[i].Status == models.StatusActive {
			tl.Performances[i].Status = models.StatusCompleted
		}
	}
}
