package timeline

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/showcaselive/showtime/internal/errors"
	"github.com/showcaselive/showtime/internal/models"
)

var testAnchor = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

// liveTimeline builds a live event anchored at testAnchor with three
// performances (3m, 4m, 4m) and the welcome phase active.
func liveTimeline() *models.Timeline {
	cfg := models.DefaultConfig()
	tl := &models.Timeline{
		ShowcaseID:     "show-1",
		Config:         cfg,
		EventStatus:    models.EventLive,
		IsLive:         true,
		ScheduledStart: testAnchor,
	}
	tl.Performances = Schedule([]models.Contestant{
		{ID: 1, Name: "Ada", VideoDurationSeconds: f(180)},
		{ID: 2, Name: "Ben", VideoDurationSeconds: f(240)},
		{ID: 3, Name: "Cy", VideoDurationSeconds: f(240)},
	}, 300, testAnchor)
	Regenerate(tl, testAnchor, 30)
	tl.Phases[0].Status = models.StatusActive
	tl.CurrentPhase = string(tl.Phases[0].Name)
	return tl
}

func TestResolveNotLive(t *testing.T) {
	tl := liveTimeline()
	tl.IsLive = false
	tl.EventStatus = models.EventScheduled

	res := Resolve(tl, testAnchor)
	if res.Phase != nil {
		t.Errorf("expected no phase for a scheduled event, got %s", res.Phase.Name)
	}
	if res.Changed {
		t.Error("resolving a scheduled event must not mutate it")
	}
}

func TestResolveActivePhase(t *testing.T) {
	tl := liveTimeline()
	res := Resolve(tl, testAnchor.Add(time.Minute))
	if res.Phase == nil || res.Phase.Name != models.PhaseWelcome {
		t.Fatalf("expected welcome active, got %+v", res.Phase)
	}
	if res.Repaired || res.Changed {
		t.Error("consistent state must resolve without repair")
	}
}

// Two phases marked active at once: the stored current phase wins and the
// rest are normalized around it.
func TestResolveRepairsMultipleActives(t *testing.T) {
	tl := liveTimeline()
	vIdx := tl.PhaseIndex(models.PhaseVoting)
	tl.Phases[vIdx].Status = models.StatusActive
	tl.CurrentPhase = string(models.PhaseVoting)

	res := Resolve(tl, testAnchor.Add(time.Minute))
	if !res.Repaired {
		t.Fatal("expected a repair")
	}
	if res.Phase == nil || res.Phase.Name != models.PhaseVoting {
		t.Fatalf("expected voting after repair, got %+v", res.Phase)
	}
	for i, ph := range tl.Phases {
		switch {
		case i < vIdx && ph.Status != models.StatusCompleted:
			t.Errorf("phase %s before current should be completed, is %s", ph.Name, ph.Status)
		case i > vIdx && ph.Status != models.StatusPending:
			t.Errorf("phase %s after current should be pending, is %s", ph.Name, ph.Status)
		}
	}

	// Repair is idempotent.
	res2 := Resolve(tl, testAnchor.Add(time.Minute))
	if res2.Repaired {
		t.Error("second resolve should find consistent state")
	}
}

func TestResolveRepairTieBreaksByStartTime(t *testing.T) {
	tl := liveTimeline()
	tl.CurrentPhase = "" // stored pointer lost
	wIdx := tl.PhaseIndex(models.PhaseWinner)
	tl.Phases[wIdx].Status = models.StatusActive
	// welcome is also active and started earlier, winner must win.

	res := Resolve(tl, testAnchor.Add(time.Minute))
	if !res.Repaired {
		t.Fatal("expected a repair")
	}
	if res.Phase.Name != models.PhaseWinner {
		t.Errorf("expected winner (latest start) after repair, got %s", res.Phase.Name)
	}
}

// No active phase at all, but the clock sits inside a known window: the
// machine recovers instead of going dark.
func TestResolveRecoversFromTimeWindow(t *testing.T) {
	tl := liveTimeline()
	tl.Phases[0].Status = models.StatusPending // lost transition

	commIdx := tl.PhaseIndex(models.PhaseCommercial)
	inCommercial := tl.Phases[commIdx].StartTime.Add(time.Minute)

	res := Resolve(tl, inCommercial)
	if !res.Repaired {
		t.Fatal("expected window recovery to count as repair")
	}
	if res.Phase == nil || res.Phase.Name != models.PhaseCommercial {
		t.Fatalf("expected commercial recovered, got %+v", res.Phase)
	}
	if tl.CurrentPhase != string(models.PhaseCommercial) {
		t.Errorf("current phase = %s, want commercial", tl.CurrentPhase)
	}
	for i := 0; i < commIdx; i++ {
		if tl.Phases[i].Status != models.StatusCompleted {
			t.Errorf("phase %s should be completed after recovery", tl.Phases[i].Name)
		}
	}
}

func TestResolvePausedFreezesClock(t *testing.T) {
	tl := liveTimeline()
	tl.IsPaused = true

	// Way past every window: pause means time does not apply.
	res := Resolve(tl, testAnchor.Add(48*time.Hour))
	if res.Phase == nil || res.Phase.Name != models.PhaseWelcome {
		t.Fatalf("paused timeline should stay on welcome, got %+v", res.Phase)
	}
	if tl.EventStatus != models.EventLive {
		t.Errorf("paused event transitioned to %s", tl.EventStatus)
	}
}

// Pause during the performance phase, let ten minutes pass: the frozen
// phase keeps its exact window, nothing shifts.
func TestResolvePausedKeepsWindows(t *testing.T) {
	tl := liveTimeline()
	if _, ok := Advance(tl, testAnchor.Add(time.Minute)); !ok {
		t.Fatal("advance to performance failed")
	}
	pIdx := tl.PhaseIndex(models.PhasePerformance)
	start, end := tl.Phases[pIdx].StartTime, tl.Phases[pIdx].EndTime
	tl.IsPaused = true

	res := Resolve(tl, testAnchor.Add(11*time.Minute))
	if res.Phase == nil || res.Phase.Name != models.PhasePerformance {
		t.Fatalf("paused resolve = %+v, want performance", res.Phase)
	}
	if !res.Phase.StartTime.Equal(start) || !res.Phase.EndTime.Equal(end) {
		t.Errorf("paused window moved: %v..%v, want %v..%v",
			res.Phase.StartTime, res.Phase.EndTime, start, end)
	}

	tl.IsPaused = false
	Resolve(tl, testAnchor.Add(11*time.Minute))
	if !tl.Phases[pIdx].StartTime.Equal(start) {
		t.Error("resume shifted the phase window")
	}
}

func TestResolveCountdownExpiryCompletesEvent(t *testing.T) {
	tl := liveTimeline()
	cIdx := tl.PhaseIndex(models.PhaseCountdown)
	normalizeForTest(tl, cIdx)

	res := Resolve(tl, tl.Phases[cIdx].EndTime.Add(time.Second))
	if res.Phase != nil {
		t.Errorf("expected no phase after countdown expiry, got %s", res.Phase.Name)
	}
	if !res.Changed {
		t.Error("countdown expiry must mark the aggregate changed")
	}
	if tl.EventStatus != models.EventCompleted {
		t.Errorf("event status = %s, want completed", tl.EventStatus)
	}
	if tl.IsLive {
		t.Error("completed event still marked live")
	}
	if tl.CurrentPhase != models.CurrentPhaseEnded {
		t.Errorf("current phase = %q, want %q", tl.CurrentPhase, models.CurrentPhaseEnded)
	}
}

func TestResolveManualOverridePins(t *testing.T) {
	tl := liveTimeline()
	tl.ManualOverride = &models.ManualOverride{
		Active: true,
		Phase:  models.PhaseVoting,
		SetBy:  "op",
		SetAt:  testAnchor,
	}

	res := Resolve(tl, testAnchor.Add(time.Minute))
	if res.Phase == nil || res.Phase.Name != models.PhaseVoting {
		t.Fatalf("expected override to pin voting, got %+v", res.Phase)
	}

	// An override naming a completed phase is ignored.
	tl2 := liveTimeline()
	normalizeForTest(tl2, tl2.PhaseIndex(models.PhaseWinner))
	tl2.ManualOverride = &models.ManualOverride{Active: true, Phase: models.PhaseWelcome}
	res2 := Resolve(tl2, testAnchor.Add(time.Minute))
	if res2.Phase == nil || res2.Phase.Name != models.PhaseWinner {
		t.Errorf("stale override should be ignored, got %+v", res2.Phase)
	}
}

func TestAdvanceWalksSequence(t *testing.T) {
	tl := liveTimeline()
	now := testAnchor.Add(time.Minute)

	for i := 1; i < len(models.PhaseSequence); i++ {
		res, ok := Advance(tl, now)
		if !ok {
			t.Fatalf("advance %d refused: %s", i, res.Reason)
		}
		if res.Phase.Name != models.PhaseSequence[i] {
			t.Fatalf("advance %d landed on %s, want %s", i, res.Phase.Name, models.PhaseSequence[i])
		}
		if !res.Phase.StartTime.Equal(now) {
			t.Errorf("advanced phase starts at %v, want %v", res.Phase.StartTime, now)
		}
		now = now.Add(time.Minute)
	}

	// Advancing off the end completes the event.
	_, ok := Advance(tl, now)
	if !ok {
		t.Fatal("final advance refused")
	}
	if tl.EventStatus != models.EventCompleted {
		t.Errorf("event status = %s, want completed", tl.EventStatus)
	}

	// Terminal events refuse further advances.
	if _, ok := Advance(tl, now); ok {
		t.Error("advance succeeded on a completed event")
	}
}

func TestAdvanceRecomputesPerformanceDuration(t *testing.T) {
	tl := liveTimeline()
	now := testAnchor.Add(2 * time.Minute)

	res, ok := Advance(tl, now)
	if !ok || res.Phase.Name != models.PhasePerformance {
		t.Fatalf("expected performance, got %+v", res)
	}
	if res.Phase.DurationMinutes != 11 {
		t.Errorf("performance duration = %v, want 11", res.Phase.DurationMinutes)
	}
	if !res.Phase.EndTime.Equal(now.Add(11 * time.Minute)) {
		t.Errorf("performance ends at %v, want %v", res.Phase.EndTime, now.Add(11*time.Minute))
	}

	// Entering the performance phase activates the first slot at now.
	p, ok := CurrentPerformance(tl, now)
	if !ok {
		t.Fatal("no current performance after entering performance phase")
	}
	if p.Order != 1 || !p.StartTime.Equal(now) {
		t.Errorf("current performance = order %d start %v, want order 1 start %v", p.Order, p.StartTime, now)
	}
}

func TestAdvanceRefusedWhilePaused(t *testing.T) {
	tl := liveTimeline()
	tl.IsPaused = true
	if _, ok := Advance(tl, testAnchor.Add(time.Minute)); ok {
		t.Error("advance succeeded while paused")
	}
}

func TestCurrentPerformanceByWindow(t *testing.T) {
	tl := liveTimeline()
	// No explicit active slot; fall back to the window.
	second := tl.Performances[1]
	p, ok := CurrentPerformance(tl, second.StartTime.Add(time.Second))
	if !ok {
		t.Fatal("expected a window match")
	}
	if p.Order != 2 {
		t.Errorf("matched order %d, want 2", p.Order)
	}

	if _, ok := CurrentPerformance(tl, testAnchor.Add(-time.Hour)); ok {
		t.Error("matched a performance outside every window")
	}
}

func TestExtendPhaseShiftsRest(t *testing.T) {
	tl := liveTimeline()
	vIdx := tl.PhaseIndex(models.PhaseVoting)
	beforeEnd := tl.Phases[vIdx].EndTime
	beforeWinner := tl.Phases[vIdx+1].StartTime

	if err := ExtendPhase(tl, models.PhaseVoting, 5); err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if !tl.Phases[vIdx].EndTime.Equal(beforeEnd.Add(5 * time.Minute)) {
		t.Errorf("voting end not moved by 5m")
	}
	if !tl.Phases[vIdx+1].StartTime.Equal(beforeWinner.Add(5 * time.Minute)) {
		t.Errorf("winner start not shifted by 5m")
	}
	if tl.Config.TotalMinutes != 5+11+10+35+10+5 {
		t.Errorf("total minutes = %v after extension", tl.Config.TotalMinutes)
	}
}

func TestExtendPhaseReductionFloor(t *testing.T) {
	tl := liveTimeline()
	err := ExtendPhase(tl, models.PhaseWelcome, -4.5)
	if err == nil {
		t.Fatal("expected reduction below 1 minute to fail")
	}
	var appErr *errors.Error
	if !stderrors.As(err, &appErr) || appErr.Kind != errors.ErrValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	// Unmodified on rejection.
	if tl.Phases[0].DurationMinutes != 5 {
		t.Errorf("welcome duration mutated to %v on rejected reduction", tl.Phases[0].DurationMinutes)
	}

	if err := ExtendPhase(tl, models.PhaseWelcome, -4); err != nil {
		t.Errorf("reduction to exactly 1 minute refused: %v", err)
	}
}

// A performance-phase extension must land in the slot schedule so the phase
// duration and the slot total never disagree, and so the change survives the
// recomputation when the phase activates.
func TestExtendPerformanceFlowsIntoSlots(t *testing.T) {
	tl := liveTimeline()
	pIdx := tl.PhaseIndex(models.PhasePerformance)

	if err := ExtendPhase(tl, models.PhasePerformance, 5); err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if got := tl.Performances[2].VideoDurationSeconds; got != 540 {
		t.Errorf("last slot = %v seconds, want 540", got)
	}
	if got := TotalSeconds(tl.Performances); got != 960 {
		t.Errorf("slot total = %v seconds, want 960", got)
	}
	if got := tl.Phases[pIdx].DurationMinutes; got != TotalSeconds(tl.Performances)/60 {
		t.Errorf("phase duration = %v minutes, slots total %v", got, TotalSeconds(tl.Performances)/60)
	}

	// The extension is still there when the phase activates.
	now := testAnchor.Add(2 * time.Minute)
	res, ok := Advance(tl, now)
	if !ok || res.Phase.Name != models.PhasePerformance {
		t.Fatalf("expected performance, got %+v", res)
	}
	if res.Phase.DurationMinutes != 16 {
		t.Errorf("performance duration after entry = %v, want 16", res.Phase.DurationMinutes)
	}
	if !res.Phase.EndTime.Equal(now.Add(16 * time.Minute)) {
		t.Errorf("performance ends at %v, want %v", res.Phase.EndTime, now.Add(16*time.Minute))
	}
}

func TestExtendPerformanceGuards(t *testing.T) {
	tl := liveTimeline()
	// -5 minutes exceeds the last slot's 240 seconds.
	err := ExtendPhase(tl, models.PhasePerformance, -5)
	if err == nil {
		t.Fatal("expected reduction past the last slot to fail")
	}
	var appErr *errors.Error
	if !stderrors.As(err, &appErr) || appErr.Kind != errors.ErrValidation {
		t.Errorf("expected validation error, got %v", err)
	}
	if got := TotalSeconds(tl.Performances); got != 660 {
		t.Errorf("slot total mutated to %v on rejected reduction", got)
	}
	pIdx := tl.PhaseIndex(models.PhasePerformance)
	if tl.Phases[pIdx].DurationMinutes != 11 {
		t.Errorf("phase duration mutated to %v on rejected reduction", tl.Phases[pIdx].DurationMinutes)
	}

	// No slots at all: nothing to carry the extension.
	empty := liveTimeline()
	empty.Performances = nil
	Regenerate(empty, testAnchor, 30)
	if err := ExtendPhase(empty, models.PhasePerformance, 5); err == nil {
		t.Error("extending an empty lineup should fail")
	}
}

func TestExtendPhaseRejectsCountdownAndCompleted(t *testing.T) {
	tl := liveTimeline()
	if err := ExtendPhase(tl, models.PhaseCountdown, 5); err == nil {
		t.Error("extending countdown should fail")
	}
	tl.Phases[0].Status = models.StatusCompleted
	if err := ExtendPhase(tl, models.PhaseWelcome, 5); err == nil {
		t.Error("extending a completed phase should fail")
	}
}

// normalizeForTest puts the timeline on the phase at idx the same way the
// machine does internally.
func normalizeForTest(tl *models.Timeline, idx int) {
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
