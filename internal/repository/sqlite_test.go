package repository

import (
	"testing"
	"time"

	"github.com/showcaselive/showtime/internal/models"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTimeline() *models.Timeline {
	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	next := start.Add(7 * 24 * time.Hour)
	return &models.Timeline{
		ShowcaseID: "show-1",
		Config:     models.DefaultConfig(),
		Phases: []models.Phase{
			{Name: models.PhaseWelcome, DurationMinutes: 5, StartTime: start, EndTime: start.Add(5 * time.Minute), Status: models.StatusActive},
			{Name: models.PhasePerformance, DurationMinutes: 11, StartTime: start.Add(5 * time.Minute), EndTime: start.Add(16 * time.Minute), Status: models.StatusPending},
		},
		Performances: []models.Performance{
			{ContestantID: 1, ContestantName: "Ada", Order: 1, VideoDurationSeconds: 180,
				StartTime: start.Add(5 * time.Minute), EndTime: start.Add(8 * time.Minute), Status: models.StatusPending},
		},
		AdClips:        []models.AdClip{{ID: 1, Title: "sponsor", DurationSeconds: 90}},
		CurrentPhase:   string(models.PhaseWelcome),
		EventStatus:    models.EventLive,
		IsLive:         true,
		ScheduledStart: start,
		NextEventAt:    &next,
		TimeExtensions: []models.TimeExtension{
			{Phase: models.PhaseVoting, DeltaMinutes: 5, Actor: "alice", At: start},
		},
		ManualOverride: &models.ManualOverride{Active: true, Phase: models.PhaseWelcome, SetBy: "alice", SetAt: start},
	}
}

func TestCreateAndGetTimeline(t *testing.T) {
	repo := newRepo(t)
	tl := sampleTimeline()

	if err := repo.CreateTimeline(tl); err != nil {
		t.Fatalf("create: %v", err)
	}
	if tl.ID == 0 {
		t.Fatal("insert did not assign an id")
	}

	got, err := repo.GetTimeline("show-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != tl.ID || got.ShowcaseID != "show-1" {
		t.Errorf("got id=%d showcase=%s", got.ID, got.ShowcaseID)
	}
	if len(got.Phases) != 2 || got.Phases[0].Name != models.PhaseWelcome {
		t.Errorf("phases did not round-trip: %+v", got.Phases)
	}
	if !got.Phases[0].StartTime.Equal(tl.Phases[0].StartTime) {
		t.Errorf("phase start = %v, want %v", got.Phases[0].StartTime, tl.Phases[0].StartTime)
	}
	if len(got.Performances) != 1 || got.Performances[0].ContestantName != "Ada" {
		t.Errorf("performances did not round-trip: %+v", got.Performances)
	}
	if len(got.AdClips) != 1 || got.AdClips[0].DurationSeconds != 90 {
		t.Errorf("ad clips did not round-trip: %+v", got.AdClips)
	}
	if got.NextEventAt == nil || !got.NextEventAt.Equal(*tl.NextEventAt) {
		t.Errorf("next event = %v, want %v", got.NextEventAt, tl.NextEventAt)
	}
	if got.ManualOverride == nil || got.ManualOverride.Phase != models.PhaseWelcome {
		t.Errorf("override did not round-trip: %+v", got.ManualOverride)
	}
	if len(got.TimeExtensions) != 1 || got.TimeExtensions[0].Actor != "alice" {
		t.Errorf("extensions did not round-trip: %+v", got.TimeExtensions)
	}
}

func TestCreateDuplicateShowcase(t *testing.T) {
	repo := newRepo(t)
	if err := repo.CreateTimeline(sampleTimeline()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreateTimeline(sampleTimeline()); err != ErrDuplicateShowcase {
		t.Errorf("duplicate create returned %v, want ErrDuplicateShowcase", err)
	}
}

func TestGetTimelineNotFound(t *testing.T) {
	repo := newRepo(t)
	if _, err := repo.GetTimeline("nope"); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSaveTimeline(t *testing.T) {
	repo := newRepo(t)
	tl := sampleTimeline()
	if err := repo.CreateTimeline(tl); err != nil {
		t.Fatalf("create: %v", err)
	}

	tl.CurrentPhase = string(models.PhasePerformance)
	tl.Phases[0].Status = models.StatusCompleted
	tl.Phases[1].Status = models.StatusActive
	tl.ManualOverride = nil
	tl.ViewerCount = 42
	if err := repo.SaveTimeline(tl); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.GetTimeline("show-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentPhase != string(models.PhasePerformance) {
		t.Errorf("current phase = %s", got.CurrentPhase)
	}
	if got.Phases[1].Status != models.StatusActive {
		t.Errorf("phase status not saved: %+v", got.Phases)
	}
	if got.ManualOverride != nil {
		t.Errorf("cleared override persisted as %+v", got.ManualOverride)
	}
	if got.ViewerCount != 42 {
		t.Errorf("viewer count = %d", got.ViewerCount)
	}

	missing := sampleTimeline()
	missing.ShowcaseID = "nope"
	if err := repo.SaveTimeline(missing); err != ErrNotFound {
		t.Errorf("saving unknown showcase returned %v, want ErrNotFound", err)
	}
}

func TestListLiveTimelines(t *testing.T) {
	repo := newRepo(t)

	live := sampleTimeline()
	if err := repo.CreateTimeline(live); err != nil {
		t.Fatalf("create: %v", err)
	}

	done := sampleTimeline()
	done.ShowcaseID = "show-2"
	done.IsLive = false
	done.EventStatus = models.EventCompleted
	if err := repo.CreateTimeline(done); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.ListLiveTimelines()
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	if len(got) != 1 || got[0].ShowcaseID != "show-1" {
		t.Errorf("live list = %+v", got)
	}

	all, err := repo.ListTimelines()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("full list has %d entries, want 2", len(all))
	}
}

func TestDeleteTimeline(t *testing.T) {
	repo := newRepo(t)
	if err := repo.CreateTimeline(sampleTimeline()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.DeleteTimeline("show-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTimeline("show-1"); err != ErrNotFound {
		t.Errorf("deleted timeline still readable: %v", err)
	}
	if err := repo.DeleteTimeline("show-1"); err != ErrNotFound {
		t.Errorf("double delete returned %v, want ErrNotFound", err)
	}
}

func TestSettings(t *testing.T) {
	repo := newRepo(t)

	v, err := repo.GetSetting("base_url")
	if err != nil {
		t.Fatalf("get unset: %v", err)
	}
	if v != "" {
		t.Errorf("unset setting = %q, want empty", v)
	}

	if err := repo.SetSetting("base_url", "https://example.com"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.SetSetting("base_url", "https://example.org"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	v, err = repo.GetSetting("base_url")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "https://example.org" {
		t.Errorf("setting = %q, want upserted value", v)
	}
}
