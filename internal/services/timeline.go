// Package services contains the application logic for showcase timelines.
// Every mutation goes through a per-showcase lock so concurrent operator
// commands and ticker polls serialize on the same aggregate.
package services

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/showcaselive/showtime/internal/errors"
	"github.com/showcaselive/showtime/internal/logger"
	"github.com/showcaselive/showtime/internal/metrics"
	"github.com/showcaselive/showtime/internal/models"
	"github.com/showcaselive/showtime/internal/repository"
	"github.com/showcaselive/showtime/internal/timeline"
	"github.com/showcaselive/showtime/pkg/mediaprobe"
)

// DefaultMaxAdClipMinutes caps a single ad clip's contribution to the
// commercial phase. Overridable via SHOWTIME_MAX_AD_CLIP_MINUTES.
const DefaultMaxAdClipMinutes = 30.0

// TimelineService drives showcase event timelines.
type TimelineService struct {
	repo     TimelineRepository
	probe    mediaprobe.Client
	log      logger.Logger
	metrics  *metrics.Metrics
	notifier Notifier

	maxAdClipMinutes float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now is injectable for deterministic tests.
	now func() time.Time
}

// TimelineServiceOption configures a TimelineService.
type TimelineServiceOption func(*TimelineService)

// WithNotifier sets the broadcast sink.
func WithNotifier(n Notifier) TimelineServiceOption {
	return func(s *TimelineService) { s.notifier = n }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) TimelineServiceOption {
	return func(s *TimelineService) { s.metrics = m }
}

// WithMaxAdClipMinutes overrides the per-clip commercial cap.
func WithMaxAdClipMinutes(minutes float64) TimelineServiceOption {
	return func(s *TimelineService) { s.maxAdClipMinutes = minutes }
}

// WithClock overrides the wall clock. Test use only.
func WithClock(now func() time.Time) TimelineServiceOption {
	return func(s *TimelineService) { s.now = now }
}

// NewTimelineService creates the service.
func NewTimelineService(repo TimelineRepository, probe mediaprobe.Client, log logger.Logger, opts ...TimelineServiceOption) *TimelineService {
	s := &TimelineService{
		repo:             repo,
		probe:            probe,
		log:              log,
		notifier:         NopNotifier{},
		maxAdClipMinutes: DefaultMaxAdClipMinutes,
		locks:            make(map[string]*sync.Mutex),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockFor returns the mutex serializing all work on one showcase.
func (s *TimelineService) lockFor(showcaseID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[showcaseID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[showcaseID] = l
	return l
}

// withTimeline runs fn on the loaded aggregate under the showcase lock. When
// fn returns save=true the aggregate is written back and the new status is
// broadcast.
func (s *TimelineService) withTimeline(showcaseID string, fn func(tl *models.Timeline) (save bool, err error)) (*models.Timeline, error) {
	lock := s.lockFor(showcaseID)
	lock.Lock()
	defer lock.Unlock()

	tl, err := s.repo.GetTimeline(showcaseID)
	if err != nil {
		return nil, mapRepoErr(err, showcaseID)
	}

	save, err := fn(tl)
	if err != nil {
		return nil, err
	}
	if save {
		if err := s.repo.SaveTimeline(tl); err != nil {
			return nil, mapRepoErr(err, showcaseID)
		}
		s.broadcastStatus(tl)
	}
	return tl, nil
}

func mapRepoErr(err error, showcaseID string) error {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFoundf("timeline for showcase %s not found", showcaseID)
	case stderrors.Is(err, repository.ErrDuplicateShowcase):
		return errors.Conflictf("timeline for showcase %s already exists", showcaseID)
	default:
		return errors.Internal(err)
	}
}

// CreateTimelineInput is the payload for CreateTimeline.
type CreateTimelineInput struct {
	ShowcaseID     string              `json:"showcase_id"`
	ScheduledStart time.Time           `json:"scheduled_start"`
	NextEventAt    *time.Time          `json:"next_event_at,omitempty"`
	Config         *models.Config      `json:"config,omitempty"`
	Contestants    []models.Contestant `json:"contestants"`
	AdClips        []models.AdClip     `json:"ad_clips,omitempty"`
}

// CreateTimeline builds and persists the full timeline for a showcase:
// missing video durations are resolved from the media service (falling back
// to the configured slot length when that fails), performances are laid out
// back-to-back, and all phases are generated from the scheduled start.
func (s *TimelineService) CreateTimeline(ctx context.Context, in CreateTimelineInput) (*models.Timeline, error) {
	if in.ShowcaseID == "" {
		return nil, errors.InvalidInput("showcase_id is required")
	}
	if in.ScheduledStart.IsZero() {
		return nil, errors.InvalidInput("scheduled_start is required")
	}

	cfg := models.DefaultConfig()
	if in.Config != nil {
		cfg = *in.Config
		if err := validateConfig(&cfg); err != nil {
			return nil, err
		}
	}

	contestants := s.resolveDurations(ctx, in.Contestants)

	tl := &models.Timeline{
		ShowcaseID:     in.ShowcaseID,
		Config:         cfg,
		AdClips:        in.AdClips,
		EventStatus:    models.EventScheduled,
		ScheduledStart: in.ScheduledStart.UTC(),
		NextEventAt:    in.NextEventAt,
	}
	tl.Performances = timeline.Schedule(contestants, cfg.PerformanceSlotFallbackMinutes*60, tl.ScheduledStart)
	timeline.Regenerate(tl, tl.ScheduledStart, s.maxAdClipMinutes)

	if err := s.repo.CreateTimeline(tl); err != nil {
		return nil, mapRepoErr(err, in.ShowcaseID)
	}

	s.log.Info("timeline created", "showcase_id", tl.ShowcaseID,
		"performances", len(tl.Performances), "total_minutes", tl.Config.TotalMinutes)
	return tl, nil
}

// resolveDurations fills in missing video durations via the media service.
// Failures are logged and left nil so the scheduler applies the fallback.
func (s *TimelineService) resolveDurations(ctx context.Context, contestants []models.Contestant) []models.Contestant {
	out := make([]models.Contestant, len(contestants))
	copy(out, contestants)
	for i := range out {
		if out[i].VideoDurationSeconds != nil || out[i].MediaRef == "" {
			if out[i].VideoDurationSeconds == nil {
				s.countFallback()
			}
			continue
		}
		d, err := s.probe.ResolveDuration(ctx, out[i].MediaRef)
		if err != nil {
			s.log.Warn("duration probe failed, using fallback slot",
				"contestant_id", out[i].ID, "media_ref", out[i].MediaRef, "error", err)
			s.countFallback()
			continue
		}
		out[i].VideoDurationSeconds = &d
	}
	return out
}

func (s *TimelineService) countFallback() {
	if s.metrics != nil {
		s.metrics.DurationFallbacks.Inc()
	}
}

func validateConfig(cfg *models.Config) error {
	fields := map[string]float64{
		"welcome_minutes":                   cfg.WelcomeMinutes,
		"performance_slot_fallback_minutes": cfg.PerformanceSlotFallbackMinutes,
		"commercial_minutes":                cfg.CommercialMinutes,
		"voting_minutes":                    cfg.VotingMinutes,
		"winner_minutes":                    cfg.WinnerMinutes,
		"thankyou_minutes":                  cfg.ThankYouMinutes,
	}
	for name, v := range fields {
		if v <= 0 {
			return errors.Validationf("%s must be positive", name)
		}
	}
	return nil
}

// StatusView is the public, read-model answer to "what is happening now".
type StatusView struct {
	ShowcaseID         string              `json:"showcase_id"`
	EventStatus        models.EventStatus  `json:"event_status"`
	CurrentPhase       string              `json:"current_phase"`
	IsLive             bool                `json:"is_live"`
	IsPaused           bool                `json:"is_paused"`
	Phase              *models.Phase       `json:"phase,omitempty"`
	Phases             []models.Phase      `json:"phases"`
	CurrentPerformance *models.Performance `json:"current_performance,omitempty"`
	ViewerCount        int                 `json:"viewer_count"`
	ServerTime         time.Time           `json:"server_time"`
}

// Status resolves and returns the current state of a showcase. Resolution may
// repair state or complete the event; any such change is persisted before
// the view is returned.
func (s *TimelineService) Status(showcaseID string) (*StatusView, error) {
	var view *StatusView
	_, err := s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		now := s.now().UTC()
		res := timeline.Resolve(tl, now)
		s.observeResolution(tl, res)
		view = s.buildView(tl, res, now)
		return res.Changed, nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *TimelineService) buildView(tl *models.Timeline, res timeline.Resolution, now time.Time) *StatusView {
	v := &StatusView{
		ShowcaseID:   tl.ShowcaseID,
		EventStatus:  tl.EventStatus,
		CurrentPhase: tl.CurrentPhase,
		IsLive:       tl.IsLive,
		IsPaused:     tl.IsPaused,
		Phase:        res.Phase,
		Phases:       tl.Phases,
		ViewerCount:  tl.ViewerCount,
		ServerTime:   now,
	}
	if res.Phase != nil && res.Phase.Name == models.PhasePerformance {
		if p, ok := timeline.CurrentPerformance(tl, now); ok {
			v.CurrentPerformance = p
		} else {
			s.log.Warn("performance phase active but no current performance",
				"showcase_id", tl.ShowcaseID)
		}
	}
	return v
}

func (s *TimelineService) observeResolution(tl *models.Timeline, res timeline.Resolution) {
	if !res.Repaired {
		return
	}
	s.log.Warn("timeline state repaired", "showcase_id", tl.ShowcaseID, "reason", res.Reason)
	if s.metrics != nil {
		s.metrics.StateRepairs.Inc()
	}
}

// Advance moves the showcase to the next phase. fromPhase, when non-empty,
// guards against double submission: the command is a no-op unless the
// resolved current phase still matches it, so two operators racing the same
// button produce exactly one transition.
func (s *TimelineService) Advance(showcaseID, fromPhase, actor string) (*StatusView, error) {
	var view *StatusView
	_, err := s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		now := s.now().UTC()
		res := timeline.Resolve(tl, now)
		s.observeResolution(tl, res)

		if fromPhase != "" && tl.CurrentPhase != fromPhase {
			s.countCommand("advance", "noop")
			s.log.Info("advance ignored, phase already moved", "showcase_id", showcaseID,
				"requested_from", fromPhase, "current", tl.CurrentPhase, "actor", actor)
			view = s.buildView(tl, res, now)
			return res.Changed, nil
		}

		adv, ok := timeline.Advance(tl, now)
		if !ok {
			s.countCommand("advance", "rejected")
			return false, errors.Preconditionf("cannot advance: %s", adv.Reason)
		}

		s.countCommand("advance", "ok")
		if s.metrics != nil {
			s.metrics.PhaseTransitions.WithLabelValues(tl.CurrentPhase).Inc()
		}
		s.log.Info("phase advanced", "showcase_id", showcaseID,
			"phase", tl.CurrentPhase, "actor", actor)
		view = s.buildView(tl, adv, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Pause freezes the timeline. Phase windows are left untouched; resolution
// simply stops consulting the clock until Resume.
func (s *TimelineService) Pause(showcaseID, actor string) (*StatusView, error) {
	return s.operatorOp(showcaseID, "pause", func(tl *models.Timeline, now time.Time) error {
		if !tl.IsLive {
			return errors.Precondition("event is not live")
		}
		if tl.IsPaused {
			return errors.Precondition("event is already paused")
		}
		tl.IsPaused = true
		t := now
		tl.PausedAt = &t
		tl.PausedBy = actor
		s.log.Info("timeline paused", "showcase_id", showcaseID, "actor", actor)
		return nil
	})
}

// Resume unfreezes a paused timeline.
func (s *TimelineService) Resume(showcaseID, actor string) (*StatusView, error) {
	return s.operatorOp(showcaseID, "resume", func(tl *models.Timeline, now time.Time) error {
		if !tl.IsPaused {
			return errors.Precondition("event is not paused")
		}
		tl.IsPaused = false
		tl.PausedAt = nil
		tl.PausedBy = ""
		s.log.Info("timeline resumed", "showcase_id", showcaseID, "actor", actor)
		return nil
	})
}

// ExtendTime adds (or, with a negative delta, removes) minutes from a phase
// and shifts everything after it. Each change is recorded in the append-only
// audit trail.
func (s *TimelineService) ExtendTime(showcaseID string, phase models.PhaseName, deltaMinutes float64, actor string) (*StatusView, error) {
	if !phase.Valid() {
		return nil, errors.InvalidInputf("unknown phase %q", phase)
	}
	if deltaMinutes == 0 {
		return nil, errors.InvalidInput("delta_minutes must be non-zero")
	}
	return s.operatorOp(showcaseID, "extend_time", func(tl *models.Timeline, now time.Time) error {
		if err := timeline.ExtendPhase(tl, phase, deltaMinutes); err != nil {
			return err
		}
		tl.TimeExtensions = append(tl.TimeExtensions, models.TimeExtension{
			Phase:        phase,
			DeltaMinutes: deltaMinutes,
			Actor:        actor,
			At:           now,
		})
		s.log.Info("phase time adjusted", "showcase_id", showcaseID,
			"phase", phase, "delta_minutes", deltaMinutes, "actor", actor)
		return nil
	})
}

// SetManualOverride pins resolution to the named phase until cleared. The
// override cannot point at a completed phase; the event stays forward-only.
func (s *TimelineService) SetManualOverride(showcaseID string, phase models.PhaseName, actor, reason string) (*StatusView, error) {
	if !phase.Valid() {
		return nil, errors.InvalidInputf("unknown phase %q", phase)
	}
	return s.operatorOp(showcaseID, "set_override", func(tl *models.Timeline, now time.Time) error {
		if !tl.IsLive {
			return errors.Precondition("event is not live")
		}
		idx := tl.PhaseIndex(phase)
		if idx < 0 {
			return errors.NotFoundf("phase %s not found", phase)
		}
		if tl.Phases[idx].Status == models.StatusCompleted {
			return errors.Preconditionf("phase %s is already completed", phase)
		}
		tl.ManualOverride = &models.ManualOverride{
			Active: true,
			Phase:  phase,
			SetBy:  actor,
			SetAt:  now,
			Reason: reason,
		}
		s.log.Info("manual override set", "showcase_id", showcaseID,
			"phase", phase, "actor", actor, "reason", reason)
		return nil
	})
}

// ClearManualOverride removes an active override; resolution returns to the
// stored statuses and time windows.
func (s *TimelineService) ClearManualOverride(showcaseID, actor string) (*StatusView, error) {
	return s.operatorOp(showcaseID, "clear_override", func(tl *models.Timeline, now time.Time) error {
		if tl.ManualOverride == nil || !tl.ManualOverride.Active {
			return errors.Precondition("no manual override is active")
		}
		tl.ManualOverride = nil
		s.log.Info("manual override cleared", "showcase_id", showcaseID, "actor", actor)
		return nil
	})
}

// ForceStart takes the event live immediately: all windows are regenerated
// from now and the welcome phase activates.
func (s *TimelineService) ForceStart(showcaseID, actor string) (*StatusView, error) {
	return s.operatorOp(showcaseID, "force_start", func(tl *models.Timeline, now time.Time) error {
		if tl.EventStatus.Terminal() {
			return errors.Precondition("event is over")
		}
		if tl.IsLive {
			return errors.Precondition("event is already live")
		}
		timeline.Regenerate(tl, now, s.maxAdClipMinutes)
		tl.IsLive = true
		tl.EventStatus = models.EventLive
		t := now
		tl.ActualStartTime = &t
		tl.Phases[0].Status = models.StatusActive
		tl.CurrentPhase = string(tl.Phases[0].Name)
		if s.metrics != nil {
			s.metrics.PhaseTransitions.WithLabelValues(tl.CurrentPhase).Inc()
		}
		s.log.Info("event force started", "showcase_id", showcaseID, "actor", actor)
		return nil
	})
}

// Stop ends the event immediately from any non-terminal state. Distinct
// from natural countdown expiry, which the machine performs on its own.
func (s *TimelineService) Stop(showcaseID, actor string) (*StatusView, error) {
	return s.operatorOp(showcaseID, "stop", func(tl *models.Timeline, now time.Time) error {
		if tl.EventStatus.Terminal() {
			return errors.Precondition("event is over")
		}
		for i := range tl.Phases {
			if tl.Phases[i].Status == models.StatusActive {
				tl.Phases[i].Status = models.StatusCompleted
			}
		}
		tl.IsLive = false
		tl.IsPaused = false
		tl.PausedAt = nil
		tl.EventStatus = models.EventCompleted
		tl.CurrentPhase = models.CurrentPhaseEnded
		s.log.Info("event stopped", "showcase_id", showcaseID, "actor", actor)
		return nil
	})
}

// Cancel abandons an event that has not completed. Cancelled events never go
// live again.
func (s *TimelineService) Cancel(showcaseID, actor string) (*StatusView, error) {
	return s.operatorOp(showcaseID, "cancel", func(tl *models.Timeline, now time.Time) error {
		if tl.EventStatus.Terminal() {
			return errors.Precondition("event is over")
		}
		tl.IsLive = false
		tl.IsPaused = false
		tl.PausedAt = nil
		tl.EventStatus = models.EventCancelled
		tl.CurrentPhase = models.CurrentPhaseEnded
		s.log.Info("event cancelled", "showcase_id", showcaseID, "actor", actor)
		return nil
	})
}

// operatorOp wraps the shared shape of operator commands: mutate under lock,
// count the outcome, persist, and return the fresh status view.
func (s *TimelineService) operatorOp(showcaseID, command string, mutate func(tl *models.Timeline, now time.Time) error) (*StatusView, error) {
	var view *StatusView
	_, err := s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		now := s.now().UTC()
		if err := mutate(tl, now); err != nil {
			s.countCommand(command, "rejected")
			return false, err
		}
		s.countCommand(command, "ok")
		res := timeline.Resolve(tl, now)
		s.observeResolution(tl, res)
		view = s.buildView(tl, res, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *TimelineService) countCommand(command, outcome string) {
	if s.metrics != nil {
		s.metrics.OperatorCommands.WithLabelValues(command, outcome).Inc()
	}
}

// ReschedulePerformances replaces the performance lineup of a not-yet-live
// event from a fresh contestant list, re-resolving durations and
// regenerating all phase windows.
func (s *TimelineService) ReschedulePerformances(ctx context.Context, showcaseID string, contestants []models.Contestant) (*models.Timeline, error) {
	return s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		if tl.IsLive || tl.EventStatus.Terminal() {
			return false, errors.Precondition("lineup can only change before the event goes live")
		}
		resolved := s.resolveDurations(ctx, contestants)
		tl.Performances = timeline.Schedule(resolved, tl.Config.PerformanceSlotFallbackMinutes*60, tl.ScheduledStart)
		timeline.Regenerate(tl, tl.ScheduledStart, s.maxAdClipMinutes)
		s.log.Info("performances rescheduled", "showcase_id", showcaseID,
			"performances", len(tl.Performances))
		return true, nil
	})
}

// RefreshDurations re-probes the media duration of every scheduled slot and
// regenerates the schedule. Late fix-up path for media re-uploads; valid
// only before the event goes live. Slots whose probe fails keep their
// current duration.
func (s *TimelineService) RefreshDurations(ctx context.Context, showcaseID string) (*models.Timeline, error) {
	return s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		if tl.IsLive || tl.EventStatus.Terminal() {
			return false, errors.Precondition("durations can only refresh before the event goes live")
		}
		var refreshed int
		for i := range tl.Performances {
			p := &tl.Performances[i]
			if p.MediaRef == "" {
				continue
			}
			d, err := s.probe.ResolveDuration(ctx, p.MediaRef)
			if err != nil {
				s.log.Warn("duration refresh failed, keeping current slot",
					"showcase_id", showcaseID, "media_ref", p.MediaRef, "error", err)
				continue
			}
			if d != p.VideoDurationSeconds {
				p.VideoDurationSeconds = d
				refreshed++
			}
		}
		timeline.Regenerate(tl, tl.ScheduledStart, s.maxAdClipMinutes)
		s.log.Info("durations refreshed", "showcase_id", showcaseID, "updated", refreshed)
		return true, nil
	})
}

// UpdateConfig replaces the phase duration tunables before the event goes
// live and regenerates the schedule.
func (s *TimelineService) UpdateConfig(showcaseID string, cfg models.Config) (*models.Timeline, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		if tl.IsLive || tl.EventStatus.Terminal() {
			return false, errors.Precondition("config can only change before the event goes live")
		}
		tl.Config = cfg
		timeline.Regenerate(tl, tl.ScheduledStart, s.maxAdClipMinutes)
		s.log.Info("config updated", "showcase_id", showcaseID,
			"total_minutes", tl.Config.TotalMinutes)
		return true, nil
	})
}

// TrackViewers adjusts the live viewer count by delta and keeps the peak.
func (s *TimelineService) TrackViewers(showcaseID string, delta int) error {
	_, err := s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		tl.ViewerCount += delta
		if tl.ViewerCount < 0 {
			tl.ViewerCount = 0
		}
		if tl.ViewerCount > tl.PeakViewerCount {
			tl.PeakViewerCount = tl.ViewerCount
		}
		return true, nil
	})
	return err
}

// AdminView returns the full aggregate for the operator console.
func (s *TimelineService) AdminView(showcaseID string) (*models.Timeline, error) {
	return s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		res := timeline.Resolve(tl, s.now().UTC())
		s.observeResolution(tl, res)
		return res.Changed, nil
	})
}

// ListTimelines returns all timelines for the operator console.
func (s *TimelineService) ListTimelines() ([]*models.Timeline, error) {
	tls, err := s.repo.ListTimelines()
	if err != nil {
		return nil, errors.Internal(err)
	}
	return tls, nil
}

// DeleteTimeline removes a timeline that never went live.
func (s *TimelineService) DeleteTimeline(showcaseID string) error {
	_, err := s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		if tl.IsLive {
			return false, errors.Precondition("cannot delete a live event")
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTimeline(showcaseID); err != nil {
		return mapRepoErr(err, showcaseID)
	}
	return nil
}

// LiveTimelineCount reports how many timelines are live right now. Feeds the
// Prometheus gauge.
func (s *TimelineService) LiveTimelineCount() float64 {
	tls, err := s.repo.ListLiveTimelines()
	if err != nil {
		s.log.Error("counting live timelines", "error", err)
		return 0
	}
	return float64(len(tls))
}

// Poll runs one resolution pass over every live timeline, advancing phases
// whose windows have expired. The websocket ticker calls this on an
// interval; correctness does not depend on the interval because expiry is
// detected by comparing the clock to the stored windows.
func (s *TimelineService) Poll(ctx context.Context) {
	live, err := s.repo.ListLiveTimelines()
	if err != nil {
		s.log.Error("listing live timelines", "error", err)
		return
	}
	for _, t := range live {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.pollOne(t.ShowcaseID); err != nil {
			s.log.Error("polling timeline", "showcase_id", t.ShowcaseID, "error", err)
		}
	}
}

// pollOne resolves one timeline and advances past any expired phase. The
// aggregate is re-loaded under its lock so a concurrent operator command is
// never clobbered.
func (s *TimelineService) pollOne(showcaseID string) error {
	_, err := s.withTimeline(showcaseID, func(tl *models.Timeline) (bool, error) {
		now := s.now().UTC()
		res := timeline.Resolve(tl, now)
		s.observeResolution(tl, res)
		changed := res.Changed

		// A manual override holds the phase regardless of its window.
		overridden := tl.ManualOverride != nil && tl.ManualOverride.Active

		// Chain through any windows already behind the clock. Countdown
		// expiry is handled inside Resolve, never here.
		for res.Phase != nil && !overridden && !tl.IsPaused &&
			res.Phase.Name != models.PhaseCountdown && now.After(res.Phase.EndTime) {
			adv, ok := timeline.Advance(tl, res.Phase.EndTime)
			if !ok {
				break
			}
			changed = true
			if s.metrics != nil {
				s.metrics.PhaseTransitions.WithLabelValues(tl.CurrentPhase).Inc()
			}
			s.log.Info("phase expired, advanced", "showcase_id", showcaseID,
				"phase", tl.CurrentPhase)
			res = adv
		}

		// One tick frame per poll keeps connected clients' countdown
		// displays honest without waiting for a transition.
		if tl.IsLive && res.Phase != nil {
			s.notifier.Broadcast(tl.ShowcaseID, models.WSMessage{
				Type:       "phase_tick",
				ShowcaseID: tl.ShowcaseID,
				Payload:    s.tickPayload(tl, res.Phase, now),
			})
		}
		return changed, nil
	})
	return err
}

// tickPayload is the lightweight per-poll countdown frame.
func (s *TimelineService) tickPayload(tl *models.Timeline, ph *models.Phase, now time.Time) map[string]interface{} {
	payload := map[string]interface{}{
		"phase":     ph.Name,
		"ends_at":   ph.EndTime,
		"is_paused": tl.IsPaused,
	}
	// The countdown phase is open-ended; remaining seconds mean nothing.
	if ph.Name != models.PhaseCountdown && !tl.IsPaused {
		remaining := ph.EndTime.Sub(now).Seconds()
		if remaining < 0 {
			remaining = 0
		}
		payload["seconds_remaining"] = int(remaining)
	}
	return payload
}

func (s *TimelineService) broadcastStatus(tl *models.Timeline) {
	now := s.now().UTC()
	res := timeline.Resolve(tl, now)
	view := s.buildView(tl, res, now)
	s.notifier.Broadcast(tl.ShowcaseID, models.WSMessage{
		Type:       "timeline_update",
		ShowcaseID: tl.ShowcaseID,
		Payload:    view,
	})
}
