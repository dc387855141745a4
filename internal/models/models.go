package models

import "time"

// PhaseName identifies one segment of the live showcase sequence.
type PhaseName string

const (
	PhaseWelcome     PhaseName = "welcome"
	PhasePerformance PhaseName = "performance"
	PhaseCommercial  PhaseName = "commercial"
	PhaseVoting      PhaseName = "voting"
	PhaseWinner      PhaseName = "winner"
	PhaseThankYou    PhaseName = "thankyou"
	PhaseCountdown   PhaseName = "countdown"
)

// CurrentPhaseEnded is stored in Timeline.CurrentPhase once the event is over,
// whether by countdown expiry or an explicit stop.
const CurrentPhaseEnded = "ended"

// PhaseSequence is the fixed broadcast order. Phase slices are always stored
// in this order; the index into this sequence is the phase's identity.
var PhaseSequence = []PhaseName{
	PhaseWelcome,
	PhasePerformance,
	PhaseCommercial,
	PhaseVoting,
	PhaseWinner,
	PhaseThankYou,
	PhaseCountdown,
}

// SequenceIndex returns the position of the phase in the fixed sequence,
// or -1 if the name is not a known phase.
func (n PhaseName) SequenceIndex() int {
	for i, name := range PhaseSequence {
		if name == n {
			return i
		}
	}
	return -1
}

// Valid reports whether the name is one of the fixed phases.
func (n PhaseName) Valid() bool {
	return n.SequenceIndex() >= 0
}

// Status is the lifecycle state of a Phase or Performance.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// EventStatus is the coarse-grained event state shown to external consumers.
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventLive      EventStatus = "live"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s EventStatus) Terminal() bool {
	return s == EventCompleted || s == EventCancelled
}

// Config holds the per-event phase duration tunables. TotalMinutes is
// derived and recomputed whenever any phase duration changes.
type Config struct {
	WelcomeMinutes                 float64 `json:"welcome_minutes"`
	PerformanceSlotFallbackMinutes float64 `json:"performance_slot_fallback_minutes"`
	CommercialMinutes              float64 `json:"commercial_minutes"`
	VotingMinutes                  float64 `json:"voting_minutes"`
	WinnerMinutes                  float64 `json:"winner_minutes"`
	ThankYouMinutes                float64 `json:"thankyou_minutes"`
	TotalMinutes                   float64 `json:"total_minutes"`
}

// DefaultConfig returns the stock phase durations used when an event is
// created without explicit tunables.
func DefaultConfig() Config {
	return Config{
		WelcomeMinutes:                 5,
		PerformanceSlotFallbackMinutes: 5,
		CommercialMinutes:              10,
		VotingMinutes:                  30,
		WinnerMinutes:                  10,
		ThankYouMinutes:                5,
	}
}

// Phase is one timed segment of the event. Phases live inside their owning
// Timeline and are never addressed independently.
type Phase struct {
	Name            PhaseName `json:"name"`
	DurationMinutes float64   `json:"duration_minutes"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          Status    `json:"status"`
}

// Performance is a single contestant's timed slot within the performance
// phase. Order is 1-based and contiguous per timeline.
type Performance struct {
	ContestantID         int64     `json:"contestant_id"`
	ContestantName       string    `json:"contestant_name"`
	PerformanceTitle     string    `json:"performance_title"`
	MediaRef             string    `json:"media_ref,omitempty"`
	Order                int       `json:"order"`
	VideoDurationSeconds float64   `json:"video_duration_seconds"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	Status               Status    `json:"status"`
}

// Contestant is the inbound record supplied by selection logic (raffle,
// approval). VideoDurationSeconds is nil when the media metadata is missing
// and must be resolved or substituted with the fallback slot length.
type Contestant struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	PerformanceTitle     string   `json:"performance_title"`
	MediaRef             string   `json:"media_ref"`
	VideoDurationSeconds *float64 `json:"video_duration_seconds,omitempty"`
}

// AdClip is one advertisement clip scheduled into the commercial phase.
type AdClip struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// TimeExtension is an append-only audit entry for an operator time change.
// Reductions carry a negative delta. Entries are never rewritten.
type TimeExtension struct {
	Phase        PhaseName `json:"phase"`
	DeltaMinutes float64   `json:"delta_minutes"`
	Actor        string    `json:"actor"`
	At           time.Time `json:"at"`
}

// ManualOverride records an operator pinning resolution onto a named phase.
type ManualOverride struct {
	Active bool      `json:"active"`
	Phase  PhaseName `json:"phase"`
	SetBy  string    `json:"set_by"`
	SetAt  time.Time `json:"set_at"`
	Reason string    `json:"reason"`
}

// Timeline is the aggregate root for one showcase's live event. It is the
// unit of consistency: every mutation loads, modifies, and saves the whole
// aggregate under a per-showcase lock.
type Timeline struct {
	ID              int64           `json:"id"`
	ShowcaseID      string          `json:"showcase_id"`
	Config          Config          `json:"config"`
	Phases          []Phase         `json:"phases"`
	Performances    []Performance   `json:"performances"`
	AdClips         []AdClip        `json:"ad_clips"`
	CurrentPhase    string          `json:"current_phase"`
	EventStatus     EventStatus     `json:"event_status"`
	IsLive          bool            `json:"is_live"`
	IsPaused        bool            `json:"is_paused"`
	PausedAt        *time.Time      `json:"paused_at,omitempty"`
	PausedBy        string          `json:"paused_by,omitempty"`
	ActualStartTime *time.Time      `json:"actual_start_time,omitempty"`
	ScheduledStart  time.Time       `json:"scheduled_start"`
	NextEventAt     *time.Time      `json:"next_event_at,omitempty"`
	ViewerCount     int             `json:"viewer_count"`
	PeakViewerCount int             `json:"peak_viewer_count"`
	TimeExtensions  []TimeExtension `json:"time_extensions"`
	ManualOverride  *ManualOverride `json:"manual_override,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PhaseIndex returns the index of the named phase in t.Phases, or -1.
func (t *Timeline) PhaseIndex(name PhaseName) int {
	for i := range t.Phases {
		if t.Phases[i].Name == name {
			return i
		}
	}
	return -1
}

// PhaseByName returns a pointer into t.Phases for the named phase.
func (t *Timeline) PhaseByName(name PhaseName) *Phase {
	if i := t.PhaseIndex(name); i >= 0 {
		return &t.Phases[i]
	}
	return nil
}

// WSMessage is the envelope for all websocket frames.
type WSMessage struct {
	Type       string      `json:"type"`
	ShowcaseID string      `json:"showcase_id,omitempty"`
	Payload    interface{} `json:"payload"`
}
