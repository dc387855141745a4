package services

import "github.com/showcaselive/showtime/internal/models"

// TimelineRepository is the persistence surface the service needs. The
// SQLite implementation lives in internal/repository.
type TimelineRepository interface {
	CreateTimeline(tl *models.Timeline) error
	GetTimeline(showcaseID string) (*models.Timeline, error)
	SaveTimeline(tl *models.Timeline) error
	ListLiveTimelines() ([]*models.Timeline, error)
	ListTimelines() ([]*models.Timeline, error)
	DeleteTimeline(showcaseID string) error
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Notifier pushes state changes to connected clients. The websocket hub
// implements it; tests use a recording stub.
type Notifier interface {
	Broadcast(showcaseID string, msg models.WSMessage)
}

// NopNotifier discards all broadcasts.
type NopNotifier struct{}

func (NopNotifier) Broadcast(string, models.WSMessage) {}
