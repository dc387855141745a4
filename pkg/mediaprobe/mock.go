package mediaprobe

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a test double for Client. Durations are keyed by media
// reference; unknown references return an error, matching the real client's
// behavior for missing media.
type MockClient struct {
	mu        sync.Mutex
	durations map[string]float64
	err       error
	calls     []string
}

// MockOption configures a MockClient.
type MockOption func(*MockClient)

// WithDuration pre-loads a duration for a media reference.
func WithDuration(mediaRef string, seconds float64) MockOption {
	return func(m *MockClient) {
		m.durations[mediaRef] = seconds
	}
}

// WithError makes every call fail with err.
func WithError(err error) MockOption {
	return func(m *MockClient) {
		m.err = err
	}
}

// NewMock creates a MockClient.
func NewMock(opts ...MockOption) *MockClient {
	m := &MockClient{durations: make(map[string]float64)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ResolveDuration implements Client.
func (m *MockClient) ResolveDuration(_ context.Context, mediaRef string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, mediaRef)
	if m.err != nil {
		return 0, m.err
	}
	d, ok := m.durations[mediaRef]
	if !ok {
		return 0, fmt.Errorf("mediaprobe: media %s not found", mediaRef)
	}
	return d, nil
}

// Calls returns the media references requested so far.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
