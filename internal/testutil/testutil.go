// Package testutil provides shared helpers for package tests.
package testutil

import (
	"testing"

	"github.com/showcaselive/showtime/internal/repository"
)

// NewTestRepository returns an in-memory SQLite repository, closed when the
// test finishes.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("creating test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// SilentLogger discards everything. It keeps test output clean while still
// satisfying the logger interface.
type SilentLogger struct{}

func (SilentLogger) Debug(string, ...any) {}
func (SilentLogger) Info(string, ...any)  {}
func (SilentLogger) Warn(string, ...any)  {}
func (SilentLogger) Error(string, ...any) {}
