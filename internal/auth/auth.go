// Package auth protects the operator API with a shared password and
// server-side session cookies. Sessions live in memory; a restart logs
// everyone out, which is acceptable for a broadcast control surface.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/showcaselive/showtime/internal/logger"
)

// CookieName is the operator session cookie.
const CookieName = "showtime_session"

// SessionTTL is how long an operator session stays valid.
const SessionTTL = 12 * time.Hour

// passwordSettingKey is where the operator password persists.
const passwordSettingKey = "operator_password"

// SettingsStore is the slice of the repository auth needs.
type SettingsStore interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

var passwordWords = []string{
	"spotlight", "encore", "curtain", "overture", "crescendo",
	"ovation", "marquee", "backstage", "ribbon", "finale",
}

// Service issues and validates operator sessions.
type Service struct {
	log logger.Logger

	mu       sync.Mutex
	password string
	sessions map[string]time.Time
}

// NewService loads the operator password from settings, generating and
// persisting one on first run.
func NewService(store SettingsStore, log logger.Logger) (*Service, error) {
	password, err := store.GetSetting(passwordSettingKey)
	if err != nil {
		return nil, fmt.Errorf("loading operator password: %w", err)
	}
	if password == "" {
		password, err = generatePassword()
		if err != nil {
			return nil, fmt.Errorf("generating operator password: %w", err)
		}
		if err := store.SetSetting(passwordSettingKey, password); err != nil {
			return nil, fmt.Errorf("saving operator password: %w", err)
		}
		log.Info("generated operator password", "password", password)
	}
	return &Service{
		log:      log,
		password: password,
		sessions: make(map[string]time.Time),
	}, nil
}

// generatePassword builds a memorable word-number-word password.
func generatePassword() (string, error) {
	w1, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordWords))))
	if err != nil {
		return "", err
	}
	w2, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordWords))))
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%02d-%s", passwordWords[w1.Int64()], n.Int64(), passwordWords[w2.Int64()]), nil
}

// Login validates the password and returns a new session token.
func (s *Service) Login(password string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return "", false
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		s.log.Error("generating session token", "error", err)
		return "", false
	}
	token := hex.EncodeToString(buf)
	s.sessions[token] = time.Now().Add(SessionTTL)
	return token, true
}

// ValidateSession reports whether the token belongs to a live session.
func (s *Service) ValidateSession(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.sessions, token)
		return false
	}
	return true
}

// Logout invalidates a session token.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Middleware rejects requests without a valid operator session cookie.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || !s.ValidateSession(cookie.Value) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
