// Package session holds the per-login state of dashboard users. A session is
// created when a login succeeds and destroyed on logout or expiry; it owns
// the dataset the user uploaded.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"pride/internal/models"
	"pride/internal/schema"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrInvalidToken    = errors.New("invalid token")
	ErrNoDataset       = errors.New("no dataset loaded")
)

// Dataset is an uploaded, normalized OSS table.
type Dataset struct {
	FileName   string
	UploadedAt time.Time
	Table      *schema.NormalizedTable
}

// Session is one logged-in user.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time

	mu      sync.RWMutex
	dataset *Dataset
}

// Dataset returns the session's current dataset, or nil.
func (s *Session) Dataset() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// SetDataset replaces the session's current dataset.
func (s *Session) SetDataset(d *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = d
}

// Manager tracks live sessions and signs the tokens that refer to them.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(secret []byte, ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session for username and returns it with its signed token.
func (m *Manager) Create(username string) (*Session, string, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	claims := &models.Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %w", err)
	}

	m.mu.Lock()
	m.sweepLocked(now)
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s, token, nil
}

// Authenticate validates a token and returns the live session it refers to.
func (m *Manager) Authenticate(tokenString string) (*Session, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	s, ok := m.Get(claims.ID)
	if !ok || s.Username != claims.Username {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Get returns a live session. Expired sessions are dropped.
func (m *Manager) Get(id string) (*Session, bool) {
	now := m.now()

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !now.Before(s.ExpiresAt) {
		m.Destroy(id)
		return nil, false
	}
	return s, true
}

// Destroy ends a session. Destroying an unknown session is a no-op.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count is the number of sessions currently held, expired or not.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}
