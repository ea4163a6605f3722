package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenSession is one live refresh token. Access tokens are stateless JWTs;
// only the refresh side is persisted, so logout and rotation have something
// to revoke.
type TokenSession struct {
	UserID       uuid.UUID `json:"user_id"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type TokenStore interface {
	Save(ctx context.Context, session TokenSession, ttl time.Duration) error
	Get(ctx context.Context, refreshToken string) (*TokenSession, error)
	Delete(ctx context.Context, refreshToken string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// memoryTokenStore backs tests and single-process deployments where no
// redis address is configured.
type memoryTokenStore struct {
	mu       sync.Mutex
	sessions map[string]TokenSession
}

func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{sessions: map[string]TokenSession{}}
}

func (s *memoryTokenStore) Save(ctx context.Context, session TokenSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.RefreshToken] = session
	return nil
}

func (s *memoryTokenStore) Get(ctx context.Context, refreshToken string) (*TokenSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[refreshToken]
	if !ok {
		return nil, nil
	}
	if time.Now().After(session.ExpiresAt) {
		delete(s.sessions, refreshToken)
		return nil, nil
	}
	return &session, nil
}

func (s *memoryTokenStore) Delete(ctx context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, refreshToken)
	return nil
}

func (s *memoryTokenStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}
