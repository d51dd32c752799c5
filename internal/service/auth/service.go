// Package auth implements session lifecycle: minting an opaque token on
// login, validating it on each request, and expiring/revoking it. It does
// not verify passwords itself — internal/service/user owns that — so the
// HTTP login handler calls both in sequence.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"russet/internal/domain/entity"
	"russet/internal/repository"
)

const tokenBytes = 32 // 256 bits

type Service struct {
	sessions repository.SessionRepository
	ttl      time.Duration
}

func New(sessions repository.SessionRepository, ttl time.Duration) *Service {
	return &Service{sessions: sessions, ttl: ttl}
}

// Login mints a new session for userID. The token is never derived from
// anything about the user (not their id, not a timestamp hash) — it is
// pure randomness, so a leaked userID never helps an attacker guess it.
func (s *Service) Login(ctx context.Context, userID string) (entity.Session, error) {
	return s.LoginWithTTL(ctx, userID, s.ttl)
}

// LoginWithTTL mints a session with an explicit lifetime, used by the login
// handler to honor the form's "keep me signed in" choice between
// DefaultSessionTTL and PermanentSessionTTL rather than the Service's own
// fixed ttl (kept for the session-construction default and for tests).
func (s *Service) LoginWithTTL(ctx context.Context, userID string, ttl time.Duration) (entity.Session, error) {
	token, err := newToken()
	if err != nil {
		return entity.Session{}, fmt.Errorf("Login: %w", err)
	}
	now := time.Now()
	sess := entity.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return entity.Session{}, fmt.Errorf("Login: %w", err)
	}
	return sess, nil
}

// Validate looks up a session token and rejects it if absent or expired.
// An expired session is not treated as a special case by the caller: it
// simply reports as not-found, and the expired row is deleted on the way
// out.
func (s *Service) Validate(ctx context.Context, token string) (entity.Session, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return entity.Session{}, err
	}
	if sess.Expired(time.Now()) {
		_ = s.sessions.Delete(ctx, token)
		return entity.Session{}, entity.ErrNotFound
	}
	return sess, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// LogoutAll revokes every session belonging to a user, used by
// delete-sessions and by password changes (a changed password should not
// leave old sessions valid).
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.DeleteForUser(ctx, userID)
}

// SweepExpired deletes every session whose expiry has passed, returning
// the count removed. Called periodically by the scheduler's sweeper task.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpired(ctx, time.Now())
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}
