package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStore is the server-side credential storage behind SessionStrategy.
// *redisclient.Client satisfies it.
type SessionStore interface {
	SaveSession(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (userID int64, ok bool, err error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SessionStrategy implements Strategy with opaque server-side session keys.
// Unlike TokenStrategy, RevokeCredential here invalidates the credential
// immediately.
type SessionStrategy struct {
	directory Directory
	sessions  SessionStore
	ttl       time.Duration
	logger    *zap.Logger
}

// NewSessionStrategy creates a session-based authentication strategy.
func NewSessionStrategy(directory Directory, sessions SessionStore, ttl time.Duration) *SessionStrategy {
	return &SessionStrategy{
		directory: directory,
		sessions:  sessions,
		ttl:       ttl,
		logger:    util.GetLogger(),
	}
}

// Authenticate verifies a username/password pair against the directory.
func (ss *SessionStrategy) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := ss.directory.FindUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		checkPassword(nil, password)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !checkPassword([]byte(user.PasswordHash), password) {
		return nil, nil
	}
	return user, nil
}

// IssueCredential stores a fresh session key for the user.
func (ss *SessionStrategy) IssueCredential(ctx context.Context, user *models.User) (string, error) {
	sessionID := uuid.New().String()
	if err := ss.sessions.SaveSession(ctx, sessionID, user.ID, ss.ttl); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return sessionID, nil
}

// ResolvePrincipal resolves the user behind a session key.
func (ss *SessionStrategy) ResolvePrincipal(ctx context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, nil
	}

	userID, ok, err := ss.sessions.GetSession(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	user, err := ss.directory.FindUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		// Session outlived the account; drop it.
		if delErr := ss.sessions.DeleteSession(ctx, credential); delErr != nil {
			ss.logger.Warn("Failed to delete orphaned session", zap.Error(delErr))
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// RevokeCredential deletes the session key, invalidating it immediately.
func (ss *SessionStrategy) RevokeCredential(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	return ss.sessions.DeleteSession(ctx, credential)
}
