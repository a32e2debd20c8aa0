package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUsernameRequired = errors.New("username cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters long")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrUserNotFound     = errors.New("user not found")
)

// UserEventPublisher publishes account lifecycle events. May be nil.
type UserEventPublisher interface {
	PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error
}

// AccountService handles registration and account lifecycle.
type AccountService struct {
	store     *store.Store
	publisher UserEventPublisher
	logger    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(store *store.Store, publisher UserEventPublisher) *AccountService {
	return &AccountService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Register creates a new non-admin account.
func (s *AccountService) Register(ctx context.Context, username, password string) (*models.User, error) {
	return s.createUser(ctx, username, password, false)
}

// CreateAdmin creates an account with the admin flag set. Used by the
// bootstrap CLI, not exposed over HTTP.
func (s *AccountService) CreateAdmin(ctx context.Context, username, password string) (*models.User, error) {
	return s.createUser(ctx, username, password, true)
}

func (s *AccountService) createUser(ctx context.Context, username, password string, isAdmin bool) (*models.User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	util.RegistrationsTotal.Inc()
	s.logger.Info("User registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username))

	if s.publisher != nil {
		event := &models.UserRegisteredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeUserRegistered,
				Timestamp: time.Now(),
			},
			UserID:   user.ID,
			Username: user.Username,
		}
		if err := s.publisher.PublishUserRegistered(ctx, event); err != nil {
			s.logger.Error("Failed to publish UserRegistered event", zap.Error(err))
		}
	}

	return user, nil
}

// DeleteAccount removes a user and, explicitly and atomically, everything
// the user owns: cart rows, orders and their items.
func (s *AccountService) DeleteAccount(ctx context.Context, userID int64) error {
	err := s.store.DeleteUserTx(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	s.logger.Info("Account deleted", zap.Int64("user_id", userID))
	return nil
}
