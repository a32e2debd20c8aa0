package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenStrategy implements Strategy with self-contained HS256-signed tokens.
// Nothing is persisted per credential; validity is re-derived from the
// signature and expiry on every request. RevokeCredential is therefore an
// acknowledgement only.
type TokenStrategy struct {
	directory Directory
	secret    []byte
	ttl       time.Duration
	logger    *zap.Logger
}

// NewTokenStrategy creates a token-based authentication strategy.
func NewTokenStrategy(directory Directory, secret string, ttl time.Duration) *TokenStrategy {
	return &TokenStrategy{
		directory: directory,
		secret:    []byte(secret),
		ttl:       ttl,
		logger:    util.GetLogger(),
	}
}

// Authenticate verifies a username/password pair against the directory.
func (ts *TokenStrategy) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := ts.directory.FindUserByUsername(ctx, username)
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

// IssueCredential signs a token carrying the user's ID and an expiry.
func (ts *TokenStrategy) IssueCredential(_ context.Context, user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ResolvePrincipal validates the token and resolves its subject.
func (ts *TokenStrategy) ResolvePrincipal(ctx context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, nil
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, nil
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, nil
	}

	user, err := ts.directory.FindUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		// Token outlived the account.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// RevokeCredential is a no-op for stateless tokens; the caller's transport
// discards the credential and it lapses at expiry.
func (ts *TokenStrategy) RevokeCredential(_ context.Context, _ string) error {
	ts.logger.Debug("Token credential discarded client-side; server-side revocation not supported")
	return nil
}
