package auth

import (
	"context"
	"errors"

	"storefront/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// ErrAdminRequired indicates the acting principal lacks the admin flag.
var ErrAdminRequired = errors.New("admin access required")

// Strategy abstracts how a principal proves and carries its identity, so the
// handler layer works the same against stateless tokens or server-side
// sessions. Implementations are injected explicitly; there is no ambient
// "current strategy".
//
// Authenticate and ResolvePrincipal return (nil, nil) for "no principal"
// (bad credentials, missing/invalid token); a non-nil error means the
// directory itself was unavailable, which callers surface separately from
// invalid credentials.
type Strategy interface {
	// Authenticate verifies a username/password pair. Unknown username and
	// wrong password are indistinguishable to the caller.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)

	// IssueCredential produces an opaque credential encoding the user's
	// identity and an expiry.
	IssueCredential(ctx context.Context, user *models.User) (string, error)

	// ResolvePrincipal resolves the user behind an inbound credential.
	// An empty, malformed, expired or tampered credential resolves to
	// (nil, nil): anonymous, not an error.
	ResolvePrincipal(ctx context.Context, credential string) (*models.User, error)

	// RevokeCredential invalidates a credential where the mechanism allows
	// it. Stateless tokens cannot be revoked before expiry; those
	// implementations acknowledge without effect.
	RevokeCredential(ctx context.Context, credential string) error
}

// Directory is the user lookup surface the strategies resolve principals
// against. *store.Store satisfies it.
type Directory interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
}

// RequireAdmin gates admin-only operations. It fails with ErrAdminRequired
// for an anonymous principal or one without the admin flag.
func RequireAdmin(user *models.User) (*models.User, error) {
	if user == nil || !user.IsAdmin {
		return nil, ErrAdminRequired
	}
	return user, nil
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// dummyHash is a valid bcrypt hash of a filler value. When a username does
// not exist we still run one bcrypt comparison against it, so both failure
// paths cost the same and the response does not leak which case occurred.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// checkPassword verifies password against hash. A nil hash slice still runs
// a comparison against dummyHash and reports failure.
func checkPassword(hash []byte, password string) bool {
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
