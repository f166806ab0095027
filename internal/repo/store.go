package repo

import (
	"context"
	"errors"
	"time"

	"github.com/savitara/auth-service/internal/domain"
)

// ErrDuplicateEmail is the translated form of the store's unique-index
// violation; handlers turn it into a 4xx, never the raw driver error.
var ErrDuplicateEmail = errors.New("email already registered")

// Store is the account persistence boundary. Find methods return (nil, nil)
// when no document matches so callers can distinguish absence from failure.
//
// "Exactly one user per email" is enforced by the unique index behind
// CreateUser, not by any application-level locking; a concurrent duplicate
// registration loses by getting ErrDuplicateEmail.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateOAuthLink(ctx context.Context, email, googleID, picture string, at time.Time) error
	SetUserStatus(ctx context.Context, id string, st domain.Status) error

	// HasProfile reports onboarding completion: a document in the
	// role-appropriate profile collection keyed by user id.
	HasProfile(ctx context.Context, userID string, role domain.Role) (bool, error)
	CreateProfile(ctx context.Context, userID string, role domain.Role) error

	// maintenance surface, used by cmd/dbcheck
	CountUsers(ctx context.Context) (int64, error)
	DeleteAllUsers(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
