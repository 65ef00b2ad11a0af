// Package appsessions declares the repository contract for delegated
// credentials ("app passwords") and pairing tokens.
package appsessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/server/models"
)

// Repository stores app sessions keyed by their token.
type Repository interface {
	// CreateIfAbsent inserts s unless its token already exists and reports
	// whether a row was written.
	CreateIfAbsent(ctx context.Context, s *models.AppSession) (bool, error)

	// FindByToken returns the session regardless of expiry, or
	// common.ErrorNotFound. Inside a transaction the row stays locked until
	// commit.
	FindByToken(ctx context.Context, token string) (*models.AppSession, error)

	// FindValid returns an unexpired session together with its owner, or
	// common.ErrorNotFound.
	FindValid(ctx context.Context, token string, now time.Time) (*models.AppSession, *models.User, error)

	// Rotate replaces oldToken with newToken and sets a new hash and expiry in
	// a single conditional update. It returns common.ErrorNotFound when no row
	// holds oldToken any more, e.g. because a concurrent call rotated it first.
	Rotate(ctx context.Context, oldToken, newToken, credentialHash string, expires time.Time) error

	// DeleteExpired removes sessions whose expiry is not after now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// ListByOwner returns a user's sessions, newest first.
	ListByOwner(ctx context.Context, login string) ([]models.AppSession, error)

	// Delete removes one of the owner's sessions. Unknown tokens are ignored.
	Delete(ctx context.Context, login, token string) error
}
