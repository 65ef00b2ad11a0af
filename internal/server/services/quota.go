package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/dmitrijs2005/davkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/davkeeper/internal/server/storage"
)

// QuotaService reports storage usage against a user's quota.
type QuotaService struct {
	resolver *SessionResolver
	users    *UserDirectory
	storage  storage.Backend
}

func NewQuotaService(resolver *SessionResolver, users *UserDirectory, backend storage.Backend) *QuotaService {
	return &QuotaService{resolver: resolver, users: users, storage: backend}
}

// Quota returns usage for user, or for the logged-in user when user is nil.
// Without a user the snapshot is all zero. Free is negative when over quota.
func (q *QuotaService) Quota(ctx context.Context, sess *sessions.Session, user *models.User) (models.Quota, error) {
	if user == nil {
		current, err := q.resolver.Current(ctx, sess)
		if err != nil {
			return models.Quota{}, err
		}
		user = current
	}
	if user == nil {
		return models.Quota{}, nil
	}

	path := user.StoragePath
	if path == "" {
		path = q.users.StoragePath(user.Login)
	}

	used, err := q.storage.Size(ctx, path)
	if err != nil {
		return models.Quota{}, fmt.Errorf("error measuring storage: %w", err)
	}

	return models.Quota{Used: used, Total: user.QuotaBytes, Free: user.QuotaBytes - used}, nil
}
