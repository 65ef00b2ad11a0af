// Package sessions implements cookie-bound browser sessions: a pluggable
// server-side Store and the request-scoped Session handed to services.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/server/models"
)

// Data is the bag kept server-side for one session. Only the resolved user
// is stored.
type Data struct {
	User      *models.User `json:"user"`
	StartedAt time.Time    `json:"started_at"`
}

// Store abstracts session persistence so that sessions can live in process
// memory or in a shared backend such as Redis.
type Store interface {
	// Load returns nil, nil when the session does not exist or has expired.
	Load(ctx context.Context, id string) (*Data, error)
	// Save creates or replaces the session, expiring it after ttl.
	Save(ctx context.Context, id string, data *Data, ttl time.Duration) error
	// Delete removes the session. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error
}
