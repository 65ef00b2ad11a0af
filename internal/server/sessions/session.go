package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/google/uuid"
)

// Session is the per-request view of a browser session. It is created from
// the identifier found in the request cookie (possibly empty) and touches the
// store only when there is something to load or save, so anonymous requests
// never create server-side state.
//
// A Session is not safe for concurrent use; it belongs to one request.
type Session struct {
	store Store
	ttl   time.Duration

	id      string
	data    *Data
	loaded  bool
	changed bool
}

// New returns a session for the incoming identifier id ("" when the request
// carried no session cookie).
func New(store Store, id string, ttl time.Duration) *Session {
	return &Session{store: store, id: id, ttl: ttl}
}

// ID returns the current identifier, "" when no session exists.
func (s *Session) ID() string {
	return s.id
}

// Changed reports whether Start or Destroy ran during this request, i.e.
// whether the client's cookie must be rewritten.
func (s *Session) Changed() bool {
	return s.changed
}

// User returns the user stored in the session, or nil.
func (s *Session) User(ctx context.Context) (*models.User, error) {
	if s.id == "" {
		return nil, nil
	}

	if !s.loaded {
		data, err := s.store.Load(ctx, s.id)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		s.data = data
		s.loaded = true
	}

	if s.data == nil {
		return nil, nil
	}
	return s.data.User, nil
}

// Start binds user to a fresh session identifier. A previous session of the
// same client is discarded so an identifier issued before login never
// becomes authenticated.
func (s *Session) Start(ctx context.Context, user *models.User) error {
	if s.id != "" {
		if err := s.store.Delete(ctx, s.id); err != nil {
			return fmt.Errorf("drop previous session: %w", err)
		}
	}

	id := uuid.NewString()
	data := &Data{User: user, StartedAt: time.Now().UTC()}
	if err := s.store.Save(ctx, id, data, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.id = id
	s.data = data
	s.loaded = true
	s.changed = true
	return nil
}

// Destroy removes the session from the store.
func (s *Session) Destroy(ctx context.Context) error {
	if s.id != "" {
		if err := s.store.Delete(ctx, s.id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	s.id = ""
	s.data = nil
	s.loaded = true
	s.changed = true
	return nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session stored by NewContext, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(ctxKey{}).(*Session)
	return sess
}
