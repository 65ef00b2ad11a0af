package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/davkeeper/internal/logging"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/dmitrijs2005/davkeeper/internal/server/sessions"
)

// SessionResolver determines the user behind a cookie session and performs
// password logins.
type SessionResolver struct {
	users  *UserDirectory
	hasher PasswordHasher
	log    logging.Logger
}

func NewSessionResolver(users *UserDirectory, hasher PasswordHasher, log logging.Logger) *SessionResolver {
	return &SessionResolver{users: users, hasher: hasher, log: log.With("module", "sessions")}
}

// Current returns the user stored in sess, or nil.
func (r *SessionResolver) Current(ctx context.Context, sess *sessions.Session) (*models.User, error) {
	if sess == nil {
		return nil, nil
	}

	stored, err := sess.User(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	u := *stored
	r.users.Decorate(&u)
	return &u, nil
}

// Login verifies the primary password and binds the user to sess. An
// already authenticated session is returned as is unless a different login
// is requested. Every expected failure is a *Rejection.
func (r *SessionResolver) Login(ctx context.Context, sess *sessions.Session, login, password string) (*models.User, error) {
	current, err := r.Current(ctx, sess)
	if err != nil {
		return nil, err
	}
	if current != nil && (strings.TrimSpace(login) == "" || Normalize(login) == current.Login) {
		return current, nil
	}

	password = strings.TrimSpace(password)
	if strings.TrimSpace(login) == "" || password == "" {
		return nil, r.rejected(ctx, ReasonMissingCredentials, login)
	}

	user, err := r.users.Get(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, r.rejected(ctx, ReasonNotFound, login)
	}

	if !r.hasher.Verify(password, user.PasswordHash) {
		return nil, r.rejected(ctx, ReasonInvalidCredential, login)
	}

	if err := r.start(ctx, sess, user); err != nil {
		return nil, err
	}
	r.log.Info(ctx, "login", "login", user.Login)
	return user, nil
}

// Logout ends the session. Logging out an anonymous session is a no-op.
func (r *SessionResolver) Logout(ctx context.Context, sess *sessions.Session) error {
	if sess == nil || sess.ID() == "" {
		return nil
	}
	return sess.Destroy(ctx)
}

// start binds user to sess. Password hashes stay out of the session store.
func (r *SessionResolver) start(ctx context.Context, sess *sessions.Session, user *models.User) error {
	if sess == nil {
		return errors.New("no session to start")
	}

	stored := *user
	stored.PasswordHash = ""
	stored.StoragePath = ""
	stored.ExternalURL = ""

	if err := sess.Start(ctx, &stored); err != nil {
		return fmt.Errorf("error starting session: %w", err)
	}
	return nil
}

func (r *SessionResolver) rejected(ctx context.Context, reason, login string) error {
	r.log.Info(ctx, "login rejected", "reason", reason, "login", Normalize(login))
	return reject(reason)
}
