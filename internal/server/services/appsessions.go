package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/dmitrijs2005/davkeeper/internal/cryptox"
	"github.com/dmitrijs2005/davkeeper/internal/dbx"
	"github.com/dmitrijs2005/davkeeper/internal/logging"
	"github.com/dmitrijs2005/davkeeper/internal/server/config"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/davkeeper/internal/server/sessions"
)

// CleanupOdds is the inverse probability that Authenticate purges expired
// app sessions before validating.
const CleanupOdds = 100

var pairingTokenPattern = regexp.MustCompile(fmt.Sprintf(`^[A-Za-z0-9]{1,%d}$`, common.PairingTokenMaxLength))

// AppSessionService issues and validates app passwords: long-lived
// token/secret pairs whose hash covers the owner's current password hash,
// so a password change silently revokes all of them.
type AppSessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	users       *UserDirectory
	resolver    *SessionResolver
	hasher      PasswordHasher
	log         logging.Logger

	baseURL         string
	pairingValidity time.Duration
	appValidity     time.Duration

	now            func() time.Time
	sample         func(n int) int
	generateSecret func() (string, error)
}

func NewAppSessionService(db *sql.DB, m repomanager.RepositoryManager, users *UserDirectory,
	resolver *SessionResolver, hasher PasswordHasher, cfg *config.Config, log logging.Logger) *AppSessionService {
	return &AppSessionService{
		db:              db,
		repomanager:     m,
		users:           users,
		resolver:        resolver,
		hasher:          hasher,
		log:             log.With("module", "appsessions"),
		baseURL:         cfg.BaseURL,
		pairingValidity: cfg.PairingTokenValidity,
		appValidity:     cfg.AppSessionValidity,
		now:             time.Now,
		sample:          rand.IntN,
		generateSecret:  cryptox.GenerateSecret,
	}
}

// Create issues an app session for the logged-in user.
//
// Without a pairing token it is a direct grant: a fresh token and secret are
// returned and usable right away. With one, it is a pairing grant: the token
// is stored without a secret and must be traded in through Exchange before
// it expires.
func (s *AppSessionService) Create(ctx context.Context, sess *sessions.Session, pairingToken *string) (*models.AppCredentials, error) {
	current, err := s.resolver.Current(ctx, sess)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, reject(ReasonNoSession)
	}

	if pairingToken != nil {
		return s.createPairing(ctx, current, *pairingToken)
	}
	return s.createDirect(ctx, current)
}

// createPairing is idempotent for the same owner. Repeating it keeps the
// first expiry; the validity window does not restart.
func (s *AppSessionService) createPairing(ctx context.Context, owner *models.User, token string) (*models.AppCredentials, error) {
	if !pairingTokenPattern.MatchString(token) {
		return nil, fmt.Errorf("%w: pairing token must be 1-%d alphanumeric characters",
			common.ErrorValidation, common.PairingTokenMaxLength)
	}

	repo := s.repomanager.AppSessions(s.db)
	created, err := repo.CreateIfAbsent(ctx, &models.AppSession{
		Token:      token,
		OwnerLogin: owner.Login,
		ExpiresAt:  s.now().Add(s.pairingValidity),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating pairing: %w", err)
	}

	if !created {
		existing, err := repo.FindByToken(ctx, token)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("error reading pairing: %w", err)
		}
		if existing != nil && existing.OwnerLogin != owner.Login {
			return nil, fmt.Errorf("%w: pairing token is taken", common.ErrorValidation)
		}
	}

	s.log.Info(ctx, "pairing created", "login", owner.Login, "new", created)
	return &models.AppCredentials{Token: token}, nil
}

func (s *AppSessionService) createDirect(ctx context.Context, current *models.User) (*models.AppCredentials, error) {
	// The hash must cover the password as stored now, not as cached in the session.
	owner, err := s.users.Get(ctx, current.Login)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, reject(ReasonNotFound)
	}

	secret, err := s.generateSecret()
	if err != nil {
		return nil, fmt.Errorf("error generating secret: %w", err)
	}
	token, err := s.generateSecret()
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}
	hash, err := s.hasher.Hash(secret + owner.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("error hashing secret: %w", err)
	}

	created, err := s.repomanager.AppSessions(s.db).CreateIfAbsent(ctx, &models.AppSession{
		Token:          token,
		OwnerLogin:     owner.Login,
		CredentialHash: hash,
		ExpiresAt:      s.now().Add(s.appValidity),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating app session: %w", err)
	}
	if !created {
		return nil, fmt.Errorf("%w: token collision", common.ErrStoreConflict)
	}

	s.log.Info(ctx, "app session created", "login", owner.Login)
	return &models.AppCredentials{Token: token, Secret: secret}, nil
}

// Exchange trades a pending pairing token for a new token and secret. Direct
// grants and already exchanged tokens are refused. The old token stops
// resolving when Exchange returns; of several concurrent callers presenting
// the same token exactly one succeeds.
func (s *AppSessionService) Exchange(ctx context.Context, token string) (*models.AppCredentials, error) {
	if token == "" {
		return nil, s.rejected(ctx, ReasonMissingCredentials)
	}

	var out *models.AppCredentials
	err := dbx.WithTxRetry(ctx, s.db, nil, dbx.DefaultTxAttempts, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.AppSessions(tx)
		now := s.now()

		app, err := repo.FindByToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return reject(ReasonNotFound)
			}
			return fmt.Errorf("error finding app session: %w", err)
		}
		if !now.Before(app.ExpiresAt) {
			return reject(ReasonExpired)
		}
		if !app.Pending() {
			return reject(ReasonConsumed)
		}

		owner, err := s.repomanager.Users(tx).GetByLogin(ctx, app.OwnerLogin)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return reject(ReasonNotFound)
			}
			return fmt.Errorf("error getting owner: %w", err)
		}

		secret, err := s.generateSecret()
		if err != nil {
			return fmt.Errorf("error generating secret: %w", err)
		}
		hash, err := s.hasher.Hash(secret + owner.PasswordHash)
		if err != nil {
			return fmt.Errorf("error hashing secret: %w", err)
		}
		newToken, err := s.generateSecret()
		if err != nil {
			return fmt.Errorf("error generating token: %w", err)
		}

		if err := repo.Rotate(ctx, token, newToken, hash, now.Add(s.appValidity)); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return reject(ReasonConsumed)
			}
			return fmt.Errorf("error rotating app session: %w", err)
		}

		out = &models.AppCredentials{Token: newToken, Secret: secret}
		return nil
	})
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			s.log.Info(ctx, "exchange rejected", "reason", rej.Reason)
		}
		return nil, err
	}

	s.log.Info(ctx, "app session exchanged")
	return out, nil
}

// BuildRedirectURL issues a direct grant and formats it as a client login
// link.
func (s *AppSessionService) BuildRedirectURL(ctx context.Context, sess *sessions.Session) (string, error) {
	creds, err := s.Create(ctx, sess, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("nc://login/server:%s&user:%s&password:%s", s.baseURL, creds.Token, creds.Secret), nil
}

// Authenticate resolves a token/secret pair to its owner and binds the owner
// to sess. A request that already has a logged-in session keeps it and the
// pair is not consulted.
func (s *AppSessionService) Authenticate(ctx context.Context, sess *sessions.Session, token, secret string) (*models.User, error) {
	if s.sample(CleanupOdds) == 0 {
		if _, err := s.Cleanup(ctx); err != nil {
			s.log.Warn(ctx, "app session cleanup failed", "error", err)
		}
	}

	current, err := s.resolver.Current(ctx, sess)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return current, nil
	}

	secret = strings.TrimSpace(secret)
	if token == "" || secret == "" {
		return nil, s.rejected(ctx, ReasonMissingCredentials)
	}

	app, user, err := s.repomanager.AppSessions(s.db).FindValid(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.rejected(ctx, ReasonNotFound)
		}
		return nil, fmt.Errorf("error finding app session: %w", err)
	}

	if app.Pending() || !s.hasher.Verify(secret+user.PasswordHash, app.CredentialHash) {
		return nil, s.rejected(ctx, ReasonInvalidCredential)
	}

	if err := s.resolver.start(ctx, sess, user); err != nil {
		return nil, err
	}
	s.users.Decorate(user)
	return user, nil
}

// Cleanup deletes expired app sessions and reports how many were removed.
func (s *AppSessionService) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.repomanager.AppSessions(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error deleting expired app sessions: %w", err)
	}
	if n > 0 {
		s.log.Debug(ctx, "expired app sessions removed", "count", n)
	}
	return n, nil
}

// RunReaper calls Cleanup every interval until ctx is cancelled.
func (s *AppSessionService) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx); err != nil && ctx.Err() == nil {
				s.log.Error(ctx, "app session reaper", "error", err)
			}
		}
	}
}

// List returns the logged-in user's app sessions, newest first.
func (s *AppSessionService) List(ctx context.Context, sess *sessions.Session) ([]models.AppSession, error) {
	current, err := s.resolver.Current(ctx, sess)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, reject(ReasonNoSession)
	}

	list, err := s.repomanager.AppSessions(s.db).ListByOwner(ctx, current.Login)
	if err != nil {
		return nil, fmt.Errorf("error listing app sessions: %w", err)
	}
	return list, nil
}

// Revoke deletes one of the logged-in user's app sessions.
func (s *AppSessionService) Revoke(ctx context.Context, sess *sessions.Session, token string) error {
	current, err := s.resolver.Current(ctx, sess)
	if err != nil {
		return err
	}
	if current == nil {
		return reject(ReasonNoSession)
	}

	if err := s.repomanager.AppSessions(s.db).Delete(ctx, current.Login, token); err != nil {
		return fmt.Errorf("error revoking app session: %w", err)
	}
	s.log.Info(ctx, "app session revoked", "login", current.Login)
	return nil
}

func (s *AppSessionService) rejected(ctx context.Context, reason string) error {
	s.log.Info(ctx, "app session rejected", "reason", reason)
	return reject(reason)
}
