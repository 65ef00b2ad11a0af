package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/dmitrijs2005/davkeeper/internal/logging"
	"github.com/dmitrijs2005/davkeeper/internal/server/config"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/davkeeper/internal/server/storage"
)

// UserDirectory manages user records and computes their derived attributes.
type UserDirectory struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Backend
	hasher      PasswordHasher
	log         logging.Logger

	storagePattern string
	baseURL        string
}

func NewUserDirectory(db *sql.DB, m repomanager.RepositoryManager, backend storage.Backend,
	hasher PasswordHasher, cfg *config.Config, log logging.Logger) *UserDirectory {
	return &UserDirectory{
		db:             db,
		repomanager:    m,
		storage:        backend,
		hasher:         hasher,
		log:            log.With("module", "users"),
		storagePattern: cfg.StoragePath,
		baseURL:        cfg.BaseURL,
	}
}

// Normalize returns the canonical form of a login.
func Normalize(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// List returns all users ordered by login.
func (d *UserDirectory) List(ctx context.Context) ([]models.User, error) {
	list, err := d.repomanager.Users(d.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	for i := range list {
		d.Decorate(&list[i])
	}
	return list, nil
}

// Get returns the user or nil when the login is unknown. The user's storage
// directory is created if it does not exist yet.
func (d *UserDirectory) Get(ctx context.Context, login string) (*models.User, error) {
	user, err := d.repomanager.Users(d.db).GetByLogin(ctx, Normalize(login))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	d.Decorate(user)
	if err := d.storage.EnsureDir(ctx, user.StoragePath); err != nil {
		return nil, fmt.Errorf("error preparing storage: %w", err)
	}
	return user, nil
}

// Create adds a user. Creating a login that already exists does nothing and
// keeps the existing password.
func (d *UserDirectory) Create(ctx context.Context, login, password string) error {
	login = Normalize(login)
	if login == "" {
		return fmt.Errorf("%w: empty login", common.ErrorValidation)
	}

	hash, err := d.hasher.Hash(strings.TrimSpace(password))
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	created, err := d.repomanager.Users(d.db).CreateIfAbsent(ctx, &models.User{Login: login, PasswordHash: hash})
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	if created {
		d.log.Info(ctx, "user created", "login", login)
	} else {
		d.log.Debug(ctx, "user already exists", "login", login)
	}
	return nil
}

// Edit applies the set fields of edit. Editing an unknown login is a no-op.
func (d *UserDirectory) Edit(ctx context.Context, login string, edit models.UserEdit) error {
	var changes models.UserChanges

	if edit.Password != nil {
		hash, err := d.hasher.Hash(strings.TrimSpace(*edit.Password))
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}
		changes.PasswordHash = &hash
	}
	if edit.QuotaMB != nil {
		bytes := *edit.QuotaMB * common.BytesPerMB
		changes.QuotaBytes = &bytes
	}
	changes.IsAdmin = edit.IsAdmin

	if changes.Empty() {
		return nil
	}

	login = Normalize(login)
	if err := d.repomanager.Users(d.db).Update(ctx, login, changes); err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}
	d.log.Info(ctx, "user updated", "login", login,
		"password", changes.PasswordHash != nil,
		"quota", changes.QuotaBytes != nil,
		"admin", changes.IsAdmin != nil)
	return nil
}

// StoragePath returns the storage root for login, ending with exactly one "/".
func (d *UserDirectory) StoragePath(login string) string {
	return strings.TrimRight(fmt.Sprintf(d.storagePattern, login), "/") + "/"
}

// ExternalURL returns the public URL of the user's files.
func (d *UserDirectory) ExternalURL(login string) string {
	return d.baseURL + "files/" + login + "/"
}

// Decorate fills in the attributes derived from the login.
func (d *UserDirectory) Decorate(u *models.User) {
	u.StoragePath = d.StoragePath(u.Login)
	u.ExternalURL = d.ExternalURL(u.Login)
}
