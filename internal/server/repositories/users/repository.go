// Package users declares and implements persistent access to user records.
package users

import (
	"context"

	"github.com/dmitrijs2005/davkeeper/internal/server/models"
)

type Repository interface {
	// List returns every user ordered by login.
	List(ctx context.Context) ([]models.User, error)

	// GetByLogin returns common.ErrorNotFound when no user has this login.
	GetByLogin(ctx context.Context, login string) (*models.User, error)

	// CreateIfAbsent inserts user unless the login is taken and reports
	// whether a row was written. An existing login is not an error.
	CreateIfAbsent(ctx context.Context, user *models.User) (bool, error)

	// Update applies the non-nil fields of changes. Zero matching rows is not an error.
	Update(ctx context.Context, login string, changes models.UserChanges) error
}
