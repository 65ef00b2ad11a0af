// Package services contains the server-side business logic: the user
// directory, cookie session resolution, delegated app passwords and quota.
package services

import (
	"github.com/dmitrijs2005/davkeeper/internal/common"
)

// PasswordHasher hashes and verifies secrets. cryptox.Argon2Hasher is the
// production implementation.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// Reasons recorded on a Rejection.
const (
	ReasonMissingCredentials = "missing_credentials"
	ReasonNotFound           = "not_found"
	ReasonInvalidCredential  = "invalid_credential"
	ReasonExpired            = "expired"
	ReasonConsumed           = "consumed"
	ReasonNoSession          = "no_session"
)

// Rejection is returned for expected authentication failures. It matches
// common.ErrorUnauthorized with errors.Is, and its message never reveals the
// reason, so callers cannot tell an unknown login from a wrong password.
// Reason exists for logs and metrics only.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return common.ErrorUnauthorized.Error()
}

func (r *Rejection) Unwrap() error {
	return common.ErrorUnauthorized
}

func reject(reason string) error {
	return &Rejection{Reason: reason}
}
