// Package models defines server-side data models persisted in the database
// or exchanged between services.
package models

import "time"

// User is an account of the file store. StoragePath and ExternalURL are
// derived from Login on every read and never persisted.
type User struct {
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	QuotaBytes   int64     `json:"quota_bytes"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`

	StoragePath string `json:"-"`
	ExternalURL string `json:"-"`
}

// UserEdit lists the fields an administrator may change. Nil fields are left alone.
type UserEdit struct {
	Password *string
	QuotaMB  *int64
	IsAdmin  *bool
}

// UserChanges is the storage-level form of UserEdit: the password is
// already hashed and the quota converted to bytes.
type UserChanges struct {
	PasswordHash *string
	QuotaBytes   *int64
	IsAdmin      *bool
}

// Empty reports whether no column would be touched.
func (c UserChanges) Empty() bool {
	return c.PasswordHash == nil && c.QuotaBytes == nil && c.IsAdmin == nil
}
