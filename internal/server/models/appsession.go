package models

import "time"

// AppSession is a delegated credential ("app password"). CredentialHash is
// empty for a pairing grant that has not been exchanged yet.
type AppSession struct {
	Token          string    `json:"token"`
	OwnerLogin     string    `json:"owner_login"`
	CredentialHash string    `json:"-"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Pending reports whether the session still waits to be exchanged.
func (s *AppSession) Pending() bool {
	return s.CredentialHash == ""
}

// AppCredentials is what a client receives: the bearer token and, except
// for a fresh pairing grant, the plain secret. The secret is never stored.
type AppCredentials struct {
	Token  string `json:"token"`
	Secret string `json:"secret,omitempty"`
}
