package common

import "time"

// SessionCookieName is the cookie carrying the signed browser session identifier.
const SessionCookieName = "davkeeper_session"

const (
	// PairingTokenMaxLength bounds client supplied pairing tokens.
	PairingTokenMaxLength = 100

	// SecretLength is the length of generated app passwords and tokens.
	SecretLength = 16

	// BytesPerMB converts quota values entered in megabytes.
	BytesPerMB = 1024 * 1024
)

const (
	DefaultPairingTokenValidity = 10 * time.Minute
	DefaultAppSessionValidity   = 30 * 24 * time.Hour
)
