// Package auth signs browser session identifiers into cookie values so a
// client cannot forge or guess another client's session.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the server-side session identifier.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// GenerateToken signs sessionID with HS256; the token stops validating
// after validityDuration.
func GenerateToken(sessionID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		SessionID: sessionID,
	})

	return token.SignedString(secretKey)
}

// GetSessionIDFromToken verifies tokenString and returns the session id.
// Expired tokens yield common.ErrTokenExpired, anything else that fails to
// verify yields common.ErrInvalidToken.
func GetSessionIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.SessionID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.SessionID, nil
}
