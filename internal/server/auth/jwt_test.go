package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("sess-123", secret, time.Hour)
	require.NoError(t, err)

	id, err := GetSessionIDFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "sess-123", id)
}

func TestGetSessionIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("s1", []byte("secret"), -time.Second)
	require.NoError(t, err)

	_, err = GetSessionIDFromToken(tok, []byte("secret"))
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestGetSessionIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("s2", []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = GetSessionIDFromToken(tok, []byte("wrong-secret"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGetSessionIDFromToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := GetSessionIDFromToken("not-a-jwt", []byte("secret"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGetSessionIDFromToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		SessionID:        "s3",
	})
	tok, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = GetSessionIDFromToken(tok, secret)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGetSessionIDFromToken_EmptySessionID(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("", secret, time.Hour)
	require.NoError(t, err)

	_, err = GetSessionIDFromToken(tok, secret)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
