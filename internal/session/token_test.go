package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(42, []byte("secret"), time.Hour)
	require.NoError(t, err)

	id, err := UserIDFromToken(tok, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestToken_Expired(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(1, []byte("secret"), -time.Second)
	require.NoError(t, err)

	_, err = UserIDFromToken(tok, []byte("secret"))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(1, []byte("right"), time.Hour)
	require.NoError(t, err)

	_, err = UserIDFromToken(tok, []byte("wrong"))
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = UserIDFromToken("not.a.token", []byte("right"))
	assert.Error(t, err)
}
