package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaker_GenerateAndParse(t *testing.T) {
	maker := NewJWTMaker("test-secret", time.Hour)

	token, err := maker.GenerateToken("user1", "user", "uid-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user1", claims.Username)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "uid-123", claims.UserUID)
}

func TestMaker_ParseExpiredToken(t *testing.T) {
	maker := NewJWTMaker("test-secret", -time.Minute)

	token, err := maker.GenerateToken("user1", "user", "uid-123")
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	assert.Error(t, err)
}

func TestMaker_ParseWrongKey(t *testing.T) {
	maker := NewJWTMaker("test-secret", time.Hour)
	other := NewJWTMaker("other-secret", time.Hour)

	token, err := maker.GenerateToken("user1", "admin", "uid-123")
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}
