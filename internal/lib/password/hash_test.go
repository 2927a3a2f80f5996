package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAndCompare(t *testing.T) {
	hash, err := GetHash("secret-password")
	require.NoError(t, err)
	assert.NotEqual(t, "secret-password", hash)

	assert.NoError(t, CompareHash(hash, "secret-password"))
	assert.Error(t, CompareHash(hash, "wrong-password"))
}

func TestGenerate(t *testing.T) {
	first, err := Generate()
	require.NoError(t, err)
	second, err := Generate()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
