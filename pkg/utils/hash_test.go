package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("wrong horse", hash))

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestParseUserHashes(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	users, err := ParseUserHashes(" pastor:" + hash + " , ,deacon:" + hash)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pastor": hash, "deacon": hash}, users)

	users, err = ParseUserHashes("")
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = ParseUserHashes("pastor")
	assert.Error(t, err)
	_, err = ParseUserHashes("pastor:plaintext")
	assert.ErrorContains(t, err, "pastor")
}
