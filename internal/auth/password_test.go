package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)

	v := BcryptVerifier{}
	assert.True(t, v.Matches("correct horse", hash))
	assert.False(t, v.Matches("wrong horse", hash))
	assert.False(t, v.Matches("correct horse", "not-a-hash"))
}
