package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_GenerateValidateToken_RoundTrips(t *testing.T) {
	secret := []byte("0123456789012345678901234567890123456789")

	tok, err := generateToken(secret)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	assert.NoError(t, validateToken(tok, secret))
}

func Test_ValidateToken_RejectsWrongSecret(t *testing.T) {
	secret := []byte("0123456789012345678901234567890123456789")
	otherSecret := []byte("9876543210987654321098765432109876543210")

	tok, err := generateToken(secret)
	require.NoError(t, err)

	assert.Error(t, validateToken(tok, otherSecret))
}

func Test_ValidateToken_RejectsGarbage(t *testing.T) {
	secret := []byte("0123456789012345678901234567890123456789")
	assert.Error(t, validateToken("not-a-token", secret))
}
