package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	tok, err := SignJWT("s3cret", "user-42", time.Minute)
	require.NoError(t, err)

	uid, err := ParseJWT("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", uid)
}

func TestParse_Rejects(t *testing.T) {
	good, err := SignJWT("s3cret", "user-42", time.Minute)
	require.NoError(t, err)
	expired, err := SignJWT("s3cret", "user-42", -time.Minute)
	require.NoError(t, err)
	noSubject, err := SignJWT("s3cret", "", time.Minute)
	require.NoError(t, err)

	for name, tc := range map[string]struct{ secret, token string }{
		"wrong secret": {"other", good},
		"expired":      {"s3cret", expired},
		"no subject":   {"s3cret", noSubject},
		"garbage":      {"s3cret", "abc.def.ghi"},
	} {
		_, err := ParseJWT(tc.secret, tc.token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
