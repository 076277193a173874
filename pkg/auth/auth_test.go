package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestVerifyAccessToken(t *testing.T) {
	v := NewVerifier(testSecret)

	t.Run("valid token", func(t *testing.T) {
		token, err := SignAccessToken(testSecret, "alice", time.Minute)
		require.NoError(t, err)

		username, err := v.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", username)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := SignAccessToken(testSecret, "alice", -time.Minute)
		require.NoError(t, err)

		_, err = v.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := SignAccessToken("other-secret", "alice", time.Minute)
		require.NoError(t, err)

		_, err = v.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		token, err := SignRefreshToken(testSecret, "alice", time.Hour)
		require.NoError(t, err)

		_, err = v.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.VerifyAccessToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty subject", func(t *testing.T) {
		token, err := SignAccessToken(testSecret, "", time.Minute)
		require.NoError(t, err)

		_, err = v.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
