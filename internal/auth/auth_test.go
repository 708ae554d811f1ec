package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lireddit/backend/internal/auth"
	"github.com/lireddit/backend/internal/models"
)

var secret = []byte("test-secret")

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := auth.GenerateToken(secret, 7, "ada")
	require.NoError(t, err)

	claims, err := auth.ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken(secret, 7, "ada")
	require.NoError(t, err)

	_, err = auth.ParseToken([]byte("other-secret"), token)
	assert.Error(t, err)
}

func TestSessionTokenGarbage(t *testing.T) {
	_, err := auth.ParseToken(secret, "not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, auth.CheckPassword(hash, "hunter22"))
	assert.False(t, auth.CheckPassword(hash, "hunter23"))
}

func TestResetTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: 3, Username: "ada", Password: "old-hash"}

	token, err := auth.GenerateResetToken(secret, user)
	require.NoError(t, err)

	id, err := auth.ResetTokenSubject(token)
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	require.NoError(t, auth.VerifyResetToken(secret, token, user))
}

func TestResetTokenDiesWithPasswordChange(t *testing.T) {
	user := &models.User{ID: 3, Username: "ada", Password: "old-hash"}

	token, err := auth.GenerateResetToken(secret, user)
	require.NoError(t, err)

	// Changing the credential changes the signing key, so the outstanding
	// token must stop verifying.
	user.Password = "new-hash"
	err = auth.VerifyResetToken(secret, token, user)
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
}

func TestResetTokenRejectsOtherUser(t *testing.T) {
	ada := &models.User{ID: 3, Username: "ada", Password: "hash-a"}
	brian := &models.User{ID: 4, Username: "brian", Password: "hash-a"}

	token, err := auth.GenerateResetToken(secret, ada)
	require.NoError(t, err)

	err = auth.VerifyResetToken(secret, token, brian)
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
}

func TestResetTokenRejectsSessionToken(t *testing.T) {
	user := &models.User{ID: 3, Username: "ada", Password: "hash"}

	session, err := auth.GenerateToken(secret, user.ID, user.Username)
	require.NoError(t, err)

	err = auth.VerifyResetToken(secret, session, user)
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
}

func TestResetTokenSubjectGarbage(t *testing.T) {
	_, err := auth.ResetTokenSubject("garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
}
