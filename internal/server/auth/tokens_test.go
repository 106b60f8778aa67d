package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyakharev/authd/internal/common"
	"github.com/ilyakharev/authd/internal/server/models"
)

func newTestIssuer() *Issuer {
	return NewIssuer(
		[]byte("access-secret"),
		[]byte("refresh-secret"),
		[]byte("setup-secret"),
		5*time.Minute,
		7*24*time.Hour,
		10*time.Minute,
	)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	i := newTestIssuer()

	token, err := i.AccessToken("u1", models.RoleModerator)
	require.NoError(t, err)

	claims, err := i.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleModerator, claims.Role)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	i := newTestIssuer()

	token, expires, err := i.RefreshToken("u1", "jti-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expires, time.Minute)

	claims, err := i.ParseRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "jti-1", claims.ID)
}

func TestSetupToken_RoundTrip(t *testing.T) {
	i := newTestIssuer()

	token, err := i.SetupToken("u1")
	require.NoError(t, err)

	claims, err := i.ParseSetup(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, SetupPurpose, claims.Purpose)
}

func TestParse_WrongKindFailsClosed(t *testing.T) {
	i := newTestIssuer()

	access, err := i.AccessToken("u1", models.RoleUser)
	require.NoError(t, err)
	refresh, _, err := i.RefreshToken("u1", "jti-1")
	require.NoError(t, err)
	setup, err := i.SetupToken("u1")
	require.NoError(t, err)

	// each parser must reject tokens signed for a different purpose
	_, err = i.ParseSetup(access)
	assert.ErrorIs(t, err, common.ErrorInvalidToken)
	_, err = i.ParseSetup(refresh)
	assert.ErrorIs(t, err, common.ErrorInvalidToken)
	_, err = i.ParseRefresh(access)
	assert.ErrorIs(t, err, common.ErrorInvalidToken)
	_, err = i.ParseAccess(setup)
	assert.ErrorIs(t, err, common.ErrorInvalidToken)
}

func TestParse_Expired(t *testing.T) {
	i := NewIssuer(
		[]byte("a"), []byte("r"), []byte("s"),
		-time.Minute, -time.Minute, -time.Minute,
	)

	token, err := i.AccessToken("u1", models.RoleUser)
	require.NoError(t, err)

	_, err = i.ParseAccess(token)
	assert.ErrorIs(t, err, common.ErrorInvalidToken)
}

func TestParse_TamperedSignature(t *testing.T) {
	i := newTestIssuer()

	token, err := i.AccessToken("u1", models.RoleUser)
	require.NoError(t, err)

	other := NewIssuer([]byte("different"), []byte("r"), []byte("s"),
		5*time.Minute, time.Hour, time.Minute)
	_, err = other.ParseAccess(token)
	assert.ErrorIs(t, err, common.ErrorInvalidToken)
}

func TestParseRefresh_MissingJTI(t *testing.T) {
	i := newTestIssuer()

	// a refresh token without a jti cannot be looked up server-side
	token, _, err := i.RefreshToken("u1", "")
	require.NoError(t, err)

	_, err = i.ParseRefresh(token)
	assert.ErrorIs(t, err, common.ErrorInvalidToken)
}
