package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	tokens, err := Issue("kiosk-1", "station", "rollcall", "secret", time.Minute, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	claims, err := Parse(tokens.AccessToken, "secret", "rollcall")
	require.NoError(t, err)
	assert.Equal(t, "kiosk-1", claims.Subject)
	assert.Equal(t, "station", claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	tokens, err := Issue("kiosk-1", "station", "rollcall", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tokens.AccessToken, "other-secret", "rollcall")
	assert.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	tokens, err := Issue("kiosk-1", "station", "someone-else", "secret", time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tokens.AccessToken, "secret", "rollcall")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	tokens, err := Issue("kiosk-1", "station", "rollcall", "secret", -time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(tokens.AccessToken, "secret", "rollcall")
	assert.Error(t, err)
}
