// Copyright 2025 James Ross
package controlapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("secret", "user-1", []string{"admin"}, time.Hour)
	require.NoError(t, err)

	claims, err := validateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, claims.HasRole("admin"))
	assert.False(t, claims.HasRole("superadmin"))
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken("secret", "user-1", nil, time.Hour)
	require.NoError(t, err)

	_, err = validateToken(token, "wrong-secret")
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	token, err := IssueToken("secret", "user-1", nil, -time.Minute)
	require.NoError(t, err)

	_, err = validateToken(token, "secret")
	assert.Error(t, err)
}

func TestValidateTokenRejectsMalformed(t *testing.T) {
	_, err := validateToken("not-a-token", "secret")
	assert.Error(t, err)
}
