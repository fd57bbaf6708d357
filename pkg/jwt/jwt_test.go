package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key-at-least-32-chars!!", 15*time.Minute, 24*time.Hour)

	tokenString, err := manager.GenerateAccessToken("doctor-42", "doctor")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := manager.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "doctor-42", claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, Audience, claims.Audience)
	assert.Equal(t, "doctor-42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret-key-at-least-32-chars!!", 15*time.Minute, 24*time.Hour)
	other := NewJWTManager("another-secret-key-also-32-chars!!!", 15*time.Minute, 24*time.Hour)

	tokenString, err := manager.GenerateAccessToken("patient-1", "patient")
	require.NoError(t, err)

	_, err = other.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key-at-least-32-chars!!", -1*time.Minute, 24*time.Hour)

	tokenString, err := manager.GenerateAccessToken("patient-1", "patient")
	require.NoError(t, err)

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateGarbageToken(t *testing.T) {
	manager := NewJWTManager("test-secret-key-at-least-32-chars!!", 15*time.Minute, 24*time.Hour)

	_, err := manager.ValidateToken("not.a.token")
	assert.Error(t, err)
}
