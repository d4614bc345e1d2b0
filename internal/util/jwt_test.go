package util

import (
	"testing"
	"time"

	"techacademy_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{UserID: "user-1", Email: "ana@techacademy.com", Role: model.Trainee}

	token, err := GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ana@techacademy.com", claims.Email)
	assert.Equal(t, model.Trainee, claims.Role)
}

func TestParseJWT_Rejects(t *testing.T) {
	user := &model.User{UserID: "user-1", Role: model.Admin}

	expired, err := GenerateJWT(user, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, testSecret)
	assert.Error(t, err)

	token, err := GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(token, "another-secret-another-secret-xx")
	assert.Error(t, err)

	_, err = ParseJWT("not-a-token", testSecret)
	assert.Error(t, err)
}
