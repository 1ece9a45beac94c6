package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBinder struct{ userIDs []string }

func (b *recordingBinder) Identify(userID string) { b.userIDs = append(b.userIDs, userID) }

func TestBindFromToken(t *testing.T) {
	token, err := GenerateSessionToken("lead-7", "secret", time.Hour)
	require.NoError(t, err)

	binder := &recordingBinder{}
	userID, err := BindFromToken(binder, token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "lead-7", userID)
	assert.Equal(t, []string{"lead-7"}, binder.userIDs)
}

func TestBindFromTokenRejectsBadTokens(t *testing.T) {
	valid, err := GenerateSessionToken("lead-7", "secret", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateSessionToken("lead-7", "secret", -time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"leadId": "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "other"},
		{"empty secret", valid, ""},
		{"expired", expired, "secret"},
		{"no subject", noSubject, "secret"},
		{"wrong algorithm", wrongAlg, "secret"},
		{"garbage", "not-a-token", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binder := &recordingBinder{}
			_, err := BindFromToken(binder, tt.token, tt.secret)
			assert.Error(t, err)
			assert.Empty(t, binder.userIDs)
		})
	}
}
