package identity_test

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"ms-auction/internal/identity"
)

func signedToken(t *testing.T, sub string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	raw, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return raw
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/auctions/a1/stream", nil)
	_, err := identity.ExtractTokenFromRequest(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "token-without-scheme")
	_, err = identity.ExtractTokenFromRequest(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Bearer abc123")
	token, err := identity.ExtractTokenFromRequest(req)
	assert.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestExtractUserIDFromJWT(t *testing.T) {
	userID, err := identity.ExtractUserIDFromJWT(signedToken(t, "alice"))
	assert.NoError(t, err)
	assert.Equal(t, "alice", userID)

	_, err = identity.ExtractUserIDFromJWT("")
	assert.Error(t, err)

	_, err = identity.ExtractUserIDFromJWT("not-a-jwt")
	assert.Error(t, err)

	_, err = identity.ExtractUserIDFromJWT(signedToken(t, ""))
	assert.Error(t, err)
}
