package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-at-least-32-characters-long")

func TestIssuer_IssueAndParse(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	iss := Issuer{Secret: testSecret, TTL: time.Hour, Now: func() time.Time { return now }}

	token, err := iss.Issue("ops@example.com", RoleAdmin)
	require.NoError(t, err)

	claims, err := Parse(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, now.Add(time.Hour), claims.ExpiresAt.Time)
}

func TestIssuer_Validation(t *testing.T) {
	iss := Issuer{Secret: testSecret, TTL: time.Hour}

	_, err := iss.Issue(" ", RoleAdmin)
	assert.Error(t, err)

	_, err = iss.Issue("ops", "superuser")
	assert.ErrorContains(t, err, "invalid role")
}

func TestParse_Rejects(t *testing.T) {
	valid := func() string {
		tok, err := Issuer{Secret: testSecret, TTL: time.Hour}.Issue("ops", RoleAdmin)
		require.NoError(t, err)
		return tok
	}

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := map[string]struct {
		token  string
		secret []byte
	}{
		"wrong secret": {valid(), []byte("another-secret-another-secret-xx")},
		"expired": {
			mustIssue(t, Issuer{Secret: testSecret, TTL: -time.Minute}), testSecret,
		},
		"no expiry": {
			sign(jwt.SigningMethodHS256, testSecret, Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"}}), testSecret,
		},
		"none algorithm": {
			sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
				Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}}), testSecret,
		},
		"missing subject": {
			sign(jwt.SigningMethodHS256, testSecret, Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}}), testSecret,
		},
		"garbage": {"not-a-jwt", testSecret},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.secret)
			assert.Error(t, err)
		})
	}
}

func mustIssue(t *testing.T, i Issuer) string {
	t.Helper()
	tok, err := i.Issue("ops", RoleAdmin)
	require.NoError(t, err)
	return tok
}
