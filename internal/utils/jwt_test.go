package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *testClock) *TokenManager {
	t.Helper()
	manager, err := NewTokenManager(TokenConfig{
		Secret:   []byte("test-signing-secret"),
		Issuer:   "schoolportal",
		Audience: "schoolportal-web",
		Now:      clock.Now,
	})
	require.NoError(t, err)
	return manager
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{Issuer: "schoolportal"})
	require.ErrorIs(t, err, ErrConfiguration)

	var zero *TokenManager
	_, err = zero.Issue(TokenAuth, Claims{EntityID: "a", Email: "a@b.c", Role: "admin"}, time.Hour)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = (&TokenManager{}).Verify("x.y.z", TokenAuth)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestTokenRoundTrip(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	manager := newTestManager(t, clock)

	cases := []struct {
		name      string
		tokenType TokenType
		claims    Claims
	}{
		{"auth", TokenAuth, Claims{EntityID: "admin-1", Email: "head@school.test", SchoolID: "school-9", Role: "admin", CenterNumber: "C-001"}},
		{"refresh", TokenRefresh, Claims{EntityID: "admin-1"}},
		{"email verification", TokenEmailVerification, Claims{EntityID: "school-9", Email: "office@school.test", VerifyType: VerifyTypeSchool, CenterNumber: "C-001"}},
		{"password reset", TokenPasswordReset, Claims{EntityID: "admin-1", Email: "head@school.test"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signed, err := manager.Issue(tc.tokenType, tc.claims, 0)
			require.NoError(t, err)
			assert.Len(t, strings.Split(signed, "."), 3)

			clock.now = clock.now.Add(time.Minute)
			token, err := manager.Verify(signed, tc.tokenType)
			require.NoError(t, err)
			assert.Equal(t, tc.claims, token.Claims)
			assert.Equal(t, tc.tokenType, token.Type)
			assert.Equal(t, "schoolportal", token.Issuer)
			assert.Equal(t, "schoolportal-web", token.Audience)
			assert.Equal(t, TTLFor(tc.tokenType), token.ExpiresAt.Sub(token.IssuedAt))
		})
	}
}

func TestTokenPolicyTTLs(t *testing.T) {
	assert.Equal(t, 8*time.Hour, TTLFor(TokenAuth))
	assert.Equal(t, 7*24*time.Hour, TTLFor(TokenRefresh))
	assert.Equal(t, 24*time.Hour, TTLFor(TokenEmailVerification))
	assert.Equal(t, time.Hour, TTLFor(TokenPasswordReset))
	assert.Zero(t, TTLFor(TokenType("mfa")))
}

func TestTokenExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &testClock{now: issuedAt}
	manager := newTestManager(t, clock)

	signed, err := manager.Issue(TokenPasswordReset, Claims{EntityID: "admin-1", Email: "a@b.test"}, time.Hour)
	require.NoError(t, err)

	clock.now = issuedAt.Add(time.Hour - time.Second)
	_, err = manager.Verify(signed, TokenPasswordReset)
	require.NoError(t, err)

	clock.now = issuedAt.Add(time.Hour)
	_, err = manager.Verify(signed, TokenPasswordReset)
	assert.ErrorIs(t, err, ErrTokenExpired)

	clock.now = issuedAt.Add(time.Hour + time.Second)
	_, err = manager.Verify(signed, TokenPasswordReset)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenTypeMismatch(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	manager := newTestManager(t, clock)

	signed, err := manager.Issue(TokenAuth, Claims{EntityID: "admin-1", Email: "a@b.test", Role: "admin"}, 0)
	require.NoError(t, err)

	_, err = manager.Verify(signed, TokenEmailVerification)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)
	_, err = manager.Verify(signed, TokenRefresh)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestTokenVerifyFailures(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	manager := newTestManager(t, clock)
	signed, err := manager.Issue(TokenAuth, Claims{EntityID: "admin-1", Email: "a@b.test", Role: "admin"}, 0)
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		other, err := NewTokenManager(TokenConfig{Secret: []byte("another-secret"), Issuer: "schoolportal", Audience: "schoolportal-web", Now: clock.Now})
		require.NoError(t, err)
		_, err = other.Verify(signed, TokenAuth)
		assert.ErrorIs(t, err, ErrTokenInvalidSignature)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, err := NewTokenManager(TokenConfig{Secret: []byte("test-signing-secret"), Issuer: "elsewhere", Audience: "schoolportal-web", Now: clock.Now})
		require.NoError(t, err)
		_, err = other.Verify(signed, TokenAuth)
		assert.ErrorIs(t, err, ErrTokenInvalidSignature)
	})

	t.Run("other audience", func(t *testing.T) {
		other, err := NewTokenManager(TokenConfig{Secret: []byte("test-signing-secret"), Issuer: "schoolportal", Audience: "mobile", Now: clock.Now})
		require.NoError(t, err)
		_, err = other.Verify(signed, TokenAuth)
		assert.ErrorIs(t, err, ErrTokenInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(signed, ".")
		parts[1] = parts[1] + "x"
		_, err := manager.Verify(strings.Join(parts, "."), TokenAuth)
		assert.True(t, IsTokenError(err), "got %v", err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := manager.Verify("not-a-token", TokenAuth)
		assert.ErrorIs(t, err, ErrTokenMalformed)
		_, err = manager.Verify("   ", TokenAuth)
		assert.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("other algorithm", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS512, tokenClaims{
			Type:   TokenAuth,
			Claims: Claims{EntityID: "admin-1", Email: "a@b.test", Role: "admin"},
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "schoolportal",
				Audience:  jwt.ClaimStrings{"schoolportal-web"},
				IssuedAt:  jwt.NewNumericDate(clock.now),
				ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
			},
		})
		raw, err := forged.SignedString([]byte("test-signing-secret"))
		require.NoError(t, err)
		_, err = manager.Verify(raw, TokenAuth)
		assert.ErrorIs(t, err, ErrTokenInvalidSignature)
	})
}

func TestIssueValidatesClaims(t *testing.T) {
	manager := newTestManager(t, &testClock{now: time.Now()})

	_, err := manager.Issue(TokenAuth, Claims{EntityID: "a"}, 0)
	assert.ErrorIs(t, err, ErrInvalidClaims)
	_, err = manager.Issue(TokenEmailVerification, Claims{EntityID: "a", Email: "a@b.test", VerifyType: "parent"}, 0)
	assert.ErrorIs(t, err, ErrInvalidClaims)
	_, err = manager.Issue(TokenType("mfa"), Claims{EntityID: "a"}, 0)
	assert.ErrorIs(t, err, ErrInvalidClaims)
	_, err = manager.Issue(TokenRefresh, Claims{}, 0)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestExtractFromHeader(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"bearer":       {"Bearer abc.def.ghi", "abc.def.ghi", true},
		"lowercase":    {"bearer abc", "abc", true},
		"padded":       {"  Bearer   abc  ", "abc", true},
		"empty":        {"", "", false},
		"basic":        {"Basic dXNlcjpwYXNz", "", false},
		"scheme only":  {"Bearer", "", false},
		"blank token":  {"Bearer    ", "", false},
		"no separator": {"Bearerabc", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, ok := ExtractFromHeader(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
		})
	}
}
