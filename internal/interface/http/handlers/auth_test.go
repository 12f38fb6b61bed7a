package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/memory"
)

const secret = "unit-test-secret-that-is-32-bytes-or-more"

var now = time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func newVerifier() *JWTVerifier {
	return NewJWTVerifier(secret, "studypets", 0).WithClock(fixedNow)
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := newVerifier()

	tok, err := v.Sign(access.Actor{UserID: "s1", Role: access.RoleStudent}, time.Hour)
	require.NoError(t, err)

	actor, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "s1", actor.UserID)
	assert.Equal(t, access.RoleStudent, actor.Role)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	sign := func(claims Claims, method jwt.SigningMethod, key interface{}) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return tok
	}
	valid := func() Claims {
		return Claims{
			Role: "student",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "s1",
				Issuer:    "studypets",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	tests := []struct {
		name    string
		token   func() string
		message string
	}{
		{
			name: "expired",
			token: func() string {
				c := valid()
				c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
				return sign(c, jwt.SigningMethodHS256, []byte(secret))
			},
			message: "invalid token: expired",
		},
		{
			name: "no expiry",
			token: func() string {
				c := valid()
				c.ExpiresAt = nil
				return sign(c, jwt.SigningMethodHS256, []byte(secret))
			},
			message: "invalid token: missing expiry",
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := valid()
				c.Issuer = "someone-else"
				return sign(c, jwt.SigningMethodHS256, []byte(secret))
			},
			message: "invalid token: wrong issuer",
		},
		{
			name: "wrong key",
			token: func() string {
				return sign(valid(), jwt.SigningMethodHS256, []byte("a-different-secret-of-enough-length!"))
			},
			message: "invalid token: bad signature",
		},
		{
			name: "none algorithm",
			token: func() string {
				return sign(valid(), jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)
			},
			message: "invalid token: bad signature",
		},
		{
			name: "missing subject",
			token: func() string {
				c := valid()
				c.Subject = ""
				return sign(c, jwt.SigningMethodHS256, []byte(secret))
			},
			message: "invalid token: missing subject",
		},
		{
			name: "unknown role",
			token: func() string {
				c := valid()
				c.Role = "tutor"
				return sign(c, jwt.SigningMethodHS256, []byte(secret))
			},
			message: "invalid token: unknown role",
		},
		{
			name:    "garbage",
			token:   func() string { return "not.a.jwt" },
			message: "invalid token: malformed",
		},
	}

	v := newVerifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token())
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrUnauthorized))

			de, ok := shared.AsDomainError(err)
			require.True(t, ok)
			assert.Equal(t, tt.message, de.Message)
		})
	}
}

func TestJWTVerifier_Leeway(t *testing.T) {
	tok, err := newVerifier().Sign(access.Actor{UserID: "p1", Role: access.RoleParent}, time.Minute)
	require.NoError(t, err)

	late := func() time.Time { return now.Add(90 * time.Second) }

	_, err = NewJWTVerifier(secret, "studypets", 0).WithClock(late).Verify(tok)
	assert.Error(t, err)

	actor, err := NewJWTVerifier(secret, "studypets", time.Minute).WithClock(late).Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, access.RoleParent, actor.Role)
}

// ─────────────────────────────────────────────────────────────────────────────
// Authenticator
// ─────────────────────────────────────────────────────────────────────────────

func TestAuthenticator(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	key, err := access.IssueKey(ctx, db.Keys(), "billing", "billing sync", now)
	require.NoError(t, err)

	v := newVerifier()
	studentToken, err := v.Sign(access.Actor{UserID: "s1", Role: access.RoleStudent}, time.Hour)
	require.NoError(t, err)

	auth := NewAuthenticator(v, db.Keys())

	request := func(headers map[string]string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		for k, val := range headers {
			r.Header.Set(k, val)
		}
		return r
	}

	t.Run("anonymous", func(t *testing.T) {
		actor, err := auth.Authenticate(request(nil))
		require.NoError(t, err)
		assert.True(t, actor.IsZero())
	})

	t.Run("bearer token", func(t *testing.T) {
		actor, err := auth.Authenticate(request(map[string]string{"Authorization": "bearer " + studentToken}))
		require.NoError(t, err)
		assert.Equal(t, access.Actor{UserID: "s1", Role: access.RoleStudent}, actor)
	})

	t.Run("other scheme", func(t *testing.T) {
		_, err := auth.Authenticate(request(map[string]string{"Authorization": "Token " + studentToken}))
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})

	t.Run("api key wins over bearer", func(t *testing.T) {
		actor, err := auth.Authenticate(request(map[string]string{
			APIKeyHeader:    key,
			"Authorization": "Bearer " + studentToken,
		}))
		require.NoError(t, err)
		assert.Equal(t, access.RoleAdmin, actor.Role)
		assert.Equal(t, "key:billing", actor.UserID)
	})

	t.Run("wrong api key secret", func(t *testing.T) {
		_, err := auth.Authenticate(request(map[string]string{APIKeyHeader: "billing.wrong"}))
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})

	t.Run("api keys disabled", func(t *testing.T) {
		_, err := NewAuthenticator(v, nil).Authenticate(request(map[string]string{APIKeyHeader: key}))
		assert.True(t, errors.Is(err, shared.ErrUnauthorized))
	})
}

func TestActorContext(t *testing.T) {
	assert.True(t, ActorFromContext(context.Background()).IsZero())

	ctx := WithActor(context.Background(), access.Actor{UserID: "a1", Role: access.RoleAdmin})
	assert.Equal(t, "a1", ActorFromContext(ctx).UserID)
}
