package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/studypets/studypets-core/internal/domain/access"
	"github.com/studypets/studypets-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// JWT VERIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Claims is the token payload issued by the identity service.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HMAC-signed bearer tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewJWTVerifier creates a verifier. An empty issuer skips the iss check.
func NewJWTVerifier(secret, issuer string, leeway time.Duration) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: leeway,
		now:    time.Now,
	}
}

// WithClock overrides the time source used for exp/nbf checks.
func (v *JWTVerifier) WithClock(now func() time.Time) *JWTVerifier {
	v.now = now
	return v
}

// Verify parses the token and returns the caller it names.
func (v *JWTVerifier) Verify(token string) (access.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return access.Actor{}, shared.ErrNotAuthenticated.WithMessage("invalid token: %s", tokenProblem(err))
	}
	if claims.Subject == "" {
		return access.Actor{}, shared.ErrNotAuthenticated.WithMessage("invalid token: missing subject")
	}

	role, err := access.ParseRole(claims.Role)
	if err != nil {
		return access.Actor{}, shared.ErrNotAuthenticated.WithMessage("invalid token: unknown role")
	}
	return access.Actor{UserID: claims.Subject, Role: role}, nil
}

// Sign issues a token for the actor. The API never issues tokens itself;
// this serves local development and tests.
func (v *JWTVerifier) Sign(actor access.Actor, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// tokenProblem gives a short reason without echoing token contents.
func tokenProblem(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not valid yet"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "wrong issuer"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing expiry"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad signature"
	default:
		return "malformed"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATOR
// ══════════════════════════════════════════════════════════════════════════════

// TokenVerifier turns a bearer token into an actor.
type TokenVerifier interface {
	Verify(token string) (access.Actor, error)
}

// APIKeyHeader carries integration keys.
const APIKeyHeader = "X-API-Key"

// Authenticator resolves the caller from request credentials.
type Authenticator struct {
	tokens TokenVerifier
	keys   access.KeyRepository
}

// NewAuthenticator creates an authenticator. keys may be nil, which disables
// integration keys.
func NewAuthenticator(tokens TokenVerifier, keys access.KeyRepository) *Authenticator {
	return &Authenticator{tokens: tokens, keys: keys}
}

// Authenticate returns the caller, or the zero actor when the request
// carries no credentials. Present but invalid credentials are an error.
func (a *Authenticator) Authenticate(r *http.Request) (access.Actor, error) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		if a.keys == nil {
			return access.Actor{}, shared.ErrNotAuthenticated
		}
		return access.VerifyKey(r.Context(), a.keys, key)
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return access.Actor{}, nil
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return access.Actor{}, shared.ErrNotAuthenticated.WithMessage("expected a bearer token")
	}
	return a.tokens.Verify(strings.TrimSpace(token))
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type actorKey struct{}

// WithActor attaches the caller to the context.
func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller, or the zero actor.
func ActorFromContext(ctx context.Context) access.Actor {
	actor, _ := ctx.Value(actorKey{}).(access.Actor)
	return actor
}
