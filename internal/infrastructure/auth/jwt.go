// Package auth resolves bearer tokens issued by the platform's identity
// service into learner ids. Token issuance lives elsewhere; Issue exists for
// tests and local tooling.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
)

// minSecretLength guards against trivially guessable HMAC keys.
const minSecretLength = 32

// ErrWeakSecret is returned when the signing secret is too short.
var ErrWeakSecret = errors.New("auth: JWT secret must be at least 32 characters")

// Config configures the JWT authenticator.
type Config struct {
	Secret string

	// Issuer, when set, must match the iss claim.
	Issuer string

	// Leeway tolerates clock skew on exp/nbf checks.
	Leeway time.Duration
}

// JWTAuthenticator validates HS256 tokens and returns their subject.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	parser *jwt.Parser
	now    func() time.Time
}

// NewJWTAuthenticator creates an authenticator for cfg.
func NewJWTAuthenticator(cfg Config) (*JWTAuthenticator, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, ErrWeakSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &JWTAuthenticator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		parser: jwt.NewParser(opts...),
		now:    time.Now,
	}, nil
}

// Authenticate validates a raw token and returns the learner id from its sub claim.
// Every failure is an ErrUnauthorized domain error.
func (a *JWTAuthenticator) Authenticate(_ context.Context, rawToken string) (string, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return "", shared.ErrMissingUser
	}

	claims := &jwt.RegisteredClaims{}
	token, err := a.parser.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", shared.WrapError("auth", "Authenticate", shared.ErrUnauthorized, "invalid token", err)
	}
	if !token.Valid {
		return "", shared.NewDomainError("auth", "Authenticate", shared.ErrUnauthorized, "invalid token")
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", shared.NewDomainError("auth", "Authenticate", shared.ErrUnauthorized, "token has no subject")
	}
	return subject, nil
}

// Issue signs a token for userID valid for ttl.
func (a *JWTAuthenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
