// Package session turns a signed ID token into the authenticated user id and
// carries it through contexts.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/challengeties/rewards/internal/errs"
)

// Verifier checks HS256 ID tokens issued by the auth backend.
type Verifier struct {
	key    []byte
	issuer string
}

// NewVerifier constructs a verifier. An empty issuer disables the issuer check.
func NewVerifier(key []byte, issuer string) *Verifier {
	return &Verifier{key: key, issuer: issuer}
}

// UserID validates the token and returns its subject.
func (v *Verifier) UserID(token string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return v.key, nil }, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", errs.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Issue signs a token for userID. Used by tooling and tests.
func Issue(key []byte, issuer, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

type ctxKey string

const userIDKey ctxKey = "rewards.userID"

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches the user id from ctx.
func UserIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
