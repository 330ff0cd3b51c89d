package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/ibistek-uty/incubation-api/internal/domain"
)

// ErrTokenInvalid is returned for every verification failure. Malformed,
// tampered and expired tokens are deliberately indistinguishable to callers.
var ErrTokenInvalid = errors.New("invalid token")

// TokenCodec issues and verifies signed identity tokens. It is a pure
// function of its secret, ttl and clock; no state is shared between calls.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec. The ttl defaults to 7 days, matching the
// auth cookie lifetime. A nil clock falls back to time.Now.
func NewTokenCodec(secret string, ttl time.Duration, now func() time.Time) *TokenCodec {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: now}
}

// Claims describes the JWT payload: subject id and role plus the standard
// issued-at/expiry fields.
type Claims struct {
	UserID string      `json:"id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a token for the identity and returns it with its expiry.
func (tc *TokenCodec) Issue(identity domain.Identity) (string, time.Time, error) {
	issuedAt := tc.now()
	expiresAt := issuedAt.Add(tc.ttl)
	claims := &Claims{
		UserID: identity.UserID,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify checks the signature and expiry and returns the embedded identity.
// Any failure, for any reason, is ErrTokenInvalid.
func (tc *TokenCodec) Verify(tokenStr string) (domain.Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return tc.secret, nil
	}, jwt.WithTimeFunc(tc.now))
	if err != nil {
		return domain.Identity{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Identity{}, ErrTokenInvalid
	}
	if claims.UserID == "" || !domain.ValidRole(claims.Role) {
		return domain.Identity{}, ErrTokenInvalid
	}
	return domain.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// TTL exposes the configured token lifetime for cookie max-age.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}
