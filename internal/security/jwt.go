package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var (
	ErrExpired   = errors.New("token expired")
	ErrWrongKind = errors.New("wrong token kind")
	ErrInvalid   = errors.New("invalid token")
)

type Claims struct {
	Role string `json:"role,omitempty"`
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// MakeAccess embeds the role so downstream authorization never needs a
// database read while the token is live.
func MakeAccess(secret, uid, role string, ttl time.Duration) (string, error) {
	c := Claims{
		Role: role,
		Kind: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString([]byte(secret))
}

// MakeRefresh carries no role: the role is re-read from storage on refresh so
// a role change takes effect at the next rotation.
func MakeRefresh(secret, uid string, ttl time.Duration) (string, error) {
	c := Claims{
		Kind: KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString([]byte(secret))
}

// Parse verifies signature and expiry and that the token is of the expected
// kind, so a refresh token can never pass where an access token is required
// and vice versa.
func Parse(secret, token, kind string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalid
	}
	if c.Kind != kind {
		return nil, ErrWrongKind
	}
	return c, nil
}
