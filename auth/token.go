// Package auth issues and verifies bearer session tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"forum/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalid covers absent, malformed, wrongly signed or wrongly typed tokens.
	ErrInvalid = errors.New("auth: invalid token")
	// ErrExpired is returned for a token that is otherwise valid but past its exp.
	ErrExpired = errors.New("auth: token expired")
)

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is what a verified token proves about the caller.
type Identity struct {
	UserID string
	Email  string
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) Issue(u *models.User) (string, error) {
	issuedAt := i.now()
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and freshness. The error is ErrExpired or ErrInvalid.
func (i *Issuer) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrInvalid
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, ErrExpired
	case err != nil, !token.Valid:
		return Identity{}, ErrInvalid
	}

	if claims.Email == "" || claims.UserID == "" {
		return Identity{}, ErrInvalid
	}
	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}
