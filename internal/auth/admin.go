package auth

import (
	"crypto/subtle"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminAudience = "clinic-admin"

// Admins issues and checks admin tokens for the single configured operator account.
type Admins struct {
	secret   []byte
	username string
	password string
	ttl      time.Duration
	now      func() time.Time
}

func NewAdmins(secret, username, password string, ttl time.Duration) *Admins {
	return &Admins{
		secret:   []byte(secret),
		username: username,
		password: password,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Login checks the credentials and returns a signed token with its expiry.
func (a *Admins) Login(username, password string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	if a.username == "" || a.password == "" {
		return "", time.Time{}, ErrUnauthorized
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return "", time.Time{}, ErrUnauthorized
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Audience:  jwt.ClaimStrings{adminAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify validates an admin token and returns its claims.
func (a *Admins) Verify(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	if len(a.secret) == 0 {
		return claims, ErrNoSecret
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, hmacKey(a.secret),
		jwt.WithTimeFunc(a.now),
		jwt.WithAudience(adminAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return jwt.RegisteredClaims{}, ErrUnauthorized
	}
	return claims, nil
}
