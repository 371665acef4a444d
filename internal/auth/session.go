package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoSecret     = errors.New("signing secret is not configured")
)

// Sessions issues patient session tokens. A token is an HS256 JWT whose jti names a Redis key;
// the session is live only while that key exists, so logout takes effect before expiry.
type Sessions struct {
	client *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(client *redis.Client, secret string, ttl time.Duration) *Sessions {
	return &Sessions{
		client: client,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func sessionKey(jti string) string {
	return "session:" + jti
}

// Issue starts a session for the patient and returns its token.
func (s *Sessions) Issue(ctx context.Context, patientID uuid.UUID) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoSecret
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   patientID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(claims.ID), claims.Subject, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return signed, nil
}

// Verify returns the patient a live session token belongs to.
func (s *Sessions) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.parse(token)
	if err != nil {
		return uuid.Nil, err
	}

	owner, err := s.client.Get(ctx, sessionKey(claims.ID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrUnauthorized
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load session: %w", err)
	}
	if owner != claims.Subject {
		return uuid.Nil, ErrUnauthorized
	}

	patientID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	return patientID, nil
}

// Revoke ends the session. Revoking an unknown or already revoked session is not an error.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, sessionKey(claims.ID)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Sessions) parse(token string) (*jwt.RegisteredClaims, error) {
	if len(s.secret) == 0 {
		return nil, ErrNoSecret
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, hmacKey(s.secret),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func hmacKey(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}
}
