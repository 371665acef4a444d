package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	patientKey     contextKey = "patientID"
	adminClaimsKey contextKey = "adminClaims"
)

func WithPatient(ctx context.Context, patientID uuid.UUID) context.Context {
	return context.WithValue(ctx, patientKey, patientID)
}

// PatientFromContext returns the authenticated patient if present.
func PatientFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(patientKey).(uuid.UUID)
	return id, ok
}

func WithAdminClaims(ctx context.Context, claims jwt.RegisteredClaims) context.Context {
	return context.WithValue(ctx, adminClaimsKey, claims)
}

// AdminClaimsFromContext returns admin JWT claims if present.
func AdminClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}
