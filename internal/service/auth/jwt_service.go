// Package auth provides JWT-based authentication for the API surface. The
// service issues and validates HMAC-signed access tokens carrying the owner's
// user ID; the API middleware uses it to bind every request to an owner.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Claims holds the validated claims extracted from a token.
type Claims struct {
	UserID    uuid.UUID
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// JWTService issues and validates access tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for the user.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken validates an access token and returns its claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid, or ErrInvalidToken on
	// failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}
