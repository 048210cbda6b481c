package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasksync/internal/domain"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed JWT access token carrying the user's ID and role.
	GenerateToken(ctx context.Context, userID uuid.UUID, role domain.Role) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// It fails with ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the verified contents of an access token.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// Role is the user's role at the time the token was issued.
	Role domain.Role `json:"role,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// Identity returns the verified (identity, role) pair the rest of the
// application consumes.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{ID: c.UserID, Role: c.Role}
}
