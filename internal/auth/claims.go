package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

// TokenTypeAccess is the only token type the API accepts.
const TokenTypeAccess TokenType = "access"

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: OrganizationID is present on every token.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           string    `json:"role"`
	TokenType      TokenType `json:"token_type"`
}

// Identity is the authenticated caller as seen by handlers.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           string
}
