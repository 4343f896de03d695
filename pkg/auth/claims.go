package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT. Token
// issuance belongs to the auth service; this package mints only for tests
// and local tooling.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.StaffRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by display clients.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.StaffRole `json:"role"`
	jwt.RegisteredClaims
}
