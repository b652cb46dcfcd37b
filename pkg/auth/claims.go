package auth

import (
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by callers.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the caller identity every service operation receives.
type Principal struct {
	UserID uuid.UUID
	Role   enums.Role
}

// SystemPrincipal acts on behalf of background jobs and gateway callbacks.
func SystemPrincipal() Principal {
	return Principal{Role: enums.RoleSystem}
}

func (p Principal) IsAdmin() bool    { return p.Role == enums.RoleAdmin }
func (p Principal) IsOwner() bool    { return p.Role == enums.RoleOwner }
func (p Principal) IsCustomer() bool { return p.Role == enums.RoleCustomer }
func (p Principal) IsSystem() bool   { return p.Role == enums.RoleSystem }

// ActorID returns the user id, or nil for the system principal.
func (p Principal) ActorID() *uuid.UUID {
	if p.UserID == uuid.Nil {
		return nil
	}
	id := p.UserID
	return &id
}

// Principal converts verified claims into the caller principal.
func (c AccessTokenClaims) Principal() Principal {
	return Principal{UserID: c.UserID, Role: c.Role}
}
