package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess TokenType = "access"
	TokenTypeForm   TokenType = "form"
)

// Claims are the only supported JWT claims shape for this service.
// Access tokens carry the admin username (also the subject) and role.
// Form tokens carry neither; they only prove the form was served by us.
type Claims struct {
	jwt.RegisteredClaims

	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
}
