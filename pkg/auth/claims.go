package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the only role allowed on the operator routes.
const RoleOperator = "operator"

// OperatorClaims represents the JWT presented to operator routes.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IsOperator reports whether the claims carry the operator role.
func (c *OperatorClaims) IsOperator() bool {
	return c != nil && c.Role == RoleOperator
}
