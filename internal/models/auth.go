package models

import "github.com/golang-jwt/jwt/v5"

// Roles carried in bearer tokens
const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

// TokenClaims identifies the operator or auth service calling the API
type TokenClaims struct {
	Type    string `json:"type"`
	Subject string `json:"sub_name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}
