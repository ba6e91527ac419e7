package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the JWT payload for a wallet session token. The account
// address is the caller identity every chain-call site receives.
type SessionClaims struct {
	Account string `json:"account"`
	ChainID uint64 `json:"chain_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// WalletSession describes an established wallet connection.
type WalletSession struct {
	Account   string `json:"account"`
	ChainID   uint64 `json:"chain_id"`
	IsAdmin   bool   `json:"is_admin"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}
