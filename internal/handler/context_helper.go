package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credchain-api/internal/chain"
	"github.com/noah-isme/credchain-api/internal/middleware"
	"github.com/noah-isme/credchain-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.SessionClaims {
	value, exists := c.Get(middleware.ContextSessionKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// chainSessionFromContext rebuilds the signing session from verified claims.
func chainSessionFromContext(c *gin.Context) *chain.Session {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return &chain.Session{Account: claims.Account, ChainID: claims.ChainID}
}
