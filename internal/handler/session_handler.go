package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credchain-api/internal/service"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
	"github.com/noah-isme/credchain-api/pkg/response"
)

// SessionHandler exposes wallet session endpoints.
type SessionHandler struct {
	service *service.SessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// Connect godoc
// @Summary Connect wallet
// @Description Establishes a wallet session and returns a bearer token
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/connect [post]
func (h *SessionHandler) Connect(c *gin.Context) {
	session, err := h.service.Connect(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Current godoc
// @Summary Current session
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session [get]
func (h *SessionHandler) Current(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"account":  claims.Account,
		"chain_id": claims.ChainID,
		"is_admin": claims.IsAdmin,
	}, nil)
}

// Disconnect godoc
// @Summary Disconnect wallet
// @Description Revokes the session token for the rest of its lifetime
// @Tags Sessions
// @Produce json
// @Success 204
// @Router /session/disconnect [post]
func (h *SessionHandler) Disconnect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Disconnect(c.Request.Context(), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
