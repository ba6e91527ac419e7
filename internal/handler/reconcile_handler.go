package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credchain-api/internal/auth"
	"github.com/noah-isme/credchain-api/internal/service"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
	"github.com/noah-isme/credchain-api/pkg/response"
)

// ReconcileHandler exposes the dual-write repair endpoints. Admin only.
type ReconcileHandler struct {
	service *service.ReconcileService
	policy  auth.Policy
}

// NewReconcileHandler constructs a reconcile handler.
func NewReconcileHandler(svc *service.ReconcileService, policy auth.Policy) *ReconcileHandler {
	return &ReconcileHandler{service: svc, policy: policy}
}

func (h *ReconcileHandler) authorize(c *gin.Context) bool {
	claims := claimsFromContext(c)
	if claims == nil || !h.policy.Allow(claims.Account, auth.OpReconcile) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "reconciliation is admin only"))
		return false
	}
	return true
}

// Pending godoc
// @Summary List intents awaiting reconciliation
// @Tags Reconciliation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reconcile/pending [get]
func (h *ReconcileHandler) Pending(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	pending, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Run godoc
// @Summary Reconcile one intent
// @Tags Reconciliation
// @Produce json
// @Param id path string true "Intent ID"
// @Success 200 {object} response.Envelope
// @Router /reconcile/{id} [post]
func (h *ReconcileHandler) Run(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	if err := h.service.Reconcile(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "reconciled"}, nil)
}

// RunAll godoc
// @Summary Queue all pending intents for reconciliation
// @Tags Reconciliation
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /reconcile [post]
func (h *ReconcileHandler) RunAll(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	queued, err := h.service.EnqueuePending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": queued}, nil)
}
