package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credchain-api/internal/middleware"
	"github.com/noah-isme/credchain-api/internal/models"
	"github.com/noah-isme/credchain-api/internal/service"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
	"github.com/noah-isme/credchain-api/pkg/response"
)

// InstitutionHandler exposes institution lifecycle endpoints.
type InstitutionHandler struct {
	service *service.InstitutionService
}

// NewInstitutionHandler constructs an institution handler.
func NewInstitutionHandler(svc *service.InstitutionService) *InstitutionHandler {
	return &InstitutionHandler{service: svc}
}

// Register godoc
// @Summary Register institution
// @Description Registers an institution on chain and mirrors it off chain
// @Tags Institutions
// @Accept json
// @Produce json
// @Param payload body service.RegisterInstitutionRequest true "Institution payload"
// @Success 201 {object} response.Envelope
// @Router /institutions [post]
func (h *InstitutionHandler) Register(c *gin.Context) {
	session := chainSessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RegisterInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	institution, err := h.service.Register(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, institution)
}

// List godoc
// @Summary List institutions
// @Tags Institutions
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /institutions [get]
func (h *InstitutionHandler) List(c *gin.Context) {
	var filter models.InstitutionFilter
	if status := c.Query("status"); status != "" {
		filter.Status = models.InstitutionStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	institutions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institutions, pagination)
}

// Get godoc
// @Summary Get institution
// @Tags Institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id} [get]
func (h *InstitutionHandler) Get(c *gin.Context) {
	institution, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution, nil)
}

// OnChainDetails godoc
// @Summary On-chain institution record
// @Description Reads the canonical registry entry straight from the chain
// @Tags Institutions
// @Produce json
// @Param address path string true "Institution wallet address"
// @Success 200 {object} response.Envelope
// @Router /institutions/chain/{address} [get]
func (h *InstitutionHandler) OnChainDetails(c *gin.Context) {
	details, err := h.service.OnChainDetails(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// VerifyOnChain godoc
// @Summary Verify institution on chain
// @Tags Institutions
// @Produce json
// @Param address path string true "Institution wallet address"
// @Success 200 {object} response.Envelope
// @Router /institutions/chain/{address}/verify [post]
func (h *InstitutionHandler) VerifyOnChain(c *gin.Context) {
	session := chainSessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	receipt, err := h.service.VerifyOnChain(c.Request.Context(), session, c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// Suspend godoc
// @Summary Suspend institution
// @Description Blocks the institution from listings. Off-chain only.
// @Tags Institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id}/suspend [post]
func (h *InstitutionHandler) Suspend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	institution, err := h.service.Suspend(c.Request.Context(), claims.Account, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution, nil)
}

// Reactivate godoc
// @Summary Reactivate institution
// @Tags Institutions
// @Produce json
// @Param id path string true "Institution ID"
// @Success 200 {object} response.Envelope
// @Router /institutions/{id}/reactivate [post]
func (h *InstitutionHandler) Reactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	institution, err := h.service.Reactivate(c.Request.Context(), claims.Account, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution, nil)
}

// Stats godoc
// @Summary Registry statistics
// @Tags Institutions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /institutions/stats [get]
func (h *InstitutionHandler) Stats(c *gin.Context) {
	stats, cacheHit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
