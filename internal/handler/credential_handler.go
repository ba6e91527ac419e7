package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/credchain-api/internal/middleware"
	"github.com/noah-isme/credchain-api/internal/models"
	"github.com/noah-isme/credchain-api/internal/service"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
	"github.com/noah-isme/credchain-api/pkg/response"
)

// CredentialHandler exposes credential lifecycle and verification endpoints.
type CredentialHandler struct {
	service      *service.CredentialService
	maxFileBytes int64
}

// NewCredentialHandler constructs a credential handler.
func NewCredentialHandler(svc *service.CredentialService, maxFileBytes int64) *CredentialHandler {
	if maxFileBytes <= 0 {
		maxFileBytes = 10 * 1024 * 1024
	}
	return &CredentialHandler{service: svc, maxFileBytes: maxFileBytes}
}

// Issue godoc
// @Summary Issue credential
// @Description Pins the document, issues the transcript on chain and mirrors it off chain
// @Tags Credentials
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Credential document (PDF)"
// @Param student_address formData string true "Student wallet address"
// @Param student_id formData string true "Student identifier"
// @Param degree_type formData string true "Degree type name"
// @Param graduation_year formData int true "Graduation year"
// @Param institution_address formData string true "Issuing institution address"
// @Success 201 {object} response.Envelope
// @Router /credentials [post]
func (h *CredentialHandler) Issue(c *gin.Context) {
	session := chainSessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "credential document is required"))
		return
	}
	if fileHeader.Size > h.maxFileBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds the size limit"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open uploaded file"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.maxFileBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read uploaded file"))
		return
	}

	graduationYear, _ := strconv.Atoi(c.PostForm("graduation_year"))
	req := service.IssueCredentialRequest{
		StudentAddress:     c.PostForm("student_address"),
		StudentID:          c.PostForm("student_id"),
		DegreeType:         c.PostForm("degree_type"),
		GraduationYear:     graduationYear,
		InstitutionAddress: c.PostForm("institution_address"),
		FileName:           fileHeader.Filename,
		File:               data,
	}

	credential, err := h.service.Issue(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, credential)
}

// Revoke godoc
// @Summary Revoke credential
// @Tags Credentials
// @Accept json
// @Produce json
// @Param id path string true "Credential ID"
// @Param payload body service.RevokeCredentialRequest true "Revocation reason"
// @Success 200 {object} response.Envelope
// @Router /credentials/{id}/revoke [post]
func (h *CredentialHandler) Revoke(c *gin.Context) {
	session := chainSessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RevokeCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	credential, err := h.service.Revoke(c.Request.Context(), session, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credential, nil)
}

// Verify godoc
// @Summary Verify credential
// @Description Resolves the canonical on-chain record for a content identifier
// @Tags Credentials
// @Produce json
// @Param cid path string true "Content identifier"
// @Success 200 {object} response.Envelope
// @Router /credentials/verify/{cid} [get]
func (h *CredentialHandler) Verify(c *gin.Context) {
	credential, cacheHit, err := h.service.Verify(c.Request.Context(), c.Param("cid"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, credential, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get credential
// @Tags Credentials
// @Produce json
// @Param id path string true "Credential ID"
// @Success 200 {object} response.Envelope
// @Router /credentials/{id} [get]
func (h *CredentialHandler) Get(c *gin.Context) {
	credential, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credential, nil)
}

// GetOnChain godoc
// @Summary Get on-chain transcript
// @Tags Credentials
// @Produce json
// @Param id path int true "On-chain transcript ID"
// @Success 200 {object} response.Envelope
// @Router /credentials/chain/{id} [get]
func (h *CredentialHandler) GetOnChain(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "transcript id must be numeric"))
		return
	}
	credential, err := h.service.GetOnChain(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credential, nil)
}

// ListOnChainByStudent godoc
// @Summary List a student's on-chain transcripts
// @Tags Credentials
// @Produce json
// @Param address path string true "Student wallet address"
// @Success 200 {object} response.Envelope
// @Router /credentials/chain/student/{address} [get]
func (h *CredentialHandler) ListOnChainByStudent(c *gin.Context) {
	credentials, err := h.service.ListOnChainByStudent(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credentials, nil)
}

// OnChainCount godoc
// @Summary Total on-chain transcript count
// @Tags Credentials
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /credentials/chain/count [get]
func (h *CredentialHandler) OnChainCount(c *gin.Context) {
	count, err := h.service.OnChainCount(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": count}, nil)
}

// List godoc
// @Summary List credentials
// @Tags Credentials
// @Produce json
// @Param student query string false "Filter by student address"
// @Param institution query string false "Filter by institution address"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /credentials [get]
func (h *CredentialHandler) List(c *gin.Context) {
	var filter models.CredentialFilter
	filter.StudentAddress = c.Query("student")
	filter.InstitutionAddress = c.Query("institution")
	if status := c.Query("status"); status != "" {
		filter.Status = models.CredentialStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	credentials, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, credentials, pagination)
}

// ExportRegister godoc
// @Summary Export credential register
// @Description Renders an institution's issued credentials as CSV or PDF
// @Tags Credentials
// @Produce text/csv
// @Param address path string true "Institution wallet address"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /credentials/register/{address}/export [get]
func (h *CredentialHandler) ExportRegister(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	data, contentType, err := h.service.ExportRegister(c.Request.Context(), c.Param("address"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := "credential-register." + format
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
