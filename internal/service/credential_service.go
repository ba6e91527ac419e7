package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/internal/auth"
	"github.com/noah-isme/credchain-api/internal/chain"
	"github.com/noah-isme/credchain-api/internal/content"
	"github.com/noah-isme/credchain-api/internal/models"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
	"github.com/noah-isme/credchain-api/pkg/ethaddr"
	"github.com/noah-isme/credchain-api/pkg/export"
)

type credentialRepository interface {
	Create(ctx context.Context, cred *models.Credential) error
	List(ctx context.Context, filter models.CredentialFilter) ([]models.Credential, int, error)
	FindByID(ctx context.Context, id string) (*models.Credential, error)
	FindByCID(ctx context.Context, cid string) (*models.Credential, error)
	FindActiveByDocumentHash(ctx context.Context, documentHash string) (*models.Credential, error)
	Revoke(ctx context.Context, id, reason string, at time.Time) error
}

type transcriptManager interface {
	Issue(ctx context.Context, session *chain.Session, args chain.IssueArgs) (*chain.Receipt, error)
	Invalidate(ctx context.Context, session *chain.Session, transcriptID uint64) (*chain.Receipt, error)
	Verify(ctx context.Context, cid string) (*models.ChainCredential, error)
	Details(ctx context.Context, transcriptID uint64) (*models.ChainCredential, error)
	ByStudent(ctx context.Context, studentAddress string) ([]models.ChainCredential, error)
	CIDExists(ctx context.Context, cid string) (bool, error)
	Count(ctx context.Context) (uint64, error)
}

// CredentialService orchestrates issuance and revocation across the content
// store, the transcript contract and the off-chain store.
type CredentialService struct {
	repo         credentialRepository
	institutions institutionRepository
	intents      intentRepository
	transcripts  transcriptManager
	store        content.Store
	policy       auth.Policy
	cache        chainReadCache
	cacheTTL     time.Duration
	maxFileBytes int64
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCredentialService constructs the service.
func NewCredentialService(repo credentialRepository, institutions institutionRepository, intents intentRepository, transcripts transcriptManager, store content.Store, policy auth.Policy, cache chainReadCache, cacheTTL time.Duration, maxFileBytes int64, validate *validator.Validate, logger *zap.Logger) *CredentialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if maxFileBytes <= 0 {
		maxFileBytes = 10 * 1024 * 1024
	}
	return &CredentialService{
		repo:         repo,
		institutions: institutions,
		intents:      intents,
		transcripts:  transcripts,
		store:        store,
		policy:       policy,
		cache:        cache,
		cacheTTL:     cacheTTL,
		maxFileBytes: maxFileBytes,
		validator:    validate,
		logger:       logger,
	}
}

// IssueCredentialRequest describes the issuance payload.
type IssueCredentialRequest struct {
	StudentAddress     string `json:"student_address" validate:"required"`
	StudentID          string `json:"student_id" validate:"required"`
	DegreeType         string `json:"degree_type" validate:"required"`
	GraduationYear     int    `json:"graduation_year" validate:"required,min=1900,max=2200"`
	InstitutionAddress string `json:"institution_address" validate:"required"`
	FileName           string `json:"file_name" validate:"required"`
	File               []byte `json:"-"`
}

var pdfMagic = []byte("%PDF-")

// Issue runs the full issuance pipeline: hash, pin, duplicate guard, chain
// write, off-chain persist. Each step is a failure point; nothing later runs
// after an earlier step fails.
func (s *CredentialService) Issue(ctx context.Context, session *chain.Session, req IssueCredentialRequest) (*models.Credential, error) {
	admin := s.policy.Allow(session.Account, auth.OpIssueCredential)
	if !admin && !ethaddr.Equal(session.Account, req.InstitutionAddress) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the issuing institution or admin may issue credentials")
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !ethaddr.IsValid(req.StudentAddress) {
		return nil, appErrors.Clone(appErrors.ErrInvalidAddress, "invalid student address")
	}
	if !ethaddr.IsValid(req.InstitutionAddress) {
		return nil, appErrors.Clone(appErrors.ErrInvalidAddress, "invalid institution address")
	}
	degree, err := models.ParseDegreeType(req.DegreeType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown degree type")
	}
	if err := s.validateFile(req.File); err != nil {
		return nil, err
	}

	institutionAddress := ethaddr.Normalize(req.InstitutionAddress)
	studentAddress := ethaddr.Normalize(req.StudentAddress)

	issuer, err := s.institutions.FindByAddress(ctx, institutionAddress)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "issuing institution is not registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issuing institution")
	}
	if issuer.Status != models.InstitutionActive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "issuing institution is suspended")
	}

	// Step 1: deterministic content hash, computed before upload.
	documentHash := content.DocumentHash(req.File)

	// Off-chain half of the duplicate guard, before spending an upload.
	if existing, err := s.repo.FindActiveByDocumentHash(ctx, documentHash); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateContent, "a credential for this document already exists")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing credentials")
	}

	// Step 2: pin to the content store. Fail fast: no chain or store writes
	// happen after an upload failure. The store dedups identical bytes, so a
	// retry after a later failure re-pins without creating duplicates.
	pin, err := s.store.Pin(ctx, req.FileName, req.File, map[string]string{
		"studentAddress":     studentAddress,
		"institutionAddress": institutionAddress,
		"credentialType":     degree.String(),
		"graduationYear":     strconv.Itoa(req.GraduationYear),
	})
	if err != nil {
		return nil, err
	}

	// On-chain half of the duplicate guard, before wasting a transaction.
	exists, err := s.transcripts.CIDExists(ctx, pin.CID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateContent, "this content is already issued on chain")
	}

	record := &models.Credential{
		StudentID:          req.StudentID,
		StudentAddress:     studentAddress,
		InstitutionAddress: institutionAddress,
		DegreeType:         degree,
		GraduationYear:     req.GraduationYear,
		DocumentHash:       documentHash,
		IPFSCID:            pin.CID,
		IPFSURL:            pin.URL,
		Status:             models.CredentialActive,
		CreatedAt:          time.Now().UTC(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode intent payload")
	}
	intent := &models.WriteIntent{Kind: models.IntentCredentialIssue, Payload: payload}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record write intent")
	}

	// Step 3: on-chain issuance. A pinned file with no chain reference is
	// acceptable; the caller simply retries.
	receipt, err := s.transcripts.Issue(ctx, session, chain.IssueArgs{
		StudentID:      req.StudentID,
		IPFSCID:        pin.CID,
		DocumentHash:   documentHash,
		DegreeType:     degree,
		StudentAddress: studentAddress,
		GraduationYear: req.GraduationYear,
	})
	if err != nil {
		if abortErr := s.intents.MarkAborted(ctx, intent.ID, err.Error()); abortErr != nil {
			s.logger.Warn("failed to abort intent", zap.String("intent_id", intent.ID), zap.Error(abortErr))
		}
		return nil, err
	}
	if err := s.intents.MarkChainConfirmed(ctx, intent.ID, receipt.TxHash, receipt.BlockNumber); err != nil {
		s.logger.Warn("failed to mark intent chain-confirmed", zap.String("intent_id", intent.ID), zap.Error(err))
	}

	record.TransactionHash = receipt.TxHash
	record.BlockNumber = receipt.BlockNumber
	if onChain, err := s.transcripts.Verify(ctx, pin.CID); err == nil {
		record.ChainID = &onChain.ID
	}

	// Step 4: off-chain mirror.
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("credential issued on chain but off-chain persist failed",
			zap.String("cid", pin.CID),
			zap.String("tx_hash", receipt.TxHash),
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrInconsistentState.Code, appErrors.ErrInconsistentState.Status,
			"credential issued on chain but off-chain record could not be written; reconciliation pending")
	}
	if err := s.intents.MarkCompleted(ctx, intent.ID); err != nil {
		s.logger.Warn("failed to complete intent", zap.String("intent_id", intent.ID), zap.Error(err))
	}

	s.logger.Info("credential issued",
		zap.String("credential_id", record.ID),
		zap.String("cid", pin.CID),
		zap.String("student", studentAddress),
		zap.String("institution", institutionAddress),
	)
	return record, nil
}

func (s *CredentialService) validateFile(data []byte) error {
	if len(data) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no file provided")
	}
	if int64(len(data)) > s.maxFileBytes {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d MB limit", s.maxFileBytes/(1024*1024)))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return appErrors.Clone(appErrors.ErrValidation, "only PDF files are accepted")
	}
	return nil
}

// RevokeCredentialRequest carries the revocation reason, persisted verbatim.
type RevokeCredentialRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Revoke flips the credential to Revoked off chain and invalidates it on
// chain. The two writes are independent; an off-chain failure after the chain
// invalidation is surfaced as a repairable inconsistency. Revoking an already
// revoked credential is a no-op.
func (s *CredentialService) Revoke(ctx context.Context, session *chain.Session, credentialID string, req RevokeCredentialRequest) (*models.Credential, error) {
	cred, err := s.repo.FindByID(ctx, credentialID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "credential not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credential")
	}

	admin := s.policy.Allow(session.Account, auth.OpRevokeCredential)
	if !admin && !ethaddr.Equal(session.Account, cred.InstitutionAddress) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the issuing institution or admin may revoke")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	if cred.Status == models.CredentialRevoked {
		return cred, nil
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(map[string]interface{}{
		"credential_id": cred.ID,
		"reason":        req.Reason,
		"revoked_at":    now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode intent payload")
	}
	intent := &models.WriteIntent{Kind: models.IntentCredentialRevoke, Payload: payload}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record write intent")
	}

	if cred.ChainID != nil {
		receipt, err := s.transcripts.Invalidate(ctx, session, *cred.ChainID)
		if err != nil {
			if abortErr := s.intents.MarkAborted(ctx, intent.ID, err.Error()); abortErr != nil {
				s.logger.Warn("failed to abort intent", zap.String("intent_id", intent.ID), zap.Error(abortErr))
			}
			return nil, err
		}
		if err := s.intents.MarkChainConfirmed(ctx, intent.ID, receipt.TxHash, receipt.BlockNumber); err != nil {
			s.logger.Warn("failed to mark intent chain-confirmed", zap.String("intent_id", intent.ID), zap.Error(err))
		}
	} else if err := s.intents.MarkChainConfirmed(ctx, intent.ID, cred.TransactionHash, cred.BlockNumber); err != nil {
		s.logger.Warn("failed to mark intent chain-confirmed", zap.String("intent_id", intent.ID), zap.Error(err))
	}

	if err := s.repo.Revoke(ctx, cred.ID, req.Reason, now); err != nil {
		if err == sql.ErrNoRows {
			// Lost the race with another revocation; the terminal state is
			// identical either way.
			if err := s.intents.MarkCompleted(ctx, intent.ID); err != nil {
				s.logger.Warn("failed to complete intent", zap.String("intent_id", intent.ID), zap.Error(err))
			}
			return s.getRefreshed(ctx, cred.ID)
		}
		s.logger.Error("credential invalidated on chain but off-chain revoke failed",
			zap.String("credential_id", cred.ID),
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrInconsistentState.Code, appErrors.ErrInconsistentState.Status,
			"credential invalidated on chain but off-chain record could not be updated; reconciliation pending")
	}
	if err := s.intents.MarkCompleted(ctx, intent.ID); err != nil {
		s.logger.Warn("failed to complete intent", zap.String("intent_id", intent.ID), zap.Error(err))
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, verifyCacheKey(cred.IPFSCID))
	}

	cred.Status = models.CredentialRevoked
	cred.RevokedAt = &now
	cred.RevocationReason = &req.Reason
	return cred, nil
}

func (s *CredentialService) getRefreshed(ctx context.Context, id string) (*models.Credential, error) {
	cred, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload credential")
	}
	return cred, nil
}

func verifyCacheKey(cid string) string {
	return "chain:verify:" + cid
}

// Verify resolves the canonical on-chain record for a CID. Third parties that
// need guaranteed authenticity use this, never the off-chain listing. The
// second return value reports whether the cache answered.
func (s *CredentialService) Verify(ctx context.Context, cid string) (*models.ChainCredential, bool, error) {
	if cid == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "cid is required")
	}
	if s.cache != nil {
		cached := &models.ChainCredential{}
		if err := s.cache.Get(ctx, verifyCacheKey(cid), cached); err == nil {
			return cached, true, nil
		}
	}
	cred, err := s.transcripts.Verify(ctx, cid)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, verifyCacheKey(cid), cred, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache verification result", zap.String("cid", cid), zap.Error(err))
		}
	}
	return cred, false, nil
}

// GetOnChain resolves a transcript by its on-chain numeric id.
func (s *CredentialService) GetOnChain(ctx context.Context, transcriptID uint64) (*models.ChainCredential, error) {
	return s.transcripts.Details(ctx, transcriptID)
}

// ListOnChainByStudent reads every transcript the contract holds for a wallet.
func (s *CredentialService) ListOnChainByStudent(ctx context.Context, studentAddress string) ([]models.ChainCredential, error) {
	if !ethaddr.IsValid(studentAddress) {
		return nil, appErrors.Clone(appErrors.ErrInvalidAddress, "invalid student address")
	}
	return s.transcripts.ByStudent(ctx, ethaddr.Normalize(studentAddress))
}

// OnChainCount reads the total transcript counter from the contract.
func (s *CredentialService) OnChainCount(ctx context.Context) (uint64, error) {
	return s.transcripts.Count(ctx)
}

// Get returns the off-chain record by document id.
func (s *CredentialService) Get(ctx context.Context, id string) (*models.Credential, error) {
	cred, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "credential not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credential")
	}
	return cred, nil
}

// List filters off-chain credential records, most recent first.
func (s *CredentialService) List(ctx context.Context, filter models.CredentialFilter) ([]models.Credential, *models.Pagination, error) {
	if filter.StudentAddress != "" && !ethaddr.IsValid(filter.StudentAddress) {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidAddress, "invalid student address")
	}
	if filter.InstitutionAddress != "" && !ethaddr.IsValid(filter.InstitutionAddress) {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidAddress, "invalid institution address")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	credentials, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list credentials")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return credentials, pagination, nil
}

// ExportRegister renders an institution's issued-credential register.
func (s *CredentialService) ExportRegister(ctx context.Context, institutionAddress, format string) ([]byte, string, error) {
	if !ethaddr.IsValid(institutionAddress) {
		return nil, "", appErrors.Clone(appErrors.ErrInvalidAddress, "invalid institution address")
	}
	credentials, _, err := s.repo.List(ctx, models.CredentialFilter{
		InstitutionAddress: institutionAddress,
		PageSize:           100,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credential register")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Student", "Degree", "Year", "CID", "Status", "Issued At"},
	}
	for _, c := range credentials {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":        c.ID,
			"Student":   c.StudentAddress,
			"Degree":    c.DegreeType.String(),
			"Year":      strconv.Itoa(c.GraduationYear),
			"CID":       c.IPFSCID,
			"Status":    string(c.Status),
			"Issued At": c.CreatedAt.Format(time.RFC3339),
		})
	}

	switch format {
	case "pdf":
		data, err := export.NewPDFExporter().Render(dataset, "Credential Register")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return data, "application/pdf", nil
	default:
		data, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return data, "text/csv", nil
	}
}
