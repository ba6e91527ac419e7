package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/internal/auth"
	"github.com/noah-isme/credchain-api/internal/chain"
	"github.com/noah-isme/credchain-api/internal/models"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
	"github.com/noah-isme/credchain-api/pkg/ethaddr"
)

type institutionRepository interface {
	Create(ctx context.Context, inst *models.Institution) error
	List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, int, error)
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	FindByAddress(ctx context.Context, address string) (*models.Institution, error)
	UpdateStatus(ctx context.Context, id string, version int, status models.InstitutionStatus, at time.Time) error
}

type intentRepository interface {
	Create(ctx context.Context, intent *models.WriteIntent) error
	MarkChainConfirmed(ctx context.Context, id, txHash string, blockNumber uint64) error
	MarkCompleted(ctx context.Context, id string) error
	MarkAborted(ctx context.Context, id string, cause string) error
}

type institutionRegistry interface {
	Register(ctx context.Context, session *chain.Session, institutionAddress, name, country string) (*chain.Receipt, error)
	Verify(ctx context.Context, session *chain.Session, institutionAddress string) (*chain.Receipt, error)
	IsVerified(ctx context.Context, institutionAddress string) (bool, error)
	Details(ctx context.Context, institutionAddress string) (*models.ChainInstitution, error)
	Stats(ctx context.Context) (*models.InstitutionStats, error)
}

type chainReadCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InstitutionService orchestrates the institution lifecycle across the chain
// registry and the off-chain store.
type InstitutionService struct {
	repo      institutionRepository
	intents   intentRepository
	registry  institutionRegistry
	policy    auth.Policy
	cache     chainReadCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstitutionService constructs the service.
func NewInstitutionService(repo institutionRepository, intents intentRepository, registry institutionRegistry, policy auth.Policy, cache chainReadCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *InstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &InstitutionService{
		repo:      repo,
		intents:   intents,
		registry:  registry,
		policy:    policy,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// RegisterInstitutionRequest describes the registration payload.
type RegisterInstitutionRequest struct {
	Address string `json:"address" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Country string `json:"country" validate:"required"`
}

const statsCacheKey = "chain:institution_stats"

// Register performs the two-phase registration: on-chain transaction first,
// off-chain record on confirmation. The admin gate and input validation run
// before any side effect.
func (s *InstitutionService) Register(ctx context.Context, session *chain.Session, req RegisterInstitutionRequest) (*models.Institution, error) {
	if !s.policy.Allow(session.Account, auth.OpRegisterInstitution) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only: institution registration")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Country = strings.TrimSpace(req.Country)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !ethaddr.IsValid(req.Address) {
		return nil, appErrors.Clone(appErrors.ErrInvalidAddress, "invalid institution address")
	}
	address := ethaddr.Normalize(req.Address)

	// One off-chain record per address. The store enforces this too, but
	// checking here avoids wasting a transaction.
	if existing, err := s.repo.FindByAddress(ctx, address); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "institution already registered")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing institution")
	}

	record := &models.Institution{
		Address:      address,
		Name:         req.Name,
		Country:      req.Country,
		Status:       models.InstitutionActive,
		RegisteredBy: session.Account,
		CreatedAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode intent payload")
	}
	intent := &models.WriteIntent{Kind: models.IntentInstitutionRegister, Payload: payload}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record write intent")
	}

	receipt, err := s.registry.Register(ctx, session, address, req.Name, req.Country)
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
	if err := s.repo.Create(ctx, record); err != nil {
		// On-chain state exists without its off-chain mirror. Surface the
		// inconsistency distinctly; the intent stays behind for repair.
		s.logger.Error("institution registered on chain but off-chain persist failed",
			zap.String("address", address),
			zap.String("tx_hash", receipt.TxHash),
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrInconsistentState.Code, appErrors.ErrInconsistentState.Status,
			"institution registered on chain but off-chain record could not be written; reconciliation pending")
	}
	if err := s.intents.MarkCompleted(ctx, intent.ID); err != nil {
		s.logger.Warn("failed to complete intent", zap.String("intent_id", intent.ID), zap.Error(err))
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, statsCacheKey)
	}
	return record, nil
}

// VerifyOnChain flips the registry isVerified flag for an institution. A
// repeat verification surfaces as an already-verified condition, not a
// generic revert.
func (s *InstitutionService) VerifyOnChain(ctx context.Context, session *chain.Session, address string) (*chain.Receipt, error) {
	if !s.policy.Allow(session.Account, auth.OpVerifyInstitution) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only: institution verification")
	}
	if !ethaddr.IsValid(address) {
		return nil, appErrors.Clone(appErrors.ErrInvalidAddress, "invalid institution address")
	}

	receipt, err := s.registry.Verify(ctx, session, ethaddr.Normalize(address))
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, statsCacheKey)
	}
	return receipt, nil
}

// Suspend flips the off-chain record to Suspended. Suspension is a listing
// concern and never touches the chain: the on-chain isVerified flag remains
// the trust anchor. Suspending an already suspended record is a no-op.
func (s *InstitutionService) Suspend(ctx context.Context, caller string, institutionID string) (*models.Institution, error) {
	return s.transition(ctx, caller, institutionID, models.InstitutionSuspended)
}

// Reactivate flips the off-chain record back to Active. Reactivating an
// already active record is a no-op.
func (s *InstitutionService) Reactivate(ctx context.Context, caller string, institutionID string) (*models.Institution, error) {
	return s.transition(ctx, caller, institutionID, models.InstitutionActive)
}

func (s *InstitutionService) transition(ctx context.Context, caller string, institutionID string, target models.InstitutionStatus) (*models.Institution, error) {
	if !s.policy.Allow(caller, auth.OpSuspendInstitution) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only: institution status change")
	}

	inst, err := s.repo.FindByID(ctx, institutionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}

	if inst.Status == target {
		return inst, nil
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, inst.ID, inst.Version, target, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "institution updated concurrently, retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update institution status")
	}

	inst.Status = target
	inst.Version++
	if target == models.InstitutionSuspended {
		inst.SuspendedAt = &now
	} else {
		inst.ReactivatedAt = &now
	}
	s.logger.Info("institution status changed",
		zap.String("institution_id", inst.ID),
		zap.String("status", string(target)),
		zap.String("caller", caller),
	)
	return inst, nil
}

// List returns off-chain institution records. Zero records is an empty
// listing, not an error.
func (s *InstitutionService) List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	institutions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institutions")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return institutions, pagination, nil
}

// Get returns a single off-chain record by document id.
func (s *InstitutionService) Get(ctx context.Context, id string) (*models.Institution, error) {
	inst, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}
	return inst, nil
}

// OnChainDetails reads the canonical registry entry for an address.
func (s *InstitutionService) OnChainDetails(ctx context.Context, address string) (*models.ChainInstitution, error) {
	if !ethaddr.IsValid(address) {
		return nil, appErrors.Clone(appErrors.ErrInvalidAddress, "invalid institution address")
	}
	return s.registry.Details(ctx, ethaddr.Normalize(address))
}

// Stats reads the registry counters, served from cache when fresh. The second
// return value reports whether the cache answered.
func (s *InstitutionService) Stats(ctx context.Context) (*models.InstitutionStats, bool, error) {
	if s.cache != nil {
		cached := &models.InstitutionStats{}
		if err := s.cache.Get(ctx, statsCacheKey, cached); err == nil {
			return cached, true, nil
		}
	}
	stats, err := s.registry.Stats(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache registry stats", zap.Error(err))
		}
	}
	return stats, false, nil
}
