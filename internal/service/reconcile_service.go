package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/internal/models"
	"github.com/noah-isme/credchain-api/pkg/config"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
	"github.com/noah-isme/credchain-api/pkg/jobs"
)

type reconcileIntentRepository interface {
	intentRepository
	FindByID(ctx context.Context, id string) (*models.WriteIntent, error)
	ListPending(ctx context.Context, limit int) ([]models.WriteIntent, error)
	RecordFailure(ctx context.Context, id string, cause string) error
}

// ReconcileService repairs dual-write inconsistencies: intents whose chain
// phase confirmed but whose off-chain mirror never landed. The chain record is
// the source of truth, so repair only ever replays the off-chain phase from
// the stored payload.
type ReconcileService struct {
	intents      reconcileIntentRepository
	institutions institutionRepository
	credentials  credentialRepository
	cfg          config.ReconcileConfig
	queue        *jobs.Queue
	logger       *zap.Logger
}

// NewReconcileService constructs the service and its worker queue.
func NewReconcileService(intents reconcileIntentRepository, institutions institutionRepository, credentials credentialRepository, cfg config.ReconcileConfig, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconcileService{
		intents:      intents,
		institutions: institutions,
		credentials:  credentials,
		cfg:          cfg,
		logger:       logger,
	}
	s.queue = jobs.NewQueue("reconcile", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool and the periodic sweep.
func (s *ReconcileService) Start(ctx context.Context, interval time.Duration) {
	s.queue.Start(ctx)
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.EnqueuePending(ctx); err != nil {
					s.logger.Warn("reconcile sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop drains the worker pool.
func (s *ReconcileService) Stop() {
	s.queue.Stop()
}

func (s *ReconcileService) handleJob(ctx context.Context, job jobs.Job) error {
	return s.Reconcile(ctx, job.ID)
}

// ListPending returns the chain-confirmed intents awaiting repair.
func (s *ReconcileService) ListPending(ctx context.Context) ([]models.WriteIntent, error) {
	pending, err := s.intents.ListPending(ctx, 100)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending intents")
	}
	return pending, nil
}

// EnqueuePending queues every chain-confirmed intent for repair and returns
// how many were queued.
func (s *ReconcileService) EnqueuePending(ctx context.Context) (int, error) {
	pending, err := s.intents.ListPending(ctx, 100)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending intents")
	}
	queued := 0
	for _, intent := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: intent.ID, Type: string(intent.Kind)}); err != nil {
			s.logger.Warn("failed to enqueue intent", zap.String("intent_id", intent.ID), zap.Error(err))
			continue
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info("queued intents for reconciliation", zap.Int("count", queued))
	}
	return queued, nil
}

// Reconcile replays the off-chain phase of a single intent. Idempotent: an
// intent whose off-chain record already exists is simply marked completed.
func (s *ReconcileService) Reconcile(ctx context.Context, intentID string) error {
	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "intent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load intent")
	}
	if intent.Status != models.IntentChainConfirmed {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("intent is %s, only chain-confirmed intents can be reconciled", intent.Status))
	}

	var repairErr error
	switch intent.Kind {
	case models.IntentInstitutionRegister:
		repairErr = s.repairInstitution(ctx, intent)
	case models.IntentCredentialIssue:
		repairErr = s.repairCredentialIssue(ctx, intent)
	case models.IntentCredentialRevoke:
		repairErr = s.repairCredentialRevoke(ctx, intent)
	default:
		repairErr = fmt.Errorf("unknown intent kind %q", intent.Kind)
	}

	if repairErr != nil {
		if err := s.intents.RecordFailure(ctx, intent.ID, repairErr.Error()); err != nil {
			s.logger.Warn("failed to record intent failure", zap.String("intent_id", intent.ID), zap.Error(err))
		}
		return appErrors.Wrap(repairErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reconciliation failed")
	}

	if err := s.intents.MarkCompleted(ctx, intent.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete intent")
	}
	s.logger.Info("intent reconciled", zap.String("intent_id", intent.ID), zap.String("kind", string(intent.Kind)))
	return nil
}

func (s *ReconcileService) repairInstitution(ctx context.Context, intent *models.WriteIntent) error {
	var inst models.Institution
	if err := json.Unmarshal(intent.Payload, &inst); err != nil {
		return fmt.Errorf("decode institution payload: %w", err)
	}
	if _, err := s.institutions.FindByAddress(ctx, inst.Address); err == nil {
		return nil
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("check institution: %w", err)
	}
	inst.TransactionHash = intent.TransactionHash
	if inst.Status == "" {
		inst.Status = models.InstitutionActive
	}
	if err := s.institutions.Create(ctx, &inst); err != nil {
		return fmt.Errorf("replay institution create: %w", err)
	}
	return nil
}

func (s *ReconcileService) repairCredentialIssue(ctx context.Context, intent *models.WriteIntent) error {
	var cred models.Credential
	if err := json.Unmarshal(intent.Payload, &cred); err != nil {
		return fmt.Errorf("decode credential payload: %w", err)
	}
	if _, err := s.credentials.FindByCID(ctx, cred.IPFSCID); err == nil {
		return nil
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("check credential: %w", err)
	}
	cred.TransactionHash = intent.TransactionHash
	cred.BlockNumber = intent.BlockNumber
	if cred.Status == "" {
		cred.Status = models.CredentialActive
	}
	if err := s.credentials.Create(ctx, &cred); err != nil {
		return fmt.Errorf("replay credential create: %w", err)
	}
	return nil
}

type revokePayload struct {
	CredentialID string    `json:"credential_id"`
	Reason       string    `json:"reason"`
	RevokedAt    time.Time `json:"revoked_at"`
}

func (s *ReconcileService) repairCredentialRevoke(ctx context.Context, intent *models.WriteIntent) error {
	var payload revokePayload
	if err := json.Unmarshal(intent.Payload, &payload); err != nil {
		return fmt.Errorf("decode revocation payload: %w", err)
	}
	if err := s.credentials.Revoke(ctx, payload.CredentialID, payload.Reason, payload.RevokedAt); err != nil {
		if err == sql.ErrNoRows {
			// Already revoked: the state we wanted.
			return nil
		}
		return fmt.Errorf("replay credential revoke: %w", err)
	}
	return nil
}
