package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credchain-api/internal/models"
)

// IntentRepository persists the durable intent records emitted before each
// two-phase chain/store write.
type IntentRepository struct {
	db *sqlx.DB
}

// NewIntentRepository constructs an IntentRepository.
func NewIntentRepository(db *sqlx.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

const intentColumns = `id, kind, status, payload, transaction_hash, block_number, attempts, last_error, created_at, updated_at`

// Create records a pending intent before the chain write is submitted.
func (r *IntentRepository) Create(ctx context.Context, intent *models.WriteIntent) error {
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = now
	}
	intent.UpdatedAt = now
	if intent.Status == "" {
		intent.Status = models.IntentPending
	}

	query := `INSERT INTO write_intents (id, kind, status, payload, transaction_hash, block_number, attempts, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		intent.ID, intent.Kind, intent.Status, intent.Payload,
		intent.TransactionHash, intent.BlockNumber, intent.Attempts, intent.CreatedAt, intent.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create write intent: %w", err)
	}
	return nil
}

// MarkChainConfirmed records the confirmed transaction before the off-chain
// phase runs. If the process dies here, the intent is what reconciliation
// finds.
func (r *IntentRepository) MarkChainConfirmed(ctx context.Context, id, txHash string, blockNumber uint64) error {
	query := `UPDATE write_intents SET status = $1, transaction_hash = $2, block_number = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query, models.IntentChainConfirmed, txHash, blockNumber, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark intent chain-confirmed: %w", err)
	}
	return nil
}

// MarkCompleted closes an intent whose both phases succeeded.
func (r *IntentRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `UPDATE write_intents SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, models.IntentCompleted, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark intent completed: %w", err)
	}
	return nil
}

// MarkAborted closes an intent whose chain phase failed; nothing to repair.
func (r *IntentRepository) MarkAborted(ctx context.Context, id string, cause string) error {
	query := `UPDATE write_intents SET status = $1, last_error = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, models.IntentAborted, cause, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark intent aborted: %w", err)
	}
	return nil
}

// RecordFailure bumps the attempt counter after a failed repair.
func (r *IntentRepository) RecordFailure(ctx context.Context, id string, cause string) error {
	query := `UPDATE write_intents SET attempts = attempts + 1, last_error = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, cause, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("record intent failure: %w", err)
	}
	return nil
}

// FindByID fetches a single intent.
func (r *IntentRepository) FindByID(ctx context.Context, id string) (*models.WriteIntent, error) {
	query := fmt.Sprintf("SELECT %s FROM write_intents WHERE id = $1", intentColumns)
	var intent models.WriteIntent
	if err := r.db.GetContext(ctx, &intent, query, id); err != nil {
		return nil, err
	}
	return &intent, nil
}

// ListPending returns intents stuck in the chain_confirmed state, oldest
// first, for the reconciler to replay.
func (r *IntentRepository) ListPending(ctx context.Context, limit int) ([]models.WriteIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM write_intents WHERE status = $1 ORDER BY created_at ASC LIMIT %d`, intentColumns, limit)
	intents := []models.WriteIntent{}
	if err := r.db.SelectContext(ctx, &intents, query, models.IntentChainConfirmed); err != nil {
		return nil, fmt.Errorf("list pending intents: %w", err)
	}
	return intents, nil
}
