package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/credchain-api/internal/models"
)

// CredentialRepository manages the off-chain credential records.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository constructs a CredentialRepository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

const credentialColumns = `id, chain_id, student_id, student_address, institution_address, degree_type, graduation_year,
        document_hash, ipfs_cid, ipfs_url, transaction_hash, block_number, status, created_at, revoked_at, revocation_reason`

// Create inserts a new credential record.
func (r *CredentialRepository) Create(ctx context.Context, cred *models.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO credentials (id, chain_id, student_id, student_address, institution_address, degree_type, graduation_year,
        document_hash, ipfs_cid, ipfs_url, transaction_hash, block_number, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := r.db.ExecContext(ctx, query,
		cred.ID, cred.ChainID, cred.StudentID, cred.StudentAddress, cred.InstitutionAddress, cred.DegreeType, cred.GraduationYear,
		cred.DocumentHash, cred.IPFSCID, cred.IPFSURL, cred.TransactionHash, cred.BlockNumber, cred.Status, cred.CreatedAt,
	); err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// List returns credentials matching the filter, most recent first.
func (r *CredentialRepository) List(ctx context.Context, filter models.CredentialFilter) ([]models.Credential, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentAddress != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(student_address) = LOWER($%d)", len(args)+1))
		args = append(args, filter.StudentAddress)
	}
	if filter.InstitutionAddress != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(institution_address) = LOWER($%d)", len(args)+1))
		args = append(args, filter.InstitutionAddress)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		credentialColumns, where, size, offset)

	credentials := []models.Credential{}
	if err := r.db.SelectContext(ctx, &credentials, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list credentials: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM credentials WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count credentials: %w", err)
	}
	return credentials, total, nil
}

// FindByID fetches a credential by document id.
func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*models.Credential, error) {
	query := fmt.Sprintf("SELECT %s FROM credentials WHERE id = $1", credentialColumns)
	var cred models.Credential
	if err := r.db.GetContext(ctx, &cred, query, id); err != nil {
		return nil, err
	}
	return &cred, nil
}

// FindByCID fetches a credential by content identifier.
func (r *CredentialRepository) FindByCID(ctx context.Context, cid string) (*models.Credential, error) {
	query := fmt.Sprintf("SELECT %s FROM credentials WHERE ipfs_cid = $1", credentialColumns)
	var cred models.Credential
	if err := r.db.GetContext(ctx, &cred, query, cid); err != nil {
		return nil, err
	}
	return &cred, nil
}

// FindActiveByDocumentHash looks for a non-revoked credential carrying the
// same content hash, the off-chain half of the duplicate-content guard.
func (r *CredentialRepository) FindActiveByDocumentHash(ctx context.Context, documentHash string) (*models.Credential, error) {
	query := fmt.Sprintf("SELECT %s FROM credentials WHERE document_hash = $1 AND status = $2", credentialColumns)
	var cred models.Credential
	if err := r.db.GetContext(ctx, &cred, query, documentHash, models.CredentialActive); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Revoke flips the record to Revoked with timestamp and verbatim reason. The
// transition is one way: an already revoked record is left untouched and
// sql.ErrNoRows is returned so callers can surface idempotence distinctly.
func (r *CredentialRepository) Revoke(ctx context.Context, id, reason string, at time.Time) error {
	query := `UPDATE credentials SET status = $1, revoked_at = $2, revocation_reason = $3
        WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, models.CredentialRevoked, at, reason, id, models.CredentialActive)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
