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

// InstitutionRepository manages the off-chain institution records. The store
// holds exactly one record per chain address; uniqueness is backed by a
// constraint on the lowercased address column.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository constructs an InstitutionRepository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// Create inserts a new institution record.
func (r *InstitutionRepository) Create(ctx context.Context, inst *models.Institution) error {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}
	inst.Version = 1

	query := `INSERT INTO institutions (id, address, name, country, status, registered_by, transaction_hash, version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		inst.ID, inst.Address, inst.Name, inst.Country, inst.Status,
		inst.RegisteredBy, inst.TransactionHash, inst.Version, inst.CreatedAt,
	); err != nil {
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

// List returns institution records, optionally filtered by status, in store
// default order. Zero records is an empty slice, not an error.
func (r *InstitutionRepository) List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
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

	query := fmt.Sprintf(`SELECT id, address, name, country, status, registered_by, transaction_hash, version, created_at, suspended_at, reactivated_at
        FROM institutions WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where, size, offset)

	institutions := []models.Institution{}
	if err := r.db.SelectContext(ctx, &institutions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list institutions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM institutions WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count institutions: %w", err)
	}
	return institutions, total, nil
}

// FindByID fetches a single record by document id.
func (r *InstitutionRepository) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	query := `SELECT id, address, name, country, status, registered_by, transaction_hash, version, created_at, suspended_at, reactivated_at
        FROM institutions WHERE id = $1`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query, id); err != nil {
		return nil, err
	}
	return &inst, nil
}

// FindByAddress fetches a single record by chain address, case-insensitively.
func (r *InstitutionRepository) FindByAddress(ctx context.Context, address string) (*models.Institution, error) {
	query := `SELECT id, address, name, country, status, registered_by, transaction_hash, version, created_at, suspended_at, reactivated_at
        FROM institutions WHERE LOWER(address) = LOWER($1)`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query, address); err != nil {
		return nil, err
	}
	return &inst, nil
}

// UpdateStatus performs a conditional status transition guarded by the
// version column, so concurrent admin actions cannot silently overwrite each
// other. Returns sql.ErrNoRows when the version moved underneath the caller.
func (r *InstitutionRepository) UpdateStatus(ctx context.Context, id string, version int, status models.InstitutionStatus, at time.Time) error {
	column := "reactivated_at"
	if status == models.InstitutionSuspended {
		column = "suspended_at"
	}
	query := fmt.Sprintf(`UPDATE institutions SET status = $1, %s = $2, version = version + 1
        WHERE id = $3 AND version = $4`, column)
	res, err := r.db.ExecContext(ctx, query, status, at, id, version)
	if err != nil {
		return fmt.Errorf("update institution status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update institution status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
