package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credchain-api/internal/models"
)

const studentAddress = "0x00000000000000000000000000000000000000bb"

func credentialRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "chain_id", "student_id", "student_address", "institution_address", "degree_type", "graduation_year", "document_hash", "ipfs_cid", "ipfs_url", "transaction_hash", "block_number", "status", "created_at", "revoked_at", "revocation_reason"}).
		AddRow("cred-1", 7, "S-100", studentAddress, instAddress, int(models.DegreeBachelor), 2024, "0xhash", "bafytest", "https://gw/ipfs/bafytest", "0xtx", 100, "Active", time.Now(), nil, nil)
}

func TestCredentialRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCredentialRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credentials")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cred := &models.Credential{
		StudentID:          "S-100",
		StudentAddress:     studentAddress,
		InstitutionAddress: instAddress,
		DegreeType:         models.DegreeBachelor,
		GraduationYear:     2024,
		DocumentHash:       "0xhash",
		IPFSCID:            "bafytest",
		Status:             models.CredentialActive,
	}
	require.NoError(t, repo.Create(context.Background(), cred))
	require.NotEmpty(t, cred.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryFindByCID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCredentialRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM credentials WHERE ipfs_cid = $1")).
		WithArgs("bafytest").
		WillReturnRows(credentialRows())

	cred, err := repo.FindByCID(context.Background(), "bafytest")
	require.NoError(t, err)
	require.Equal(t, "cred-1", cred.ID)
	require.Equal(t, models.DegreeBachelor, cred.DegreeType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryFindActiveByDocumentHash(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCredentialRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE document_hash = $1 AND status = $2")).
		WithArgs("0xhash", models.CredentialActive).
		WillReturnRows(credentialRows())

	cred, err := repo.FindActiveByDocumentHash(context.Background(), "0xhash")
	require.NoError(t, err)
	require.Equal(t, "bafytest", cred.IPFSCID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCredentialRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("LOWER(student_address) = LOWER($1)")).
		WithArgs(studentAddress).
		WillReturnRows(credentialRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM credentials")).
		WithArgs(studentAddress).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	credentials, total, err := repo.List(context.Background(), models.CredentialFilter{StudentAddress: studentAddress})
	require.NoError(t, err)
	require.Len(t, credentials, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryRevoke(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCredentialRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credentials SET status = $1")).
		WithArgs(models.CredentialRevoked, now, "issued in error", "cred-1", models.CredentialActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Revoke(context.Background(), "cred-1", "issued in error", now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryRevokeAlreadyRevoked(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCredentialRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE credentials SET status = $1")).
		WithArgs(models.CredentialRevoked, now, "again", "cred-1", models.CredentialActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Revoke(context.Background(), "cred-1", "again", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
