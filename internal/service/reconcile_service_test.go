package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credchain-api/internal/models"
	"github.com/noah-isme/credchain-api/pkg/config"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

type reconcileIntentRepoStub struct {
	intentRepoStub
	intents  map[string]*models.WriteIntent
	failures map[string]string
}

func (s *reconcileIntentRepoStub) FindByID(ctx context.Context, id string) (*models.WriteIntent, error) {
	if intent, ok := s.intents[id]; ok {
		return intent, nil
	}
	return nil, sql.ErrNoRows
}

func (s *reconcileIntentRepoStub) ListPending(ctx context.Context, limit int) ([]models.WriteIntent, error) {
	result := []models.WriteIntent{}
	for _, intent := range s.intents {
		if intent.Status == models.IntentChainConfirmed {
			result = append(result, *intent)
		}
	}
	return result, nil
}

func (s *reconcileIntentRepoStub) RecordFailure(ctx context.Context, id string, cause string) error {
	if s.failures == nil {
		s.failures = map[string]string{}
	}
	s.failures[id] = cause
	return nil
}

func (s *reconcileIntentRepoStub) add(t *testing.T, kind models.WriteIntentKind, status models.WriteIntentStatus, payload interface{}) *models.WriteIntent {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	if s.intents == nil {
		s.intents = map[string]*models.WriteIntent{}
	}
	if s.statuses == nil {
		s.statuses = map[string]models.WriteIntentStatus{}
	}
	intent := &models.WriteIntent{
		ID:              "intent-" + string(kind),
		Kind:            kind,
		Status:          status,
		Payload:         data,
		TransactionHash: "0xtx",
		BlockNumber:     42,
	}
	s.intents[intent.ID] = intent
	s.statuses[intent.ID] = status
	return intent
}

func newReconcileService(intents *reconcileIntentRepoStub, institutions *institutionRepoStub, credentials *credentialRepoStub) *ReconcileService {
	return NewReconcileService(intents, institutions, credentials, config.ReconcileConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond}, nil)
}

func TestReconcileInstitutionRegister(t *testing.T) {
	intents := &reconcileIntentRepoStub{}
	intent := intents.add(t, models.IntentInstitutionRegister, models.IntentChainConfirmed, &models.Institution{
		Address: testInstitution,
		Name:    "MIT",
		Country: "US",
		Status:  models.InstitutionActive,
	})
	institutions := &institutionRepoStub{}
	service := newReconcileService(intents, institutions, &credentialRepoStub{})

	require.NoError(t, service.Reconcile(context.Background(), intent.ID))
	assert.Equal(t, models.IntentCompleted, intents.statuses[intent.ID])

	created, err := institutions.FindByAddress(context.Background(), testInstitution)
	require.NoError(t, err)
	assert.Equal(t, "0xtx", created.TransactionHash)
}

func TestReconcileInstitutionAlreadyRepaired(t *testing.T) {
	intents := &reconcileIntentRepoStub{}
	intent := intents.add(t, models.IntentInstitutionRegister, models.IntentChainConfirmed, &models.Institution{
		Address: testInstitution,
		Name:    "MIT",
	})
	institutions := &institutionRepoStub{}
	require.NoError(t, institutions.Create(context.Background(), &models.Institution{Address: testInstitution, Status: models.InstitutionActive}))
	service := newReconcileService(intents, institutions, &credentialRepoStub{})

	require.NoError(t, service.Reconcile(context.Background(), intent.ID))
	assert.Equal(t, models.IntentCompleted, intents.statuses[intent.ID])
}

func TestReconcileCredentialIssue(t *testing.T) {
	intents := &reconcileIntentRepoStub{}
	intent := intents.add(t, models.IntentCredentialIssue, models.IntentChainConfirmed, &models.Credential{
		StudentAddress:     testStudent,
		InstitutionAddress: testInstitution,
		IPFSCID:            "bafytest",
		DocumentHash:       "0xhash",
		Status:             models.CredentialActive,
	})
	credentials := &credentialRepoStub{}
	service := newReconcileService(intents, &institutionRepoStub{}, credentials)

	require.NoError(t, service.Reconcile(context.Background(), intent.ID))
	assert.Equal(t, models.IntentCompleted, intents.statuses[intent.ID])

	created, err := credentials.FindByCID(context.Background(), "bafytest")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), created.BlockNumber)
}

func TestReconcileCredentialRevoke(t *testing.T) {
	credentials := &credentialRepoStub{}
	require.NoError(t, credentials.Create(context.Background(), &models.Credential{
		ID:     "cred-1",
		Status: models.CredentialActive,
	}))
	intents := &reconcileIntentRepoStub{}
	intent := intents.add(t, models.IntentCredentialRevoke, models.IntentChainConfirmed, map[string]interface{}{
		"credential_id": "cred-1",
		"reason":        "issued in error",
		"revoked_at":    time.Now().UTC(),
	})
	service := newReconcileService(intents, &institutionRepoStub{}, credentials)

	require.NoError(t, service.Reconcile(context.Background(), intent.ID))
	assert.Equal(t, models.IntentCompleted, intents.statuses[intent.ID])
	assert.Equal(t, []string{"cred-1"}, credentials.revoked)
}

func TestReconcileRevokeAlreadyRevoked(t *testing.T) {
	credentials := &credentialRepoStub{}
	require.NoError(t, credentials.Create(context.Background(), &models.Credential{
		ID:     "cred-1",
		Status: models.CredentialRevoked,
	}))
	intents := &reconcileIntentRepoStub{}
	intent := intents.add(t, models.IntentCredentialRevoke, models.IntentChainConfirmed, map[string]interface{}{
		"credential_id": "cred-1",
		"reason":        "again",
	})
	service := newReconcileService(intents, &institutionRepoStub{}, credentials)

	require.NoError(t, service.Reconcile(context.Background(), intent.ID))
	assert.Equal(t, models.IntentCompleted, intents.statuses[intent.ID])
}

func TestReconcileRejectsNonConfirmedIntent(t *testing.T) {
	intents := &reconcileIntentRepoStub{}
	intent := intents.add(t, models.IntentInstitutionRegister, models.IntentAborted, &models.Institution{})
	service := newReconcileService(intents, &institutionRepoStub{}, &credentialRepoStub{})

	err := service.Reconcile(context.Background(), intent.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReconcileUnknownIntent(t *testing.T) {
	service := newReconcileService(&reconcileIntentRepoStub{}, &institutionRepoStub{}, &credentialRepoStub{})
	err := service.Reconcile(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
