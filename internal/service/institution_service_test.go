package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credchain-api/internal/auth"
	"github.com/noah-isme/credchain-api/internal/chain"
	"github.com/noah-isme/credchain-api/internal/models"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

const (
	testAdmin       = "0x00000000000000000000000000000000000000ad"
	testInstitution = "0x00000000000000000000000000000000000000aa"
	testStudent     = "0x00000000000000000000000000000000000000bb"
)

type institutionRepoStub struct {
	byAddress map[string]*models.Institution
	byID      map[string]*models.Institution
	createErr error
	updateErr error
}

func (s *institutionRepoStub) Create(ctx context.Context, inst *models.Institution) error {
	if s.createErr != nil {
		return s.createErr
	}
	if s.byAddress == nil {
		s.byAddress = map[string]*models.Institution{}
	}
	if s.byID == nil {
		s.byID = map[string]*models.Institution{}
	}
	if inst.ID == "" {
		inst.ID = "inst-1"
	}
	if inst.Version == 0 {
		inst.Version = 1
	}
	s.byAddress[inst.Address] = inst
	s.byID[inst.ID] = inst
	return nil
}

func (s *institutionRepoStub) List(ctx context.Context, filter models.InstitutionFilter) ([]models.Institution, int, error) {
	result := []models.Institution{}
	for _, inst := range s.byID {
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		result = append(result, *inst)
	}
	return result, len(result), nil
}

func (s *institutionRepoStub) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	if inst, ok := s.byID[id]; ok {
		return inst, nil
	}
	return nil, sql.ErrNoRows
}

func (s *institutionRepoStub) FindByAddress(ctx context.Context, address string) (*models.Institution, error) {
	if inst, ok := s.byAddress[address]; ok {
		return inst, nil
	}
	return nil, sql.ErrNoRows
}

func (s *institutionRepoStub) UpdateStatus(ctx context.Context, id string, version int, status models.InstitutionStatus, at time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	inst, ok := s.byID[id]
	if !ok || inst.Version != version {
		return sql.ErrNoRows
	}
	return nil
}

type intentRepoStub struct {
	created   []*models.WriteIntent
	statuses  map[string]models.WriteIntentStatus
	createErr error
}

func (s *intentRepoStub) Create(ctx context.Context, intent *models.WriteIntent) error {
	if s.createErr != nil {
		return s.createErr
	}
	if intent.ID == "" {
		intent.ID = "intent-1"
	}
	if s.statuses == nil {
		s.statuses = map[string]models.WriteIntentStatus{}
	}
	s.statuses[intent.ID] = models.IntentPending
	s.created = append(s.created, intent)
	return nil
}

func (s *intentRepoStub) MarkChainConfirmed(ctx context.Context, id, txHash string, blockNumber uint64) error {
	s.statuses[id] = models.IntentChainConfirmed
	return nil
}

func (s *intentRepoStub) MarkCompleted(ctx context.Context, id string) error {
	s.statuses[id] = models.IntentCompleted
	return nil
}

func (s *intentRepoStub) MarkAborted(ctx context.Context, id string, cause string) error {
	s.statuses[id] = models.IntentAborted
	return nil
}

type registryStub struct {
	registerErr error
	verifyErr   error
	details     *models.ChainInstitution
	stats       *models.InstitutionStats
	statsCalls  int
}

func (s *registryStub) Register(ctx context.Context, session *chain.Session, institutionAddress, name, country string) (*chain.Receipt, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &chain.Receipt{TxHash: "0xabc", BlockNumber: 42, Status: 1}, nil
}

func (s *registryStub) Verify(ctx context.Context, session *chain.Session, institutionAddress string) (*chain.Receipt, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &chain.Receipt{TxHash: "0xdef", BlockNumber: 43, Status: 1}, nil
}

func (s *registryStub) IsVerified(ctx context.Context, institutionAddress string) (bool, error) {
	return true, nil
}

func (s *registryStub) Details(ctx context.Context, institutionAddress string) (*models.ChainInstitution, error) {
	if s.details == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "not registered")
	}
	return s.details, nil
}

func (s *registryStub) Stats(ctx context.Context) (*models.InstitutionStats, error) {
	s.statsCalls++
	if s.stats == nil {
		return nil, errors.New("stats unavailable")
	}
	return s.stats, nil
}

type cacheStub struct {
	entries map[string][]byte
	deleted []string
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.entries == nil {
		s.entries = map[string][]byte{}
	}
	s.entries[key] = []byte("set")
	return nil
}

func (s *cacheStub) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func newInstitutionService(repo *institutionRepoStub, intents *intentRepoStub, registry *registryStub) *InstitutionService {
	return NewInstitutionService(repo, intents, registry, auth.NewAdminPolicy(testAdmin), &cacheStub{}, time.Minute, validator.New(), nil)
}

func adminSession() *chain.Session {
	return &chain.Session{Account: testAdmin, ChainID: 11155111}
}

func TestInstitutionServiceRegister(t *testing.T) {
	repo := &institutionRepoStub{}
	intents := &intentRepoStub{}
	service := newInstitutionService(repo, intents, &registryStub{})

	inst, err := service.Register(context.Background(), adminSession(), RegisterInstitutionRequest{
		Address: testInstitution,
		Name:    "MIT",
		Country: "US",
	})
	require.NoError(t, err)
	assert.Equal(t, testInstitution, inst.Address)
	assert.Equal(t, models.InstitutionActive, inst.Status)
	assert.Equal(t, "0xabc", inst.TransactionHash)
	require.Len(t, intents.created, 1)
	assert.Equal(t, models.IntentCompleted, intents.statuses[intents.created[0].ID])
}

func TestInstitutionServiceRegisterNonAdmin(t *testing.T) {
	service := newInstitutionService(&institutionRepoStub{}, &intentRepoStub{}, &registryStub{})
	_, err := service.Register(context.Background(), &chain.Session{Account: testStudent}, RegisterInstitutionRequest{
		Address: testInstitution,
		Name:    "MIT",
		Country: "US",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestInstitutionServiceRegisterInvalidAddress(t *testing.T) {
	service := newInstitutionService(&institutionRepoStub{}, &intentRepoStub{}, &registryStub{})
	_, err := service.Register(context.Background(), adminSession(), RegisterInstitutionRequest{
		Address: "0x1234",
		Name:    "MIT",
		Country: "US",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidAddress.Code, appErrors.FromError(err).Code)
}

func TestInstitutionServiceRegisterDuplicate(t *testing.T) {
	repo := &institutionRepoStub{}
	require.NoError(t, repo.Create(context.Background(), &models.Institution{Address: testInstitution, Status: models.InstitutionActive}))
	service := newInstitutionService(repo, &intentRepoStub{}, &registryStub{})

	_, err := service.Register(context.Background(), adminSession(), RegisterInstitutionRequest{
		Address: testInstitution,
		Name:    "MIT",
		Country: "US",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInstitutionServiceRegisterChainFailureAbortsIntent(t *testing.T) {
	intents := &intentRepoStub{}
	registry := &registryStub{registerErr: appErrors.Clone(appErrors.ErrWalletRejected, "user rejected")}
	service := newInstitutionService(&institutionRepoStub{}, intents, registry)

	_, err := service.Register(context.Background(), adminSession(), RegisterInstitutionRequest{
		Address: testInstitution,
		Name:    "MIT",
		Country: "US",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWalletRejected.Code, appErrors.FromError(err).Code)
	require.Len(t, intents.created, 1)
	assert.Equal(t, models.IntentAborted, intents.statuses[intents.created[0].ID])
}

func TestInstitutionServiceRegisterPersistFailureLeavesIntent(t *testing.T) {
	repo := &institutionRepoStub{createErr: errors.New("db down")}
	intents := &intentRepoStub{}
	service := newInstitutionService(repo, intents, &registryStub{})

	_, err := service.Register(context.Background(), adminSession(), RegisterInstitutionRequest{
		Address: testInstitution,
		Name:    "MIT",
		Country: "US",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInconsistentState.Code, appErrors.FromError(err).Code)
	require.Len(t, intents.created, 1)
	assert.Equal(t, models.IntentChainConfirmed, intents.statuses[intents.created[0].ID])
}

func TestInstitutionServiceSuspendIdempotent(t *testing.T) {
	repo := &institutionRepoStub{}
	inst := &models.Institution{ID: "inst-1", Address: testInstitution, Status: models.InstitutionSuspended, Version: 2}
	require.NoError(t, repo.Create(context.Background(), inst))
	service := newInstitutionService(repo, &intentRepoStub{}, &registryStub{})

	got, err := service.Suspend(context.Background(), testAdmin, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.InstitutionSuspended, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestInstitutionServiceTransitionConflict(t *testing.T) {
	repo := &institutionRepoStub{updateErr: sql.ErrNoRows}
	require.NoError(t, repo.Create(context.Background(), &models.Institution{ID: "inst-1", Address: testInstitution, Status: models.InstitutionActive, Version: 1}))
	service := newInstitutionService(repo, &intentRepoStub{}, &registryStub{})

	_, err := service.Suspend(context.Background(), testAdmin, "inst-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInstitutionServiceSuspendNonAdmin(t *testing.T) {
	service := newInstitutionService(&institutionRepoStub{}, &intentRepoStub{}, &registryStub{})
	_, err := service.Suspend(context.Background(), testStudent, "inst-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestInstitutionServiceStatsCachesResult(t *testing.T) {
	registry := &registryStub{stats: &models.InstitutionStats{TotalInstitutions: 3, VerifiedInstitutions: 2}}
	cache := &cacheStub{}
	service := NewInstitutionService(&institutionRepoStub{}, &intentRepoStub{}, registry, auth.NewAdminPolicy(testAdmin), cache, time.Minute, validator.New(), nil)

	stats, cacheHit, err := service.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, uint64(3), stats.TotalInstitutions)
	assert.Equal(t, 1, registry.statsCalls)
	assert.Contains(t, cache.entries, "chain:institution_stats")
}
