package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/internal/models"
	"github.com/noah-isme/credchain-api/pkg/config"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

// Registry wraps the Institution Registry contract.
type Registry struct {
	provider Provider
	address  string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRegistry builds the registry client.
func NewRegistry(provider Provider, cfg config.ChainConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.ConfirmationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Registry{provider: provider, address: cfg.RegistryAddress, timeout: timeout, logger: logger}
}

// Register submits the admin-initiated registration transaction and waits for
// its confirmation.
func (r *Registry) Register(ctx context.Context, session *Session, institutionAddress, name, country string) (*Receipt, error) {
	tx := Tx{
		From:     session.Account,
		Contract: r.address,
		Function: "registerInstitution",
		Args:     []interface{}{institutionAddress, name, country},
	}
	return submit(ctx, r.provider, tx, r.timeout, r.logger, "register institution")
}

// Verify flips the on-chain isVerified flag. Verification is monotonic; a
// repeat call reverts with an already-verified reason which classify surfaces
// as its own condition.
func (r *Registry) Verify(ctx context.Context, session *Session, institutionAddress string) (*Receipt, error) {
	tx := Tx{
		From:     session.Account,
		Contract: r.address,
		Function: "VerifyInstitution",
		Args:     []interface{}{institutionAddress},
	}
	return submit(ctx, r.provider, tx, r.timeout, r.logger, "verify institution")
}

// IsVerified reads the verification flag for an institution.
func (r *Registry) IsVerified(ctx context.Context, institutionAddress string) (bool, error) {
	var verified bool
	call := Call{Contract: r.address, Function: "isInstitutionVerified", Args: []interface{}{institutionAddress}}
	if err := r.provider.CallContract(ctx, call, &verified); err != nil {
		return false, classify(err, "check institution verification")
	}
	return verified, nil
}

// Details fetches and decodes the on-chain registry entry.
func (r *Registry) Details(ctx context.Context, institutionAddress string) (*models.ChainInstitution, error) {
	var raw rawRecord
	call := Call{Contract: r.address, Function: "getInstitutionDetails", Args: []interface{}{institutionAddress}}
	if err := r.provider.CallContract(ctx, call, &raw); err != nil {
		return nil, classify(err, "get institution details")
	}
	return decodeInstitution(raw)
}

// Stats reads the registry counters.
func (r *Registry) Stats(ctx context.Context) (*models.InstitutionStats, error) {
	stats := &models.InstitutionStats{}
	var err error
	if stats.TotalInstitutions, err = r.counter(ctx, "numberOfInstitutions"); err != nil {
		return nil, err
	}
	if stats.VerifiedInstitutions, err = r.counter(ctx, "numberOfVerifiedInstitutions"); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *Registry) counter(ctx context.Context, function string) (uint64, error) {
	var raw json.RawMessage
	call := Call{Contract: r.address, Function: function}
	if err := r.provider.CallContract(ctx, call, &raw); err != nil {
		return 0, classify(err, function)
	}
	return coerceUint64(raw, function)
}

func decodeInstitution(raw rawRecord) (*models.ChainInstitution, error) {
	inst := &models.ChainInstitution{}
	var err error
	if inst.ID, err = raw.uint64Field("id"); err != nil {
		return nil, decodeErr(err)
	}
	if inst.WalletAddress, err = raw.stringField("walletAddress"); err != nil {
		return nil, decodeErr(err)
	}
	if inst.Name, err = raw.stringField("name"); err != nil {
		return nil, decodeErr(err)
	}
	if inst.Country, err = raw.stringField("country"); err != nil {
		return nil, decodeErr(err)
	}
	if inst.IsVerified, err = raw.boolField("isVerified"); err != nil {
		return nil, decodeErr(err)
	}
	registered, err := raw.uint64Field("dateRegistered")
	if err != nil {
		return nil, decodeErr(err)
	}
	inst.DateRegistered = int64(registered)
	return inst, nil
}

func decodeErr(err error) error {
	return appErrors.Wrap(err, appErrors.ErrChainRevert.Code, appErrors.ErrChainRevert.Status, "malformed chain record")
}

// submit sends a write transaction and polls for its receipt until the
// confirmation timeout elapses.
func submit(ctx context.Context, provider Provider, tx Tx, timeout time.Duration, logger *zap.Logger, op string) (*Receipt, error) {
	txHash, err := provider.SignAndSend(ctx, tx)
	if err != nil {
		return nil, classify(err, op)
	}
	logger.Info("transaction submitted",
		zap.String("op", op),
		zap.String("tx_hash", txHash),
		zap.String("contract", tx.Contract),
	)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		receipt, err := provider.TransactionReceipt(waitCtx, txHash)
		if err != nil {
			return nil, classify(err, op)
		}
		if receipt != nil {
			if receipt.Status != 1 {
				return nil, appErrors.Clone(appErrors.ErrChainRevert, fmt.Sprintf("%s: transaction %s reverted", op, txHash))
			}
			return receipt, nil
		}
		select {
		case <-waitCtx.Done():
			return nil, appErrors.Wrap(waitCtx.Err(), appErrors.ErrChainRevert.Code, appErrors.ErrChainRevert.Status, op+": confirmation timed out")
		case <-ticker.C:
		}
	}
}
