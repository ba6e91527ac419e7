package chain

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/pkg/config"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
	"github.com/noah-isme/credchain-api/pkg/ethaddr"
)

// Session is the signing context passed explicitly to every write call site.
type Session struct {
	Account string
	ChainID uint64
}

// SessionManager establishes wallet connections against the expected chain.
type SessionManager struct {
	provider Provider
	cfg      config.ChainConfig
	logger   *zap.Logger
}

// NewSessionManager builds a session manager.
func NewSessionManager(provider Provider, cfg config.ChainConfig, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{provider: provider, cfg: cfg, logger: logger}
}

// Connect requests wallet accounts and ensures the provider sits on the
// configured chain, driving the switch-or-add flow when it does not. The
// account request may block until the user approves the prompt.
func (m *SessionManager) Connect(ctx context.Context) (*Session, error) {
	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return nil, classify(err, "connect wallet")
	}
	if len(accounts) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "wallet returned no accounts")
	}
	account := ethaddr.Normalize(accounts[0])

	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return nil, classify(err, "read chain id")
	}

	if chainID != m.cfg.ChainID {
		if err := m.ensureChain(ctx); err != nil {
			return nil, err
		}
		chainID = m.cfg.ChainID
	}

	m.logger.Info("wallet session established",
		zap.String("account", account),
		zap.Uint64("chain_id", chainID),
	)
	return &Session{Account: account, ChainID: chainID}, nil
}

// ensureChain switches the wallet to the configured chain, registering the
// chain definition first when the wallet does not know it.
func (m *SessionManager) ensureChain(ctx context.Context) error {
	err := m.provider.SwitchChain(ctx, m.cfg.ChainID)
	if err == nil {
		return nil
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == codeUnknownChain {
		m.logger.Info("chain unknown to wallet, adding", zap.Uint64("chain_id", m.cfg.ChainID))
		if err := m.provider.AddChain(ctx, m.cfg.ChainID, m.cfg.ChainName, m.cfg.RPCURL); err != nil {
			return classify(err, "add chain")
		}
		return nil
	}
	return classify(err, "switch chain")
}
