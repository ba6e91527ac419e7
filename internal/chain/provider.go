// Package chain wraps the two on-chain contracts behind typed Go clients. All
// signing happens in an external wallet bridge speaking JSON-RPC; this package
// submits requests, awaits confirmations and decodes the loosely typed results
// into validated structs.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credchain-api/pkg/config"
)

// Tx describes a state-changing contract invocation to be signed and sent by
// the wallet bridge on behalf of From.
type Tx struct {
	From     string        `json:"from"`
	Contract string        `json:"contract"`
	Function string        `json:"function"`
	Args     []interface{} `json:"args"`
}

// Call describes a read-only contract invocation.
type Call struct {
	Contract string        `json:"contract"`
	Function string        `json:"function"`
	Args     []interface{} `json:"args"`
}

// Receipt carries the provenance of a confirmed transaction.
type Receipt struct {
	TxHash      string `json:"transactionHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Status      uint64 `json:"status"`
}

// Provider is the signing-provider contract. Reads go straight to the node;
// writes are signed by the wallet and may block on user approval, so every
// method takes a context.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, chainID uint64, name, rpcURL string) error
	CallContract(ctx context.Context, call Call, result interface{}) error
	SignAndSend(ctx context.Context, tx Tx) (string, error)
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// Observer receives timing for every provider round trip.
type Observer interface {
	ObserveChainCall(method string, duration time.Duration, err error)
}

// RPCProvider talks JSON-RPC 2.0 over HTTP to the wallet bridge, with an
// optional read-only fallback endpoint used when the primary is unreachable.
type RPCProvider struct {
	url         string
	fallbackURL string
	client      *http.Client
	logger      *zap.Logger
	observer    Observer
	nextID      uint64
}

// SetObserver attaches a call observer. Must be called before the provider is
// shared across goroutines.
func (p *RPCProvider) SetObserver(o Observer) {
	p.observer = o
}

// NewRPCProvider builds a provider from chain configuration.
func NewRPCProvider(cfg config.ChainConfig, logger *zap.Logger) *RPCProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCProvider{
		url:         cfg.RPCURL,
		fallbackURL: cfg.FallbackRPCURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is the JSON-RPC error object returned by the provider. Codes follow
// EIP-1193: 4001 user rejection, 4902 unrecognised chain.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

const (
	codeUserRejected   = 4001
	codeUnknownChain   = 4902
	methodAccounts     = "eth_requestAccounts"
	methodChainID      = "eth_chainId"
	methodSwitchChain  = "wallet_switchEthereumChain"
	methodAddChain     = "wallet_addEthereumChain"
	methodContractCall = "contract_call"
	methodContractSend = "contract_send"
	methodGetReceipt   = "eth_getTransactionReceipt"
)

func (p *RPCProvider) invoke(ctx context.Context, url, method string, params []interface{}, result interface{}) (err error) {
	if p.observer != nil {
		start := time.Now()
		defer func() {
			p.observer.ObserveChainCall(method, time.Since(start), err)
		}()
	}
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&p.nextID, 1),
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read rpc response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc %s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode rpc result: %w", err)
		}
	}
	return nil
}

// call sends reads to the primary, falling back to the read-only endpoint on
// transport failure. Writes never fall back.
func (p *RPCProvider) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	err := p.invoke(ctx, p.url, method, params, result)
	if err == nil || p.fallbackURL == "" {
		return err
	}
	var rpcErr *RPCError
	if asRPCError(err, &rpcErr) {
		return err
	}
	p.logger.Warn("primary rpc unreachable, using fallback", zap.String("method", method), zap.Error(err))
	return p.invoke(ctx, p.fallbackURL, method, params, result)
}

// RequestAccounts asks the wallet for its unlocked accounts. May block until
// the user approves or rejects the prompt.
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.invoke(ctx, p.url, methodAccounts, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ChainID returns the chain the provider is currently connected to.
func (p *RPCProvider) ChainID(ctx context.Context) (uint64, error) {
	var hexID string
	if err := p.call(ctx, methodChainID, nil, &hexID); err != nil {
		return 0, err
	}
	var id uint64
	if _, err := fmt.Sscanf(hexID, "0x%x", &id); err != nil {
		return 0, fmt.Errorf("parse chain id %q: %w", hexID, err)
	}
	return id, nil
}

// SwitchChain asks the wallet to move to the given chain. Unknown chains fail
// with code 4902, which callers handle via AddChain.
func (p *RPCProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	params := []interface{}{map[string]string{"chainId": fmt.Sprintf("0x%x", chainID)}}
	return p.invoke(ctx, p.url, methodSwitchChain, params, nil)
}

// AddChain registers a chain definition with the wallet.
func (p *RPCProvider) AddChain(ctx context.Context, chainID uint64, name, rpcURL string) error {
	params := []interface{}{map[string]interface{}{
		"chainId":   fmt.Sprintf("0x%x", chainID),
		"chainName": name,
		"rpcUrls":   []string{rpcURL},
		"nativeCurrency": map[string]interface{}{
			"name":     "Ethereum",
			"symbol":   "ETH",
			"decimals": 18,
		},
	}}
	return p.invoke(ctx, p.url, methodAddChain, params, nil)
}

// CallContract executes a read-only contract function and decodes the result.
func (p *RPCProvider) CallContract(ctx context.Context, call Call, result interface{}) error {
	return p.call(ctx, methodContractCall, []interface{}{call}, result)
}

// SignAndSend submits a transaction for signing and returns its hash. Blocks
// until the wallet approves; a user rejection surfaces as code 4001.
func (p *RPCProvider) SignAndSend(ctx context.Context, tx Tx) (string, error) {
	var txHash string
	if err := p.invoke(ctx, p.url, methodContractSend, []interface{}{tx}, &txHash); err != nil {
		return "", err
	}
	return txHash, nil
}

// TransactionReceipt fetches the receipt for a submitted transaction, or nil
// while the transaction is still pending.
func (p *RPCProvider) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var raw struct {
		TxHash      string `json:"transactionHash"`
		BlockNumber string `json:"blockNumber"`
		Status      string `json:"status"`
	}
	if err := p.call(ctx, methodGetReceipt, []interface{}{txHash}, &raw); err != nil {
		return nil, err
	}
	if raw.TxHash == "" {
		return nil, nil
	}
	receipt := &Receipt{TxHash: raw.TxHash}
	if _, err := fmt.Sscanf(raw.BlockNumber, "0x%x", &receipt.BlockNumber); err != nil {
		return nil, fmt.Errorf("parse block number %q: %w", raw.BlockNumber, err)
	}
	if _, err := fmt.Sscanf(raw.Status, "0x%x", &receipt.Status); err != nil {
		return nil, fmt.Errorf("parse receipt status %q: %w", raw.Status, err)
	}
	return receipt, nil
}
