package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credchain-api/pkg/config"
	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

const (
	bridgeAccount  = "0x00000000000000000000000000000000000000ad"
	registryAddr   = "0x0000000000000000000000000000000000000111"
	transcriptAddr = "0x0000000000000000000000000000000000000222"
)

// bridge is a fake wallet bridge speaking just enough JSON-RPC for the tests.
type bridge struct {
	chainID     string
	switchErr   *RPCError
	accountsErr *RPCError
	sendErr     *RPCError
	callResults map[string]interface{}
	receipt     map[string]interface{}

	switched bool
	added    bool
	sent     []Tx
}

func (b *bridge) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		respond := func(result interface{}, rpcErr *RPCError) {
			payload := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
			if rpcErr != nil {
				payload["error"] = rpcErr
			} else {
				payload["result"] = result
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(payload) //nolint:errcheck
		}

		switch req.Method {
		case "eth_requestAccounts":
			if b.accountsErr != nil {
				respond(nil, b.accountsErr)
				return
			}
			respond([]string{bridgeAccount}, nil)
		case "eth_chainId":
			respond(b.chainID, nil)
		case "wallet_switchEthereumChain":
			if b.switchErr != nil {
				respond(nil, b.switchErr)
				return
			}
			b.switched = true
			respond(nil, nil)
		case "wallet_addEthereumChain":
			b.added = true
			respond(nil, nil)
		case "contract_call":
			var call Call
			json.Unmarshal(req.Params[0], &call) //nolint:errcheck
			result, ok := b.callResults[call.Function]
			if !ok {
				respond(nil, &RPCError{Code: -32000, Message: "execution reverted: record does not exist"})
				return
			}
			respond(result, nil)
		case "contract_send":
			if b.sendErr != nil {
				respond(nil, b.sendErr)
				return
			}
			var tx Tx
			json.Unmarshal(req.Params[0], &tx) //nolint:errcheck
			b.sent = append(b.sent, tx)
			respond("0xtxhash", nil)
		case "eth_getTransactionReceipt":
			respond(b.receipt, nil)
		default:
			respond(nil, &RPCError{Code: -32601, Message: "method not found"})
		}
	}
}

func newBridge(t *testing.T, b *bridge) (config.ChainConfig, func()) {
	t.Helper()
	server := httptest.NewServer(b.handler())
	cfg := config.ChainConfig{
		RPCURL:                   server.URL,
		ChainID:                  11155111,
		ChainName:                "Sepolia",
		RegistryAddress:          registryAddr,
		TranscriptManagerAddress: transcriptAddr,
		ConfirmationTimeout:      5 * time.Second,
	}
	return cfg, server.Close
}

func successReceipt() map[string]interface{} {
	return map[string]interface{}{
		"transactionHash": "0xtxhash",
		"blockNumber":     "0x2a",
		"status":          "0x1",
	}
}

func TestSessionManagerConnect(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7"}
	cfg, done := newBridge(t, b)
	defer done()

	manager := NewSessionManager(NewRPCProvider(cfg, nil), cfg, nil)
	session, err := manager.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bridgeAccount, session.Account)
	assert.Equal(t, uint64(11155111), session.ChainID)
	assert.False(t, b.switched)
}

func TestSessionManagerConnectSwitchesChain(t *testing.T) {
	b := &bridge{chainID: "0x1"}
	cfg, done := newBridge(t, b)
	defer done()

	manager := NewSessionManager(NewRPCProvider(cfg, nil), cfg, nil)
	session, err := manager.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, b.switched)
	assert.Equal(t, uint64(11155111), session.ChainID)
}

func TestSessionManagerConnectAddsUnknownChain(t *testing.T) {
	b := &bridge{chainID: "0x1", switchErr: &RPCError{Code: 4902, Message: "unrecognized chain"}}
	cfg, done := newBridge(t, b)
	defer done()

	manager := NewSessionManager(NewRPCProvider(cfg, nil), cfg, nil)
	_, err := manager.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, b.added)
}

func TestSessionManagerConnectUserRejected(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7", accountsErr: &RPCError{Code: 4001, Message: "user rejected the request"}}
	cfg, done := newBridge(t, b)
	defer done()

	manager := NewSessionManager(NewRPCProvider(cfg, nil), cfg, nil)
	_, err := manager.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWalletRejected.Code, appErrors.FromError(err).Code)
}

func TestRegistryRegisterSubmitsAndConfirms(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7", receipt: successReceipt()}
	cfg, done := newBridge(t, b)
	defer done()

	registry := NewRegistry(NewRPCProvider(cfg, nil), cfg, nil)
	session := &Session{Account: bridgeAccount, ChainID: 11155111}
	receipt, err := registry.Register(context.Background(), session, "0x00000000000000000000000000000000000000aa", "MIT", "US")
	require.NoError(t, err)
	assert.Equal(t, "0xtxhash", receipt.TxHash)
	assert.Equal(t, uint64(42), receipt.BlockNumber)

	require.Len(t, b.sent, 1)
	assert.Equal(t, "registerInstitution", b.sent[0].Function)
	assert.Equal(t, registryAddr, b.sent[0].Contract)
	assert.Equal(t, bridgeAccount, b.sent[0].From)
}

func TestRegistryRegisterRevertedReceipt(t *testing.T) {
	receipt := successReceipt()
	receipt["status"] = "0x0"
	b := &bridge{chainID: "0xaa36a7", receipt: receipt}
	cfg, done := newBridge(t, b)
	defer done()

	registry := NewRegistry(NewRPCProvider(cfg, nil), cfg, nil)
	_, err := registry.Register(context.Background(), &Session{Account: bridgeAccount}, "0x00000000000000000000000000000000000000aa", "MIT", "US")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrChainRevert.Code, appErrors.FromError(err).Code)
}

func TestRegistryVerifyAlreadyVerified(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7", sendErr: &RPCError{Code: -32000, Message: "execution reverted: Institution already verified"}}
	cfg, done := newBridge(t, b)
	defer done()

	registry := NewRegistry(NewRPCProvider(cfg, nil), cfg, nil)
	_, err := registry.Verify(context.Background(), &Session{Account: bridgeAccount}, "0x00000000000000000000000000000000000000aa")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyVerified.Code, appErrors.FromError(err).Code)
}

func TestRegistryDetailsDecodesLooseTypes(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7", callResults: map[string]interface{}{
		"getInstitutionDetails": map[string]interface{}{
			"id":             "3",
			"walletAddress":  "0x00000000000000000000000000000000000000aa",
			"name":           "MIT",
			"country":        "US",
			"isVerified":     true,
			"dateRegistered": 1700000000,
		},
	}}
	cfg, done := newBridge(t, b)
	defer done()

	registry := NewRegistry(NewRPCProvider(cfg, nil), cfg, nil)
	details, err := registry.Details(context.Background(), "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), details.ID)
	assert.Equal(t, "MIT", details.Name)
	assert.True(t, details.IsVerified)
	assert.Equal(t, int64(1700000000), details.DateRegistered)
}

func TestRegistryStats(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7", callResults: map[string]interface{}{
		"numberOfInstitutions":         7,
		"numberOfVerifiedInstitutions": "5",
	}}
	cfg, done := newBridge(t, b)
	defer done()

	registry := NewRegistry(NewRPCProvider(cfg, nil), cfg, nil)
	stats, err := registry.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), stats.TotalInstitutions)
	assert.Equal(t, uint64(5), stats.VerifiedInstitutions)
}

func chainTranscript() map[string]interface{} {
	return map[string]interface{}{
		"id":             1,
		"studentId":      "S-100",
		"issuedBy":       "0x00000000000000000000000000000000000000aa",
		"documenthash":   "0xhash",
		"ipfscid":        "bafytest",
		"studentAddress": "0x00000000000000000000000000000000000000bb",
		"degreeType":     "1",
		"dateIssued":     1700000000,
		"status":         0,
		"graduationyear": 2024,
	}
}

func TestTranscriptsVerifyDecodes(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7", callResults: map[string]interface{}{
		"verifyTranscript": chainTranscript(),
	}}
	cfg, done := newBridge(t, b)
	defer done()

	transcripts := NewTranscripts(NewRPCProvider(cfg, nil), cfg, nil)
	cred, err := transcripts.Verify(context.Background(), "bafytest")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cred.ID)
	assert.Equal(t, "S-100", cred.StudentID)
	assert.Equal(t, "bafytest", cred.IPFSCID)
	assert.Equal(t, 2024, cred.GraduationYear)
}

func TestTranscriptsVerifyRejectsOutOfRangeDegree(t *testing.T) {
	record := chainTranscript()
	record["degreeType"] = 99
	b := &bridge{chainID: "0xaa36a7", callResults: map[string]interface{}{
		"verifyTranscript": record,
	}}
	cfg, done := newBridge(t, b)
	defer done()

	transcripts := NewTranscripts(NewRPCProvider(cfg, nil), cfg, nil)
	_, err := transcripts.Verify(context.Background(), "bafytest")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrChainRevert.Code, appErrors.FromError(err).Code)
}

func TestTranscriptsVerifyUnknownCID(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7", callResults: map[string]interface{}{}}
	cfg, done := newBridge(t, b)
	defer done()

	transcripts := NewTranscripts(NewRPCProvider(cfg, nil), cfg, nil)
	_, err := transcripts.Verify(context.Background(), "bafyunknown")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTranscriptsCIDExists(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7", callResults: map[string]interface{}{
		"existingCIDs": true,
	}}
	cfg, done := newBridge(t, b)
	defer done()

	transcripts := NewTranscripts(NewRPCProvider(cfg, nil), cfg, nil)
	exists, err := transcripts.CIDExists(context.Background(), "bafytest")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProviderReadFallback(t *testing.T) {
	b := &bridge{chainID: "0xaa36a7"}
	fallback := httptest.NewServer(b.handler())
	defer fallback.Close()

	cfg := config.ChainConfig{
		RPCURL:         "http://127.0.0.1:1", // unreachable
		FallbackRPCURL: fallback.URL,
		ChainID:        11155111,
	}
	provider := NewRPCProvider(cfg, nil)
	id, err := provider.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(11155111), id)
}

func TestClassifyRevertReasons(t *testing.T) {
	cases := []struct {
		name     string
		rpcErr   *RPCError
		wantCode string
	}{
		{"user rejected", &RPCError{Code: 4001, Message: "user denied"}, appErrors.ErrWalletRejected.Code},
		{"unknown chain", &RPCError{Code: 4902, Message: "unrecognized chain"}, appErrors.ErrWrongNetwork.Code},
		{"already verified", &RPCError{Code: -32000, Message: "execution reverted: already verified"}, appErrors.ErrAlreadyVerified.Code},
		{"duplicate cid", &RPCError{Code: -32000, Message: "execution reverted: CID already exists"}, appErrors.ErrDuplicateContent.Code},
		{"missing record", &RPCError{Code: -32000, Message: "execution reverted: Transcript does not exist"}, appErrors.ErrNotFound.Code},
		{"generic revert", &RPCError{Code: -32000, Message: "execution reverted: whatever"}, appErrors.ErrChainRevert.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(tc.rpcErr, "op")
			assert.Equal(t, tc.wantCode, appErrors.FromError(err).Code)
		})
	}
}
