package chain

import (
	"errors"
	"strings"

	appErrors "github.com/noah-isme/credchain-api/pkg/errors"
)

func asRPCError(err error, target **RPCError) bool {
	return errors.As(err, target)
}

// classify maps provider failures onto the domain error taxonomy. Revert
// reasons are matched against the strings the contracts are known to emit;
// anything unrecognised passes through verbatim as a chain revert.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return appErrors.Wrap(err, appErrors.ErrChainRevert.Code, appErrors.ErrChainRevert.Status, op+" failed")
	}

	switch rpcErr.Code {
	case codeUserRejected:
		return appErrors.Wrap(rpcErr, appErrors.ErrWalletRejected.Code, appErrors.ErrWalletRejected.Status, appErrors.ErrWalletRejected.Message)
	case codeUnknownChain:
		return appErrors.Wrap(rpcErr, appErrors.ErrWrongNetwork.Code, appErrors.ErrWrongNetwork.Status, "target chain unknown to wallet")
	}

	reason := strings.ToLower(rpcErr.Message)
	switch {
	case strings.Contains(reason, "already verified"):
		return appErrors.Wrap(rpcErr, appErrors.ErrAlreadyVerified.Code, appErrors.ErrAlreadyVerified.Status, appErrors.ErrAlreadyVerified.Message)
	case strings.Contains(reason, "cid already exists"), strings.Contains(reason, "duplicate"):
		return appErrors.Wrap(rpcErr, appErrors.ErrDuplicateContent.Code, appErrors.ErrDuplicateContent.Status, appErrors.ErrDuplicateContent.Message)
	case strings.Contains(reason, "does not exist"), strings.Contains(reason, "not registered"):
		return appErrors.Wrap(rpcErr, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, op+": record does not exist on chain")
	case strings.Contains(reason, "insufficient funds"):
		return appErrors.Wrap(rpcErr, appErrors.ErrChainRevert.Code, appErrors.ErrChainRevert.Status, "insufficient funds for transaction")
	default:
		return appErrors.Wrap(rpcErr, appErrors.ErrChainRevert.Code, appErrors.ErrChainRevert.Status, op+" reverted: "+rpcErr.Message)
	}
}
