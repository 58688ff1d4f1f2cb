package xrpl

import (
	"errors"
	"fmt"
)

const (
	// EngineResultSuccess is the only submit outcome treated as accepted.
	EngineResultSuccess = "tesSUCCESS"

	// rippled error codes the adapter dispatches on
	ErrCodeTxnNotFound     = "txnNotFound"
	ErrCodeAccountNotFound = "actNotFound"
)

// RPCError is an error object reported by rippled itself, as opposed to a
// transport failure reaching it.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rippled: %s", e.Code)
	}
	return fmt.Sprintf("rippled: %s: %s", e.Code, e.Message)
}

// IsTxnNotFound reports whether rippled has no record of the transaction,
// which for a recent submission means "not validated yet".
func IsTxnNotFound(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == ErrCodeTxnNotFound
}

// IsAccountNotFound reports whether the account does not exist on ledger,
// i.e. it has never been funded.
func IsAccountNotFound(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == ErrCodeAccountNotFound
}
