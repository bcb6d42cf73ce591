package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	ErrInvalidAddress      = errors.New("invalid address")
	ErrMalformedSignature  = errors.New("invalid signature format")
	ErrMalformedMessage    = errors.New("invalid message")
	ErrNonceNotFound       = errors.New("nonce not found")
	ErrNonceExpired        = errors.New("nonce expired")
	ErrNonceMismatch       = errors.New("nonce mismatch")
	ErrChainNotAllowed     = errors.New("chain not allowed")
	ErrMessageExpired      = errors.New("message expired")
	ErrMessageNotYetValid  = errors.New("message not valid yet")
	ErrDomainMismatch      = errors.New("invalid domain")
	ErrURIMismatch         = errors.New("invalid uri")
	ErrAddressMismatch     = errors.New("address mismatch")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrVerificationFailed  = errors.New("verification failed")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrCredentialExpired   = errors.New("credential expired")

	ErrUnsupportedStandard = errors.New("unsupported standard")
	ErrTokenIDRequired     = errors.New("tokenId required for erc1155")
	ErrChainNotConfigured  = errors.New("rpc not configured")
	ErrContractCallFailed  = errors.New("contract call failed")
)

// ContractCallError carries the reason a chain query failed
type ContractCallError struct {
	Cause string
}

// NewContractCallError wraps err into a ContractCallError
func NewContractCallError(op string, err error) *ContractCallError {
	return &ContractCallError{Cause: fmt.Sprintf("%s: %v", op, err)}
}

func (e *ContractCallError) Error() string {
	return e.Cause
}

// Is makes errors.Is(err, ErrContractCallFailed) hold for any ContractCallError
func (e *ContractCallError) Is(target error) bool {
	return target == ErrContractCallFailed
}

var known = []error{
	ErrNotFound,
	ErrInvalidAddress,
	ErrMalformedSignature,
	ErrMalformedMessage,
	ErrNonceNotFound,
	ErrNonceExpired,
	ErrNonceMismatch,
	ErrChainNotAllowed,
	ErrMessageExpired,
	ErrMessageNotYetValid,
	ErrDomainMismatch,
	ErrURIMismatch,
	ErrAddressMismatch,
	ErrInvalidSignature,
	ErrVerificationFailed,
	ErrMalformedCredential,
	ErrCredentialExpired,
	ErrUnsupportedStandard,
	ErrTokenIDRequired,
	ErrChainNotConfigured,
	ErrContractCallFailed,
}

// Reason returns the text of the sentinel err matches, or "error".
// The result is bounded and safe to use as a metric label.
func Reason(err error) string {
	for _, sentinel := range known {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "error"
}
