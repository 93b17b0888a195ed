package txflow

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// ErrorType is the bucket a failure is classified into.
type ErrorType string

const (
	ErrorWallet     ErrorType = "wallet"
	ErrorNetwork    ErrorType = "network"
	ErrorContract   ErrorType = "contract"
	ErrorValidation ErrorType = "validation"
	ErrorUnknown    ErrorType = "unknown"
)

const (
	rejectedMessage     = "The transaction was rejected in the wallet."
	notConnectedMessage = "No wallet is connected."
	fundsMessage        = "Insufficient funds to cover this transaction and its gas."
	networkMessage      = "The network is congested or unreachable."
	contractMessage     = "The contract rejected the transaction."
	validationMessage   = "Some fields are invalid."
	unknownMessage      = "The transaction failed for an unexpected reason."

	preservedNote = " Your form input was preserved."
)

// TxError is a classified failure with user-facing text.
type TxError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Details   string    `json:"details"`
	Retryable bool      `json:"retryable"`
	cause     error
}

func (e *TxError) Error() string {
	if e.Details == "" {
		return string(e.Type) + ": " + e.Message
	}
	return string(e.Type) + ": " + e.Message + " (" + e.Details + ")"
}

func (e *TxError) Unwrap() error { return e.cause }

// UserMessage is Message plus the note that the form survived.
func (e *TxError) UserMessage() string {
	if e.Type == ErrorValidation {
		return e.Message
	}
	return e.Message + preservedNote
}

var (
	rejectedHints = []string{"user rejected", "user denied", "rejected the request", "request rejected", "action_rejected"}
	walletHints   = []string{"wallet not connected", "no wallet", "connector not connected", "unknown account"}
	fundsHints    = []string{"insufficient funds", "exceeds balance"}
	contractHints = []string{"execution reverted", "revert", "transaction reverted", "call exception", "invalid opcode", "out of gas"}
	networkHints  = []string{"network", "timeout", "timed out", "connection refused", "connection reset", "no such host", "eof", "429", "too many requests", "rate limit", "congest", "underpriced", "nonce too low", "503", "502", "rpc"}
)

// userRejectedCode is the EIP-1193 provider error for a declined request.
const userRejectedCode = 4001

// rejectedCodeRe matches 4001 only where it is reported as an error code.
var rejectedCodeRe = regexp.MustCompile(`\bcode["']?\s*[:=]?\s*4001\b`)

// Classify maps an error to the taxonomy by matching message substrings.
// A nil error yields nil.
func Classify(err error) *TxError {
	if err == nil {
		return nil
	}
	var te *TxError
	if errors.As(err, &te) {
		return te
	}

	details := err.Error()
	var ve *domain.ValidationError
	if errors.As(err, &ve) || errors.Is(err, usdc.ErrInvalidAmount) {
		return &TxError{Type: ErrorValidation, Message: validationMessage, Details: details, cause: err}
	}
	if errors.Is(err, domain.ErrReverted) {
		return &TxError{Type: ErrorContract, Message: contractMessage, Details: details, Retryable: true, cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TxError{Type: ErrorNetwork, Message: networkMessage, Details: details, Retryable: true, cause: err}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return &TxError{Type: ErrorWallet, Message: rejectedMessage, Details: details, Retryable: true, cause: err}
	}

	// Balance reverts count as wallet funding problems; any other revert is
	// the contract's, whatever digits or words its reason carries.
	msg := strings.ToLower(details)
	switch {
	case containsAny(msg, fundsHints):
		return &TxError{Type: ErrorWallet, Message: fundsMessage, Details: details, Retryable: false, cause: err}
	case containsAny(msg, contractHints):
		return &TxError{Type: ErrorContract, Message: contractMessage, Details: details, Retryable: true, cause: err}
	case containsAny(msg, rejectedHints) || rejectedCodeRe.MatchString(msg):
		return &TxError{Type: ErrorWallet, Message: rejectedMessage, Details: details, Retryable: true, cause: err}
	case containsAny(msg, walletHints):
		return &TxError{Type: ErrorWallet, Message: notConnectedMessage, Details: details, Retryable: false, cause: err}
	case containsAny(msg, networkHints):
		return &TxError{Type: ErrorNetwork, Message: networkMessage, Details: details, Retryable: true, cause: err}
	}
	return &TxError{Type: ErrorUnknown, Message: unknownMessage, Details: details, Retryable: true, cause: err}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
