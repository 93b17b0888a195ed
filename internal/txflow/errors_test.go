package txflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"user rejected", errors.New("User rejected the request."), ErrorWallet, true},
		{"user denied", errors.New("MetaMask Tx Signature: User denied transaction signature"), ErrorWallet, true},
		{"code 4001", errors.New("error code 4001"), ErrorWallet, true},
		{"code=4001", errors.New(`provider error: {"code":4001,"message":"declined"}`), ErrorWallet, true},
		{"rpc error code", codeError{code: 4001, msg: "request declined"}, ErrorWallet, true},
		{"digits in revert reason", errors.New("call: execution reverted: pool needs 14001000 more"), ErrorContract, true},
		{"4001 in hash", errors.New("call receipt 0xab4001cd: connection refused"), ErrorNetwork, true},
		{"allowance revert", errors.New("call: execution reverted: ERC20: transfer amount exceeds allowance"), ErrorContract, true},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), ErrorWallet, false},
		{"exceeds balance", errors.New("execution reverted: ERC20: transfer amount exceeds balance"), ErrorWallet, false},
		{"not connected", errors.New("wallet not connected"), ErrorWallet, false},
		{"revert", errors.New("execution reverted: PoolExpired"), ErrorContract, true},
		{"receipt status", fmt.Errorf("chain: wait mined: %w", domain.ErrReverted), ErrorContract, true},
		{"timeout", errors.New("Post \"https://rpc\": i/o timeout"), ErrorNetwork, true},
		{"rate limit", errors.New("429 Too Many Requests"), ErrorNetwork, true},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), ErrorNetwork, true},
		{"validation", domain.NewValidationError("answer", "required"), ErrorValidation, false},
		{"invalid amount", fmt.Errorf("parse: %w", usdc.ErrInvalidAmount), ErrorValidation, false},
		{"unknown", errors.New("something odd"), ErrorUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, got.Type)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Expected retryable=%v, got %v", tt.retryable, got.Retryable)
			}
			if got.Details != tt.err.Error() {
				t.Errorf("Expected details %q, got %q", tt.err.Error(), got.Details)
			}
			if !errors.Is(got, tt.err) {
				t.Error("Expected classified error to unwrap to the cause")
			}
		})
	}
}

// codeError carries a JSON-RPC error code the way go-ethereum's rpc errors do.
type codeError struct {
	code int
	msg  string
}

func (e codeError) Error() string  { return e.msg }
func (e codeError) ErrorCode() int { return e.code }

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

func TestClassify_AlreadyClassified(t *testing.T) {
	te := &TxError{Type: ErrorContract, Message: contractMessage, Retryable: true}
	if got := Classify(fmt.Errorf("wrap: %w", te)); got != te {
		t.Errorf("Expected the wrapped TxError back, got %v", got)
	}
}

func TestTxError_UserMessage(t *testing.T) {
	te := Classify(errors.New("user rejected transaction"))
	if !strings.Contains(te.UserMessage(), "preserved") {
		t.Errorf("Expected message to mention preserved input, got %q", te.UserMessage())
	}
	if te.UserMessage() == unknownMessage {
		t.Error("Expected a specific message for a classified error")
	}
}
