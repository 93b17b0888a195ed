package txflow

import (
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// SubmitRequested is the user pressing submit. Allowance is the spender's
// allowance read immediately before.
type SubmitRequested struct {
	Allowance usdc.Amount
}

// FormUpdated replaces the form while the flow is editable.
type FormUpdated struct {
	Form     domain.FormData
	Required usdc.Amount
}

// ApprovalSent reports the approval transaction hash once broadcast.
type ApprovalSent struct{ TxHash string }

// ApprovalConfirmed reports a successful approval receipt.
type ApprovalConfirmed struct{ TxHash string }

// CallSent reports the state-changing transaction hash once broadcast.
type CallSent struct{ TxHash string }

// CallConfirmed reports a successful receipt for the state-changing call.
type CallConfirmed struct{ TxHash string }

// Failed reports any rejected, reverted or thrown operation.
type Failed struct{ Err *TxError }

// RetryRequested moves an errored flow back to the form with its input.
type RetryRequested struct{}

// StopTracking discards local tracking. Broadcast transactions still land.
type StopTracking struct{}

func (SubmitRequested) isEvent()   {}
func (FormUpdated) isEvent()       {}
func (ApprovalSent) isEvent()      {}
func (ApprovalConfirmed) isEvent() {}
func (CallSent) isEvent()          {}
func (CallConfirmed) isEvent()     {}
func (Failed) isEvent()            {}
func (RetryRequested) isEvent()    {}
func (StopTracking) isEvent()      {}

func eventName(e Event) string {
	switch e.(type) {
	case SubmitRequested:
		return "submit_requested"
	case FormUpdated:
		return "form_updated"
	case ApprovalSent:
		return "approval_sent"
	case ApprovalConfirmed:
		return "approval_confirmed"
	case CallSent:
		return "call_sent"
	case CallConfirmed:
		return "call_confirmed"
	case Failed:
		return "failed"
	case RetryRequested:
		return "retry_requested"
	case StopTracking:
		return "stop_tracking"
	default:
		return "unknown"
	}
}
