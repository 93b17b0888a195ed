package txflow

import (
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// ApprovalMode selects how much allowance an approval grants.
type ApprovalMode string

const (
	// ApprovalExact approves exactly the amount the next call pulls.
	ApprovalExact ApprovalMode = "exact"
	// ApprovalUnlimited approves a large ceiling so later flows skip the
	// approval transaction. The spender can then pull up to the ceiling.
	ApprovalUnlimited ApprovalMode = "unlimited"
)

// DefaultApprovalCeiling is the allowance granted in ApprovalUnlimited mode.
const DefaultApprovalCeiling = 1_000_000 * usdc.Unit

// State is the full state of one flow.
type State struct {
	ID       string
	Kind     domain.FlowKind
	Step     domain.FlowState
	Form     domain.FormData
	Required usdc.Amount

	ApprovalMode    ApprovalMode
	ApprovalCeiling usdc.Amount

	InFlight bool
	Tracking bool

	ApprovalTx string
	CallTx     string
	Err        *TxError
}

// NewState returns a flow sitting in the form step.
func NewState(id string, kind domain.FlowKind, form domain.FormData, required usdc.Amount) State {
	return State{
		ID:              id,
		Kind:            kind,
		Step:            domain.FlowStateForm,
		Form:            form,
		Required:        required,
		ApprovalMode:    ApprovalExact,
		ApprovalCeiling: DefaultApprovalCeiling,
		Tracking:        true,
	}
}

// approvalAmount is what SendApproval asks for.
func (s State) approvalAmount() usdc.Amount {
	if s.ApprovalMode == ApprovalUnlimited {
		return usdc.Max(s.ApprovalCeiling, s.Required)
	}
	return s.Required
}
