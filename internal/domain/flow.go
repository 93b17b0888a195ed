package domain

import (
	"encoding/json"
	"time"
)

// FlowKind names the state-changing contract call a flow ends in.
type FlowKind string

const (
	FlowSubmitAnswer  FlowKind = "submit_answer"
	FlowCreateOpinion FlowKind = "create_opinion"
	FlowCreatePool    FlowKind = "create_pool"
	FlowContribute    FlowKind = "contribute"
	FlowCompletePool  FlowKind = "complete_pool"
)

// Valid reports whether k is a known flow kind.
func (k FlowKind) Valid() bool {
	switch k {
	case FlowSubmitAnswer, FlowCreateOpinion, FlowCreatePool, FlowContribute, FlowCompletePool:
		return true
	}
	return false
}

// FlowState is a step of the approve-then-call workflow.
type FlowState string

const (
	FlowStateForm    FlowState = "form"
	FlowStateApprove FlowState = "approve"
	FlowStateSubmit  FlowState = "submit"
	FlowStateSuccess FlowState = "success"
	FlowStateError   FlowState = "error"
)

// Terminal reports whether no further transaction will be issued from s
// without user action.
func (s FlowState) Terminal() bool {
	return s == FlowStateSuccess || s == FlowStateError
}

// FlowRecord is the persisted snapshot of one flow.
type FlowRecord struct {
	ID           string          `json:"id"`
	Kind         FlowKind        `json:"kind"`
	Wallet       string          `json:"wallet"`
	State        FlowState       `json:"state"`
	Tracking     bool            `json:"tracking"`
	ApprovalTx   string          `json:"approval_tx,omitempty"`
	CallTx       string          `json:"call_tx,omitempty"`
	ErrorType    string          `json:"error_type,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Retryable    bool            `json:"retryable"`
	Form         json.RawMessage `json:"form,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
