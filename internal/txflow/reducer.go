package txflow

import "github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"

// Reduce is a pure function that handles state transitions.
// Given the current state and an event it returns the next state and the
// effects to execute. Events that do not apply to the current step leave the
// state unchanged, which is what keeps a call from being issued before its
// approval is confirmed.
func Reduce(state State, event Event) (State, []Effect) {
	if _, ok := event.(StopTracking); ok {
		next := state
		next.Tracking = false
		return next, nil
	}
	if !state.Tracking {
		return state, nil
	}

	switch state.Step {
	case domain.FlowStateForm:
		return reduceForm(state, event)
	case domain.FlowStateApprove:
		return reduceApprove(state, event)
	case domain.FlowStateSubmit:
		return reduceSubmit(state, event)
	case domain.FlowStateError:
		return reduceError(state, event)
	default:
		// Success is terminal.
		return state, nil
	}
}

func reduceForm(state State, event Event) (State, []Effect) {
	switch evt := event.(type) {
	case SubmitRequested:
		if state.InFlight {
			return state, nil
		}
		next := state
		next.InFlight = true
		next.Err = nil
		if evt.Allowance < state.Required {
			next.Step = domain.FlowStateApprove
			return next, []Effect{SendApproval{Amount: state.approvalAmount()}}
		}
		next.Step = domain.FlowStateSubmit
		return next, []Effect{SendCall{}}

	case FormUpdated:
		if state.InFlight {
			return state, nil
		}
		next := state
		next.Form = evt.Form
		next.Required = evt.Required
		return next, nil

	case Failed:
		return fail(state, evt), nil
	}

	return state, nil
}

func reduceApprove(state State, event Event) (State, []Effect) {
	switch evt := event.(type) {
	case ApprovalSent:
		next := state
		next.ApprovalTx = evt.TxHash
		return next, nil

	case ApprovalConfirmed:
		next := state
		next.Step = domain.FlowStateSubmit
		if evt.TxHash != "" {
			next.ApprovalTx = evt.TxHash
		}
		return next, []Effect{SendCall{}}

	case Failed:
		return fail(state, evt), nil
	}

	return state, nil
}

func reduceSubmit(state State, event Event) (State, []Effect) {
	switch evt := event.(type) {
	case CallSent:
		next := state
		next.CallTx = evt.TxHash
		return next, nil

	case CallConfirmed:
		next := state
		next.Step = domain.FlowStateSuccess
		next.InFlight = false
		next.Form = nil
		if evt.TxHash != "" {
			next.CallTx = evt.TxHash
		}
		return next, nil

	case Failed:
		return fail(state, evt), nil
	}

	return state, nil
}

func reduceError(state State, event Event) (State, []Effect) {
	switch event.(type) {
	case RetryRequested:
		next := state
		next.Step = domain.FlowStateForm
		next.Err = nil
		return next, nil
	}

	return state, nil
}

// fail moves to the error step. The form is kept for the retry.
func fail(state State, evt Failed) State {
	next := state
	next.Step = domain.FlowStateError
	next.InFlight = false
	next.Err = evt.Err
	if next.Err == nil {
		next.Err = &TxError{Type: ErrorUnknown, Message: unknownMessage, Retryable: true}
	}
	return next
}
