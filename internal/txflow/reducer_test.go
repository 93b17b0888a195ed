package txflow

import (
	"testing"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

func testForm() domain.AnswerForm {
	return domain.AnswerForm{
		OpinionID:     7,
		Answer:        "Yes",
		Description:   "Because",
		Link:          "https://example.com",
		AcceptedTerms: true,
	}
}

func newTestState() State {
	return NewState("flow-1", domain.FlowSubmitAnswer, testForm(), 10*usdc.Unit)
}

func TestReducer_Form_SubmitWithoutAllowance(t *testing.T) {
	state := newTestState()

	next, effects := Reduce(state, SubmitRequested{Allowance: 3 * usdc.Unit})

	if next.Step != domain.FlowStateApprove {
		t.Errorf("Expected step approve, got %v", next.Step)
	}
	if !next.InFlight {
		t.Error("Expected InFlight to be set")
	}
	if len(effects) != 1 {
		t.Fatalf("Expected 1 effect, got %d", len(effects))
	}
	approval, ok := effects[0].(SendApproval)
	if !ok {
		t.Fatalf("Expected SendApproval, got %T", effects[0])
	}
	if approval.Amount != 10*usdc.Unit {
		t.Errorf("Expected exact approval of 10 USDC, got %v", approval.Amount)
	}
}

func TestReducer_Form_SubmitUnlimitedApproval(t *testing.T) {
	state := newTestState()
	state.ApprovalMode = ApprovalUnlimited

	_, effects := Reduce(state, SubmitRequested{})

	if len(effects) != 1 {
		t.Fatalf("Expected 1 effect, got %d", len(effects))
	}
	if got := effects[0].(SendApproval).Amount; got != DefaultApprovalCeiling {
		t.Errorf("Expected ceiling approval %v, got %v", DefaultApprovalCeiling, got)
	}

	// A requirement above the ceiling is still covered.
	state.Required = DefaultApprovalCeiling + 1
	_, effects = Reduce(state, SubmitRequested{})
	if got := effects[0].(SendApproval).Amount; got != DefaultApprovalCeiling+1 {
		t.Errorf("Expected approval %v, got %v", DefaultApprovalCeiling+1, got)
	}
}

func TestReducer_Form_SubmitWithAllowance(t *testing.T) {
	state := newTestState()

	next, effects := Reduce(state, SubmitRequested{Allowance: 10 * usdc.Unit})

	if next.Step != domain.FlowStateSubmit {
		t.Errorf("Expected step submit, got %v", next.Step)
	}
	if len(effects) != 1 {
		t.Fatalf("Expected 1 effect, got %d", len(effects))
	}
	if _, ok := effects[0].(SendCall); !ok {
		t.Errorf("Expected SendCall, got %T", effects[0])
	}
}

func TestReducer_Form_SubmitWhileInFlight(t *testing.T) {
	state := newTestState()
	state.InFlight = true

	next, effects := Reduce(state, SubmitRequested{})

	if next.Step != domain.FlowStateForm {
		t.Errorf("Expected step form, got %v", next.Step)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects, got %d", len(effects))
	}
}

func TestReducer_Form_Update(t *testing.T) {
	state := newTestState()
	form := testForm()
	form.Answer = "No"

	next, _ := Reduce(state, FormUpdated{Form: form, Required: 2 * usdc.Unit})

	if next.Form.(domain.AnswerForm).Answer != "No" {
		t.Errorf("Expected updated answer, got %+v", next.Form)
	}
	if next.Required != 2*usdc.Unit {
		t.Errorf("Expected required 2 USDC, got %v", next.Required)
	}
}

func TestReducer_Approve_Confirmed(t *testing.T) {
	state := newTestState()
	state, _ = Reduce(state, SubmitRequested{})
	state, _ = Reduce(state, ApprovalSent{TxHash: "0xaa"})

	next, effects := Reduce(state, ApprovalConfirmed{TxHash: "0xaa"})

	if next.Step != domain.FlowStateSubmit {
		t.Errorf("Expected step submit, got %v", next.Step)
	}
	if next.ApprovalTx != "0xaa" {
		t.Errorf("Expected approval tx 0xaa, got %q", next.ApprovalTx)
	}
	if len(effects) != 1 {
		t.Fatalf("Expected 1 effect, got %d", len(effects))
	}
	if _, ok := effects[0].(SendCall); !ok {
		t.Errorf("Expected SendCall, got %T", effects[0])
	}
}

func TestReducer_ApprovalConfirmedIgnoredOutsideApprove(t *testing.T) {
	for _, step := range []domain.FlowState{
		domain.FlowStateForm,
		domain.FlowStateSubmit,
		domain.FlowStateSuccess,
		domain.FlowStateError,
	} {
		state := newTestState()
		state.Step = step

		next, effects := Reduce(state, ApprovalConfirmed{TxHash: "0xaa"})

		if next.Step != step {
			t.Errorf("[%s] Expected step unchanged, got %v", step, next.Step)
		}
		if len(effects) != 0 {
			t.Errorf("[%s] Expected no effects, got %d", step, len(effects))
		}
	}
}

func TestReducer_Submit_CallConfirmedClearsForm(t *testing.T) {
	state := newTestState()
	state, _ = Reduce(state, SubmitRequested{Allowance: 10 * usdc.Unit})
	state, _ = Reduce(state, CallSent{TxHash: "0xbb"})

	next, effects := Reduce(state, CallConfirmed{TxHash: "0xbb"})

	if next.Step != domain.FlowStateSuccess {
		t.Errorf("Expected step success, got %v", next.Step)
	}
	if next.Form != nil {
		t.Errorf("Expected form to be cleared, got %+v", next.Form)
	}
	if next.InFlight {
		t.Error("Expected InFlight to be cleared")
	}
	if next.CallTx != "0xbb" {
		t.Errorf("Expected call tx 0xbb, got %q", next.CallTx)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects, got %d", len(effects))
	}
}

func TestReducer_FailedPreservesForm(t *testing.T) {
	for _, step := range []domain.FlowState{
		domain.FlowStateForm,
		domain.FlowStateApprove,
		domain.FlowStateSubmit,
	} {
		state := newTestState()
		state.Step = step
		state.InFlight = step != domain.FlowStateForm
		txErr := &TxError{Type: ErrorWallet, Message: rejectedMessage, Retryable: true}

		next, effects := Reduce(state, Failed{Err: txErr})

		if next.Step != domain.FlowStateError {
			t.Errorf("[%s] Expected step error, got %v", step, next.Step)
		}
		if next.Form != state.Form {
			t.Errorf("[%s] Expected form preserved, got %+v", step, next.Form)
		}
		if next.InFlight {
			t.Errorf("[%s] Expected InFlight cleared", step)
		}
		if next.Err != txErr {
			t.Errorf("[%s] Expected error recorded, got %v", step, next.Err)
		}
		if len(effects) != 0 {
			t.Errorf("[%s] Expected no effects, got %d", step, len(effects))
		}
	}
}

func TestReducer_FailedWithoutError(t *testing.T) {
	state := newTestState()
	state.Step = domain.FlowStateSubmit

	next, _ := Reduce(state, Failed{})

	if next.Err == nil || next.Err.Type != ErrorUnknown {
		t.Errorf("Expected unknown error, got %v", next.Err)
	}
}

func TestReducer_Error_Retry(t *testing.T) {
	state := newTestState()
	state, _ = Reduce(state, SubmitRequested{})
	state, _ = Reduce(state, Failed{Err: &TxError{Type: ErrorNetwork, Retryable: true}})

	next, effects := Reduce(state, RetryRequested{})

	if next.Step != domain.FlowStateForm {
		t.Errorf("Expected step form, got %v", next.Step)
	}
	if next.Err != nil {
		t.Errorf("Expected error cleared, got %v", next.Err)
	}
	if next.Form != state.Form {
		t.Errorf("Expected form kept, got %+v", next.Form)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects, got %d", len(effects))
	}

	// The retried flow submits again.
	_, effects = Reduce(next, SubmitRequested{})
	if len(effects) != 1 {
		t.Errorf("Expected resubmission effect, got %d", len(effects))
	}
}

func TestReducer_StopTracking(t *testing.T) {
	state := newTestState()
	state, _ = Reduce(state, SubmitRequested{})

	next, effects := Reduce(state, StopTracking{})

	if next.Tracking {
		t.Error("Expected tracking to stop")
	}
	if next.Step != domain.FlowStateApprove {
		t.Errorf("Expected step untouched, got %v", next.Step)
	}
	if len(effects) != 0 {
		t.Errorf("Expected no effects, got %d", len(effects))
	}

	// Later confirmations are ignored.
	after, effects := Reduce(next, ApprovalConfirmed{TxHash: "0xaa"})
	if after.Step != domain.FlowStateApprove || len(effects) != 0 {
		t.Errorf("Expected untracked flow to ignore events, got %v with %d effects", after.Step, len(effects))
	}
}

func TestReducer_SuccessIsTerminal(t *testing.T) {
	state := newTestState()
	state.Step = domain.FlowStateSuccess

	for _, evt := range []Event{
		SubmitRequested{},
		RetryRequested{},
		Failed{Err: &TxError{Type: ErrorUnknown}},
		CallConfirmed{},
	} {
		next, effects := Reduce(state, evt)
		if next.Step != domain.FlowStateSuccess {
			t.Errorf("[%s] Expected step success, got %v", eventName(evt), next.Step)
		}
		if len(effects) != 0 {
			t.Errorf("[%s] Expected no effects, got %d", eventName(evt), len(effects))
		}
	}
}
