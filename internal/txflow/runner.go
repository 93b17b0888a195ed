package txflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
	"github.com/ethereum/go-ethereum/common"
)

// ChannelFlows is the SignalBus channel flow snapshots are published on.
const ChannelFlows = "flows"

var (
	// ErrNotEditable is returned when an operation needs a different step.
	ErrNotEditable = errors.New("txflow: flow is not in an editable step")
	// ErrNotRetryable is returned by Retry when the failure cannot succeed on
	// a resubmission of the same form.
	ErrNotRetryable = errors.New("txflow: flow failed with a non-retryable error")
)

// Chain is the part of the contract client a flow drives.
type Chain interface {
	Allowance(ctx context.Context, owner, spender common.Address) (usdc.Amount, error)
	Approve(ctx context.Context, spender common.Address, amount usdc.Amount) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) error
}

// Call broadcasts the state-changing transaction of one flow.
type Call func(ctx context.Context) (common.Hash, error)

// Options configures a Runner. Store, Bus and Locks are optional.
type Options struct {
	Owner   common.Address
	Spender common.Address
	Chain   Chain
	Call    Call

	Store   domain.FlowStore
	Bus     domain.SignalBus
	Locks   domain.LockManager
	LockTTL time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Runner executes the effects Reduce emits for a single flow.
type Runner struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	busy      bool
	cancel    context.CancelFunc
	createdAt time.Time
	updatedAt time.Time
}

// NewRunner wraps state. The caller keeps no reference to state.
func NewRunner(state State, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now()
	return &Runner{
		opts: opts,
		logger: logger.With(
			slog.String("component", "txflow"),
			slog.String("flow_id", state.ID),
			slog.String("kind", string(state.Kind)),
		),
		state:     state,
		createdAt: now,
		updatedAt: now,
	}
}

// Snapshot returns a copy of the current state.
func (r *Runner) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Record returns the persisted form of the current state.
func (r *Runner) Record() domain.FlowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordLocked()
}

// Submit reads the current allowance and drives the flow until it settles in
// success or error. It returns nil on success, the *TxError on failure,
// a *domain.ValidationError when the form is invalid (no chain call is made),
// domain.ErrInFlight while another submission of this runner runs,
// domain.ErrLockHeld when another process holds the wallet lock (the flow
// stays in the form step) and domain.ErrNotTracking once Stop was called.
func (r *Runner) Submit(ctx context.Context) error {
	r.mu.Lock()
	if r.busy || r.state.InFlight {
		r.mu.Unlock()
		return domain.ErrInFlight
	}
	if !r.state.Tracking {
		r.mu.Unlock()
		return domain.ErrNotTracking
	}
	if r.state.Step != domain.FlowStateForm {
		step := r.state.Step
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotEditable, step)
	}
	form := r.state.Form
	r.busy = true
	trackCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.busy = false
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	if form != nil {
		if err := form.Validate(); err != nil {
			r.logger.Info("flow submission blocked by validation", slog.String("error", err.Error()))
			return err
		}
	}

	if r.opts.Locks != nil {
		unlock, err := r.opts.Locks.Acquire(ctx, "flow:"+r.opts.Owner.Hex(), r.opts.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.ErrLockHeld
			}
			r.dispatch(ctx, Failed{Err: Classify(err)})
			return r.outcome()
		}
		defer unlock()
	}

	allowance, err := r.opts.Chain.Allowance(trackCtx, r.opts.Owner, r.opts.Spender)
	if err != nil {
		r.dispatch(ctx, Failed{Err: Classify(fmt.Errorf("read allowance: %w", err))})
		return r.outcome()
	}

	effects := r.dispatch(ctx, SubmitRequested{Allowance: allowance})
	r.execute(ctx, trackCtx, effects)
	return r.outcome()
}

// Update replaces the form while the flow sits in the form step.
func (r *Runner) Update(ctx context.Context, form domain.FormData, required usdc.Amount) error {
	r.mu.Lock()
	step, busy := r.state.Step, r.busy
	r.mu.Unlock()
	if busy {
		return domain.ErrInFlight
	}
	if step != domain.FlowStateForm {
		return fmt.Errorf("%w: %s", ErrNotEditable, step)
	}
	r.dispatch(ctx, FormUpdated{Form: form, Required: required})
	return nil
}

// Retry moves an errored flow back to the form with its input intact.
func (r *Runner) Retry(ctx context.Context) error {
	r.mu.Lock()
	st := r.state
	r.mu.Unlock()
	if !st.Tracking {
		return domain.ErrNotTracking
	}
	if st.Step != domain.FlowStateError {
		return fmt.Errorf("%w: %s", ErrNotEditable, st.Step)
	}
	if st.Err != nil && !st.Err.Retryable {
		return fmt.Errorf("%w: %s", ErrNotRetryable, st.Err.Type)
	}
	r.dispatch(ctx, RetryRequested{})
	return nil
}

// Stop discards local tracking. Transactions already broadcast are not
// cancelled and may still be mined.
func (r *Runner) Stop(ctx context.Context) {
	r.dispatch(ctx, StopTracking{})
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// execute runs effects in order. Each effect ends in a confirmation or a
// failure event; effects emitted by those events are queued behind it.
func (r *Runner) execute(ctx, trackCtx context.Context, effects []Effect) {
	for len(effects) > 0 {
		eff := effects[0]
		effects = effects[1:]

		var follow []Effect
		switch e := eff.(type) {
		case SendApproval:
			follow = r.sendApproval(ctx, trackCtx, e)
		case SendCall:
			follow = r.sendCall(ctx, trackCtx)
		}
		effects = append(effects, follow...)
	}
}

func (r *Runner) sendApproval(ctx, trackCtx context.Context, e SendApproval) []Effect {
	r.logger.Info("sending approval",
		slog.String("spender", r.opts.Spender.Hex()),
		slog.String("amount", e.Amount.String()),
	)
	hash, err := r.opts.Chain.Approve(trackCtx, r.opts.Spender, e.Amount)
	if err != nil {
		return r.dispatch(ctx, Failed{Err: Classify(fmt.Errorf("approve: %w", err))})
	}
	r.dispatch(ctx, ApprovalSent{TxHash: hash.Hex()})

	if err := r.opts.Chain.WaitMined(trackCtx, hash); err != nil {
		return r.dispatch(ctx, Failed{Err: Classify(fmt.Errorf("approval receipt: %w", err))})
	}
	return r.dispatch(ctx, ApprovalConfirmed{TxHash: hash.Hex()})
}

func (r *Runner) sendCall(ctx, trackCtx context.Context) []Effect {
	r.logger.Info("sending call")
	hash, err := r.opts.Call(trackCtx)
	if err != nil {
		return r.dispatch(ctx, Failed{Err: Classify(fmt.Errorf("call: %w", err))})
	}
	r.dispatch(ctx, CallSent{TxHash: hash.Hex()})

	if err := r.opts.Chain.WaitMined(trackCtx, hash); err != nil {
		return r.dispatch(ctx, Failed{Err: Classify(fmt.Errorf("call receipt: %w", err))})
	}
	return r.dispatch(ctx, CallConfirmed{TxHash: hash.Hex()})
}

// dispatch applies evt, logs the transition, persists and publishes the new
// snapshot, and returns the effects Reduce emitted.
func (r *Runner) dispatch(ctx context.Context, evt Event) []Effect {
	r.mu.Lock()
	prev := r.state
	next, effects := Reduce(prev, evt)
	r.state = next
	r.updatedAt = r.opts.Now()
	rec := r.recordLocked()
	r.mu.Unlock()

	attrs := []any{
		slog.String("event", eventName(evt)),
		slog.String("from", string(prev.Step)),
		slog.String("to", string(next.Step)),
	}
	switch {
	case prev.Step == next.Step && prev.Tracking == next.Tracking:
		r.logger.Debug("flow event", attrs...)
	case next.Step == domain.FlowStateError && next.Err != nil:
		r.logger.Error("flow failed", append(attrs,
			slog.String("error_type", string(next.Err.Type)),
			slog.Bool("retryable", next.Err.Retryable),
			slog.String("details", next.Err.Details),
		)...)
	default:
		r.logger.Info("flow transition", attrs...)
	}

	// Persist even after Stop cancelled ctx: the record is what callers read.
	pctx := context.WithoutCancel(ctx)
	if r.opts.Store != nil {
		if err := r.opts.Store.Upsert(pctx, rec); err != nil {
			r.logger.Warn("failed to persist flow", slog.String("error", err.Error()))
		}
	}
	if r.opts.Bus != nil {
		payload, err := json.Marshal(rec)
		if err == nil {
			err = r.opts.Bus.Publish(pctx, ChannelFlows, payload)
		}
		if err != nil {
			r.logger.Warn("failed to publish flow", slog.String("error", err.Error()))
		}
	}
	return effects
}

// outcome maps the settled state to Submit's return value.
func (r *Runner) outcome() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case !r.state.Tracking:
		return domain.ErrNotTracking
	case r.state.Step == domain.FlowStateError && r.state.Err != nil:
		return r.state.Err
	}
	return nil
}

func (r *Runner) recordLocked() domain.FlowRecord {
	st := r.state
	rec := domain.FlowRecord{
		ID:         st.ID,
		Kind:       st.Kind,
		Wallet:     r.opts.Owner.Hex(),
		State:      st.Step,
		Tracking:   st.Tracking,
		ApprovalTx: st.ApprovalTx,
		CallTx:     st.CallTx,
		CreatedAt:  r.createdAt,
		UpdatedAt:  r.updatedAt,
	}
	if st.Err != nil {
		rec.ErrorType = string(st.Err.Type)
		rec.ErrorMessage = st.Err.UserMessage()
		rec.Retryable = st.Err.Retryable
	}
	if st.Form != nil {
		if raw, err := json.Marshal(st.Form); err == nil {
			rec.Form = raw
		}
	}
	return rec
}
