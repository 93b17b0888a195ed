package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/notify"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/txflow"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// Contracts is the contract surface flows are built on.
type Contracts interface {
	txflow.Chain
	OpinionReader
	PoolReader
	Address() common.Address
	SubmitAnswer(ctx context.Context, f domain.AnswerForm) (common.Hash, error)
	CreateOpinion(ctx context.Context, f domain.OpinionForm) (common.Hash, error)
	CreatePool(ctx context.Context, f domain.PoolForm) (common.Hash, error)
	ContributeToPool(ctx context.Context, poolID uint64, amount usdc.Amount) (common.Hash, error)
	CompletePool(ctx context.Context, poolID uint64) (common.Hash, error)
}

// FlowConfig holds the flow tunables.
type FlowConfig struct {
	OpinionCore     common.Address
	PoolManager     common.Address
	ApprovalMode    txflow.ApprovalMode
	ApprovalCeiling usdc.Amount
	SubmitTimeout   time.Duration
	LockTTL         time.Duration
	Retain          time.Duration
}

// FlowDeps are the collaborators of a FlowService. Everything except Chain,
// Opinions and Pools is optional.
type FlowDeps struct {
	Chain    Contracts
	Opinions *OpinionService
	Pools    *PoolService
	Store    domain.FlowStore
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Locks    domain.LockManager
	Notifier *notify.Notifier
}

type flow struct {
	runner    *txflow.Runner
	opinionID uint64
}

// FlowService starts and tracks approve-then-call transaction flows for the
// configured wallet. Submissions run in the background; callers poll Get or
// listen on txflow.ChannelFlows.
type FlowService struct {
	deps   FlowDeps
	cfg    FlowConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	flows map[string]*flow
	// active is the flow holding the wallet, from pricing until its
	// submission returns. Empty when the wallet is free.
	active string
}

// NewFlowService creates a FlowService. Close stops its background work.
func NewFlowService(deps FlowDeps, cfg FlowConfig, logger *slog.Logger) *FlowService {
	if cfg.ApprovalMode == "" {
		cfg.ApprovalMode = txflow.ApprovalExact
	}
	if cfg.ApprovalCeiling <= 0 {
		cfg.ApprovalCeiling = txflow.DefaultApprovalCeiling
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 10 * time.Minute
	}
	if cfg.Retain <= 0 {
		cfg.Retain = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FlowService{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		flows:  make(map[string]*flow),
	}
}

// Close cancels running submissions and waits for them to settle.
func (s *FlowService) Close() {
	s.cancel()
	s.wg.Wait()
}

// plan is everything a flow needs beyond its form.
type plan struct {
	form      domain.FormData
	spender   common.Address
	required  usdc.Amount
	opinionID uint64
}

// Start validates form, prices it against live chain figures and begins the
// flow. Invalid input returns a *domain.ValidationError and sends nothing.
func (s *FlowService) Start(ctx context.Context, kind domain.FlowKind, form domain.FormData) (domain.FlowRecord, error) {
	if !kind.Valid() {
		return domain.FlowRecord{}, domain.NewValidationError("kind", fmt.Sprintf("unknown flow kind %q", kind))
	}
	if err := form.Validate(); err != nil {
		return domain.FlowRecord{}, err
	}
	id := uuid.NewString()
	if err := s.reserve(id); err != nil {
		return domain.FlowRecord{}, err
	}

	p, err := s.prepare(ctx, form)
	if err != nil {
		s.release(id)
		return domain.FlowRecord{}, err
	}

	f := s.newFlow(id, kind, p)
	rec := f.runner.Record()
	if s.deps.Store != nil {
		if err := s.deps.Store.Upsert(ctx, rec); err != nil {
			s.release(id)
			return domain.FlowRecord{}, fmt.Errorf("flow_service: persist %s: %w", rec.ID, err)
		}
	}
	s.audit(ctx, "flow.started", rec, nil)
	s.submit(rec.ID, f)
	return rec, nil
}

// Get returns the latest snapshot of flow id.
func (s *FlowService) Get(ctx context.Context, id string) (domain.FlowRecord, error) {
	if f := s.lookup(id); f != nil {
		return f.runner.Record(), nil
	}
	if s.deps.Store == nil {
		return domain.FlowRecord{}, domain.ErrNotFound
	}
	return s.deps.Store.GetByID(ctx, id)
}

// List returns the flows of the configured wallet, newest first.
func (s *FlowService) List(ctx context.Context, opts domain.ListOpts) ([]domain.FlowRecord, error) {
	if s.deps.Store != nil {
		return s.deps.Store.ListByWallet(ctx, s.deps.Chain.Address().Hex(), opts)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FlowRecord, 0, len(s.flows))
	for _, f := range s.flows {
		out = append(out, f.runner.Record())
	}
	return out, nil
}

// Retry resubmits an errored flow with its preserved form, repricing it
// first. A flow this process no longer tracks is restored from the store.
// Retrying while any submission holds the wallet, this flow's own included,
// returns domain.ErrInFlight.
func (s *FlowService) Retry(ctx context.Context, id string) (domain.FlowRecord, error) {
	if err := s.reserve(id); err != nil {
		if f := s.lookup(id); f != nil {
			return f.runner.Record(), err
		}
		return domain.FlowRecord{}, err
	}
	submitted := false
	defer func() {
		if !submitted {
			s.release(id)
		}
	}()

	f := s.lookup(id)
	if f == nil {
		restored, err := s.restore(ctx, id)
		if err != nil {
			return domain.FlowRecord{}, err
		}
		f = restored
	} else if f.runner.Snapshot().Step != domain.FlowStateForm {
		// A flow whose last repricing failed already sits in the form step.
		if err := f.runner.Retry(ctx); err != nil {
			return domain.FlowRecord{}, err
		}
	}

	st := f.runner.Snapshot()
	p, err := s.prepare(ctx, st.Form)
	if err != nil {
		return f.runner.Record(), err
	}
	if err := f.runner.Update(ctx, p.form, p.required); err != nil {
		return f.runner.Record(), err
	}
	s.submit(id, f)
	submitted = true
	return f.runner.Record(), nil
}

// Stop discards tracking of flow id. Anything already broadcast stays
// broadcast.
func (s *FlowService) Stop(ctx context.Context, id string) (domain.FlowRecord, error) {
	f := s.lookup(id)
	if f == nil {
		return domain.FlowRecord{}, domain.ErrNotFound
	}
	f.runner.Stop(ctx)
	rec := f.runner.Record()
	s.audit(ctx, "flow.stopped", rec, nil)
	return rec, nil
}

func (s *FlowService) restore(ctx context.Context, id string) (*flow, error) {
	if s.deps.Store == nil {
		return nil, domain.ErrNotFound
	}
	rec, err := s.deps.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.State != domain.FlowStateError {
		return nil, fmt.Errorf("%w: %s", txflow.ErrNotEditable, rec.State)
	}
	if !rec.Retryable {
		return nil, fmt.Errorf("%w: %s", txflow.ErrNotRetryable, rec.ErrorType)
	}
	form, err := DecodeForm(rec.Kind, rec.Form)
	if err != nil {
		return nil, fmt.Errorf("flow_service: restore %s: %w", id, err)
	}
	p, err := s.prepare(ctx, form)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "flow_service: restored flow from store", slog.String("flow_id", id))
	return s.newFlow(id, rec.Kind, p), nil
}

func (s *FlowService) newFlow(id string, kind domain.FlowKind, p plan) *flow {
	st := txflow.NewState(id, kind, p.form, p.required)
	st.ApprovalMode = s.cfg.ApprovalMode
	st.ApprovalCeiling = s.cfg.ApprovalCeiling

	var r *txflow.Runner
	r = txflow.NewRunner(st, txflow.Options{
		Owner:   s.deps.Chain.Address(),
		Spender: p.spender,
		Chain:   s.deps.Chain,
		Call: func(ctx context.Context) (common.Hash, error) {
			return s.send(ctx, r.Snapshot().Form)
		},
		Store:   s.deps.Store,
		Bus:     s.deps.Bus,
		Locks:   s.deps.Locks,
		LockTTL: s.cfg.LockTTL,
		Logger:  s.logger,
	})

	f := &flow{runner: r, opinionID: p.opinionID}
	s.mu.Lock()
	s.prune()
	s.flows[id] = f
	s.mu.Unlock()
	return f
}

// prepare reads the live figures form depends on and derives what the flow
// must approve. Caller holds no lock.
func (s *FlowService) prepare(ctx context.Context, form domain.FormData) (plan, error) {
	owner := s.deps.Chain.Address()
	switch f := form.(type) {
	case domain.AnswerForm:
		op, err := s.deps.Chain.GetOpinionDetails(ctx, f.OpinionID)
		if err != nil {
			return plan{}, fmt.Errorf("flow_service: read opinion %d: %w", f.OpinionID, err)
		}
		if !op.IsActive {
			return plan{}, domain.NewValidationError("opinion_id", "opinion is not active")
		}
		if err := s.checkBalance(ctx, owner, op.NextPrice); err != nil {
			return plan{}, err
		}
		return plan{form: f, spender: s.cfg.OpinionCore, required: op.NextPrice, opinionID: f.OpinionID}, nil

	case domain.OpinionForm:
		if err := s.checkBalance(ctx, owner, f.InitialPrice); err != nil {
			return plan{}, err
		}
		return plan{form: f, spender: s.cfg.OpinionCore, required: f.InitialPrice}, nil

	case domain.PoolForm:
		c, err := s.deps.Pools.Creation(ctx, owner, f)
		if err != nil {
			return plan{}, err
		}
		if err := c.Validate(); err != nil {
			return plan{}, err
		}
		return plan{form: f, spender: s.cfg.PoolManager, required: c.RequiredTotal}, nil

	case domain.ContributionForm:
		pf, err := s.deps.Pools.Funding(ctx, f.PoolID, owner, f.Amount)
		if err != nil {
			return plan{}, err
		}
		if pf.Pool.Status != domain.PoolStatusActive.String() {
			return plan{}, domain.NewValidationError("pool_id", "pool is "+pf.Pool.Status)
		}
		if err := pf.Funding.Validate(); err != nil {
			return plan{}, err
		}
		// Never send more than the pool still needs.
		f.Amount = pf.Funding.ActualContribution
		return plan{form: f, spender: s.cfg.PoolManager, required: pf.Funding.RequiredTotal, opinionID: pf.Pool.OpinionID}, nil

	case domain.CompletionForm:
		pf, err := s.deps.Pools.Funding(ctx, f.PoolID, owner, 0)
		if err != nil {
			return plan{}, err
		}
		if pf.Pool.Status != domain.PoolStatusActive.String() {
			return plan{}, domain.NewValidationError("pool_id", "pool is "+pf.Pool.Status)
		}
		if !pf.Funding.CanComplete {
			return plan{}, domain.NewValidationError("balance",
				"insufficient USDC to complete: need "+(pf.Funding.RemainingNeeded+pf.Funding.Fee).String()+", have "+pf.Funding.Balance.String())
		}
		required := pf.Funding.RemainingNeeded + pf.Funding.Fee
		return plan{form: f, spender: s.cfg.PoolManager, required: required, opinionID: pf.Pool.OpinionID}, nil
	}
	return plan{}, domain.NewValidationError("form", fmt.Sprintf("unsupported form %T", form))
}

func (s *FlowService) checkBalance(ctx context.Context, owner common.Address, need usdc.Amount) error {
	balance, err := s.deps.Chain.BalanceOf(ctx, owner)
	if err != nil {
		return fmt.Errorf("flow_service: balance of %s: %w", owner.Hex(), err)
	}
	if balance < need {
		return domain.NewValidationError("balance", "insufficient USDC: need "+need.String()+", have "+balance.String())
	}
	return nil
}

// send broadcasts the contract call form describes.
func (s *FlowService) send(ctx context.Context, form domain.FormData) (common.Hash, error) {
	switch f := form.(type) {
	case domain.AnswerForm:
		return s.deps.Chain.SubmitAnswer(ctx, f)
	case domain.OpinionForm:
		return s.deps.Chain.CreateOpinion(ctx, f)
	case domain.PoolForm:
		return s.deps.Chain.CreatePool(ctx, f)
	case domain.ContributionForm:
		return s.deps.Chain.ContributeToPool(ctx, f.PoolID, f.Amount)
	case domain.CompletionForm:
		return s.deps.Chain.CompletePool(ctx, f.PoolID)
	}
	return common.Hash{}, fmt.Errorf("flow_service: no call for form %T", form)
}

// submit runs the flow in the background until it settles, then frees the
// wallet slot id holds.
func (s *FlowService) submit(id string, f *flow) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(id)
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SubmitTimeout)
		defer cancel()

		err := f.runner.Submit(ctx)
		rec := f.runner.Record()
		var txErr *txflow.TxError
		switch {
		case err == nil:
			s.settled(ctx, f, rec)
		case errors.As(err, &txErr):
			s.failed(ctx, rec, txErr)
		case errors.Is(err, domain.ErrLockHeld):
			// Another process holds the wallet. Nothing was sent and the
			// flow waits in the form step for a Retry.
			s.logger.Warn("flow_service: wallet locked elsewhere, flow not submitted", slog.String("flow_id", id))
		case errors.Is(err, domain.ErrInFlight):
			s.logger.Warn("flow_service: runner already submitting", slog.String("flow_id", id))
		case errors.Is(err, domain.ErrNotTracking):
			s.logger.Info("flow_service: flow no longer tracked", slog.String("flow_id", id))
		default:
			s.logger.Error("flow_service: submit failed", slog.String("flow_id", id), slog.String("error", err.Error()))
		}
	}()
}

func (s *FlowService) settled(ctx context.Context, f *flow, rec domain.FlowRecord) {
	ctx = context.WithoutCancel(ctx)
	if f.opinionID != 0 && s.deps.Opinions != nil {
		s.deps.Opinions.Invalidate(ctx, f.opinionID)
	}
	s.audit(ctx, "flow.settled", rec, nil)
	if s.deps.Notifier.Enabled() {
		msg := fmt.Sprintf("%s flow %s confirmed in %s", rec.Kind, rec.ID, rec.CallTx)
		if err := s.deps.Notifier.Notify(ctx, notify.EventFlowSettled, "Flow settled", msg); err != nil {
			s.logger.Warn("flow_service: notify failed", slog.String("error", err.Error()))
		}
	}
}

func (s *FlowService) failed(ctx context.Context, rec domain.FlowRecord, txErr *txflow.TxError) {
	ctx = context.WithoutCancel(ctx)
	s.audit(ctx, "flow.failed", rec, map[string]any{
		"error_type": string(txErr.Type),
		"retryable":  txErr.Retryable,
		"details":    txErr.Details,
	})
	if s.deps.Notifier.Enabled() {
		msg := fmt.Sprintf("%s flow %s failed (%s): %s", rec.Kind, rec.ID, txErr.Type, txErr.Details)
		if err := s.deps.Notifier.Notify(ctx, notify.EventFlowFailed, "Flow failed", msg); err != nil {
			s.logger.Warn("flow_service: notify failed", slog.String("error", err.Error()))
		}
	}
}

func (s *FlowService) audit(ctx context.Context, event string, rec domain.FlowRecord, extra map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	detail := map[string]any{
		"flow_id": rec.ID,
		"kind":    string(rec.Kind),
		"wallet":  rec.Wallet,
		"state":   string(rec.State),
	}
	for k, v := range extra {
		detail[k] = v
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.Warn("flow_service: audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (s *FlowService) lookup(id string) *flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flows[id]
}

// reserve claims the wallet for flow id. One flow per wallet may be priced
// or submitting at a time.
func (s *FlowService) reserve(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		return domain.ErrInFlight
	}
	s.active = id
	return nil
}

func (s *FlowService) release(id string) {
	s.mu.Lock()
	if s.active == id {
		s.active = ""
	}
	s.mu.Unlock()
}

// prune drops settled flows older than Retain once they are persisted
// elsewhere. Caller holds s.mu.
func (s *FlowService) prune() {
	if s.deps.Store == nil {
		return
	}
	cutoff := time.Now().Add(-s.cfg.Retain)
	for id, f := range s.flows {
		rec := f.runner.Record()
		if (rec.State.Terminal() || !rec.Tracking) && rec.UpdatedAt.Before(cutoff) {
			delete(s.flows, id)
		}
	}
}
