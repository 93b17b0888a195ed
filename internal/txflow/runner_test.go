package txflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
	"github.com/ethereum/go-ethereum/common"
)

var (
	testOwner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSpender = common.HexToAddress("0x2222222222222222222222222222222222222222")
	approveHash = common.HexToHash("0xaa")
	callHash    = common.HexToHash("0xbb")
)

// fakeChain records every operation in order.
type fakeChain struct {
	mu         sync.Mutex
	allowance  usdc.Amount
	approveErr error
	callErr    error
	minedErr   map[common.Hash]error
	block      chan struct{}
	ops        []string
	approved   usdc.Amount
}

func (c *fakeChain) record(op string) {
	c.mu.Lock()
	c.ops = append(c.ops, op)
	c.mu.Unlock()
}

func (c *fakeChain) Allowance(ctx context.Context, owner, spender common.Address) (usdc.Amount, error) {
	c.record("allowance")
	return c.allowance, nil
}

func (c *fakeChain) Approve(ctx context.Context, spender common.Address, amount usdc.Amount) (common.Hash, error) {
	c.record("approve")
	if c.approveErr != nil {
		return common.Hash{}, c.approveErr
	}
	c.mu.Lock()
	c.approved = amount
	c.mu.Unlock()
	return approveHash, nil
}

func (c *fakeChain) WaitMined(ctx context.Context, hash common.Hash) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if hash == approveHash {
		c.record("approval_mined")
	} else {
		c.record("call_mined")
	}
	return c.minedErr[hash]
}

func (c *fakeChain) call(ctx context.Context) (common.Hash, error) {
	c.record("call")
	if c.callErr != nil {
		return common.Hash{}, c.callErr
	}
	return callHash, nil
}

func (c *fakeChain) opList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ops...)
}

type memStore struct {
	mu   sync.Mutex
	recs []domain.FlowRecord
}

func (s *memStore) Upsert(ctx context.Context, rec domain.FlowRecord) error {
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (domain.FlowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.recs) - 1; i >= 0; i-- {
		if s.recs[i].ID == id {
			return s.recs[i], nil
		}
	}
	return domain.FlowRecord{}, domain.ErrNotFound
}

func (s *memStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.FlowRecord, error) {
	return nil, nil
}

type memBus struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (b *memBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	b.mu.Unlock()
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type heldLocks struct{}

func (heldLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

// captureHandler keeps every record for assertions.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r.Message)
	}
	return out
}

func newTestRunner(chain *fakeChain, opts Options) *Runner {
	opts.Owner = testOwner
	opts.Spender = testSpender
	opts.Chain = chain
	opts.Call = chain.call
	return NewRunner(newTestState(), opts)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestRunner_ApproveThenCall(t *testing.T) {
	chain := &fakeChain{}
	store := &memStore{}
	bus := &memBus{}
	r := newTestRunner(chain, Options{Store: store, Bus: bus})

	if err := r.Submit(context.Background()); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	want := []string{"allowance", "approve", "approval_mined", "call", "call_mined"}
	got := chain.opList()
	if len(got) != len(want) {
		t.Fatalf("Expected ops %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected op %d to be %s, got %s", i, want[i], got[i])
		}
	}
	if chain.approved != 10*usdc.Unit {
		t.Errorf("Expected exact approval, got %v", chain.approved)
	}

	st := r.Snapshot()
	if st.Step != domain.FlowStateSuccess {
		t.Errorf("Expected success, got %v", st.Step)
	}
	if st.Form != nil {
		t.Error("Expected form to be cleared on success")
	}
	if st.ApprovalTx != approveHash.Hex() || st.CallTx != callHash.Hex() {
		t.Errorf("Expected tx hashes recorded, got %q %q", st.ApprovalTx, st.CallTx)
	}

	rec, err := store.GetByID(context.Background(), "flow-1")
	if err != nil {
		t.Fatalf("Expected persisted record, got %v", err)
	}
	if rec.State != domain.FlowStateSuccess || rec.Wallet != testOwner.Hex() {
		t.Errorf("Unexpected record %+v", rec)
	}
	if len(bus.channels) == 0 || bus.channels[0] != ChannelFlows {
		t.Errorf("Expected snapshots on %q, got %v", ChannelFlows, bus.channels)
	}
}

func TestRunner_SkipsApprovalWithAllowance(t *testing.T) {
	chain := &fakeChain{allowance: 50 * usdc.Unit}
	r := newTestRunner(chain, Options{})

	if err := r.Submit(context.Background()); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if contains(chain.opList(), "approve") {
		t.Errorf("Expected no approval, got ops %v", chain.opList())
	}
}

func TestRunner_CallNeverPrecedesApprovalReceipt(t *testing.T) {
	for i := 0; i < 50; i++ {
		chain := &fakeChain{block: make(chan struct{})}
		r := newTestRunner(chain, Options{})

		done := make(chan error, 1)
		go func() { done <- r.Submit(context.Background()) }()

		// Hold the approval receipt; the call must not be issued meanwhile.
		time.Sleep(time.Millisecond)
		if contains(chain.opList(), "call") {
			t.Fatalf("Call issued before approval receipt: %v", chain.opList())
		}
		close(chain.block)

		if err := <-done; err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
		ops := chain.opList()
		mined, call := -1, -1
		for idx, op := range ops {
			switch op {
			case "approval_mined":
				mined = idx
			case "call":
				call = idx
			}
		}
		if mined < 0 || call < mined {
			t.Fatalf("Expected call after approval receipt, got %v", ops)
		}
	}
}

func TestRunner_WalletRejectsApproval(t *testing.T) {
	chain := &fakeChain{approveErr: errors.New("user rejected transaction")}
	r := newTestRunner(chain, Options{})
	before := r.Snapshot().Form

	err := r.Submit(context.Background())

	var te *TxError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TxError, got %v", err)
	}
	if te.Type != ErrorWallet || !te.Retryable {
		t.Errorf("Expected retryable wallet error, got %s retryable=%v", te.Type, te.Retryable)
	}
	st := r.Snapshot()
	if st.Step != domain.FlowStateError {
		t.Errorf("Expected error step, got %v", st.Step)
	}
	if st.Form != before {
		t.Errorf("Expected form unchanged, got %+v", st.Form)
	}
	if contains(chain.opList(), "call") {
		t.Error("Expected no call after a rejected approval")
	}
}

func TestRunner_RevertedCallThenRetry(t *testing.T) {
	chain := &fakeChain{
		allowance: 10 * usdc.Unit,
		minedErr:  map[common.Hash]error{callHash: domain.ErrReverted},
	}
	r := newTestRunner(chain, Options{})

	err := r.Submit(context.Background())
	var te *TxError
	if !errors.As(err, &te) || te.Type != ErrorContract {
		t.Fatalf("Expected contract error, got %v", err)
	}

	if err := r.Submit(context.Background()); !errors.Is(err, ErrNotEditable) {
		t.Errorf("Expected ErrNotEditable before retry, got %v", err)
	}
	if err := r.Retry(context.Background()); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}

	chain.minedErr = nil
	if err := r.Submit(context.Background()); err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}
	if r.Snapshot().Step != domain.FlowStateSuccess {
		t.Errorf("Expected success, got %v", r.Snapshot().Step)
	}
}

func TestRunner_ValidationBlocksChain(t *testing.T) {
	chain := &fakeChain{}
	opts := Options{Owner: testOwner, Spender: testSpender, Chain: chain, Call: chain.call}
	r := NewRunner(NewState("flow-2", domain.FlowSubmitAnswer, domain.AnswerForm{}, usdc.Unit), opts)

	err := r.Submit(context.Background())

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if len(chain.opList()) != 0 {
		t.Errorf("Expected no chain calls, got %v", chain.opList())
	}
	if r.Snapshot().Step != domain.FlowStateForm {
		t.Errorf("Expected form step, got %v", r.Snapshot().Step)
	}
}

func TestRunner_ReentrancyGuard(t *testing.T) {
	chain := &fakeChain{block: make(chan struct{})}
	r := newTestRunner(chain, Options{})

	done := make(chan error, 1)
	go func() { done <- r.Submit(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for !contains(chain.opList(), "approve") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := r.Submit(context.Background()); !errors.Is(err, domain.ErrInFlight) {
		t.Errorf("Expected ErrInFlight, got %v", err)
	}
	close(chain.block)
	if err := <-done; err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
}

func TestRunner_LockHeld(t *testing.T) {
	chain := &fakeChain{}
	r := newTestRunner(chain, Options{Locks: heldLocks{}})

	if err := r.Submit(context.Background()); !errors.Is(err, domain.ErrLockHeld) {
		t.Errorf("Expected ErrLockHeld, got %v", err)
	}
	if len(chain.opList()) != 0 {
		t.Errorf("Expected no chain calls, got %v", chain.opList())
	}
	st := r.Snapshot()
	if st.Step != domain.FlowStateForm || !st.Tracking {
		t.Errorf("Expected flow left tracked in form, got %v tracking=%v", st.Step, st.Tracking)
	}
}

func TestRunner_RetryRejectsNonRetryable(t *testing.T) {
	chain := &fakeChain{approveErr: errors.New("insufficient funds for gas * price + value")}
	r := newTestRunner(chain, Options{})

	_ = r.Submit(context.Background())
	if err := r.Retry(context.Background()); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("Expected ErrNotRetryable, got %v", err)
	}
	if r.Snapshot().Step != domain.FlowStateError {
		t.Errorf("Expected flow to stay in error, got %v", r.Snapshot().Step)
	}
}

func TestRunner_StopTracking(t *testing.T) {
	chain := &fakeChain{block: make(chan struct{})}
	r := newTestRunner(chain, Options{})

	done := make(chan error, 1)
	go func() { done <- r.Submit(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for r.Snapshot().ApprovalTx == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	r.Stop(context.Background())

	if err := <-done; !errors.Is(err, domain.ErrNotTracking) {
		t.Errorf("Expected ErrNotTracking, got %v", err)
	}
	st := r.Snapshot()
	if st.Tracking {
		t.Error("Expected tracking to stop")
	}
	if st.ApprovalTx != approveHash.Hex() {
		t.Errorf("Expected broadcast approval to stay recorded, got %q", st.ApprovalTx)
	}
	if contains(chain.opList(), "call") {
		t.Error("Expected no call after stop")
	}
}

func TestRunner_LogsTransitions(t *testing.T) {
	h := &captureHandler{}
	chain := &fakeChain{approveErr: errors.New("user rejected transaction")}
	r := newTestRunner(chain, Options{Logger: slog.New(h)})

	_ = r.Submit(context.Background())

	msgs := h.messages()
	if !contains(msgs, "flow transition") {
		t.Errorf("Expected a transition log, got %v", msgs)
	}
	if !contains(msgs, "flow failed") {
		t.Errorf("Expected a failure log, got %v", msgs)
	}
}

func TestRunner_RecordKeepsFormOnError(t *testing.T) {
	chain := &fakeChain{callErr: errors.New("rpc: connection refused")}
	chain.allowance = 10 * usdc.Unit
	r := newTestRunner(chain, Options{})

	_ = r.Submit(context.Background())

	rec := r.Record()
	if rec.ErrorType != string(ErrorNetwork) || !rec.Retryable {
		t.Errorf("Expected retryable network error, got %+v", rec)
	}
	var form domain.AnswerForm
	if err := json.Unmarshal(rec.Form, &form); err != nil {
		t.Fatalf("Expected form JSON, got %v", err)
	}
	if form != testForm() {
		t.Errorf("Expected form %+v, got %+v", testForm(), form)
	}
}
