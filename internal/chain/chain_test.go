package chain

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

func TestParseABIs(t *testing.T) {
	a, err := parseABIs()
	if err != nil {
		t.Fatalf("parseABIs: %v", err)
	}
	for _, m := range []string{"balanceOf", "allowance", "approve"} {
		if _, ok := a.erc20.Methods[m]; !ok {
			t.Errorf("erc20 missing %s", m)
		}
	}
	for _, m := range []string{"getOpinionDetails", "submitAnswer", "createOpinion"} {
		if _, ok := a.core.Methods[m]; !ok {
			t.Errorf("opinion core missing %s", m)
		}
	}
	for _, m := range []string{"getPoolDetails", "getPoolContributors", "createPool", "contributeToPool", "completePool"} {
		if _, ok := a.pools.Methods[m]; !ok {
			t.Errorf("pool manager missing %s", m)
		}
	}
}

func TestDecodeOpinion(t *testing.T) {
	a, err := parseABIs()
	if err != nil {
		t.Fatal(err)
	}
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	in := opinionTuple{
		LastPrice:                big.NewInt(2_500_000),
		NextPrice:                big.NewInt(3_100_000),
		TotalVolume:              big.NewInt(40_000_000),
		SalePrice:                big.NewInt(0),
		Creator:                  common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		QuestionOwner:            owner,
		CurrentAnswerOwner:       owner,
		IsActive:                 true,
		Question:                 "Best L2?",
		CurrentAnswer:            "Base",
		CurrentAnswerDescription: "Cheap",
		IpfsHash:                 "",
		Link:                     "https://base.org",
		Categories:               []string{"crypto"},
	}

	method := a.core.Methods["getOpinionDetails"]
	packed, err := method.Outputs.Pack(in)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	out, err := method.Outputs.Unpack(packed)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}

	op, err := decodeOpinion(7, out)
	if err != nil {
		t.Fatalf("decodeOpinion: %v", err)
	}
	if op.ID != 7 || op.Answer != "Base" || op.Owner != owner {
		t.Errorf("unexpected opinion %+v", op)
	}
	if op.LastPrice != 2_500_000 || op.NextPrice != 3_100_000 || op.TotalVolume != 40*usdc.Unit {
		t.Errorf("unexpected prices %v %v %v", op.LastPrice, op.NextPrice, op.TotalVolume)
	}
	if len(op.Categories) != 1 || op.Categories[0] != "crypto" {
		t.Errorf("unexpected categories %v", op.Categories)
	}

	in.Creator = common.Address{}
	packed, _ = method.Outputs.Pack(in)
	out, _ = method.Outputs.Unpack(packed)
	if _, err := decodeOpinion(7, out); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty creator, got %v", err)
	}
}

func TestDecodePool(t *testing.T) {
	a, err := parseABIs()
	if err != nil {
		t.Fatal(err)
	}
	info := poolTuple{
		Id:             big.NewInt(3),
		OpinionId:      big.NewInt(7),
		ProposedAnswer: "Arbitrum",
		TotalAmount:    big.NewInt(120_000_000),
		Deadline:       1_800_000_000,
		Creator:        common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		Status:         1,
		Name:           "Arb gang",
		IpfsHash:       "",
		TargetPrice:    big.NewInt(150_000_000),
	}

	method := a.pools.Methods["getPoolDetails"]
	packed, err := method.Outputs.Pack(info, big.NewInt(150_000_000), big.NewInt(30_000_000), big.NewInt(3600))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	out, err := method.Outputs.Unpack(packed)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}

	d, err := decodePool(3, out)
	if err != nil {
		t.Fatalf("decodePool: %v", err)
	}
	if d.Pool.OpinionID != 7 || d.Pool.Name != "Arb gang" || d.Pool.Status != domain.PoolStatusExecuted {
		t.Errorf("unexpected pool %+v", d.Pool)
	}
	if d.Pool.TotalAmount != 120*usdc.Unit || d.Pool.TargetPrice != 150*usdc.Unit {
		t.Errorf("unexpected amounts %v %v", d.Pool.TotalAmount, d.Pool.TargetPrice)
	}
	if d.Remaining != 30*usdc.Unit || d.TimeRemaining != time.Hour {
		t.Errorf("unexpected live figures %v %v", d.Remaining, d.TimeRemaining)
	}
	if !d.Pool.Deadline.Equal(time.Unix(1_800_000_000, 0)) {
		t.Errorf("unexpected deadline %v", d.Pool.Deadline)
	}
}

func TestSaturate(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	tests := []struct {
		in   *big.Int
		want usdc.Amount
	}{
		{nil, 0},
		{big.NewInt(0), 0},
		{big.NewInt(5_000_000), 5 * usdc.Unit},
		{maxUint256, usdc.Amount(math.MaxInt64)},
	}
	for _, tt := range tests {
		if got := saturate(tt.in); got != tt.want {
			t.Errorf("saturate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type fakeReceipts struct {
	pending int
	status  uint64
	err     error
	calls   int
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.pending {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status}, nil
}

func TestWaitMined(t *testing.T) {
	ctx := context.Background()
	hash := common.HexToHash("0x01")

	ok := &fakeReceipts{pending: 2, status: types.ReceiptStatusSuccessful}
	if err := waitMined(ctx, ok, hash, time.Millisecond); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
	if ok.calls != 3 {
		t.Errorf("Expected 3 polls, got %d", ok.calls)
	}

	reverted := &fakeReceipts{status: types.ReceiptStatusFailed}
	if err := waitMined(ctx, reverted, hash, time.Millisecond); !errors.Is(err, domain.ErrReverted) {
		t.Errorf("Expected ErrReverted, got %v", err)
	}

	broken := &fakeReceipts{err: errors.New("connection refused")}
	if err := waitMined(ctx, broken, hash, time.Millisecond); err == nil {
		t.Error("Expected rpc error")
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	never := &fakeReceipts{pending: math.MaxInt}
	if err := waitMined(cctx, never, hash, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestNetworkContracts(t *testing.T) {
	n := Network{
		USDC:        common.HexToAddress("0x01"),
		OpinionCore: common.HexToAddress("0x02"),
		PoolManager: common.HexToAddress("0x03"),
	}
	if got := len(n.Contracts()); got != 3 {
		t.Errorf("Expected 3 contracts without a fee manager, got %d", got)
	}
	n.FeeManager = common.HexToAddress("0x04")
	if got := len(n.Contracts()); got != 4 {
		t.Errorf("Expected 4 contracts, got %d", got)
	}
}
