package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// opinionTuple matches the getOpinionDetails output struct field for field.
type opinionTuple struct {
	LastPrice                *big.Int
	NextPrice                *big.Int
	TotalVolume              *big.Int
	SalePrice                *big.Int
	Creator                  common.Address
	QuestionOwner            common.Address
	CurrentAnswerOwner       common.Address
	IsActive                 bool
	Question                 string
	CurrentAnswer            string
	CurrentAnswerDescription string
	IpfsHash                 string
	Link                     string
	Categories               []string
}

// GetOpinionDetails reads one opinion. The next price comes from the
// contract; it is never derived locally.
func (c *Client) GetOpinionDetails(ctx context.Context, id uint64) (domain.Opinion, error) {
	var out []any
	if err := c.core.Call(c.callOpts(ctx), &out, "getOpinionDetails", u256(id)); err != nil {
		return domain.Opinion{}, fmt.Errorf("chain: getOpinionDetails %d: %w", id, err)
	}
	op, err := decodeOpinion(id, out)
	if err != nil {
		return domain.Opinion{}, err
	}
	op.FetchedAt = time.Now().UTC()
	return op, nil
}

func decodeOpinion(id uint64, out []any) (domain.Opinion, error) {
	if len(out) != 1 {
		return domain.Opinion{}, fmt.Errorf("chain: getOpinionDetails %d: expected 1 output, got %d", id, len(out))
	}
	t := *abi.ConvertType(out[0], new(opinionTuple)).(*opinionTuple)
	if t.Creator == (common.Address{}) {
		return domain.Opinion{}, fmt.Errorf("chain: opinion %d: %w", id, domain.ErrNotFound)
	}

	var prices [3]usdc.Amount
	for i, n := range []*big.Int{t.LastPrice, t.NextPrice, t.TotalVolume} {
		a, err := usdc.FromBig(n)
		if err != nil {
			return domain.Opinion{}, fmt.Errorf("chain: opinion %d: %w", id, err)
		}
		prices[i] = a
	}

	return domain.Opinion{
		ID:          id,
		Question:    t.Question,
		Answer:      t.CurrentAnswer,
		Description: t.CurrentAnswerDescription,
		Link:        t.Link,
		Creator:     t.Creator,
		Owner:       t.CurrentAnswerOwner,
		LastPrice:   prices[0],
		NextPrice:   prices[1],
		TotalVolume: prices[2],
		IsActive:    t.IsActive,
		Categories:  t.Categories,
	}, nil
}

// SubmitAnswer buys the answer slot of f.OpinionID at its next price.
func (c *Client) SubmitAnswer(ctx context.Context, f domain.AnswerForm) (common.Hash, error) {
	return c.transact(ctx, c.core, "submitAnswer", u256(f.OpinionID), f.Answer, f.Description, f.Link)
}

// CreateOpinion creates a question with its first answer.
func (c *Client) CreateOpinion(ctx context.Context, f domain.OpinionForm) (common.Hash, error) {
	return c.transact(ctx, c.core, "createOpinion", f.Question, f.Answer, f.Description, f.InitialPrice.Big(), f.Categories)
}
