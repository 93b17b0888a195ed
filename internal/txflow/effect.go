package txflow

import "github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"

// Effect is work Reduce asks the runner to perform.
type Effect interface {
	isEffect()
}

// SendApproval broadcasts approve(spender, Amount) and waits for its receipt.
type SendApproval struct {
	Amount usdc.Amount
}

// SendCall broadcasts the flow's state-changing call and waits for its receipt.
type SendCall struct{}

func (SendApproval) isEffect() {}
func (SendCall) isEffect()     {}
