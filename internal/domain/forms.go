package domain

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// Form length limits enforced before any transaction is built.
const (
	MaxQuestionLen    = 60
	MaxAnswerLen      = 60
	MaxDescriptionLen = 120
	MaxPoolNameLen    = 30
	MaxLinkLen        = 260
	MinCategories     = 1
	MaxCategories     = 3

	MinInitialPrice = 1 * usdc.Unit
	MaxInitialPrice = 100 * usdc.Unit
)

// FormData is the ephemeral input behind a transaction flow. It survives an
// error so the user can retry, and is cleared on success.
type FormData interface {
	Validate() error
}

// AnswerForm is the input for submitAnswer.
type AnswerForm struct {
	OpinionID     uint64 `json:"opinion_id"`
	Answer        string `json:"answer"`
	Description   string `json:"description"`
	Link          string `json:"link"`
	AcceptedTerms bool   `json:"accepted_terms"`
}

func (f AnswerForm) Validate() error {
	v := &ValidationError{}
	checkText(v, "answer", f.Answer, MaxAnswerLen, true)
	checkText(v, "description", f.Description, MaxDescriptionLen, false)
	checkLink(v, "link", f.Link)
	if !f.AcceptedTerms {
		v.Add("accepted_terms", "terms must be accepted")
	}
	return v.OrNil()
}

// OpinionForm is the input for createOpinion.
type OpinionForm struct {
	Question     string      `json:"question"`
	Answer       string      `json:"answer"`
	Description  string      `json:"description"`
	InitialPrice usdc.Amount `json:"initial_price"`
	Categories   []string    `json:"categories"`
}

func (f OpinionForm) Validate() error {
	v := &ValidationError{}
	checkText(v, "question", f.Question, MaxQuestionLen, true)
	checkText(v, "answer", f.Answer, MaxAnswerLen, true)
	checkText(v, "description", f.Description, MaxDescriptionLen, false)
	if f.InitialPrice < MinInitialPrice || f.InitialPrice > MaxInitialPrice {
		v.Add("initial_price", "must be between "+MinInitialPrice.String()+" and "+MaxInitialPrice.String()+" USDC")
	}
	if n := len(f.Categories); n < MinCategories || n > MaxCategories {
		v.Add("categories", "choose between 1 and 3 categories")
	}
	seen := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			v.Add("categories", "category must not be empty")
			continue
		}
		if seen[c] {
			v.Add("categories", "duplicate category "+c)
		}
		seen[c] = true
	}
	return v.OrNil()
}

// PoolForm is the input for createPool.
type PoolForm struct {
	OpinionID           uint64      `json:"opinion_id"`
	ProposedAnswer      string      `json:"proposed_answer"`
	Name                string      `json:"name"`
	Deadline            time.Time   `json:"deadline"`
	InitialContribution usdc.Amount `json:"initial_contribution"`
	IPFSHash            string      `json:"ipfs_hash"`
}

func (f PoolForm) Validate() error {
	v := &ValidationError{}
	checkText(v, "proposed_answer", f.ProposedAnswer, MaxAnswerLen, true)
	checkText(v, "name", f.Name, MaxPoolNameLen, true)
	if f.Deadline.IsZero() {
		v.Add("deadline", "required")
	}
	if f.InitialContribution <= 0 {
		v.Add("initial_contribution", "must be greater than zero")
	}
	return v.OrNil()
}

// ContributionForm is the input for contributeToPool.
type ContributionForm struct {
	PoolID uint64      `json:"pool_id"`
	Amount usdc.Amount `json:"amount"`
}

func (f ContributionForm) Validate() error {
	if f.Amount <= 0 {
		return NewValidationError("amount", "must be greater than zero")
	}
	return nil
}

// CompletionForm is the input for completePool. It carries no user text.
type CompletionForm struct {
	PoolID uint64 `json:"pool_id"`
}

func (f CompletionForm) Validate() error { return nil }

func checkText(v *ValidationError, field, s string, max int, required bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			v.Add(field, "required")
		}
		return
	}
	if utf8.RuneCountInString(s) > max {
		v.Add(field, "must be at most "+strconv.Itoa(max)+" characters")
	}
}

func checkLink(v *ValidationError, field, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if len(s) > MaxLinkLen {
		v.Add(field, "too long")
		return
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.Add(field, "must be an http(s) URL")
	}
}
