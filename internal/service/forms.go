package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

// DecodeForm parses raw into the form type kind expects. Unknown fields are
// rejected so a typo never silently drops user input.
func DecodeForm(kind domain.FlowKind, raw []byte) (domain.FormData, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var err error
	var form domain.FormData
	switch kind {
	case domain.FlowSubmitAnswer:
		var f domain.AnswerForm
		err = dec.Decode(&f)
		form = f
	case domain.FlowCreateOpinion:
		var f domain.OpinionForm
		err = dec.Decode(&f)
		form = f
	case domain.FlowCreatePool:
		var f domain.PoolForm
		err = dec.Decode(&f)
		form = f
	case domain.FlowContribute:
		var f domain.ContributionForm
		err = dec.Decode(&f)
		form = f
	case domain.FlowCompletePool:
		var f domain.CompletionForm
		err = dec.Decode(&f)
		form = f
	default:
		return nil, domain.NewValidationError("kind", fmt.Sprintf("unknown flow kind %q", kind))
	}
	if err != nil {
		return nil, domain.NewValidationError("form", "malformed: "+err.Error())
	}
	return form, nil
}
