package models

import "sort"

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ItemResult records what happened to one unit of batch work (a paper row, a
// sub field, an HTML file) instead of unwinding on the first error.
type ItemResult struct {
	Item    string
	Outcome Outcome
	Reason  string
	Err     error
}

func OK(item string) ItemResult {
	return ItemResult{Item: item, Outcome: OutcomeOK}
}

func Skipped(item, reason string) ItemResult {
	return ItemResult{Item: item, Outcome: OutcomeSkipped, Reason: reason}
}

func Failed(item, reason string, err error) ItemResult {
	return ItemResult{Item: item, Outcome: OutcomeFailed, Reason: reason, Err: err}
}

type BatchSummary struct {
	Succeeded int            `json:"succeeded"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Reasons   map[string]int `json:"reasons,omitempty"`
	Results   []ItemResult   `json:"-"`
}

func (s *BatchSummary) Add(r ItemResult) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeOK:
		s.Succeeded++
		return
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	if r.Reason != "" {
		if s.Reasons == nil {
			s.Reasons = map[string]int{}
		}
		s.Reasons[r.Reason]++
	}
}

func (s *BatchSummary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// ReasonKeys returns the recorded skip/failure reasons in stable order.
func (s *BatchSummary) ReasonKeys() []string {
	keys := make([]string, 0, len(s.Reasons))
	for k := range s.Reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
