package pipeline

import "github.com/camp/kindred/internal/bunking/model"

// SpreadFilter narrows a candidate list to the people plausibly close
// enough in grade to the requester to be a real bunking match,
// trimming obviously-wrong candidates (e.g. a kindergartner matching a
// high-schooler's sibling's name) before the strategy chain runs. It
// judges by grade only; birth dates are not consulted.
type SpreadFilter struct {
	// MaxGradeDifference is the largest |Δ grade| considered plausible.
	// Candidates outside this range are dropped when both requester and
	// candidate have a known grade.
	MaxGradeDifference int
}

// NewSpreadFilter builds a SpreadFilter with the given grade tolerance.
func NewSpreadFilter(maxGradeDifference int) *SpreadFilter {
	if maxGradeDifference <= 0 {
		maxGradeDifference = 3
	}
	return &SpreadFilter{MaxGradeDifference: maxGradeDifference}
}

// FilterCandidates drops candidates whose grade is implausibly far from
// the requester's. A candidate with no recorded grade, or a requester
// with no recorded grade, is never filtered out (no signal to judge on).
func (f *SpreadFilter) FilterCandidates(requester model.Person, candidates []model.Person) []model.Person {
	if requester.Grade == nil {
		return candidates
	}

	out := make([]model.Person, 0, len(candidates))
	for _, c := range candidates {
		if c.Grade == nil {
			out = append(out, c)
			continue
		}
		if model.AbsInt(*c.Grade-*requester.Grade) <= f.MaxGradeDifference {
			out = append(out, c)
		}
	}
	return out
}
