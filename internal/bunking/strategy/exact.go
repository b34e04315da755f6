package strategy

import (
	"context"

	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/nameutil"
	"github.com/camp/kindred/internal/bunking/repository"
)

// Exact confidence constants. Exact match never consults the shared
// config.StrategyConfidence tree — these values are hardcoded, matching
// the match strategy's own stand-alone constants rather than the base
// strategy's config-driven lookup.
const (
	exactUniqueSameSession      = 0.95
	exactUniqueDifferentSession = 0.85
	exactUniqueNoSessionInfo    = 0.90
	exactUniqueNoYearContext    = 0.90

	exactParentSurnameSameSession      = 0.90
	exactParentSurnameDifferentSession = 0.80
	exactParentSurnameAmbiguous        = 0.45

	exactDisambiguateUniqueSameSession = 0.95
	exactDisambiguateStillAmbiguous    = 0.50
	exactDisambiguateImpossible        = 0.0

	exactMultipleNoYear    = 0.50
	exactMultipleNoSession = 0.50
)

// ExactStrategy resolves a target name by exact first/last name match,
// falling back to parent-surname matching and session disambiguation
// when more than one roster person shares the name.
type ExactStrategy struct {
	persons   repository.PersonRepository
	attendees repository.AttendeeRepository
}

// NewExactStrategy builds an ExactStrategy.
func NewExactStrategy(persons repository.PersonRepository, attendees repository.AttendeeRepository) *ExactStrategy {
	return &ExactStrategy{persons: persons, attendees: attendees}
}

func (s *ExactStrategy) Name() string { return string(model.MethodExact) }

// Resolve implements Strategy against live repositories, with no
// pre-loaded batch context.
func (s *ExactStrategy) Resolve(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int) (model.ResolutionResult, error) {
	parsed := nameutil.ParseName(name)
	if parsed.First == "" || parsed.Last == "" {
		return model.NotFoundResult(model.MethodExact, "name_not_splittable"), nil
	}

	yr := 0
	if year != nil {
		yr = *year
	}

	matches, err := s.persons.FindByName(ctx, parsed.First, parsed.Last, yr)
	if err != nil {
		return model.ResolutionResult{}, err
	}
	matches = filterSelfReferences(matches, requesterCMID)

	if len(matches) == 0 {
		return s.tryParentSurnameMatch(ctx, parsed, requesterCMID, sessionCMID, yr)
	}

	return s.resolveMatches(ctx, matches, requesterCMID, sessionCMID, year)
}

// ResolveWithContext is the batch-optimized path over pre-loaded candidates.
func (s *ExactStrategy) ResolveWithContext(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int,
	candidates []model.Person, attendeeInfo map[int]AttendeeInfo, allPersons []model.Person) (model.ResolutionResult, error) {

	parsed := nameutil.ParseName(name)
	if parsed.First == "" || parsed.Last == "" {
		return model.NotFoundResult(model.MethodExact, "name_not_splittable"), nil
	}

	var matches []model.Person
	for _, p := range candidates {
		if equalFold(p.FirstName, parsed.First) && nameutil.LastNameMatches(p.LastName, parsed.Last) {
			matches = append(matches, p)
		}
	}
	matches = filterSelfReferences(matches, requesterCMID)

	if len(matches) == 0 {
		return s.tryParentSurnameMatchWithContext(parsed, requesterCMID, allPersons)
	}

	return s.resolveMatchesWithContext(matches, sessionCMID, attendeeInfo)
}

func (s *ExactStrategy) resolveMatches(ctx context.Context, matches []model.Person, requesterCMID int, sessionCMID, year *int) (model.ResolutionResult, error) {
	if len(matches) == 1 {
		p := matches[0]
		if sessionCMID == nil {
			return model.NewResolutionResult(&p, exactUniqueNoSessionInfo, model.MethodExact, nil, nil), nil
		}
		if year == nil {
			return model.NewResolutionResult(&p, exactUniqueNoYearContext, model.MethodExact, nil, nil), nil
		}

		att, ok, err := s.attendees.GetByPersonAndYear(ctx, p.CMID, *year)
		if err != nil {
			return model.ResolutionResult{}, err
		}
		if !ok {
			return model.NewResolutionResult(&p, exactUniqueNoSessionInfo, model.MethodExact, nil, nil), nil
		}
		if att.SessionCMID == *sessionCMID {
			return model.NewResolutionResult(&p, exactUniqueSameSession, model.MethodExact, nil,
				map[string]any{"session_match": "exact"}), nil
		}
		return model.NewResolutionResult(&p, exactUniqueDifferentSession, model.MethodExact, nil,
			map[string]any{"session_match": "different"}), nil
	}

	if sessionCMID == nil {
		return buildAmbiguousResult(string(model.MethodExact), matches, exactMultipleNoSession, "multiple_exact_matches_no_session", nil), nil
	}
	if year == nil {
		return buildAmbiguousResult(string(model.MethodExact), matches, exactMultipleNoYear, "multiple_exact_matches_no_year", nil), nil
	}

	return s.disambiguateWithSession(ctx, matches, *sessionCMID, *year)
}

func (s *ExactStrategy) disambiguateWithSession(ctx context.Context, matches []model.Person, sessionCMID, year int) (model.ResolutionResult, error) {
	var sameSession []model.Person
	anyDifferent := false

	for _, m := range matches {
		att, ok, err := s.attendees.GetByPersonAndYear(ctx, m.CMID, year)
		if err != nil {
			return model.ResolutionResult{}, err
		}
		if !ok {
			continue
		}
		if att.SessionCMID == sessionCMID {
			sameSession = append(sameSession, m)
		} else {
			anyDifferent = true
		}
	}

	if len(sameSession) == 1 {
		p := sameSession[0]
		return model.NewResolutionResult(&p, exactDisambiguateUniqueSameSession, model.MethodExact, nil,
			map[string]any{"session_match": "exact", "disambiguated_by": "session"}), nil
	}
	if len(sameSession) > 1 {
		return buildAmbiguousResult(string(model.MethodExact), sameSession, exactDisambiguateStillAmbiguous,
			"multiple_matches_in_requested_session", nil), nil
	}
	if len(sameSession) == 0 && anyDifferent {
		return model.NewResolutionResult(nil, exactDisambiguateImpossible, model.MethodExact, matches,
			map[string]any{"impossible": true, "impossible_reason": "all_matches_in_different_session"}), nil
	}

	return buildAmbiguousResult(string(model.MethodExact), matches, exactDisambiguateStillAmbiguous, "no_session_data_for_any_match", nil), nil
}

func (s *ExactStrategy) resolveMatchesWithContext(matches []model.Person, sessionCMID *int, attendeeInfo map[int]AttendeeInfo) (model.ResolutionResult, error) {
	if len(matches) == 1 {
		p := matches[0]
		info, hasInfo := attendeeInfo[p.CMID]
		if sessionCMID == nil || !hasInfo {
			return model.NewResolutionResult(&p, exactUniqueNoSessionInfo, model.MethodExact, nil, nil), nil
		}
		if info.SessionCMID == *sessionCMID {
			return model.NewResolutionResult(&p, exactUniqueSameSession, model.MethodExact, nil,
				map[string]any{"session_match": "exact"}), nil
		}
		return model.NewResolutionResult(&p, exactUniqueDifferentSession, model.MethodExact, nil,
			map[string]any{"session_match": "different"}), nil
	}

	if sessionCMID == nil {
		return buildAmbiguousResult(string(model.MethodExact), matches, exactMultipleNoSession, "multiple_exact_matches_no_session", nil), nil
	}

	var sameSession []model.Person
	anyDifferent := false
	for _, m := range matches {
		info, ok := attendeeInfo[m.CMID]
		if !ok {
			continue
		}
		if info.SessionCMID == *sessionCMID {
			sameSession = append(sameSession, m)
		} else {
			anyDifferent = true
		}
	}

	if len(sameSession) == 1 {
		p := sameSession[0]
		return model.NewResolutionResult(&p, exactDisambiguateUniqueSameSession, model.MethodExact, nil,
			map[string]any{"session_match": "exact", "disambiguated_by": "session"}), nil
	}
	if len(sameSession) > 1 {
		return buildAmbiguousResult(string(model.MethodExact), sameSession, exactDisambiguateStillAmbiguous,
			"multiple_matches_in_requested_session", nil), nil
	}
	if len(sameSession) == 0 && anyDifferent {
		return model.NewResolutionResult(nil, exactDisambiguateImpossible, model.MethodExact, matches,
			map[string]any{"impossible": true, "impossible_reason": "all_matches_in_different_session"}), nil
	}

	return buildAmbiguousResult(string(model.MethodExact), matches, exactDisambiguateStillAmbiguous, "no_session_data_for_any_match", nil), nil
}

func (s *ExactStrategy) tryParentSurnameMatch(ctx context.Context, parsed nameutil.ParsedName, requesterCMID int, sessionCMID *int, year int) (model.ResolutionResult, error) {
	lastWords := nameutil.SplitLastNameWords(parsed.Last)
	if len(lastWords) == 0 {
		return model.NotFoundResult(model.MethodExactParentSurname, "no_surname_tokens"), nil
	}

	var matches []model.Person
	seen := map[int]struct{}{}
	for _, word := range lastWords {
		found, err := s.persons.FindByFirstAndParentSurname(ctx, parsed.First, word, year)
		if err != nil {
			return model.ResolutionResult{}, err
		}
		for _, p := range found {
			if _, ok := seen[p.CMID]; !ok {
				seen[p.CMID] = struct{}{}
				matches = append(matches, p)
			}
		}
	}
	matches = filterSelfReferences(matches, requesterCMID)

	return s.finishParentSurnameMatch(ctx, matches, sessionCMID, year)
}

func (s *ExactStrategy) finishParentSurnameMatch(ctx context.Context, matches []model.Person, sessionCMID *int, year int) (model.ResolutionResult, error) {
	if len(matches) == 0 {
		return model.NotFoundResult(model.MethodExactParentSurname, "no_parent_surname_match"), nil
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(model.MethodExactParentSurname), matches, exactParentSurnameAmbiguous,
			"multiple_parent_surname_matches", nil), nil
	}

	p := matches[0]
	if sessionCMID == nil {
		return model.NewResolutionResult(&p, exactParentSurnameDifferentSession, model.MethodExactParentSurname, nil, nil), nil
	}
	att, ok, err := s.attendees.GetByPersonAndYear(ctx, p.CMID, year)
	if err != nil {
		return model.ResolutionResult{}, err
	}
	if ok && att.SessionCMID == *sessionCMID {
		return model.NewResolutionResult(&p, exactParentSurnameSameSession, model.MethodExactParentSurname, nil,
			map[string]any{"session_match": "exact"}), nil
	}
	return model.NewResolutionResult(&p, exactParentSurnameDifferentSession, model.MethodExactParentSurname, nil,
		map[string]any{"session_match": "different"}), nil
}

func (s *ExactStrategy) tryParentSurnameMatchWithContext(parsed nameutil.ParsedName, requesterCMID int, allPersons []model.Person) (model.ResolutionResult, error) {
	lastWords := nameutil.SplitLastNameWords(parsed.Last)
	if len(lastWords) == 0 {
		return model.NotFoundResult(model.MethodExactParentSurname, "no_surname_tokens"), nil
	}

	var matches []model.Person
	for _, p := range allPersons {
		if !equalFold(p.FirstName, parsed.First) {
			continue
		}
		for _, surname := range p.ParentLastNames() {
			if matchesAnyWord(surname, lastWords) {
				matches = append(matches, p)
				break
			}
		}
	}
	matches = filterSelfReferences(matches, requesterCMID)

	if len(matches) == 0 {
		return model.NotFoundResult(model.MethodExactParentSurname, "no_parent_surname_match"), nil
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(model.MethodExactParentSurname), matches, exactParentSurnameAmbiguous,
			"multiple_parent_surname_matches", nil), nil
	}

	p := matches[0]
	return model.NewResolutionResult(&p, exactParentSurnameDifferentSession, model.MethodExactParentSurname, nil, nil), nil
}

func equalFold(a, b string) bool {
	return nameutil.NormalizeName(a) == nameutil.NormalizeName(b)
}

func matchesAnyWord(surname string, words []string) bool {
	for _, w := range words {
		if nameutil.LastNameMatches(surname, w) {
			return true
		}
	}
	return false
}
