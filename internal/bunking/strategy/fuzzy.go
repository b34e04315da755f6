package strategy

import (
	"context"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/nameutil"
	"github.com/camp/kindred/internal/bunking/repository"
)

// fuzzyParentSurnameAmbiguous is the ambiguous-result confidence for the
// parent-surname step; lower than the other fuzzy steps' ambiguous
// confidence since the signal itself is weaker.
const fuzzyParentSurnameAmbiguous = 0.45

// FuzzyStrategy resolves a target name via nickname equivalence, known
// spelling variations, or normalized-string equality, each tried in turn
// against the candidate pool, then parent-surname matching, before
// falling back to a plain first-name scan; several first-name matches are
// returned as an ambiguous result ordered by last-name similarity.
type FuzzyStrategy struct {
	base
	nicknameOverrides map[string][]string
}

// NewFuzzyStrategy builds a FuzzyStrategy.
func NewFuzzyStrategy(persons repository.PersonRepository, attendees repository.AttendeeRepository,
	cfg config.StrategyConfidence, nicknameOverrides map[string][]string) *FuzzyStrategy {
	return &FuzzyStrategy{
		base:              base{persons: persons, attendees: attendees, cfg: cfg},
		nicknameOverrides: nicknameOverrides,
	}
}

func (s *FuzzyStrategy) Name() string { return "fuzzy" }

func (s *FuzzyStrategy) Resolve(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int) (model.ResolutionResult, error) {
	parsed := nameutil.ParseName(name)
	if parsed.First == "" {
		return model.NotFoundResult(model.MethodFuzzyFirstName, "empty_name"), nil
	}

	yr := 0
	if year != nil {
		yr = *year
	}

	pool, err := s.persons.FindByFirstName(ctx, parsed.First, yr)
	if err != nil {
		return model.ResolutionResult{}, err
	}
	pool = filterSelfReferences(pool, requesterCMID)

	return s.matchAgainstPool(ctx, parsed, pool, requesterCMID, sessionCMID, year)
}

func (s *FuzzyStrategy) ResolveWithContext(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int,
	candidates []model.Person, attendeeInfo map[int]AttendeeInfo, allPersons []model.Person) (model.ResolutionResult, error) {

	parsed := nameutil.ParseName(name)
	if parsed.First == "" {
		return model.NotFoundResult(model.MethodFuzzyFirstName, "empty_name"), nil
	}

	pool := candidates
	if len(pool) == 0 {
		pool = allPersons
	}
	pool = filterSelfReferences(pool, requesterCMID)

	return s.matchAgainstPoolWithContext(parsed, pool, requesterCMID, sessionCMID, attendeeInfo)
}

// matchAgainstPool runs the nickname -> spelling -> normalized -> parent
// surname -> first-name cascade, live-repository variant (used only by
// Resolve, which needs per-person session lookups via
// attendees.GetByPersonAndYear).
func (s *FuzzyStrategy) matchAgainstPool(ctx context.Context, parsed nameutil.ParsedName, pool []model.Person, requesterCMID int, sessionCMID, year *int) (model.ResolutionResult, error) {
	nickname := filterByFirstNameMatch(pool, parsed.First, nameutil.NamesMatchViaNicknames, s.nicknameOverrides)
	if res, done, err := s.finishLive(ctx, nickname, parsed, sessionCMID, year, model.MethodFuzzyNickname, s.cfg.NicknameBase); done {
		return res, err
	}

	spelling := filterByFirstNameMatch(pool, parsed.First, spellingVariationMatch, s.nicknameOverrides)
	if res, done, err := s.finishLive(ctx, spelling, parsed, sessionCMID, year, model.MethodFuzzySpelling, s.cfg.SpellingBase); done {
		return res, err
	}

	normalized := filterByNormalizedLastName(pool, parsed)
	if res, done, err := s.finishLive(ctx, normalized, parsed, sessionCMID, year, model.MethodFuzzyNormalized, s.cfg.NormalizedBase); done {
		return res, err
	}

	if parsed.Last != "" {
		res, err := s.tryParentSurnameLive(ctx, parsed, requesterCMID, sessionCMID, year)
		if res.IsResolved() || res.IsAmbiguous() || err != nil {
			return res, err
		}
	}

	if len(pool) == 1 {
		return s.finishSingle(ctx, pool[0], sessionCMID, year, model.MethodFuzzyFirstName, s.cfg.DefaultBase)
	}
	if len(pool) > 1 {
		ranked := rankByLastNameSimilarity(pool, parsed.Last)
		return buildAmbiguousResult(string(model.MethodFuzzyFirstName), ranked, s.cfg.DefaultBase, "multiple_first_name_matches", nil), nil
	}

	return model.NotFoundResult(model.MethodFuzzyFirstName, "no_fuzzy_match"), nil
}

func (s *FuzzyStrategy) matchAgainstPoolWithContext(parsed nameutil.ParsedName, pool []model.Person, requesterCMID int, sessionCMID *int, attendeeInfo map[int]AttendeeInfo) (model.ResolutionResult, error) {
	nickname := filterByFirstNameMatch(pool, parsed.First, nameutil.NamesMatchViaNicknames, s.nicknameOverrides)
	if res, done := s.finishWithContext(nickname, sessionCMID, attendeeInfo, model.MethodFuzzyNickname, s.cfg.NicknameBase); done {
		return res, nil
	}

	spelling := filterByFirstNameMatch(pool, parsed.First, spellingVariationMatch, s.nicknameOverrides)
	if res, done := s.finishWithContext(spelling, sessionCMID, attendeeInfo, model.MethodFuzzySpelling, s.cfg.SpellingBase); done {
		return res, nil
	}

	normalized := filterByNormalizedLastName(pool, parsed)
	if res, done := s.finishWithContext(normalized, sessionCMID, attendeeInfo, model.MethodFuzzyNormalized, s.cfg.NormalizedBase); done {
		return res, nil
	}

	if parsed.Last != "" {
		parentSurname := parentSurnameCandidates(pool, parsed, s.nicknameOverrides)
		parentSurname = filterSelfReferences(parentSurname, requesterCMID)
		if res, done := s.finishParentSurnameWithContext(parentSurname, sessionCMID, attendeeInfo); done {
			return res, nil
		}
	}

	firstNameMatches := filterPool(pool, func(p model.Person) bool { return equalFold(p.FirstName, parsed.First) })
	if len(firstNameMatches) == 1 {
		res, done := s.finishWithContext(firstNameMatches, sessionCMID, attendeeInfo, model.MethodFuzzyFirstName, s.cfg.DefaultBase)
		if done {
			return res, nil
		}
	}
	if len(firstNameMatches) > 1 {
		ranked := rankByLastNameSimilarity(firstNameMatches, parsed.Last)
		return buildAmbiguousResult(string(model.MethodFuzzyFirstName), ranked, s.cfg.DefaultBase, "multiple_first_name_matches", nil), nil
	}

	return model.NotFoundResult(model.MethodFuzzyFirstName, "no_fuzzy_match"), nil
}

// tryParentSurnameLive combines every nickname variant of the target
// first name with a parent-surname lookup (e.g. "Emma Smith" when Emma's
// father is a "Smith" on a different surname), capping the resulting
// confidence at cfg.ParentSurnameBase since the signal is weaker than a
// direct name match.
func (s *FuzzyStrategy) tryParentSurnameLive(ctx context.Context, parsed nameutil.ParsedName, requesterCMID int, sessionCMID, year *int) (model.ResolutionResult, error) {
	yr := 0
	if year != nil {
		yr = *year
	}

	lastWords := nameutil.SplitLastNameWords(parsed.Last)
	if len(lastWords) == 0 {
		return model.NotFoundResult(model.MethodFuzzyParentSurname, "no_surname_tokens"), nil
	}

	variants := append([]string{parsed.First}, nameutil.FindNicknameVariations(parsed.First, s.nicknameOverrides)...)

	var matches []model.Person
	seen := map[int]struct{}{}
	for _, variant := range variants {
		for _, word := range lastWords {
			found, err := s.persons.FindByFirstAndParentSurname(ctx, variant, word, yr)
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
	}
	matches = filterSelfReferences(matches, requesterCMID)

	if len(matches) == 0 {
		return model.NotFoundResult(model.MethodFuzzyParentSurname, "no_parent_surname_match"), nil
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(model.MethodFuzzyParentSurname), matches, fuzzyParentSurnameAmbiguous,
			"multiple_parent_surname_matches", nil), nil
	}

	res, err := s.finishSingle(ctx, matches[0], sessionCMID, year, model.MethodFuzzyParentSurname, s.cfg.ParentSurnameBase)
	if err != nil {
		return res, err
	}
	if res.Confidence > s.cfg.ParentSurnameBase {
		res.Confidence = s.cfg.ParentSurnameBase
	}
	return res, nil
}

func (s *FuzzyStrategy) finishParentSurnameWithContext(matches []model.Person, sessionCMID *int, attendeeInfo map[int]AttendeeInfo) (model.ResolutionResult, bool) {
	if len(matches) == 0 {
		return model.ResolutionResult{}, false
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(model.MethodFuzzyParentSurname), matches, fuzzyParentSurnameAmbiguous,
			"multiple_parent_surname_matches", nil), true
	}

	p := matches[0]
	confidence := s.applySessionAdjustment(s.cfg.ParentSurnameBase, p.CMID, sessionCMID, attendeeInfo)
	if confidence > s.cfg.ParentSurnameBase {
		confidence = s.cfg.ParentSurnameBase
	}
	return model.NewResolutionResult(&p, confidence, model.MethodFuzzyParentSurname, nil, nil), true
}

// parentSurnameCandidates scans pool for persons whose first name matches
// any nickname variant of parsed.First and whose parent last names
// include a word of parsed.Last.
func parentSurnameCandidates(pool []model.Person, parsed nameutil.ParsedName, overrides map[string][]string) []model.Person {
	lastWords := nameutil.SplitLastNameWords(parsed.Last)
	if len(lastWords) == 0 {
		return nil
	}
	variants := append([]string{parsed.First}, nameutil.FindNicknameVariations(parsed.First, overrides)...)

	var out []model.Person
	for _, p := range pool {
		matchesFirst := false
		for _, v := range variants {
			if equalFold(p.FirstName, v) {
				matchesFirst = true
				break
			}
		}
		if !matchesFirst {
			continue
		}
		for _, surname := range p.ParentLastNames() {
			if matchesAnyWord(surname, lastWords) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func (s *FuzzyStrategy) finishLive(ctx context.Context, matches []model.Person, parsed nameutil.ParsedName, sessionCMID, year *int, method model.Method, baseConfidence float64) (model.ResolutionResult, bool, error) {
	if len(matches) == 0 {
		return model.ResolutionResult{}, false, nil
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(method), matches, baseConfidence, "multiple_fuzzy_matches", nil), true, nil
	}
	res, err := s.finishSingle(ctx, matches[0], sessionCMID, year, method, baseConfidence)
	return res, true, err
}

func (s *FuzzyStrategy) finishSingle(ctx context.Context, p model.Person, sessionCMID, year *int, method model.Method, baseConfidence float64) (model.ResolutionResult, error) {
	confidence := baseConfidence
	if sessionCMID != nil && year != nil {
		att, ok, err := s.attendees.GetByPersonAndYear(ctx, p.CMID, *year)
		if err != nil {
			return model.ResolutionResult{}, err
		}
		if ok && att.SessionCMID == *sessionCMID {
			confidence = baseConfidence + s.cfg.SameSessionBoost
		} else if ok {
			confidence = baseConfidence + s.cfg.DifferentSessionPenalty
		} else {
			confidence = baseConfidence + s.cfg.NotEnrolledPenalty
		}
	}
	person := p
	return model.NewResolutionResult(&person, confidence, method, nil, nil), nil
}

func (s *FuzzyStrategy) finishWithContext(matches []model.Person, sessionCMID *int, attendeeInfo map[int]AttendeeInfo, method model.Method, baseConfidence float64) (model.ResolutionResult, bool) {
	if len(matches) == 0 {
		return model.ResolutionResult{}, false
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(method), matches, baseConfidence, "multiple_fuzzy_matches", nil), true
	}

	p := matches[0]
	confidence := s.applySessionAdjustment(baseConfidence, p.CMID, sessionCMID, attendeeInfo)
	return model.NewResolutionResult(&p, confidence, method, nil, nil), true
}

func filterByFirstNameMatch(pool []model.Person, targetFirst string, matcher func(a, b string, overrides map[string][]string) bool, overrides map[string][]string) []model.Person {
	var out []model.Person
	for _, p := range pool {
		if matcher(p.FirstName, targetFirst, overrides) {
			out = append(out, p)
		}
	}
	return out
}

func spellingVariationMatch(name1, name2 string, _ map[string][]string) bool {
	n1 := nameutil.NormalizeName(name1)
	n2 := nameutil.NormalizeName(name2)
	if variants, ok := nameutil.SpellingVariations[n1]; ok {
		for _, v := range variants {
			if v == n2 {
				return true
			}
		}
	}
	if variants, ok := nameutil.SpellingVariations[n2]; ok {
		for _, v := range variants {
			if v == n1 {
				return true
			}
		}
	}
	return false
}

func filterByNormalizedLastName(pool []model.Person, parsed nameutil.ParsedName) []model.Person {
	if parsed.Last == "" {
		return nil
	}
	var out []model.Person
	for _, p := range pool {
		if nameutil.LastNameMatches(parsed.Last, p.LastName) {
			out = append(out, p)
		}
	}
	return out
}

// rankByLastNameSimilarity orders ambiguous candidates by Levenshtein
// distance of their last name to the requested one, closest first; this
// affects only candidate presentation order, never confidence.
func rankByLastNameSimilarity(pool []model.Person, targetLast string) []model.Person {
	ranked := make([]model.Person, len(pool))
	copy(ranked, pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		di := levenshtein.ComputeDistance(nameutil.NormalizeName(ranked[i].LastName), nameutil.NormalizeName(targetLast))
		dj := levenshtein.ComputeDistance(nameutil.NormalizeName(ranked[j].LastName), nameutil.NormalizeName(targetLast))
		return di < dj
	})
	return ranked
}
