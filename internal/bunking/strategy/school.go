package strategy

import (
	"context"
	"sort"
	"strings"

	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/nameutil"
	"github.com/camp/kindred/internal/bunking/repository"
)

// School disambiguation confidence constants. This strategy extends the
// bare Strategy interface directly rather than embedding base: it never
// takes a config.StrategyConfidence, matching the exact match strategy's
// own stand-alone hardcoded constants.
const (
	schoolSingleExactMatch     = 0.90
	schoolSameGrade            = 0.85
	schoolSameGradeSameSession = 0.90
	schoolSameGradeDiffSession = 0.75
	schoolCloseGrade           = 0.70
	schoolClosestGrade         = 0.65
	schoolSingleNoGrade        = 0.75
	schoolStillAmbiguous       = 0.50
	schoolNoRequesterSchool    = 0.0
	schoolNoSameSchoolMatches  = 0.0
)

// schoolAbbreviations maps common school-name phrases to the abbreviation
// a roster is just as likely to spell out, so "Lincoln Middle School" and
// "Lincoln MS" normalize to the same string before comparison.
var schoolAbbreviations = map[string]string{
	"middle school":      "ms",
	"elementary school":  "es",
	"elementary":         "es",
	"high school":        "hs",
	"junior high school": "jh",
	"junior high":        "jh",
	"primary school":     "ps",
	"public school":      "ps",
	"saint":              "st",
	"academy":            "acad",
	"preparatory":        "prep",
	"prep school":        "prep",
	"montessori":         "mont",
	"christian":          "chr",
	"catholic":           "cath",
	"international":      "intl",
	"magnet":             "mag",
	"charter":            "chtr",
}

// schoolAbbreviationOrder applies longer phrases first so e.g. "middle
// school" is replaced whole rather than leaving a dangling "school".
var schoolAbbreviationOrder = sortedSchoolAbbreviationKeys()

func sortedSchoolAbbreviationKeys() []string {
	keys := make([]string, 0, len(schoolAbbreviations))
	for k := range schoolAbbreviations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}

// normalizeSchoolName lowercases, strips punctuation, replaces known
// phrases with their abbreviations, and collapses whitespace, so
// "St. Mary's Academy" and "Saint Marys Acad" normalize identically.
func normalizeSchoolName(school string) string {
	if school == "" {
		return ""
	}
	normalized := strings.ToLower(strings.TrimSpace(school))
	normalized = strings.NewReplacer(".", "", "'", "", ",", "").Replace(normalized)
	for _, phrase := range schoolAbbreviationOrder {
		normalized = strings.ReplaceAll(normalized, phrase, schoolAbbreviations[phrase])
	}
	return strings.Join(strings.Fields(normalized), " ")
}

// schoolsMatch decides whether a candidate and requester attend the same
// school: names must be equal or one must contain the other after
// normalization; if both sides carry city+state, a mismatch there
// overrides an otherwise-good name match.
func schoolsMatch(candidateSchool, requesterSchool, candidateCity, requesterCity, candidateState, requesterState string) bool {
	if candidateSchool == "" || requesterSchool == "" {
		return false
	}

	cs := normalizeSchoolName(candidateSchool)
	rs := normalizeSchoolName(requesterSchool)
	if cs != rs && !strings.Contains(rs, cs) && !strings.Contains(cs, rs) {
		return false
	}

	requesterHasLocation := requesterCity != "" && requesterState != ""
	candidateHasLocation := candidateCity != "" && candidateState != ""
	if requesterHasLocation && candidateHasLocation {
		cityMatch := strings.EqualFold(strings.TrimSpace(candidateCity), strings.TrimSpace(requesterCity))
		stateMatch := strings.EqualFold(strings.TrimSpace(candidateState), strings.TrimSpace(requesterState))
		return cityMatch && stateMatch
	}

	return true
}

// SchoolDisambiguationStrategy narrows a set of exact-name matches using
// the requester's school, location, and grade as disambiguating signals.
// In the pipeline it receives the same pre-loaded name candidates as the
// other strategies and picks its exact-name matches from them itself.
type SchoolDisambiguationStrategy struct {
	persons   repository.PersonRepository
	attendees repository.AttendeeRepository
}

// NewSchoolDisambiguationStrategy builds a SchoolDisambiguationStrategy.
func NewSchoolDisambiguationStrategy(persons repository.PersonRepository, attendees repository.AttendeeRepository) *SchoolDisambiguationStrategy {
	return &SchoolDisambiguationStrategy{persons: persons, attendees: attendees}
}

func (s *SchoolDisambiguationStrategy) Name() string { return string(model.MethodSchoolDisambiguation) }

// Resolve looks up exact-name matches itself, independent of any
// upstream strategy's candidate set.
func (s *SchoolDisambiguationStrategy) Resolve(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int) (model.ResolutionResult, error) {
	parsed := nameutil.ParseName(name)
	if !parsed.IsComplete {
		return model.NotFoundResult(model.MethodSchoolDisambiguation, "incomplete_name"), nil
	}

	yr := 0
	if year != nil {
		yr = *year
	}

	candidates, err := s.persons.FindByName(ctx, parsed.First, parsed.Last, yr)
	if err != nil {
		return model.ResolutionResult{}, err
	}
	candidates = filterSelfReferences(candidates, requesterCMID)

	if len(candidates) == 0 {
		return model.NotFoundResult(model.MethodSchoolDisambiguation, "no_matches"), nil
	}
	if len(candidates) == 1 {
		p := candidates[0]
		return model.NewResolutionResult(&p, schoolSingleExactMatch, model.MethodSchoolDisambiguation, nil,
			map[string]any{"match_type": "single_exact_match"}), nil
	}

	requester, found, err := s.persons.FindByCMID(ctx, requesterCMID)
	if err != nil {
		return model.ResolutionResult{}, err
	}

	var requesterInfo AttendeeInfo
	if found {
		requesterInfo = AttendeeInfo{School: requester.School, Grade: requester.Grade, City: requester.City, State: requester.State}
	}

	var sessionLookup func(int) (int, bool)
	if year != nil {
		sessionLookup = func(cmID int) (int, bool) {
			att, ok, err := s.attendees.GetByPersonAndYear(ctx, cmID, *year)
			if err != nil || !ok {
				return 0, false
			}
			return att.SessionCMID, true
		}
	}

	return s.disambiguate(candidates, requesterInfo, found && requester.School != "", sessionCMID, sessionLookup), nil
}

// ResolveWithContext disambiguates candidates using pre-loaded school,
// location, and grade data.
func (s *SchoolDisambiguationStrategy) ResolveWithContext(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int,
	candidates []model.Person, attendeeInfo map[int]AttendeeInfo, allPersons []model.Person) (model.ResolutionResult, error) {

	parsed := nameutil.ParseName(name)
	if !parsed.IsComplete {
		return model.NotFoundResult(model.MethodSchoolDisambiguation, "incomplete_name"), nil
	}

	pool := candidates
	if len(pool) == 0 {
		pool = allPersons
	}
	if len(pool) == 0 {
		return model.NotFoundResult(model.MethodSchoolDisambiguation, "no_candidates"), nil
	}

	matching := filterPool(pool, func(p model.Person) bool {
		return equalFold(p.FirstName, parsed.First) && equalFold(p.LastName, parsed.Last)
	})
	matching = filterSelfReferences(matching, requesterCMID)

	if len(matching) == 0 {
		return model.NotFoundResult(model.MethodSchoolDisambiguation, "no_matches"), nil
	}
	if len(matching) == 1 {
		p := matching[0]
		return model.NewResolutionResult(&p, schoolSingleExactMatch, model.MethodSchoolDisambiguation, nil,
			map[string]any{"match_type": "single_exact_match"}), nil
	}

	requesterInfo, hasRequester := attendeeInfo[requesterCMID]
	sessionLookup := func(cmID int) (int, bool) {
		info, ok := attendeeInfo[cmID]
		if !ok {
			return 0, false
		}
		return info.SessionCMID, true
	}

	return s.disambiguate(matching, requesterInfo, hasRequester, sessionCMID, sessionLookup), nil
}

// Disambiguate narrows an already name-matched candidate set by
// requester school/city/state/grade, without session-boost refinement
// (ResolveWithContext applies the session data when it has it).
func (s *SchoolDisambiguationStrategy) Disambiguate(candidates []model.Person, requesterInfo AttendeeInfo, hasRequesterInfo bool) model.ResolutionResult {
	return s.disambiguate(candidates, requesterInfo, hasRequesterInfo, nil, nil)
}

func (s *SchoolDisambiguationStrategy) disambiguate(candidates []model.Person, requesterInfo AttendeeInfo, hasRequesterInfo bool,
	sessionCMID *int, sessionLookup func(cmID int) (int, bool)) model.ResolutionResult {

	if !hasRequesterInfo || requesterInfo.School == "" {
		return buildAmbiguousResult(string(model.MethodSchoolDisambiguation), candidates, schoolNoRequesterSchool,
			"no_requester_school", nil)
	}

	sameSchool := filterPool(candidates, func(p model.Person) bool {
		return p.School != "" && schoolsMatch(p.School, requesterInfo.School, p.City, requesterInfo.City, p.State, requesterInfo.State)
	})

	if len(sameSchool) == 0 {
		return buildAmbiguousResult(string(model.MethodSchoolDisambiguation), candidates, schoolNoSameSchoolMatches,
			"no_same_school_matches", nil)
	}

	if len(sameSchool) == 1 {
		if res, ok := s.tryGradeDisambiguation(sameSchool, requesterInfo, sessionCMID, sessionLookup); ok {
			return res
		}
		p := sameSchool[0]
		return model.NewResolutionResult(&p, schoolSingleNoGrade, model.MethodSchoolDisambiguation, nil,
			map[string]any{"match_type": "same_school", "school": requesterInfo.School})
	}

	if res, ok := s.tryGradeDisambiguation(sameSchool, requesterInfo, sessionCMID, sessionLookup); ok {
		return res
	}

	return buildAmbiguousResult(string(model.MethodSchoolDisambiguation), sameSchool, schoolStillAmbiguous,
		"multiple_same_school_matches", map[string]any{"requester_school": requesterInfo.School})
}

// tryGradeDisambiguation applies the grade-proximity cascade to an
// already same-school candidate set: exact grade match first, then
// within one grade, then the uniquely closest among those.
func (s *SchoolDisambiguationStrategy) tryGradeDisambiguation(candidates []model.Person, requesterInfo AttendeeInfo,
	sessionCMID *int, sessionLookup func(cmID int) (int, bool)) (model.ResolutionResult, bool) {

	if requesterInfo.Grade == nil {
		return model.ResolutionResult{}, false
	}
	requesterGrade := *requesterInfo.Grade

	sameGrade := filterPool(candidates, func(p model.Person) bool { return p.Grade != nil && *p.Grade == requesterGrade })
	if len(sameGrade) == 1 {
		p := sameGrade[0]
		confidence := schoolSameGrade
		if sessionCMID != nil && sessionLookup != nil {
			if candidateSession, ok := sessionLookup(p.CMID); ok {
				if candidateSession == *sessionCMID {
					confidence = schoolSameGradeSameSession
				} else {
					confidence = schoolSameGradeDiffSession
				}
			}
		}
		return model.NewResolutionResult(&p, confidence, model.MethodSchoolDisambiguation, nil,
			map[string]any{"match_type": "same_school_same_grade", "grade": requesterGrade}), true
	}

	closeGrade := filterPool(candidates, func(p model.Person) bool {
		return p.Grade != nil && model.AbsInt(*p.Grade-requesterGrade) <= 1
	})
	if len(closeGrade) == 1 {
		p := closeGrade[0]
		return model.NewResolutionResult(&p, schoolCloseGrade, model.MethodSchoolDisambiguation, nil,
			map[string]any{"match_type": "same_school_close_grade", "grade_diff": model.AbsInt(*p.Grade - requesterGrade)}), true
	}

	if len(closeGrade) > 1 {
		best := closeGrade[0]
		bestDiff := model.AbsInt(*best.Grade - requesterGrade)
		tie := false
		for _, c := range closeGrade[1:] {
			diff := model.AbsInt(*c.Grade - requesterGrade)
			switch {
			case diff < bestDiff:
				best, bestDiff, tie = c, diff, false
			case diff == bestDiff:
				tie = true
			}
		}
		if !tie {
			return model.NewResolutionResult(&best, schoolClosestGrade, model.MethodSchoolDisambiguation, nil,
				map[string]any{"match_type": "same_school_closest_grade", "grade_diff": bestDiff}), true
		}
	}

	return model.ResolutionResult{}, false
}
