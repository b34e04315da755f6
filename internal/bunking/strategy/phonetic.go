package strategy

import (
	"context"

	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/nameutil"
	"github.com/camp/kindred/internal/bunking/repository"
)

// phoneticParentSurnamePenalty and phoneticParentSurnameCap implement the
// "base - 0.05, capped at 0.80" rule for the parent-surname phonetic step.
const (
	phoneticParentSurnamePenalty = 0.05
	phoneticParentSurnameCap     = 0.80
)

// PhoneticStrategy resolves a target name by sound-alike matching: first
// Soundex, then the simplified Metaphone codec, then nickname-group
// matching, then parent-surname phonetic matching, each scanning the full
// year-filtered candidate pool (no first-name pre-filter, since the
// whole point is to catch misspelled first names too).
type PhoneticStrategy struct {
	base
}

// NewPhoneticStrategy builds a PhoneticStrategy.
func NewPhoneticStrategy(persons repository.PersonRepository, attendees repository.AttendeeRepository, cfg config.StrategyConfidence) *PhoneticStrategy {
	return &PhoneticStrategy{base: base{persons: persons, attendees: attendees, cfg: cfg}}
}

func (s *PhoneticStrategy) Name() string { return "phonetic" }

func (s *PhoneticStrategy) Resolve(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int) (model.ResolutionResult, error) {
	parsed := nameutil.ParseName(name)
	if parsed.First == "" {
		return model.NotFoundResult(model.MethodPhoneticSoundex, "empty_name"), nil
	}
	if !parsed.IsComplete {
		return model.NotFoundResult(model.MethodPhoneticSoundex, "incomplete_name"), nil
	}

	yr := 0
	if year != nil {
		yr = *year
	}

	pool, err := s.persons.GetAllForPhoneticMatching(ctx, yr)
	if err != nil {
		return model.ResolutionResult{}, err
	}
	pool = filterSelfReferences(pool, requesterCMID)

	return s.scanPoolLive(ctx, parsed, pool, sessionCMID, year)
}

func (s *PhoneticStrategy) ResolveWithContext(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int,
	candidates []model.Person, attendeeInfo map[int]AttendeeInfo, allPersons []model.Person) (model.ResolutionResult, error) {

	parsed := nameutil.ParseName(name)
	if parsed.First == "" {
		return model.NotFoundResult(model.MethodPhoneticSoundex, "empty_name"), nil
	}
	if !parsed.IsComplete {
		return model.NotFoundResult(model.MethodPhoneticSoundex, "incomplete_name"), nil
	}

	pool := allPersons
	pool = filterSelfReferences(pool, requesterCMID)

	return s.scanPoolWithContext(parsed, pool, sessionCMID, attendeeInfo)
}

func (s *PhoneticStrategy) scanPoolLive(ctx context.Context, parsed nameutil.ParsedName, pool []model.Person, sessionCMID, year *int) (model.ResolutionResult, error) {
	targetSoundex := nameutil.Soundex(parsed.First)
	targetLastSoundex := nameutil.Soundex(parsed.Last)
	soundexMatches := filterPool(pool, func(p model.Person) bool {
		return nameutil.Soundex(p.FirstName) == targetSoundex && nameutil.Soundex(p.LastName) == targetLastSoundex
	})
	if res, done, err := s.finishLive(ctx, soundexMatches, sessionCMID, year, model.MethodPhoneticSoundex, s.cfg.SoundexBase); done {
		return res, err
	}

	targetMetaphone := nameutil.Metaphone(parsed.First)
	targetLastMetaphone := nameutil.Metaphone(parsed.Last)
	metaphoneMatches := filterPool(pool, func(p model.Person) bool {
		return nameutil.Metaphone(p.FirstName) == targetMetaphone && nameutil.Metaphone(p.LastName) == targetLastMetaphone
	})
	if res, done, err := s.finishLive(ctx, metaphoneMatches, sessionCMID, year, model.MethodPhoneticMetaphone, s.cfg.MetaphoneBase); done {
		return res, err
	}

	nicknameMatches := filterPool(pool, func(p model.Person) bool {
		return nameutil.LastNameMatches(parsed.Last, p.LastName) && nameutil.NamesMatchViaNicknames(parsed.First, p.FirstName, nil)
	})
	if res, done, err := s.finishLive(ctx, nicknameMatches, sessionCMID, year, model.MethodPhoneticNickname, s.cfg.NicknameBase); done {
		return res, err
	}

	parentSurnameMatches := parentSurnamePhoneticCandidates(pool, parsed)
	if res, done, err := s.finishParentSurnamePhoneticLive(ctx, parentSurnameMatches, sessionCMID, year); done {
		return res, err
	}

	return model.NotFoundResult(model.MethodPhoneticSoundex, "no_phonetic_match"), nil
}

func (s *PhoneticStrategy) scanPoolWithContext(parsed nameutil.ParsedName, pool []model.Person, sessionCMID *int, attendeeInfo map[int]AttendeeInfo) (model.ResolutionResult, error) {
	targetSoundex := nameutil.Soundex(parsed.First)
	targetLastSoundex := nameutil.Soundex(parsed.Last)
	soundexMatches := filterPool(pool, func(p model.Person) bool {
		return nameutil.Soundex(p.FirstName) == targetSoundex && nameutil.Soundex(p.LastName) == targetLastSoundex
	})
	if res, done := s.finishWithContext(soundexMatches, sessionCMID, attendeeInfo, model.MethodPhoneticSoundex, s.cfg.SoundexBase); done {
		return res, nil
	}

	targetMetaphone := nameutil.Metaphone(parsed.First)
	targetLastMetaphone := nameutil.Metaphone(parsed.Last)
	metaphoneMatches := filterPool(pool, func(p model.Person) bool {
		return nameutil.Metaphone(p.FirstName) == targetMetaphone && nameutil.Metaphone(p.LastName) == targetLastMetaphone
	})
	if res, done := s.finishWithContext(metaphoneMatches, sessionCMID, attendeeInfo, model.MethodPhoneticMetaphone, s.cfg.MetaphoneBase); done {
		return res, nil
	}

	nicknameMatches := filterPool(pool, func(p model.Person) bool {
		return nameutil.LastNameMatches(parsed.Last, p.LastName) && nameutil.NamesMatchViaNicknames(parsed.First, p.FirstName, nil)
	})
	if res, done := s.finishWithContext(nicknameMatches, sessionCMID, attendeeInfo, model.MethodPhoneticNickname, s.cfg.NicknameBase); done {
		return res, nil
	}

	parentSurnameMatches := parentSurnamePhoneticCandidates(pool, parsed)
	if res, done := s.finishParentSurnamePhoneticWithContext(parentSurnameMatches, sessionCMID, attendeeInfo); done {
		return res, nil
	}

	return model.NotFoundResult(model.MethodPhoneticSoundex, "no_phonetic_match"), nil
}

// parentSurnamePhoneticCandidates finds persons whose first name (or
// preferred name) matches via nickname groups and whose parent surnames
// share a Soundex or Metaphone code with the target last name.
func parentSurnamePhoneticCandidates(pool []model.Person, parsed nameutil.ParsedName) []model.Person {
	targetLastSoundex := nameutil.Soundex(parsed.Last)
	targetLastMetaphone := nameutil.Metaphone(parsed.Last)

	var out []model.Person
	for _, p := range pool {
		firstMatches := nameutil.NamesMatchViaNicknames(parsed.First, p.FirstName, nil) ||
			(p.PreferredName != "" && nameutil.NamesMatchViaNicknames(parsed.First, p.PreferredName, nil))
		if !firstMatches {
			continue
		}
		for _, surname := range p.ParentLastNames() {
			if nameutil.Soundex(surname) == targetLastSoundex || nameutil.Metaphone(surname) == targetLastMetaphone {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func (s *PhoneticStrategy) finishParentSurnamePhoneticLive(ctx context.Context, matches []model.Person, sessionCMID, year *int) (model.ResolutionResult, bool, error) {
	if len(matches) == 0 {
		return model.ResolutionResult{}, false, nil
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(model.MethodPhoneticParentSurname), matches, s.cfg.SoundexBase-phoneticParentSurnamePenalty,
			"multiple_parent_surname_phonetic_matches", nil), true, nil
	}

	res, _, err := s.finishLive(ctx, matches, sessionCMID, year, model.MethodPhoneticParentSurname, s.cfg.SoundexBase)
	if err != nil {
		return res, true, err
	}
	res.Confidence = capParentSurnamePhonetic(res.Confidence)
	return res, true, nil
}

func (s *PhoneticStrategy) finishParentSurnamePhoneticWithContext(matches []model.Person, sessionCMID *int, attendeeInfo map[int]AttendeeInfo) (model.ResolutionResult, bool) {
	if len(matches) == 0 {
		return model.ResolutionResult{}, false
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(model.MethodPhoneticParentSurname), matches, s.cfg.SoundexBase-phoneticParentSurnamePenalty,
			"multiple_parent_surname_phonetic_matches", nil), true
	}

	res, done := s.finishWithContext(matches, sessionCMID, attendeeInfo, model.MethodPhoneticParentSurname, s.cfg.SoundexBase)
	res.Confidence = capParentSurnamePhonetic(res.Confidence)
	return res, done
}

func capParentSurnamePhonetic(confidence float64) float64 {
	confidence -= phoneticParentSurnamePenalty
	if confidence > phoneticParentSurnameCap {
		confidence = phoneticParentSurnameCap
	}
	return confidence
}

func (s *PhoneticStrategy) finishLive(ctx context.Context, matches []model.Person, sessionCMID, year *int, method model.Method, baseConfidence float64) (model.ResolutionResult, bool, error) {
	if len(matches) == 0 {
		return model.ResolutionResult{}, false, nil
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(method), matches, baseConfidence, "multiple_phonetic_matches", nil), true, nil
	}

	p := matches[0]
	confidence := baseConfidence
	if sessionCMID != nil && year != nil {
		att, ok, err := s.attendees.GetByPersonAndYear(ctx, p.CMID, *year)
		if err != nil {
			return model.ResolutionResult{}, true, err
		}
		switch {
		case ok && att.SessionCMID == *sessionCMID:
			confidence = baseConfidence + s.cfg.SameSessionBoost
		case ok:
			confidence = baseConfidence + s.cfg.DifferentSessionPenalty
		default:
			confidence = baseConfidence + s.cfg.NotEnrolledPenalty
		}
	}
	return model.NewResolutionResult(&p, confidence, method, nil, nil), true, nil
}

func (s *PhoneticStrategy) finishWithContext(matches []model.Person, sessionCMID *int, attendeeInfo map[int]AttendeeInfo, method model.Method, baseConfidence float64) (model.ResolutionResult, bool) {
	if len(matches) == 0 {
		return model.ResolutionResult{}, false
	}
	if len(matches) > 1 {
		return buildAmbiguousResult(string(method), matches, baseConfidence, "multiple_phonetic_matches", nil), true
	}

	p := matches[0]
	confidence := s.applySessionAdjustment(baseConfidence, p.CMID, sessionCMID, attendeeInfo)
	return model.NewResolutionResult(&p, confidence, method, nil, nil), true
}

func filterPool(pool []model.Person, pred func(model.Person) bool) []model.Person {
	var out []model.Person
	for _, p := range pool {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}
