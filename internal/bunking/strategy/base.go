package strategy

import (
	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/repository"
)

// base holds the disambiguation logic shared by FuzzyStrategy and
// PhoneticStrategy: filtering self-references, session-context
// disambiguation over pre-loaded attendee info, config-driven base
// confidence lookup, and session-based confidence adjustment.
type base struct {
	persons   repository.PersonRepository
	attendees repository.AttendeeRepository
	cfg       config.StrategyConfidence
}

// disambiguateWithSessionContext resolves if exactly one candidate
// shares the requester's session in the pre-loaded attendeeInfo map;
// otherwise returns an unresolved zero-confidence result.
func (b base) disambiguateWithSessionContext(name string, matches []model.Person, sessionCMID int, attendeeInfo map[int]AttendeeInfo) model.ResolutionResult {
	if len(attendeeInfo) == 0 {
		return model.NewResolutionResult(nil, 0, model.Method(name), nil, nil)
	}

	var sameSession []model.Person
	for _, m := range matches {
		if info, ok := attendeeInfo[m.CMID]; ok && info.SessionCMID == sessionCMID {
			sameSession = append(sameSession, m)
		}
	}

	if len(sameSession) == 1 {
		return model.NewResolutionResult(&sameSession[0], b.cfg.SessionMatch, model.Method(name), nil,
			map[string]any{"session_match": "exact"})
	}

	return model.NewResolutionResult(nil, 0, model.Method(name), nil, nil)
}

// calculateBaseConfidence returns the configured base confidence for the
// given match type ("nickname", "soundex", etc.), falling back to
// cfg.DefaultBase when no type-specific value applies. In this port the
// strategy-specific config is always fully populated (see DESIGN.md), so
// the distinction collapses to "use the matchType field if the caller
// supplied one, else DefaultBase".
func (b base) calculateBaseConfidence(matchType float64) float64 {
	if matchType != 0 {
		return matchType
	}
	return b.cfg.DefaultBase
}

// applySessionAdjustment boosts or penalizes baseConfidence according to
// whether person shares the requester's session in the pre-loaded
// attendeeInfo: same session -> boost, different session -> penalty, no
// session data at all (missing sessionCMID or attendeeInfo, or the
// person absent from attendeeInfo) -> not-enrolled penalty.
func (b base) applySessionAdjustment(baseConfidence float64, personCMID int, sessionCMID *int, attendeeInfo map[int]AttendeeInfo) float64 {
	if sessionCMID == nil || len(attendeeInfo) == 0 {
		return baseConfidence + b.cfg.NotEnrolledPenalty
	}

	info, ok := attendeeInfo[personCMID]
	if !ok {
		return baseConfidence + b.cfg.NotEnrolledPenalty
	}

	if info.SessionCMID == *sessionCMID {
		return baseConfidence + b.cfg.SameSessionBoost
	}
	return baseConfidence + b.cfg.DifferentSessionPenalty
}

// buildAmbiguousResult constructs the consistent ambiguous-outcome shape
// every strategy returns when more than one candidate survives filtering.
func buildAmbiguousResult(name string, matches []model.Person, confidence float64, reason string, extra map[string]any) model.ResolutionResult {
	metadata := map[string]any{
		"ambiguity_reason": reason,
		"match_count":      len(matches),
	}
	for k, v := range extra {
		metadata[k] = v
	}
	return model.NewResolutionResult(nil, confidence, model.Method(name), matches, metadata)
}
