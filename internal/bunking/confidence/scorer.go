// Package confidence fuses the signals produced across parsing and
// resolution — AI parse confidence, name-match certainty, session/grade/age
// context, and social graph position — into the single [0,1] confidence
// score attached to every emitted ResolutionResult.
package confidence

import (
	"context"
	"math"
	"strings"

	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/nameutil"
	"github.com/camp/kindred/internal/bunking/obslog"
	"github.com/camp/kindred/internal/bunking/repository"
)

// SocialSignalsProvider is the one social-graph query the scorer needs.
// Narrowing to this interface, rather than depending on *social.Graph
// directly, keeps confidence independent of how the graph is built.
type SocialSignalsProvider interface {
	GetSocialSignals(sessionCMID, requesterCMID, targetCMID int) model.SocialSignals
}

// Scorer calculates confidence for a ParsedRequest, optionally enriched
// with a ResolutionResult, per-year enrollment, and social graph signals.
// Every collaborator is optional: a zero-value Scorer still scores parse
// and name-match signals, just without context or social enrichment.
type Scorer struct {
	cfg       config.ConfidenceScoring
	attendees repository.AttendeeRepository
	persons   repository.PersonRepository
	social    SocialSignalsProvider
}

// New builds a Scorer over the given config and optional collaborators.
// Pass nil for any collaborator the caller doesn't have wired yet.
func New(cfg config.ConfidenceScoring, attendees repository.AttendeeRepository, persons repository.PersonRepository, social SocialSignalsProvider) *Scorer {
	return &Scorer{cfg: cfg, attendees: attendees, persons: persons, social: social}
}

// ScoreParsedRequest scores a request using only parse-time and name-match
// signals, before any repository lookups — the score Phase 1 can compute
// on its own.
func (s *Scorer) ScoreParsedRequest(req model.ParsedRequest, result *model.ResolutionResult) float64 {
	signals := s.signalsFromParsedRequest(req, result)
	return s.calculateScore(signals, req.RequestType)
}

// ScoreResolution scores a completed resolution, enriching the parse/name
// signals with enrollment, social graph, and grade/age proximity context,
// then applies the AI-provided-id confidence boost if applicable.
func (s *Scorer) ScoreResolution(ctx context.Context, req model.ParsedRequest, result model.ResolutionResult, requesterCMID, sessionCMID, year int) float64 {
	signals := s.signalsFromResolution(ctx, req, result, requesterCMID, sessionCMID, year)
	score := s.calculateScore(signals, req.RequestType)

	if s.hasAIProvidedID(req, result) {
		log := obslog.FromContext(ctx)
		score = math.Min(1.0, score+s.cfg.AIBoost)
		log.Debug("applied AI confidence boost", "boost", s.cfg.AIBoost, "score", score)
	}

	return score
}

// hasAIProvidedID reports whether the AI parser supplied a specific
// person id that the resolution carried through, the signal that earns
// the AI confidence boost.
func (s *Scorer) hasAIProvidedID(req model.ParsedRequest, result model.ResolutionResult) bool {
	if !result.IsResolved() {
		return false
	}
	if req.AIHint.Kind == model.AiHintSingleID {
		return true
	}
	v, ok := result.Metadata["ai_provided_person_id"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// signalsFromParsedRequest builds the signals available before any
// repository lookup: AI confidence, source, and (if a result is already
// known) its match certainty.
func (s *Scorer) signalsFromParsedRequest(req model.ParsedRequest, result *model.ResolutionResult) model.ConfidenceSignals {
	signals := model.DefaultConfidenceSignals()
	signals.AIConfidence = req.AIConfidence
	signals.SourceType = req.Source

	if req.RequestType == model.RequestAgePreference {
		signals.HasSpecificNames = false
	} else {
		signals.HasSpecificNames = req.HasTargetName()
	}

	if result == nil {
		return signals
	}

	switch {
	case result.IsResolved():
		if result.Confidence > 0.9 {
			signals.MatchCertainty = model.MatchExact
		} else {
			signals.MatchCertainty = model.MatchPartial
		}
		signals.NameMatchExact = result.Method == model.MethodExact
		signals.NameMatchUnique = signals.NameMatchExact || strings.HasPrefix(string(result.Method), "fuzzy_")
	case result.IsAmbiguous():
		signals.MatchCertainty = model.MatchAmbiguous
		signals.RequiresClarification = true
	default:
		signals.MatchCertainty = model.MatchNone
	}

	return signals
}

// signalsFromResolution builds the full signal set: parse/name-match
// signals plus enrollment validation, social graph position, and
// grade/age proximity against the requester.
func (s *Scorer) signalsFromResolution(ctx context.Context, req model.ParsedRequest, result model.ResolutionResult, requesterCMID, sessionCMID, year int) model.ConfidenceSignals {
	signals := s.signalsFromParsedRequest(req, &result)

	if !result.IsResolved() {
		return signals
	}
	target := result.Person
	targetCMID := target.CMID

	if s.attendees != nil {
		if _, ok, err := s.attendees.GetByPersonAndYear(ctx, targetCMID, year); err == nil && ok {
			signals.FoundInCurrentYear = true
		} else if _, ok, err := s.attendees.GetByPersonAndYear(ctx, targetCMID, year-1); err == nil && ok {
			signals.FoundInPreviousYearOnly = true
		}
	}

	if s.social != nil {
		signals.Social = s.social.GetSocialSignals(sessionCMID, requesterCMID, targetCMID)
	}

	if s.persons != nil {
		if requester, ok, err := s.persons.FindByCMID(ctx, requesterCMID); err == nil && ok {
			if requester.Grade != nil && target.Grade != nil {
				signals.GradeProximity = model.AbsInt(*requester.Grade - *target.Grade)
			}
			if requester.BirthDate != nil && target.BirthDate != nil {
				if days, ok := daysBetween(*requester.BirthDate, *target.BirthDate); ok {
					signals.AgeProximity = model.AbsFloat(days) / 365.25
				}
			}
		}
	}

	return signals
}

// daysBetween parses two roster birth dates and returns the signed day
// difference a minus b. ok is false if either date fails to parse.
func daysBetween(a, b string) (float64, bool) {
	ta, ok := nameutil.ParseFlexibleDate(a)
	if !ok {
		return 0, false
	}
	tb, ok := nameutil.ParseFlexibleDate(b)
	if !ok {
		return 0, false
	}
	return ta.Sub(tb).Hours() / 24, true
}

// calculateScore dispatches to the per-request-type scoring formula.
func (s *Scorer) calculateScore(signals model.ConfidenceSignals, requestType model.RequestType) float64 {
	switch requestType {
	case model.RequestBunkWith:
		return s.scoreBunkWith(signals)
	case model.RequestNotBunkWith:
		return s.scoreNotBunkWith(signals)
	case model.RequestAgePreference:
		return s.scoreAgePreference(signals)
	default:
		return s.scoreGeneric(signals)
	}
}

var bunkWithMatchScores = map[model.MatchCertainty]float64{
	model.MatchExact:     1.0,
	model.MatchPartial:   0.7,
	model.MatchAmbiguous: 0.4,
	model.MatchNone:      0.0,
}

var notBunkWithMatchScores = map[model.MatchCertainty]float64{
	model.MatchExact:     1.0,
	model.MatchPartial:   0.6,
	model.MatchAmbiguous: 0.3,
	model.MatchNone:      0.0,
}

// scoreBunkWith weighs name-match certainty, AI parse confidence, and
// enrollment/social context, per the bunk_with confidence_scoring config.
func (s *Scorer) scoreBunkWith(signals model.ConfidenceSignals) float64 {
	weights := s.cfg.BunkWith.Weights
	ctxScores := s.cfg.BunkWith.ContextScores
	maxDistanceForBonus := s.cfg.BunkWith.Social.MaxDistanceForBonus

	nameScore := bunkWithMatchScores[signals.MatchCertainty]
	aiScore := signals.AIConfidence

	contextScore := ctxScores.Base
	switch {
	case signals.FoundInCurrentYear:
		contextScore = ctxScores.CurrentYear
	case signals.FoundInPreviousYearOnly:
		contextScore = ctxScores.PreviousYearOnly
	}
	if signals.Social.InEgoNetwork {
		contextScore = math.Min(1.0, contextScore+ctxScores.SocialSignalBonus)
	}
	if signals.Social.SocialDistance <= maxDistanceForBonus {
		contextScore = math.Min(1.0, contextScore+ctxScores.SocialSignalBonus)
	}

	const reciprocalScore = 0.0 // reciprocal-request detection not implemented

	score := weights.NameMatch*nameScore +
		weights.AIParsing*aiScore +
		weights.Context*contextScore +
		weights.ReciprocalBonus*reciprocalScore

	return clamp01(score)
}

// scoreNotBunkWith weighs name-match certainty more heavily than
// scoreBunkWith, since a false positive on a negative request keeps two
// campers apart who should've been bunked together.
func (s *Scorer) scoreNotBunkWith(signals model.ConfidenceSignals) float64 {
	weights := s.cfg.NotBunkWith.Weights
	ctxScores := s.cfg.NotBunkWith.ContextScores

	nameScore := notBunkWithMatchScores[signals.MatchCertainty]
	aiScore := signals.AIConfidence

	contextScore := ctxScores.PreviousYearOnly
	if signals.FoundInCurrentYear {
		contextScore = ctxScores.CurrentYear
	}

	score := weights.NameMatch*nameScore + weights.AIParsing*aiScore + weights.Context*contextScore
	return clamp01(score)
}

// scoreAgePreference relies entirely on AI parse confidence: there's no
// name to resolve, so no match-certainty or context signal applies.
func (s *Scorer) scoreAgePreference(signals model.ConfidenceSignals) float64 {
	return signals.AIConfidence
}

// scoreGeneric averages the available signals for any request type
// outside the three modeled above.
func (s *Scorer) scoreGeneric(signals model.ConfidenceSignals) float64 {
	matchComponent := 0.0
	switch signals.MatchCertainty {
	case model.MatchExact:
		matchComponent = 1.0
	case model.MatchPartial:
		matchComponent = 0.5
	}

	contextComponent := 0.3
	if signals.FoundInCurrentYear {
		contextComponent = 0.8
	}

	return (signals.AIConfidence + matchComponent + contextComponent) / 3.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
