// Package phase2 drives local resolution over a batch of parsed requests:
// staff-name filtering, prior-bunkmate and AI-hint shortcuts, the
// strategy pipeline, social-graph enhancement of anything still
// ambiguous, and confidence finalization. It is the orchestrator that
// wires pipeline.Pipeline, confidence.Scorer, and social.Graph/
// social.SmartResolver together over a whole submission batch rather
// than a single request.
package phase2

import (
	"context"
	"strings"
	"sync"

	"github.com/camp/kindred/internal/bunking/confidence"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/nameutil"
	"github.com/camp/kindred/internal/bunking/obslog"
	"github.com/camp/kindred/internal/bunking/pipeline"
	"github.com/camp/kindred/internal/bunking/repository"
	"github.com/camp/kindred/internal/bunking/social"
)

// Method values this package attaches to results it produces directly,
// alongside the strategy-chain methods already defined in model.
const (
	MethodStaffFiltered            model.Method = "staff_filtered"
	MethodPriorBunkmateExact       model.Method = "prior_bunkmate_exact"
	MethodPriorBunkmateFirstName   model.Method = "prior_bunkmate_first_name"
	MethodAIIDValidated            model.Method = "ai_id_validated"
	MethodAIIDValidatedNormalized  model.Method = "ai_id_validated_normalized"
	MethodAIIDPartialMatch         model.Method = "ai_id_partial_match"
	MethodAICandidateDisambiguated model.Method = "ai_candidate_disambiguated"
	MethodAgePreference            model.Method = "age_preference"
	MethodAgePreferenceMissing     model.Method = "age_preference_missing"
	MethodNoTargetName             model.Method = "no_target_name"
	MethodInvalidParse             model.Method = "invalid_parse"
)

// CaseResult pairs a submission's ParseResult with one ResolutionResult
// per parsed request, preserving the input's ordering and length.
type CaseResult struct {
	ParseResult model.ParseResult
	Results     []model.ResolutionResult
}

// Stats counts resolution outcomes across every BatchResolve call made
// against a Service, for dashboards and post-run reporting.
type Stats struct {
	TotalProcessed           int
	HighConfidenceResolved   int
	LowConfidenceResolved    int
	Ambiguous                int
	Failed                   int
	AgePreferences           int
	SocialGraphEnhanced      int
	StaffFiltered            int
	PriorBunkmateResolved    int
	AICandidateResolved      int
	AIValidatedResolved      int
	AIHallucinationsDetected int
	SmartResolved            int
}

func (s *Stats) merge(d Stats) {
	s.TotalProcessed += d.TotalProcessed
	s.HighConfidenceResolved += d.HighConfidenceResolved
	s.LowConfidenceResolved += d.LowConfidenceResolved
	s.Ambiguous += d.Ambiguous
	s.Failed += d.Failed
	s.AgePreferences += d.AgePreferences
	s.SocialGraphEnhanced += d.SocialGraphEnhanced
	s.StaffFiltered += d.StaffFiltered
	s.PriorBunkmateResolved += d.PriorBunkmateResolved
	s.AICandidateResolved += d.AICandidateResolved
	s.AIValidatedResolved += d.AIValidatedResolved
	s.AIHallucinationsDetected += d.AIHallucinationsDetected
	s.SmartResolved += d.SmartResolved
}

// resolutionCase tracks one submission's per-request resolution state
// while a batch is in flight. results holds a nil slot for every request
// still pending, preserving ParsedRequests' length and order throughout.
type resolutionCase struct {
	parseResult     model.ParseResult
	results         []*model.ResolutionResult
	needsResolution []int
}

func newResolutionCase(pr model.ParseResult) *resolutionCase {
	c := &resolutionCase{
		parseResult: pr,
		results:     make([]*model.ResolutionResult, len(pr.ParsedRequests)),
	}
	for idx, req := range pr.ParsedRequests {
		if requestNeedsResolution(req) {
			c.needsResolution = append(c.needsResolution, idx)
		}
	}
	return c
}

// requestNeedsResolution reports whether a parsed request names a person
// the pipeline must resolve, as opposed to an age preference or one of
// the last-year-bunkmates/sibling sentinels expanded elsewhere.
func requestNeedsResolution(req model.ParsedRequest) bool {
	if req.RequestType == model.RequestAgePreference {
		return false
	}
	switch req.Target.Kind {
	case model.TargetLastYearBunkmates, model.TargetSibling:
		return false
	}
	return req.HasTargetName()
}

// Service orchestrates local resolution for a batch of parsed
// submissions. The social graph, smart resolver, and confidence scorer
// are all optional: without them BatchResolve still runs the pipeline
// and the AI/prior-bunkmate shortcuts, simply skipping the enhancement
// and rescoring steps they would otherwise provide.
type Service struct {
	mu    sync.Mutex
	stats Stats

	pipeline      *pipeline.Pipeline
	attendees     repository.AttendeeRepository
	persons       repository.PersonRepository
	graph         *social.Graph
	smartResolver *social.SmartResolver
	scorer        *confidence.Scorer
	staffFilter   func(name string) bool
	nicknames     map[string][]string
	metrics       *Metrics
}

// New builds a Service around the given pipeline and repositories. Call
// the With* setters to attach the optional social-graph, confidence, and
// staff-filter collaborators before the first BatchResolve.
func New(p *pipeline.Pipeline, attendees repository.AttendeeRepository, persons repository.PersonRepository) *Service {
	return &Service{pipeline: p, attendees: attendees, persons: persons}
}

// WithSocialGraph attaches the per-session social graph and its smart
// resolver, enabling the social-graph-enhancement step over anything the
// pipeline leaves ambiguous.
func (s *Service) WithSocialGraph(g *social.Graph, r *social.SmartResolver) *Service {
	s.graph = g
	s.smartResolver = r
	return s
}

// WithConfidenceScorer attaches the scorer used to finalize confidence on
// every pipeline-resolved result.
func (s *Service) WithConfidenceScorer(c *confidence.Scorer) *Service {
	s.scorer = c
	return s
}

// WithStaffNameFilter attaches a predicate that reports whether a target
// name is a known staff/parent name that should be filtered out of
// resolution entirely rather than matched against the camper roster.
func (s *Service) WithStaffNameFilter(f func(name string) bool) *Service {
	s.staffFilter = f
	return s
}

// WithNicknameOverrides attaches the nickname-equivalence table consulted
// by the AI-id-validation name matcher, mirroring the table the
// resolution strategies already use.
func (s *Service) WithNicknameOverrides(overrides map[string][]string) *Service {
	s.nicknames = overrides
	return s
}

// WithMetrics attaches a Prometheus exporter that mirrors every
// resolution outcome Stats tracks, for scraping rather than in-process
// reporting.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// Stats returns a snapshot of the running totals across every
// BatchResolve call so far.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ResetStats zeroes the running totals.
func (s *Service) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{}
}

// BatchResolve resolves every request across a batch of parsed
// submissions and returns one CaseResult per submission, in input order,
// each carrying exactly len(ParsedRequests) results.
func (s *Service) BatchResolve(ctx context.Context, parseResults []model.ParseResult) ([]CaseResult, error) {
	log := obslog.FromContext(ctx)
	if len(parseResults) == 0 {
		return nil, nil
	}
	log.Info("phase 2 batch resolution starting", "submissions", len(parseResults))

	cases := make([]*resolutionCase, len(parseResults))
	for i, pr := range parseResults {
		if pr.Valid {
			cases[i] = newResolutionCase(pr)
		}
	}

	var needResolution, noResolution []*resolutionCase
	for _, c := range cases {
		if c == nil {
			continue
		}
		if len(c.needsResolution) > 0 {
			needResolution = append(needResolution, c)
		} else {
			noResolution = append(noResolution, c)
		}
	}
	log.Info("phase 2 case split", "need_resolution", len(needResolution), "no_resolution", len(noResolution))

	var delta Stats

	if len(needResolution) > 0 {
		if err := s.resolveBatch(ctx, needResolution, &delta); err != nil {
			return nil, err
		}
	}
	s.handleNoResolutionCases(noResolution, &delta)

	if s.graph != nil && s.smartResolver != nil {
		s.enhanceWithSocialGraph(ctx, cases, &delta)
	}

	results := s.buildResults(parseResults, cases)
	s.updateStats(ctx, results, &delta)

	s.mu.Lock()
	s.stats.merge(delta)
	final := s.stats
	s.mu.Unlock()

	log.Info("phase 2 batch resolution complete",
		"high_confidence", final.HighConfidenceResolved,
		"low_confidence", final.LowConfidenceResolved,
		"ambiguous", final.Ambiguous,
		"failed", final.Failed,
	)

	return results, nil
}

type pendingBatchItem struct {
	caseIdx int
	reqIdx  int
}

// resolveBatch runs the per-request shortcut chain (staff filter, prior
// bunkmate, AI id validation, AI candidate list) over every request that
// needs resolution, then sends whatever remains through the pipeline's
// BatchResolve in a single call.
func (s *Service) resolveBatch(ctx context.Context, cases []*resolutionCase, delta *Stats) error {
	log := obslog.FromContext(ctx)

	var batchRequests []pipeline.Request
	var requestMap []pendingBatchItem

	for caseIdx, c := range cases {
		reqCtx := c.parseResult.Context
		needsResSet := make(map[int]bool, len(c.needsResolution))
		for _, idx := range c.needsResolution {
			needsResSet[idx] = true
		}

		for _, reqIdx := range c.needsResolution {
			req := c.parseResult.ParsedRequests[reqIdx]

			if s.staffFilter != nil && req.HasTargetName() && s.staffFilter(req.Target.Name) {
				log.Info("filtered staff name from request", "name", req.Target.Name)
				r := model.NewResolutionResult(nil, 0, MethodStaffFiltered, nil, map[string]any{"filtered_name": req.Target.Name})
				c.results[reqIdx] = &r
				delta.StaffFiltered++
				continue
			}

			if s.hasLastYearContext(req) && req.HasTargetName() {
				if prior := s.tryPriorBunkmateResolution(ctx, req.Target.Name, reqCtx.RequesterCMID, reqCtx.SessionCMID, reqCtx.Year); prior != nil && prior.IsResolved() {
					c.results[reqIdx] = prior
					delta.PriorBunkmateResolved++
					continue
				}
			}

			aiResult, hallucination := s.tryAIIDValidation(ctx, req)
			if hallucination {
				delta.AIHallucinationsDetected++
				s.metrics.observeHallucination()
			}
			if aiResult != nil {
				c.results[reqIdx] = aiResult
				delta.AIValidatedResolved++
				continue
			}

			if aiCandidateResult := s.tryAICandidateResolution(ctx, req, reqCtx); aiCandidateResult != nil {
				c.results[reqIdx] = aiCandidateResult
				delta.AICandidateResolved++
				continue
			}

			if req.HasTargetName() {
				sessionCMID := reqCtx.SessionCMID
				year := reqCtx.Year
				batchRequests = append(batchRequests, pipeline.Request{
					Name:          req.Target.Name,
					RequesterCMID: reqCtx.RequesterCMID,
					SessionCMID:   &sessionCMID,
					Year:          &year,
				})
				requestMap = append(requestMap, pendingBatchItem{caseIdx: caseIdx, reqIdx: reqIdx})
			}
		}

		for idx, req := range c.parseResult.ParsedRequests {
			if c.results[idx] != nil || needsResSet[idx] {
				continue
			}
			c.results[idx] = buildNonResolutionResult(req)
			if req.RequestType == model.RequestAgePreference {
				delta.AgePreferences++
			}
		}
	}

	if len(batchRequests) == 0 {
		return nil
	}

	batchResults, err := s.pipeline.BatchResolve(ctx, batchRequests)
	if err != nil {
		return err
	}
	log.Debug("batch resolved names", "count", len(batchResults))

	for j, result := range batchResults {
		item := requestMap[j]
		c := cases[item.caseIdx]
		req := c.parseResult.ParsedRequests[item.reqIdx]

		if s.scorer != nil && result.IsResolved() {
			reqCtx := c.parseResult.Context
			result.Confidence = s.scorer.ScoreResolution(ctx, req, result, reqCtx.RequesterCMID, reqCtx.SessionCMID, reqCtx.Year)
		}

		switch {
		case result.IsResolved():
			log.Debug("resolved request", "name", req.Target.Name, "cm_id", result.Person.CMID, "confidence", result.Confidence, "method", result.Method)
		case result.IsAmbiguous():
			log.Debug("ambiguous resolution", "name", req.Target.Name, "candidates", len(result.Candidates))
		default:
			log.Debug("failed to resolve request", "name", req.Target.Name)
		}

		c.results[item.reqIdx] = &result
	}

	return nil
}

// handleNoResolutionCases fills in results for submissions where no
// request needs name resolution at all: every request is an age
// preference or a last-year-bunkmates/sibling sentinel.
func (s *Service) handleNoResolutionCases(cases []*resolutionCase, delta *Stats) {
	for _, c := range cases {
		for idx, req := range c.parseResult.ParsedRequests {
			c.results[idx] = buildNonResolutionResult(req)
			if req.RequestType == model.RequestAgePreference {
				delta.AgePreferences++
			}
		}
	}
}

func buildNonResolutionResult(req model.ParsedRequest) *model.ResolutionResult {
	switch {
	case req.RequestType == model.RequestAgePreference:
		if req.Target.Kind != model.TargetAgePreference || req.Target.Pref == "" {
			r := model.NewResolutionResult(nil, 0, MethodAgePreferenceMissing, nil, map[string]any{"error": "no age preference specified"})
			return &r
		}
		r := model.NewResolutionResult(nil, 1.0, MethodAgePreference, nil, map[string]any{"age_preference": string(req.Target.Pref)})
		return &r
	case req.Target.Kind == model.TargetLastYearBunkmates:
		r := model.NewResolutionResult(nil, 1.0, model.MethodLastYearBunkmates, nil, nil)
		return &r
	case req.Target.Kind == model.TargetSibling:
		r := model.NewResolutionResult(nil, 1.0, model.MethodSibling, nil, nil)
		return &r
	default:
		r := model.NewResolutionResult(nil, 0, MethodNoTargetName, nil, nil)
		return &r
	}
}

// enhanceWithSocialGraph gives every still-ambiguous result a pass
// through the social graph: signals are computed for its top candidates,
// then the smart resolver either promotes the clear social favorite to
// resolved or replaces the candidate list with one ranked by social
// score so the next phase sees the most relevant names first.
func (s *Service) enhanceWithSocialGraph(ctx context.Context, cases []*resolutionCase, delta *Stats) {
	log := obslog.FromContext(ctx)

	type ambiguousItem struct {
		c      *resolutionCase
		reqIdx int
	}
	var items []ambiguousItem
	for _, c := range cases {
		if c == nil {
			continue
		}
		for idx, r := range c.results {
			if r != nil && r.IsAmbiguous() {
				items = append(items, ambiguousItem{c: c, reqIdx: idx})
			}
		}
	}
	if len(items) == 0 {
		return
	}
	log.Info("enhancing ambiguous resolutions with social graph", "count", len(items))

	for _, item := range items {
		reqCtx := item.c.parseResult.Context
		result := item.c.results[item.reqIdx]
		req := item.c.parseResult.ParsedRequests[item.reqIdx]

		enhanced := s.graph.EnhanceAmbiguous(reqCtx.SessionCMID, reqCtx.RequesterCMID, result.Candidates)
		delta.SocialGraphEnhanced++
		if len(enhanced) > 0 {
			log.Debug("social signals computed for ambiguous candidates", "name", req.Target.Name,
				"top_candidate", enhanced[0].Person.CMID, "social_distance", enhanced[0].Signals.SocialDistance)
		}

		// Mutual-request cross-referencing across a session's submitted
		// requests isn't wired up yet, so every candidate scores as if
		// none exists.
		autoResult, sortedCandidates := s.smartResolver.Resolve(reqCtx.SessionCMID, reqCtx.RequesterCMID, result.Candidates, nil)

		switch {
		case autoResult != nil:
			merged := mergeMetadata(result.Metadata, map[string]any{"smart_resolved": true})
			newResult := model.NewResolutionResult(autoResult.Person, autoResult.Confidence, autoResult.Method, nil, merged)
			item.c.results[item.reqIdx] = &newResult
			delta.SmartResolved++
			log.Info("smart resolved ambiguous request", "name", req.Target.Name, "cm_id", autoResult.Person.CMID, "confidence", autoResult.Confidence)
		case len(sortedCandidates) > 0:
			merged := mergeMetadata(result.Metadata, map[string]any{"candidates_ranked_by_social_score": true})
			newResult := model.NewResolutionResult(nil, result.Confidence, result.Method, sortedCandidates, merged)
			item.c.results[item.reqIdx] = &newResult
		}
	}
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// buildResults zips each input ParseResult with its case's results,
// falling back to a sentinel failed result for any index still unset.
func (s *Service) buildResults(parseResults []model.ParseResult, cases []*resolutionCase) []CaseResult {
	out := make([]CaseResult, 0, len(parseResults))
	for i, pr := range parseResults {
		c := cases[i]
		if c == nil {
			failed := make([]model.ResolutionResult, len(pr.ParsedRequests))
			for j := range failed {
				failed[j] = model.NewResolutionResult(nil, 0, MethodInvalidParse, nil, nil)
			}
			out = append(out, CaseResult{ParseResult: pr, Results: failed})
			continue
		}

		finalResults := make([]model.ResolutionResult, len(c.results))
		for j, r := range c.results {
			if r != nil {
				finalResults[j] = *r
			} else {
				finalResults[j] = model.IncompleteResult()
			}
		}
		out = append(out, CaseResult{ParseResult: pr, Results: finalResults})
	}
	return out
}

func (s *Service) updateStats(ctx context.Context, results []CaseResult, delta *Stats) {
	log := obslog.FromContext(ctx)

	total := 0
	for _, cr := range results {
		total += len(cr.Results)
	}
	delta.TotalProcessed += total

	for _, cr := range results {
		for _, r := range cr.Results {
			switch {
			case r.IsResolved():
				if r.Confidence >= 0.85 {
					delta.HighConfidenceResolved++
					s.metrics.observe(string(r.Method), "resolved_high_confidence")
				} else {
					delta.LowConfidenceResolved++
					s.metrics.observe(string(r.Method), "resolved_low_confidence")
				}
			case r.IsAmbiguous():
				delta.Ambiguous++
				s.metrics.observe(string(r.Method), "ambiguous")
			case r.Method == MethodAgePreference:
				// Counted in the AgePreferences tally where the result is built.
				s.metrics.observe(string(r.Method), "resolved_high_confidence")
			default:
				delta.Failed++
				s.metrics.observe(string(r.Method), "failed")
				log.Warn("resolution failed", "method", r.Method, "confidence", r.Confidence)
			}
		}
	}
}

// hasLastYearContext detects "last year" phrasing in a request's
// extracted keywords or, failing that, its raw text, gating the
// prior-bunkmate shortcut.
func (s *Service) hasLastYearContext(req model.ParsedRequest) bool {
	patterns := []string{"from last year", "last year", "from before"}
	for _, kw := range req.KeywordsFound {
		low := strings.ToLower(kw)
		for _, p := range patterns {
			if strings.Contains(low, p) {
				return true
			}
		}
	}
	return strings.Contains(strings.ToLower(req.RawText), "last year")
}

// tryPriorBunkmateResolution checks whether the target name matches
// someone who shared the requester's bunk the prior year: a full-name
// match scores 0.95, a single-token target matching just a first name
// scores 0.90.
func (s *Service) tryPriorBunkmateResolution(ctx context.Context, targetName string, requesterCMID, sessionCMID, year int) *model.ResolutionResult {
	if s.attendees == nil || s.persons == nil {
		return nil
	}

	prior, ok, err := s.attendees.FindPriorYearBunkmates(ctx, requesterCMID, sessionCMID, year)
	if err != nil || !ok || len(prior.CMIDs) == 0 {
		return nil
	}

	normalizedTarget := nameutil.NormalizeName(targetName)
	singleToken := !strings.Contains(normalizedTarget, " ")

	for _, bunkmateID := range prior.CMIDs {
		person, found, err := s.persons.FindByCMID(ctx, bunkmateID)
		if err != nil || !found {
			continue
		}

		personFull := nameutil.NormalizeName(person.DisplayName())
		if normalizedTarget == personFull {
			r := model.NewResolutionResult(&person, 0.95, MethodPriorBunkmateExact, nil, map[string]any{
				"found_in_last_years_bunk": true,
				"last_year_bunk":           prior.PriorBunkID,
			})
			return &r
		}

		if singleToken {
			personFirst := nameutil.NormalizeName(person.FirstName)
			if normalizedTarget == personFirst {
				r := model.NewResolutionResult(&person, 0.90, MethodPriorBunkmateFirstName, nil, map[string]any{
					"found_in_last_years_bunk": true,
					"last_year_bunk":           prior.PriorBunkID,
				})
				return &r
			}
		}
	}

	return nil
}

// tryAIIDValidation checks an AI-provided single-id hint against the
// roster: a validated or normalized name match resolves at 0.95, a
// partial match resolves at 0.75, and a complete mismatch is reported back
// as a detected hallucination so the caller can fall through to the
// ordinary pipeline.
func (s *Service) tryAIIDValidation(ctx context.Context, req model.ParsedRequest) (result *model.ResolutionResult, hallucinationDetected bool) {
	if s.persons == nil || req.AIHint.Kind != model.AiHintSingleID {
		return nil, false
	}

	log := obslog.FromContext(ctx)
	targetCMID := req.AIHint.SingleID

	person, found, err := s.persons.FindByCMID(ctx, targetCMID)
	if err != nil || !found {
		log.Warn("AI-provided person id not found in roster", "cm_id", targetCMID)
		return nil, false
	}

	targetName := ""
	if req.HasTargetName() {
		targetName = req.Target.Name
	}

	if s.validateNameMatch(targetName, person) {
		r := model.NewResolutionResult(&person, 0.95, MethodAIIDValidated, nil, map[string]any{"ai_provided_person_id": true})
		return &r, false
	}

	targetNormalized := nameutil.NormalizeName(targetName)
	personNormalized := nameutil.NormalizeName(person.DisplayName())
	personFirst := nameutil.NormalizeName(person.FirstName)
	personLast := nameutil.NormalizeName(person.LastName)

	hasAnyOverlap := targetNormalized == personNormalized || targetNormalized == personFirst || targetNormalized == personLast ||
		(personFirst != "" && strings.Contains(targetNormalized, personFirst)) ||
		(personLast != "" && strings.Contains(targetNormalized, personLast))

	switch {
	case targetNormalized == personNormalized:
		r := model.NewResolutionResult(&person, 0.95, MethodAIIDValidatedNormalized, nil, map[string]any{"ai_provided_person_id": true})
		return &r, false
	case hasAnyOverlap && req.MatchCertainty == model.MatchExact:
		log.Warn("AI validation partial mismatch, proceeding with caution", "target_name", targetName, "person", person.DisplayName(), "cm_id", targetCMID)
		r := model.NewResolutionResult(&person, 0.75, MethodAIIDPartialMatch, nil, map[string]any{"ai_provided_person_id": true})
		return &r, false
	default:
		log.Error("AI hallucination detected", "target_name", targetName, "person", person.DisplayName(), "cm_id", targetCMID)
		return nil, true
	}
}

// tryAICandidateResolution scores an AI-provided shortlist by session
// match, grade proximity, and (when grade is unavailable) age proximity,
// resolving to the best candidate when it clears 0.5, capped at 0.75
// confidence since the AI only narrowed the field rather than naming one
// person outright.
func (s *Service) tryAICandidateResolution(ctx context.Context, req model.ParsedRequest, reqCtx model.ParseRequestContext) *model.ResolutionResult {
	if s.persons == nil || req.AIHint.Kind != model.AiHintCandidateList || len(req.AIHint.CandidateIDs) == 0 {
		return nil
	}

	var requesterBirthDate *string
	if requester, found, err := s.persons.FindByCMID(ctx, reqCtx.RequesterCMID); err == nil && found {
		requesterBirthDate = requester.BirthDate
	}

	var best *model.Person
	bestScore := 0.0

	candidates, err := s.persons.BulkFindByCMIDs(ctx, req.AIHint.CandidateIDs)
	if err != nil {
		return nil
	}

	for _, cmID := range req.AIHint.CandidateIDs {
		person, found := candidates[cmID]
		if !found {
			continue
		}

		score := 0.5

		if s.attendees != nil {
			if candidate, ok, err := s.attendees.GetByPersonAndYear(ctx, cmID, reqCtx.Year); err == nil && ok {
				if candidate.SessionCMID == reqCtx.SessionCMID {
					score += 0.3
				} else {
					score -= 0.1
				}
			}
		}

		gradeUsed := false
		if reqCtx.RequesterGrade != nil && person.Grade != nil {
			diff := model.AbsInt(*reqCtx.RequesterGrade - *person.Grade)
			switch {
			case diff == 0:
				score += 0.2
			case diff == 1:
				score += 0.1
			case diff > 2:
				score -= 0.2
			}
			gradeUsed = true
		}

		if !gradeUsed && requesterBirthDate != nil && person.BirthDate != nil {
			if days, ok := daysBetweenDates(*requesterBirthDate, *person.BirthDate); ok {
				years := model.AbsFloat(days) / 365.25
				switch {
				case years <= 1:
					score += 0.15
				case years > 3:
					score -= 0.15
				}
			}
		}

		score = clamp01(score)
		if score > bestScore {
			bestScore = score
			p := person
			best = &p
		}
	}

	if best == nil || bestScore <= 0.5 {
		return nil
	}

	confidence := bestScore
	if confidence > 0.75 {
		confidence = 0.75
	}
	r := model.NewResolutionResult(best, confidence, MethodAICandidateDisambiguated, nil, map[string]any{
		"ai_candidate_count":    len(req.AIHint.CandidateIDs),
		"ai_provided_person_id": true,
	})
	return &r
}

// validateNameMatch tolerantly checks a target name against a roster
// person: exact/preferred-name match, token-subset match, middle-name or
// initial handling when last names agree, and nickname equivalence for
// single-token targets.
func (s *Service) validateNameMatch(targetName string, person model.Person) bool {
	targetNormalized := nameutil.NormalizeName(targetName)
	if targetNormalized == "" {
		return false
	}

	personFirst := strings.TrimSpace(person.FirstName)
	personLast := strings.TrimSpace(person.LastName)
	preferredName := strings.TrimSpace(person.PreferredName)
	if personFirst == "" {
		return false
	}

	personFullLower := strings.ToLower(strings.TrimSpace(personFirst + " " + personLast))
	targetLower := strings.ToLower(targetNormalized)

	preferredFullLower := ""
	if preferredName != "" {
		preferredFullLower = strings.ToLower(strings.TrimSpace(preferredName + " " + personLast))
	}

	if personFullLower == targetLower {
		return true
	}
	if preferredFullLower != "" && preferredFullLower == targetLower {
		return true
	}

	targetTokens := tokenSet(targetLower)
	if isSubset(targetTokens, tokenSet(personFullLower)) {
		return true
	}
	if preferredFullLower != "" && isSubset(targetTokens, tokenSet(preferredFullLower)) {
		return true
	}

	targetParts := strings.Fields(targetLower)
	firstNameLower := strings.ToLower(personFirst)
	lastNameLower := strings.ToLower(personLast)
	overrides := s.nicknames

	if len(targetParts) >= 2 && targetParts[len(targetParts)-1] == lastNameLower {
		firstMiddleParts := targetParts[:len(targetParts)-1]
		firstMiddleCombined := strings.Join(firstMiddleParts, " ")

		if strings.HasPrefix(firstNameLower, firstMiddleCombined) || strings.HasPrefix(firstMiddleCombined, firstNameLower) {
			return true
		}
		if nameutil.NamesMatchViaNicknames(firstMiddleParts[0], firstToken(firstNameLower), overrides) {
			return true
		}
		if preferredName != "" {
			preferredLower := strings.ToLower(preferredName)
			if firstMiddleCombined == preferredLower || strings.Contains(preferredLower, firstMiddleCombined) || strings.Contains(firstMiddleCombined, preferredLower) {
				return true
			}
			if nameutil.NamesMatchViaNicknames(firstMiddleParts[0], firstToken(preferredLower), overrides) {
				return true
			}
		}
	}

	if len(targetParts) == 1 {
		targetSingle := targetParts[0]
		if targetSingle == firstNameLower || targetSingle == lastNameLower {
			return true
		}
		if nameutil.NamesMatchViaNicknames(targetSingle, firstToken(firstNameLower), overrides) {
			return true
		}
		if preferredName != "" {
			preferredLower := strings.ToLower(preferredName)
			if targetSingle == preferredLower || nameutil.NamesMatchViaNicknames(targetSingle, firstToken(preferredLower), overrides) {
				return true
			}
		}
	}

	return false
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func isSubset(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func daysBetweenDates(a, b string) (float64, bool) {
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

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
