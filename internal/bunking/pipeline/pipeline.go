// Package pipeline orchestrates the resolution strategy chain: for a
// single request, or a batch, it runs each configured strategy in turn,
// accepts the first high-confidence resolved result, and otherwise keeps
// the best candidate outcome it has seen. A result cache and an optional
// grade spread filter sit in front of the strategy chain.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/camp/kindred/internal/bunking/cache"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/obslog"
	"github.com/camp/kindred/internal/bunking/repository"
	"github.com/camp/kindred/internal/bunking/strategy"
)

// acceptanceFloor is the minimum confidence a resolved result must clear
// to be accepted immediately, overridden upward by a higher configured
// minimum confidence.
const acceptanceFloor = 0.8

// Request is one (name, requester, optional session, optional year)
// resolution ask, as consumed by BatchResolve.
type Request struct {
	Name          string
	RequesterCMID int
	SessionCMID   *int
	Year          *int
}

// Pipeline owns the ordered strategy chain plus the optional result
// cache, spread filter, and minimum confidence threshold.
type Pipeline struct {
	persons   repository.PersonRepository
	attendees repository.AttendeeRepository

	strategies        []strategy.Strategy
	resultCache       *cache.LRUCache[string, model.ResolutionResult]
	minimumConfidence float64
	spreadFilter      *SpreadFilter
	cacheTTL          time.Duration
}

// New builds an empty pipeline against the given repositories.
func New(persons repository.PersonRepository, attendees repository.AttendeeRepository) *Pipeline {
	return &Pipeline{
		persons:   persons,
		attendees: attendees,
		cacheTTL:  5 * time.Minute,
	}
}

// AddStrategy appends a strategy to the chain, tried in the given order.
func (p *Pipeline) AddStrategy(s strategy.Strategy) { p.strategies = append(p.strategies, s) }

// SetCache installs a result cache.
func (p *Pipeline) SetCache(c *cache.LRUCache[string, model.ResolutionResult]) { p.resultCache = c }

// SetMinimumConfidence sets the floor a resolved result must clear to
// survive in the final output (demoted to unresolved otherwise).
func (p *Pipeline) SetMinimumConfidence(threshold float64) { p.minimumConfidence = threshold }

// SetSpreadFilter installs a grade-based candidate filter, or clears it
// when passed nil.
func (p *Pipeline) SetSpreadFilter(f *SpreadFilter) { p.spreadFilter = f }

// cacheKey puts requesterCMID right after the fixed "resolution" prefix
// so InvalidateRequester can drop every cached result for one requester
// with a single prefix-wildcard Invalidate call.
func cacheKey(name string, requesterCMID int, sessionCMID, year *int) string {
	sessionPart := "none"
	if sessionCMID != nil {
		sessionPart = fmt.Sprintf("%d", *sessionCMID)
	}
	yearPart := "none"
	if year != nil {
		yearPart = fmt.Sprintf("%d", *year)
	}
	return strings.Join([]string{
		"resolution",
		fmt.Sprintf("%d", requesterCMID),
		strings.ToLower(strings.TrimSpace(name)),
		sessionPart,
		yearPart,
	}, ":")
}

// InvalidateRequester drops every cached resolution previously computed
// for requesterCMID, used when that person's roster record (school,
// grade, or parent names) changes and stale cached confidences could
// otherwise outlive the data they were computed from.
func (p *Pipeline) InvalidateRequester(requesterCMID int) int {
	if p.resultCache == nil {
		return 0
	}
	return p.resultCache.Invalidate(fmt.Sprintf("resolution:%d:*", requesterCMID))
}

// Resolve attempts to resolve name using the configured strategy chain
// against live repositories (no pre-loaded batch context).
func (p *Pipeline) Resolve(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int) (model.ResolutionResult, error) {
	log := obslog.FromContext(ctx)
	key := cacheKey(name, requesterCMID, sessionCMID, year)

	if p.resultCache != nil {
		if cached, ok := p.resultCache.Get(key); ok {
			return cached, nil
		}
	}

	if sessionCMID == nil && year != nil {
		if att, ok, err := p.attendees.GetByPersonAndYear(ctx, requesterCMID, *year); err == nil && ok {
			s := att.SessionCMID
			sessionCMID = &s
		}
	}

	threshold := p.acceptanceThreshold()
	best := model.ResolutionResult{}
	for _, s := range p.strategies {
		result, err := s.Resolve(ctx, name, requesterCMID, sessionCMID, year)
		if err != nil {
			log.Warn("strategy error, skipping", "strategy", s.Name(), "error", err.Error())
			continue
		}

		if result.IsResolved() && result.Confidence >= threshold {
			best = result
			break
		}
		if result.Confidence > best.Confidence {
			best = result
		}
		if result.IsAmbiguous() && !best.IsAmbiguous() {
			best = result
		}
	}

	best = p.applyMinimumConfidence(best)

	if p.resultCache != nil && best.Confidence > 0 {
		p.resultCache.Set(key, best, p.cacheTTL)
	}

	return best, nil
}

func (p *Pipeline) acceptanceThreshold() float64 {
	if p.minimumConfidence > acceptanceFloor {
		return p.minimumConfidence
	}
	return acceptanceFloor
}

func (p *Pipeline) applyMinimumConfidence(result model.ResolutionResult) model.ResolutionResult {
	if result.IsResolved() && result.Confidence < p.minimumConfidence {
		result.Person = nil
		if result.Metadata == nil {
			result.Metadata = map[string]any{}
		}
		result.Metadata["below_threshold"] = true
	}
	return result
}

// BatchResolve resolves many requests efficiently: it pre-loads person
// candidates for every unique requested name and every requester's
// session, then runs each request through the strategy chain using each
// strategy's resolve_with_context-equivalent batch path.
func (p *Pipeline) BatchResolve(ctx context.Context, requests []Request) ([]model.ResolutionResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	log := obslog.FromContext(ctx)

	uniqueNames := map[string]struct{}{}
	requesterIDs := map[int]struct{}{}
	years := map[int]struct{}{}

	for _, r := range requests {
		uniqueNames[strings.TrimSpace(r.Name)] = struct{}{}
		requesterIDs[r.RequesterCMID] = struct{}{}
		if r.Year != nil {
			years[*r.Year] = struct{}{}
		}
	}

	batchYear := 0
	for y := range years {
		batchYear = y
		break
	}

	allPersonsForPhonetic, err := p.persons.GetAllForPhoneticMatching(ctx, batchYear)
	if err != nil {
		return nil, err
	}
	log.Debug("pre-loaded persons for phonetic matching", "count", len(allPersonsForPhonetic), "year", batchYear)

	allCandidates := make(map[string][]model.Person, len(uniqueNames))
	var candidatesMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name := range uniqueNames {
		name := name
		g.Go(func() error {
			found := p.candidatesForName(gctx, name, batchYear)
			candidatesMu.Lock()
			allCandidates[strings.TrimSpace(name)] = found
			candidatesMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	allPersonIDs := make([]int, 0, len(requesterIDs))
	allPersonsByCMID := make(map[int]model.Person)
	for id := range requesterIDs {
		allPersonIDs = append(allPersonIDs, id)
	}
	for _, candidates := range allCandidates {
		for _, person := range candidates {
			allPersonIDs = append(allPersonIDs, person.CMID)
			allPersonsByCMID[person.CMID] = person
		}
	}
	for id := range requesterIDs {
		if _, ok := allPersonsByCMID[id]; !ok {
			if person, found, err := p.persons.FindByCMID(ctx, id); err == nil && found {
				allPersonsByCMID[id] = person
			}
		}
	}

	attendeeInfo := make(map[int]strategy.AttendeeInfo)
	attendeeInfoByPersonYear := make(map[[2]int]int)

	type yearSessions struct {
		year     int
		sessions map[int]int
	}
	perYear := make([]yearSessions, 0, len(years))
	var perYearMu sync.Mutex
	g2, gctx2 := errgroup.WithContext(ctx)
	for year := range years {
		year := year
		g2.Go(func() error {
			sessions, err := p.attendees.BulkGetSessionsForPersons(gctx2, allPersonIDs, year)
			if err != nil {
				return err
			}
			perYearMu.Lock()
			perYear = append(perYear, yearSessions{year: year, sessions: sessions})
			perYearMu.Unlock()
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}
	for _, ys := range perYear {
		for personID, sessionID := range ys.sessions {
			attendeeInfoByPersonYear[[2]int{personID, ys.year}] = sessionID
			if _, ok := attendeeInfo[personID]; !ok {
				attendeeInfo[personID] = strategy.AttendeeInfo{SessionCMID: sessionID}
			}
		}
	}

	for cmID, person := range allPersonsByCMID {
		info := attendeeInfo[cmID]
		info.School = person.School
		info.Grade = person.Grade
		info.City = person.City
		info.State = person.State
		attendeeInfo[cmID] = info
	}

	results := make([]model.ResolutionResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, p.resolveOneFromBatch(ctx, req, allCandidates, attendeeInfo, attendeeInfoByPersonYear, allPersonsForPhonetic))
	}

	return results, nil
}

// candidatesForName mirrors the original "FirstName Initial" pattern: a
// two-token name whose second token is a single character is treated as
// a first-name-plus-last-initial search rather than a full last name.
func (p *Pipeline) candidatesForName(ctx context.Context, name string, year int) []model.Person {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) < 2 {
		return nil
	}

	first := parts[0]
	second := parts[1]

	if len([]rune(second)) == 1 {
		initial := strings.ToUpper(second)
		matches, err := p.persons.FindByFirstName(ctx, first, year)
		if err != nil {
			return nil
		}
		var out []model.Person
		for _, m := range matches {
			if m.LastName != "" && strings.ToUpper(m.LastName[:1]) == initial {
				out = append(out, m)
			}
		}
		return out
	}

	last := strings.Join(parts[1:], " ")
	matches, err := p.persons.FindByName(ctx, first, last, year)
	if err != nil {
		return nil
	}
	return matches
}

func (p *Pipeline) resolveOneFromBatch(ctx context.Context, req Request, allCandidates map[string][]model.Person,
	attendeeInfo map[int]strategy.AttendeeInfo, attendeeInfoByPersonYear map[[2]int]int, allPersons []model.Person) model.ResolutionResult {

	log := obslog.FromContext(ctx)
	sessionCMID := req.SessionCMID
	if sessionCMID == nil && req.Year != nil {
		if sid, ok := attendeeInfoByPersonYear[[2]int{req.RequesterCMID, *req.Year}]; ok {
			sessionCMID = &sid
		}
	}

	key := cacheKey(req.Name, req.RequesterCMID, sessionCMID, req.Year)
	if p.resultCache != nil {
		if cached, ok := p.resultCache.Get(key); ok {
			return cached
		}
	}

	candidates := allCandidates[strings.TrimSpace(req.Name)]

	if p.spreadFilter != nil && len(candidates) > 0 && req.Year != nil {
		if requester, found, err := p.persons.FindByCMID(ctx, req.RequesterCMID); err == nil && found {
			before := len(candidates)
			candidates = p.spreadFilter.FilterCandidates(requester, candidates)
			log.Debug("spread filter applied", "name", req.Name, "before", before, "after", len(candidates))
		}
	}

	best := model.ResolutionResult{}
	threshold := p.acceptanceThreshold()

	for _, s := range p.strategies {
		result, err := s.ResolveWithContext(ctx, req.Name, req.RequesterCMID, sessionCMID, req.Year, candidates, attendeeInfo, allPersons)
		if err != nil {
			log.Warn("strategy error in batch resolve, skipping", "strategy", s.Name(), "error", err.Error())
			continue
		}

		if result.IsResolved() && result.Confidence >= threshold {
			best = result
			break
		}
		if result.Confidence > best.Confidence {
			best = result
		}
		if result.IsAmbiguous() && !best.IsAmbiguous() {
			best = result
		}
	}

	best = p.applyMinimumConfidence(best)

	if p.resultCache != nil && best.Confidence > 0 {
		p.resultCache.Set(key, best, p.cacheTTL)
	}

	return best
}
