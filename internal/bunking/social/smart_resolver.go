package social

import (
	"math"
	"sort"

	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
)

// CandidateWithSignals pairs a candidate with their SocialSignals
// relative to one requester, the shape EnhanceAmbiguous attaches.
type CandidateWithSignals struct {
	Person  model.Person
	Signals model.SocialSignals
}

// EnhanceAmbiguous attaches SocialSignals to the top 5 candidates of an
// ambiguous result (by the order given) and sorts the result by
// (social_distance asc, mutual_connections desc, relationship_strength desc).
func (g *Graph) EnhanceAmbiguous(sessionCMID, requesterCMID int, candidates []model.Person) []CandidateWithSignals {
	limit := len(candidates)
	if limit > 5 {
		limit = 5
	}

	out := make([]CandidateWithSignals, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, CandidateWithSignals{
			Person:  c,
			Signals: g.GetSocialSignals(sessionCMID, requesterCMID, c.CMID),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Signals, out[j].Signals
		if a.SocialDistance != b.SocialDistance {
			return a.SocialDistance < b.SocialDistance
		}
		if a.MutualConnections != b.MutualConnections {
			return a.MutualConnections > b.MutualConnections
		}
		return a.RelationshipStrength > b.RelationshipStrength
	})
	return out
}

// candidateScore is one candidate's social score plus the components
// that produced it, kept for result metadata.
type candidateScore struct {
	person           model.Person
	score            float64
	hasBunkmateEdge  bool
	hasMutualRequest bool
	commonFriends    int
}

// SmartResolver promotes an ambiguous result to resolved when one
// candidate's social connection to the requester clears the batch's
// next-best candidate by a significant margin.
type SmartResolver struct {
	graph *Graph
	cfg   config.SmartResolution
}

// NewSmartResolver builds a resolver over an already-built graph and the
// smart-resolution config knobs.
func NewSmartResolver(g *Graph, cfg config.SmartResolution) *SmartResolver {
	return &SmartResolver{graph: g, cfg: cfg}
}

// Resolve computes a social score for every candidate and decides
// whether the top scorer clears the auto-resolve bar. It always returns
// the full candidate list sorted by score descending as its second
// value, even when no candidate is auto-resolved, so callers taking the
// top N see the most socially relevant candidates rather than
// arbitrary repository order.
func (r *SmartResolver) Resolve(sessionCMID, requesterCMID int, candidates []model.Person, mutualRequestCMIDs map[int]bool) (*model.ResolutionResult, []model.Person) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]candidateScore, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, r.score(sessionCMID, requesterCMID, c, mutualRequestCMIDs))
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	sortedCandidates := make([]model.Person, 0, len(scored))
	for _, s := range scored {
		sortedCandidates = append(sortedCandidates, s.person)
	}

	if !r.cfg.Enabled {
		return nil, sortedCandidates
	}

	best := scored[0]
	secondBest := 0.0
	if len(scored) > 1 {
		secondBest = scored[1].score
	}

	confidence := 0.6 + math.Min(best.score/20.0, 1.0)*r.cfg.ConnectionScoreWeight*0.4
	if confidence > 1.0 {
		confidence = 1.0
	}

	marginOK := (best.score - secondBest) >= r.cfg.SignificantConnectionThreshold
	floorOK := best.score >= r.cfg.MinConnectionsForAutoResolve
	confidenceOK := confidence >= r.cfg.MinConfidenceForAutoResolve

	if !(marginOK && floorOK && confidenceOK) {
		return nil, sortedCandidates
	}

	person := best.person
	result := model.NewResolutionResult(&person, confidence, model.MethodSmartResolution, nil, map[string]any{
		"social_score":       best.score,
		"second_best_score":  secondBest,
		"mutual_request":     best.hasMutualRequest,
		"common_friends":     best.commonFriends,
		"historical_bunkmate": best.hasBunkmateEdge,
	})
	return &result, sortedCandidates
}

func (r *SmartResolver) score(sessionCMID, requesterCMID int, candidate model.Person, mutualRequestCMIDs map[int]bool) candidateScore {
	cs := candidateScore{person: candidate}

	if mutualRequestCMIDs != nil && mutualRequestCMIDs[candidate.CMID] {
		cs.hasMutualRequest = true
		cs.score += r.cfg.MutualRequestBonus
	}

	if r.graph != nil {
		mutual := r.graph.MutualConnections(sessionCMID, requesterCMID, candidate.CMID)
		cs.commonFriends = len(mutual)
		cs.score += r.cfg.CommonFriendsWeight * float64(cs.commonFriends)

		if types, _, _, ok := r.graph.DirectEdge(sessionCMID, requesterCMID, candidate.CMID); ok {
			for _, t := range types {
				if t == RelationshipBunkmate {
					cs.hasBunkmateEdge = true
					cs.score += r.cfg.HistoricalBunkingWeight
					break
				}
			}
		}
	}

	return cs
}
