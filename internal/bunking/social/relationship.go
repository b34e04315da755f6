package social

import (
	"github.com/camp/kindred/internal/bunking/model"
)

const (
	siblingBoost       = 0.25
	bunkmateBoost      = 0.15
	classmateBoost     = 0.10
	indirectBoostBase  = 0.05
	confidenceBoostCap = 0.30
)

// RelationshipAnalyzer derives a requester's RelationshipContext against
// a candidate list from a session's social graph, and scores the
// confidence boost each candidate's relationship implies.
type RelationshipAnalyzer struct {
	graph *Graph
}

// NewRelationshipAnalyzer builds an analyzer over an already-built graph.
func NewRelationshipAnalyzer(g *Graph) *RelationshipAnalyzer {
	return &RelationshipAnalyzer{graph: g}
}

// BuildContext inspects the session graph for the direct edge,
// shortest-path distance, and mutual connections between the requester
// and each candidate.
func (a *RelationshipAnalyzer) BuildContext(sessionCMID, requesterCMID int, candidates []model.Person) model.RelationshipContext {
	out := make(model.RelationshipContext, len(candidates))

	for _, c := range candidates {
		entry := model.RelationshipEntry{
			ShortestPathLength: model.InfiniteDistance,
			MutualConnections:  map[int]struct{}{},
		}

		if a.graph != nil {
			if types, weight, _, ok := a.graph.DirectEdge(sessionCMID, requesterCMID, c.CMID); ok {
				entry.ConnectionStrength = weight
				for _, t := range types {
					switch t {
					case RelationshipSibling:
						entry.IsSibling = true
					case RelationshipClassmate:
						entry.IsClassmate = true
					case RelationshipBunkmate:
						entry.IsBunkmate = true
					}
				}
			}

			entry.ShortestPathLength = a.graph.ShortestPathHops(sessionCMID, requesterCMID, c.CMID)

			for _, n := range a.graph.MutualConnections(sessionCMID, requesterCMID, c.CMID) {
				entry.MutualConnections[n] = struct{}{}
			}
		}

		out[c.CMID] = entry
	}

	return out
}

// ConfidenceBoost scores one candidate's relationship entry: the max of
// the applicable direct-edge boosts, or a distance-decayed indirect
// boost when there's no direct edge but a finite path, capped at 0.30.
func (a *RelationshipAnalyzer) ConfidenceBoost(entry model.RelationshipEntry) float64 {
	boost := 0.0
	if entry.IsSibling && siblingBoost > boost {
		boost = siblingBoost
	}
	if entry.IsBunkmate && bunkmateBoost > boost {
		boost = bunkmateBoost
	}
	if entry.IsClassmate && classmateBoost > boost {
		boost = classmateBoost
	}

	if boost == 0 && !entry.Unreachable() {
		boost = indirectBoostBase / (1 + float64(entry.ShortestPathLength))
	}

	if boost > confidenceBoostCap {
		boost = confidenceBoostCap
	}
	return boost
}
