// Package social builds and queries the per-session social graph: the
// undirected weighted graph of sibling/classmate/bunkmate relationships a
// camp's attendee roster and historical bunk assignments imply. The
// graph never ingests bunk_request rows — that would make the signal
// circular with the resolution it's meant to assist.
package social

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/camp/kindred/internal/bunking/cache"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/obslog"
	"github.com/camp/kindred/internal/bunking/repository"
)

// RelationshipType tags why two people share an edge in a session graph.
type RelationshipType string

const (
	RelationshipSibling     RelationshipType = "sibling"
	RelationshipClassmate   RelationshipType = "classmate"
	RelationshipBunkmate    RelationshipType = "bunkmate"
	RelationshipBunkRequest RelationshipType = "bunk_request"
)

// baseWeight is the starting edge weight for a freshly observed
// relationship of the given type, before any duplicate-edge merging.
var baseWeight = map[RelationshipType]float64{
	RelationshipSibling:     3.0,
	RelationshipBunkmate:    2.0,
	RelationshipClassmate:   1.5,
	RelationshipBunkRequest: 1.0,
}

const historicalRecencyDecay = 0.2

// chunkSize bounds the person-id filter length sent to the historical
// bunk-assignment query.
const chunkSize = 25

// edgeAttr carries the data gonum's WeightedUndirectedGraph doesn't:
// which relationship types produced this edge and its merged weight.
type edgeAttr struct {
	weight float64
	types  []RelationshipType
	merged bool
}

// informationalOnly reports whether this edge's weight blends more than
// one relationship observation (whether or not those observations were
// the same type), meaning its single weight is a summary rather than a
// pure reading of one relationship.
func (e *edgeAttr) informationalOnly() bool { return e.merged }

func (e *edgeAttr) hasType(t RelationshipType) bool {
	for _, existing := range e.types {
		if existing == t {
			return true
		}
	}
	return false
}

type edgeKey [2]int64

func canonicalKey(a, b int64) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Stats are the per-session graph metrics computed once at build time.
type Stats struct {
	NodeCount              int
	EdgeCount              int
	Density                float64
	ComponentCount         int
	AverageDegree          float64
	ClusteringCoefficient  float64
	ClusteringSkipped      bool
}

type sessionGraph struct {
	g         *simple.WeightedUndirectedGraph
	edgeAttrs map[edgeKey]*edgeAttr
	nodes     map[int64]struct{}
}

func newSessionGraph() *sessionGraph {
	return &sessionGraph{
		g:         simple.NewWeightedUndirectedGraph(0, 0),
		edgeAttrs: make(map[edgeKey]*edgeAttr),
		nodes:     make(map[int64]struct{}),
	}
}

func (sg *sessionGraph) ensureNode(id int64) {
	if _, ok := sg.nodes[id]; ok {
		return
	}
	sg.nodes[id] = struct{}{}
	sg.g.AddNode(simple.Node(id))
}

// addEdge merges a new relationship observation into the session graph
// per the duplicate-edge rule: a first-seen pair gets a plain edge at
// the type's base weight; an edge that already exists has the new type
// appended (no duplicates) and 0.5*newWeight folded into its weight.
func (sg *sessionGraph) addEdge(aID, bID int64, relType RelationshipType, weight float64) {
	if aID == bID {
		return
	}
	sg.ensureNode(aID)
	sg.ensureNode(bID)

	key := canonicalKey(aID, bID)
	if existing, ok := sg.edgeAttrs[key]; ok {
		if !existing.hasType(relType) {
			existing.types = append(existing.types, relType)
		}
		existing.weight += 0.5 * weight
		existing.merged = true
		sg.g.SetWeightedEdge(sg.g.NewWeightedEdge(simple.Node(key[0]), simple.Node(key[1]), existing.weight))
		return
	}

	sg.edgeAttrs[key] = &edgeAttr{weight: weight, types: []RelationshipType{relType}}
	sg.g.SetWeightedEdge(sg.g.NewWeightedEdge(simple.Node(aID), simple.Node(bID), weight))
}

func (sg *sessionGraph) edgeBetween(aID, bID int64) (*edgeAttr, bool) {
	e, ok := sg.edgeAttrs[canonicalKey(aID, bID)]
	return e, ok
}

func (sg *sessionGraph) neighbors(id int64) []int64 {
	if _, ok := sg.nodes[id]; !ok {
		return nil
	}
	it := sg.g.From(id)
	var out []int64
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Graph holds one independent undirected session graph per session_cm_id
// for a single enrollment year, plus the metrics computed once at build
// time and the lazily-filled ego-network/shortest-path caches shared
// across sessions.
type Graph struct {
	mu       sync.RWMutex
	year     int
	sessions map[int]*sessionGraph
	stats    map[int]Stats

	egoCache  *cache.LRUCache[string, []int]
	pathCache *cache.LRUCache[string, int]
}

// Build constructs the social graph for the given year from the
// attendee roster and historical bunk assignments. Construction failures
// are tolerated: a failed roster read yields a Graph with no sessions
// (every query then answers with defaults), matching the spec's
// "resolution proceeds without enhancement" fallback.
func Build(ctx context.Context, attendees repository.AttendeeRepository, year int) *Graph {
	log := obslog.FromContext(ctx)
	g := &Graph{
		year:      year,
		sessions:  make(map[int]*sessionGraph),
		stats:     make(map[int]Stats),
		egoCache:  cache.NewLRUCache[string, []int](5000, 0),
		pathCache: cache.NewLRUCache[string, int](20000, 0),
	}

	roster, err := attendees.ListByYear(ctx, year)
	if err != nil {
		log.Warn("social graph build failed, proceeding without enhancement", "year", year, "error", err.Error())
		return g
	}

	bySession := make(map[int][]model.Attendee)
	for _, a := range roster {
		bySession[a.SessionCMID] = append(bySession[a.SessionCMID], a)
	}

	personToSessions := make(map[int][]int, len(roster))
	allPersonIDs := make([]int, 0, len(roster))
	for _, a := range roster {
		personToSessions[a.PersonCMID] = append(personToSessions[a.PersonCMID], a.SessionCMID)
		allPersonIDs = append(allPersonIDs, a.PersonCMID)
	}

	for sessionCMID, attendeesInSession := range bySession {
		sg := newSessionGraph()
		addCurrentYearGroupings(sg, attendeesInSession)
		g.sessions[sessionCMID] = sg
	}

	addHistoricalBunking(ctx, g, attendees, allPersonIDs, personToSessions, year)

	for sessionCMID, sg := range g.sessions {
		g.stats[sessionCMID] = computeStats(sg)
	}

	return g
}

// addCurrentYearGroupings wires up the three current-year edge sources:
// siblings (family_cm_id), classmates ((school, grade)), bunkmates
// (current_bunk_id). Every attendee becomes a node; groups of size < 2
// contribute no edges.
func addCurrentYearGroupings(sg *sessionGraph, attendeesInSession []model.Attendee) {
	byFamily := make(map[int][]int)
	byClass := make(map[string][]int)
	byBunk := make(map[int][]int)

	for _, a := range attendeesInSession {
		sg.ensureNode(int64(a.PersonCMID))
		if a.FamilyCMID != nil {
			byFamily[*a.FamilyCMID] = append(byFamily[*a.FamilyCMID], a.PersonCMID)
		}
		if a.School != "" && a.Grade != nil {
			key := a.School + "|" + itoa(*a.Grade)
			byClass[key] = append(byClass[key], a.PersonCMID)
		}
		if a.CurrentBunkID != nil {
			byBunk[*a.CurrentBunkID] = append(byBunk[*a.CurrentBunkID], a.PersonCMID)
		}
	}

	addPairwise(sg, byFamily, RelationshipSibling)
	addPairwise(sg, byClass, RelationshipClassmate)
	addPairwise(sg, byBunk, RelationshipBunkmate)
}

func addPairwise[K comparable](sg *sessionGraph, groups map[K][]int, relType RelationshipType) {
	weight := baseWeight[relType]
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				sg.addEdge(int64(members[i]), int64(members[j]), relType, weight)
			}
		}
	}
}

// addHistoricalBunking adds decayed BUNKMATE edges for co-bunkers from
// years before year, restricted to pairs that share a current session
// (the session graph they'd be added to).
func addHistoricalBunking(ctx context.Context, g *Graph, attendees repository.AttendeeRepository, allPersonIDs []int, personToSessions map[int][]int, year int) {
	log := obslog.FromContext(ctx)

	var assignments []model.BunkAssignment
	for start := 0; start < len(allPersonIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(allPersonIDs) {
			end = len(allPersonIDs)
		}
		chunk, err := attendees.ListBunkAssignmentsBefore(ctx, allPersonIDs[start:end], year)
		if err != nil {
			log.Warn("historical bunk assignment query failed, skipping chunk", "error", err.Error())
			continue
		}
		assignments = append(assignments, chunk...)
	}

	byBunkYear := make(map[[2]int][]model.BunkAssignment)
	for _, a := range assignments {
		key := [2]int{a.Year, a.BunkID}
		byBunkYear[key] = append(byBunkYear[key], a)
	}

	for key, members := range byBunkYear {
		assignedYear := key[0]
		yearsAgo := year - assignedYear
		decay := 1.0 / (1.0 + historicalRecencyDecay*float64(yearsAgo))
		weight := baseWeight[RelationshipBunkmate] * decay

		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i].PersonCMID, members[j].PersonCMID
				for _, sessionCMID := range commonSessions(personToSessions[a], personToSessions[b]) {
					sg, ok := g.sessions[sessionCMID]
					if !ok {
						continue
					}
					if _, aPresent := sg.nodes[int64(a)]; !aPresent {
						continue
					}
					if _, bPresent := sg.nodes[int64(b)]; !bPresent {
						continue
					}
					sg.addEdge(int64(a), int64(b), RelationshipBunkmate, weight)
				}
			}
		}
	}
}

func commonSessions(a, b []int) []int {
	set := make(map[int]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	var out []int
	for _, s := range b {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

func computeStats(sg *sessionGraph) Stats {
	nodeCount := len(sg.nodes)
	edgeCount := len(sg.edgeAttrs)

	var density float64
	if nodeCount > 1 {
		density = (2.0 * float64(edgeCount)) / (float64(nodeCount) * float64(nodeCount-1))
	}

	var avgDegree float64
	if nodeCount > 0 {
		avgDegree = (2.0 * float64(edgeCount)) / float64(nodeCount)
	}

	components := countComponents(sg)

	stats := Stats{
		NodeCount:      nodeCount,
		EdgeCount:      edgeCount,
		Density:        density,
		ComponentCount: components,
		AverageDegree:  avgDegree,
	}

	if nodeCount >= 1000 {
		stats.ClusteringSkipped = true
		return stats
	}
	stats.ClusteringCoefficient = averageClusteringCoefficient(sg)
	return stats
}

func countComponents(sg *sessionGraph) int {
	visited := make(map[int64]bool, len(sg.nodes))
	components := 0
	for id := range sg.nodes {
		if visited[id] {
			continue
		}
		components++
		queue := []int64{id}
		visited[id] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, n := range sg.neighbors(cur) {
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
	}
	return components
}

func averageClusteringCoefficient(sg *sessionGraph) float64 {
	if len(sg.nodes) == 0 {
		return 0
	}
	var sum float64
	for id := range sg.nodes {
		neighbors := sg.neighbors(id)
		k := len(neighbors)
		if k < 2 {
			continue
		}
		links := 0
		for i := 0; i < len(neighbors); i++ {
			for j := i + 1; j < len(neighbors); j++ {
				if _, ok := sg.edgeBetween(neighbors[i], neighbors[j]); ok {
					links++
				}
			}
		}
		possible := float64(k*(k-1)) / 2.0
		sum += float64(links) / possible
	}
	return sum / float64(len(sg.nodes))
}

// Stats returns the computed metrics for a session's graph, the zero
// value if the session has no graph (never built, or build failed).
func (g *Graph) Stats(sessionCMID int) Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stats[sessionCMID]
}

// EgoNetwork returns personID's radius-1 neighbors in sessionCMID's
// graph, computed lazily and cached per (session, node).
func (g *Graph) EgoNetwork(sessionCMID, personID int) []int {
	key := cacheKeyFor(sessionCMID, personID)
	if cached, ok := g.egoCache.Get(key); ok {
		return cached
	}

	g.mu.RLock()
	sg, ok := g.sessions[sessionCMID]
	g.mu.RUnlock()
	if !ok {
		g.egoCache.Set(key, nil, 0)
		return nil
	}

	neighbors := sg.neighbors(int64(personID))
	out := make([]int, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, int(n))
	}
	g.egoCache.Set(key, out, 0)
	return out
}

// ShortestPathHops returns the unweighted hop distance between two
// people in a session's graph via breadth-first search, cached
// symmetrically by (min, max, session). Unreachable (or absent) pairs
// return model.InfiniteDistance.
func (g *Graph) ShortestPathHops(sessionCMID, aID, bID int) int {
	if aID == bID {
		return 0
	}
	lo, hi := aID, bID
	if lo > hi {
		lo, hi = hi, lo
	}
	key := pathCacheKey(sessionCMID, lo, hi)
	if cached, ok := g.pathCache.Get(key); ok {
		return cached
	}

	g.mu.RLock()
	sg, ok := g.sessions[sessionCMID]
	g.mu.RUnlock()
	if !ok {
		g.pathCache.Set(key, model.InfiniteDistance, 0)
		return model.InfiniteDistance
	}
	if _, ok := sg.nodes[int64(aID)]; !ok {
		g.pathCache.Set(key, model.InfiniteDistance, 0)
		return model.InfiniteDistance
	}
	if _, ok := sg.nodes[int64(bID)]; !ok {
		g.pathCache.Set(key, model.InfiniteDistance, 0)
		return model.InfiniteDistance
	}

	dist := model.InfiniteDistance
	var bf traverse.BreadthFirst
	bf.Walk(sg.g, simple.Node(int64(aID)), func(n graph.Node, d int) bool {
		if n.ID() == int64(bID) {
			dist = d
			return true
		}
		return false
	})

	g.pathCache.Set(key, dist, 0)
	return dist
}

// DirectEdge returns the relationship types and weight of a direct edge
// between two people in a session's graph, if one exists.
func (g *Graph) DirectEdge(sessionCMID, aID, bID int) (types []RelationshipType, weight float64, informationalOnly bool, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sg, sessionOK := g.sessions[sessionCMID]
	if !sessionOK {
		return nil, 0, false, false
	}
	e, found := sg.edgeBetween(int64(aID), int64(bID))
	if !found {
		return nil, 0, false, false
	}
	return append([]RelationshipType(nil), e.types...), e.weight, e.informationalOnly(), true
}

// MutualConnections returns the cm_ids common to both people's direct
// neighbor sets in a session's graph.
func (g *Graph) MutualConnections(sessionCMID, aID, bID int) []int {
	g.mu.RLock()
	sg, ok := g.sessions[sessionCMID]
	g.mu.RUnlock()
	if !ok {
		return nil
	}
	aNeighbors := sg.neighbors(int64(aID))
	bSet := make(map[int64]bool, len(sg.neighbors(int64(bID))))
	for _, n := range sg.neighbors(int64(bID)) {
		bSet[n] = true
	}
	var out []int
	for _, n := range aNeighbors {
		if bSet[n] {
			out = append(out, int(n))
		}
	}
	return out
}

// GetSocialSignals builds the SocialSignals summary for one
// (requester, target) pair within a session, the consumer-facing query
// the spec names get_social_signals.
func (g *Graph) GetSocialSignals(sessionCMID, requesterCMID, targetCMID int) model.SocialSignals {
	signals := model.DefaultSocialSignals()
	signals.FoundBy = "social_graph"

	g.mu.RLock()
	_, sessionExists := g.sessions[sessionCMID]
	g.mu.RUnlock()
	if !sessionExists {
		return signals
	}

	ego := g.EgoNetwork(sessionCMID, requesterCMID)
	for _, n := range ego {
		if n == targetCMID {
			signals.InEgoNetwork = true
			break
		}
	}
	signals.EgoNetworkSize = len(ego)

	dist := g.ShortestPathHops(sessionCMID, requesterCMID, targetCMID)
	signals.SocialDistance = dist
	signals.InSameComponent = dist < model.InfiniteDistance

	signals.MutualConnections = len(g.MutualConnections(sessionCMID, requesterCMID, targetCMID))
	signals.NetworkDensity = g.Stats(sessionCMID).Density

	if types, weight, _, ok := g.DirectEdge(sessionCMID, requesterCMID, targetCMID); ok {
		signals.RelationshipStrength = weight
		for _, t := range types {
			signals.RelationshipTypes = append(signals.RelationshipTypes, string(t))
		}
	}

	return signals
}

// FindIsolatedCampers returns the cm_ids in a session's graph whose
// degree is at or below threshold, sorted ascending.
func (g *Graph) FindIsolatedCampers(sessionCMID, threshold int) []int {
	g.mu.RLock()
	sg, ok := g.sessions[sessionCMID]
	g.mu.RUnlock()
	if !ok {
		return nil
	}

	var out []int
	for id := range sg.nodes {
		if len(sg.neighbors(id)) <= threshold {
			out = append(out, int(id))
		}
	}
	sort.Ints(out)
	return out
}

// FriendGroup is one community detected in a session's graph: the member
// cm_ids plus the density/cohesion metrics that rank groups against each
// other.
type FriendGroup struct {
	Members  []int
	Density  float64
	Cohesion float64
}

// DetectFriendGroups partitions a session's graph into member-sized
// [min, max] friend groups. It runs the node-moving phase of Louvain
// modularity optimization first; if that partition surfaces no group in
// range, it falls back to gonum's Bron-Kerbosch maximal-clique search.
// Groups are returned sorted by cohesion, most cohesive first.
func (g *Graph) DetectFriendGroups(sessionCMID, min, max int) []FriendGroup {
	g.mu.RLock()
	sg, ok := g.sessions[sessionCMID]
	g.mu.RUnlock()
	if !ok {
		return nil
	}

	var groups []FriendGroup
	for _, members := range louvainCommunities(sg) {
		if len(members) >= min && len(members) <= max {
			groups = append(groups, buildFriendGroup(sg, members))
		}
	}

	if len(groups) == 0 {
		for _, clique := range maximalCliques(sg) {
			if len(clique) >= min && len(clique) <= max {
				groups = append(groups, buildFriendGroup(sg, clique))
			}
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Cohesion > groups[j].Cohesion })
	return groups
}

// louvainCommunities runs a single-level Louvain node-moving pass
// (Blondel et al.): each node starts in its own community and repeatedly
// moves to whichever neighboring community most increases modularity,
// until a full pass produces no move or maxPasses is reached. This
// covers the "Louvain community detection" half of detectFriendGroups
// without the hierarchical aggregation phase, which a single session's
// graph (at most a few hundred nodes) never needs.
func louvainCommunities(sg *sessionGraph) [][]int64 {
	const maxPasses = 20

	nodes := make([]int64, 0, len(sg.nodes))
	for id := range sg.nodes {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	if len(nodes) == 0 {
		return nil
	}

	degree := make(map[int64]float64, len(nodes))
	var totalWeight float64
	for _, id := range nodes {
		for _, n := range sg.neighbors(id) {
			if e, ok := sg.edgeBetween(id, n); ok {
				degree[id] += e.weight
			}
		}
	}
	for _, e := range sg.edgeAttrs {
		totalWeight += e.weight
	}
	if totalWeight == 0 {
		out := make([][]int64, len(nodes))
		for i, id := range nodes {
			out[i] = []int64{id}
		}
		return out
	}

	community := make(map[int64]int64, len(nodes))
	commWeight := make(map[int64]float64, len(nodes))
	for _, id := range nodes {
		community[id] = id
		commWeight[id] = degree[id]
	}

	for pass := 0; pass < maxPasses; pass++ {
		moved := false
		for _, id := range nodes {
			curComm := community[id]
			ki := degree[id]
			commWeight[curComm] -= ki

			neighborWeightByComm := make(map[int64]float64)
			for _, n := range sg.neighbors(id) {
				if e, ok := sg.edgeBetween(id, n); ok {
					neighborWeightByComm[community[n]] += e.weight
				}
			}

			bestComm := curComm
			bestGain := neighborWeightByComm[curComm] - commWeight[curComm]*ki/(2*totalWeight)
			for c, kiIn := range neighborWeightByComm {
				gain := kiIn - commWeight[c]*ki/(2*totalWeight)
				if gain > bestGain {
					bestGain = gain
					bestComm = c
				}
			}

			community[id] = bestComm
			commWeight[bestComm] += ki
			if bestComm != curComm {
				moved = true
			}
		}
		if !moved {
			break
		}
	}

	grouped := make(map[int64][]int64, len(nodes))
	for _, id := range nodes {
		c := community[id]
		grouped[c] = append(grouped[c], id)
	}
	out := make([][]int64, 0, len(grouped))
	for _, members := range grouped {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		out = append(out, members)
	}
	return out
}

// maximalCliques wraps gonum's Bron-Kerbosch maximal-clique enumeration
// over a session's graph.
func maximalCliques(sg *sessionGraph) [][]int64 {
	cliques := topo.BronKerbosch(sg.g)
	out := make([][]int64, 0, len(cliques))
	for _, c := range cliques {
		members := make([]int64, 0, len(c))
		for _, n := range c {
			members = append(members, n.ID())
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		out = append(out, members)
	}
	return out
}

// buildFriendGroup computes a FriendGroup's density (actual edges over
// the maximum possible among its members) and cohesion (density times
// mean edge weight, clamped to 1.0).
func buildFriendGroup(sg *sessionGraph, members []int64) FriendGroup {
	n := len(members)
	var edgeCount int
	var weightSum float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if e, ok := sg.edgeBetween(members[i], members[j]); ok {
				edgeCount++
				weightSum += e.weight
			}
		}
	}

	var density, meanWeight float64
	if maxPossible := float64(n*(n-1)) / 2.0; maxPossible > 0 {
		density = float64(edgeCount) / maxPossible
	}
	if edgeCount > 0 {
		meanWeight = weightSum / float64(edgeCount)
	}
	cohesion := density * meanWeight
	if cohesion > 1.0 {
		cohesion = 1.0
	}

	out := make([]int, n)
	for i, id := range members {
		out[i] = int(id)
	}
	return FriendGroup{Members: out, Density: density, Cohesion: cohesion}
}

func cacheKeyFor(sessionCMID, personID int) string {
	return strconv.Itoa(sessionCMID) + ":" + strconv.Itoa(personID)
}

func pathCacheKey(sessionCMID int, lo, hi int64) string {
	return strconv.Itoa(sessionCMID) + ":" + strconv.FormatInt(lo, 10) + ":" + strconv.FormatInt(hi, 10)
}

func itoa(v int) string { return strconv.Itoa(v) }
