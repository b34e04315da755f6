package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/repository/memstore"
)

func intPtr(v int) *int { return &v }

func buildSiblingStore(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100, FamilyCMID: intPtr(500)})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100, FamilyCMID: intPtr(500)})
	store.PutAttendee(model.Attendee{PersonCMID: 3, Year: 2026, SessionCMID: 100, School: "Lincoln", Grade: intPtr(5)})
	store.PutAttendee(model.Attendee{PersonCMID: 4, Year: 2026, SessionCMID: 100, School: "Lincoln", Grade: intPtr(5)})
	store.PutAttendee(model.Attendee{PersonCMID: 5, Year: 2026, SessionCMID: 100, CurrentBunkID: intPtr(900)})
	store.PutAttendee(model.Attendee{PersonCMID: 6, Year: 2026, SessionCMID: 100, CurrentBunkID: intPtr(900)})
	return store
}

func TestBuild_SiblingEdge(t *testing.T) {
	store := buildSiblingStore(t)
	g := Build(context.Background(), store, 2026)

	types, weight, informational, ok := g.DirectEdge(100, 1, 2)
	require.True(t, ok)
	assert.Equal(t, []RelationshipType{RelationshipSibling}, types)
	assert.InDelta(t, baseWeight[RelationshipSibling], weight, 0.001)
	assert.False(t, informational)
}

func TestBuild_ClassmateAndBunkmateGroupsAreIndependent(t *testing.T) {
	store := buildSiblingStore(t)
	g := Build(context.Background(), store, 2026)

	_, _, _, classmateOK := g.DirectEdge(100, 3, 4)
	assert.True(t, classmateOK)

	_, _, _, bunkmateOK := g.DirectEdge(100, 5, 6)
	assert.True(t, bunkmateOK)

	_, _, _, crossOK := g.DirectEdge(100, 1, 3)
	assert.False(t, crossOK)
}

func TestBuild_DuplicateEdgeMerges(t *testing.T) {
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100, FamilyCMID: intPtr(500), CurrentBunkID: intPtr(900)})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100, FamilyCMID: intPtr(500), CurrentBunkID: intPtr(900)})

	g := Build(context.Background(), store, 2026)

	types, weight, informational, ok := g.DirectEdge(100, 1, 2)
	require.True(t, ok)
	assert.ElementsMatch(t, []RelationshipType{RelationshipSibling, RelationshipBunkmate}, types)
	assert.InDelta(t, baseWeight[RelationshipSibling]+0.5*baseWeight[RelationshipBunkmate], weight, 0.001)
	assert.True(t, informational)
}

func TestBuild_HistoricalBunkingDecaysWithAge(t *testing.T) {
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100})
	store.PutBunkAssignment(model.BunkAssignment{PersonCMID: 1, Year: 2024, BunkID: 42})
	store.PutBunkAssignment(model.BunkAssignment{PersonCMID: 2, Year: 2024, BunkID: 42})

	g := Build(context.Background(), store, 2026)

	types, weight, _, ok := g.DirectEdge(100, 1, 2)
	require.True(t, ok)
	assert.Equal(t, []RelationshipType{RelationshipBunkmate}, types)
	expected := baseWeight[RelationshipBunkmate] / (1 + historicalRecencyDecay*2)
	assert.InDelta(t, expected, weight, 0.001)
}

func TestShortestPathHops(t *testing.T) {
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100, FamilyCMID: intPtr(1)})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100, FamilyCMID: intPtr(1), CurrentBunkID: intPtr(900)})
	store.PutAttendee(model.Attendee{PersonCMID: 3, Year: 2026, SessionCMID: 100, CurrentBunkID: intPtr(900)})

	g := Build(context.Background(), store, 2026)

	assert.Equal(t, 2, g.ShortestPathHops(100, 1, 3))
	assert.Equal(t, model.InfiniteDistance, g.ShortestPathHops(100, 1, 999))
}

func TestRelationshipAnalyzer_ConfidenceBoost(t *testing.T) {
	store := buildSiblingStore(t)
	g := Build(context.Background(), store, 2026)
	analyzer := NewRelationshipAnalyzer(g)

	ctx := analyzer.BuildContext(100, 1, []model.Person{{CMID: 2}})
	entry := ctx[2]
	assert.True(t, entry.IsSibling)
	assert.InDelta(t, siblingBoost, analyzer.ConfidenceBoost(entry), 0.001)
}

func TestSmartResolver_AutoResolvesOnStrongMargin(t *testing.T) {
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100, FamilyCMID: intPtr(1)})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100, FamilyCMID: intPtr(1)})
	store.PutAttendee(model.Attendee{PersonCMID: 3, Year: 2026, SessionCMID: 100})

	g := Build(context.Background(), store, 2026)
	cfg := config.SmartResolution{
		Enabled:                        true,
		SignificantConnectionThreshold: 5,
		MinConnectionsForAutoResolve:   3,
		MinConfidenceForAutoResolve:    0.7,
		MutualRequestBonus:             10,
		CommonFriendsWeight:            1.0,
		HistoricalBunkingWeight:        0.8,
		ConnectionScoreWeight:          1.0,
	}

	resolver := NewSmartResolver(g, cfg)
	mutual := map[int]bool{2: true}

	result, sorted := resolver.Resolve(100, 1, []model.Person{{CMID: 3}, {CMID: 2}}, mutual)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Person.CMID)
	require.Len(t, sorted, 2)
	assert.Equal(t, 2, sorted[0].CMID)
}

func TestFindIsolatedCampers_ReturnsLowDegreeNodes(t *testing.T) {
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100, School: "Lincoln", Grade: intPtr(5)})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100, School: "Lincoln", Grade: intPtr(5)})
	store.PutAttendee(model.Attendee{PersonCMID: 3, Year: 2026, SessionCMID: 100})

	g := Build(context.Background(), store, 2026)

	isolated := g.FindIsolatedCampers(100, 0)
	assert.Equal(t, []int{3}, isolated)
}

func TestFindIsolatedCampers_UnknownSessionReturnsNil(t *testing.T) {
	store := memstore.New()
	g := Build(context.Background(), store, 2026)
	assert.Nil(t, g.FindIsolatedCampers(999, 1))
}

func TestDetectFriendGroups_FindsTightTriangle(t *testing.T) {
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100, School: "Lincoln", Grade: intPtr(5), CurrentBunkID: intPtr(900)})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100, School: "Lincoln", Grade: intPtr(5), CurrentBunkID: intPtr(900)})
	store.PutAttendee(model.Attendee{PersonCMID: 3, Year: 2026, SessionCMID: 100, School: "Lincoln", Grade: intPtr(5), CurrentBunkID: intPtr(900)})
	store.PutAttendee(model.Attendee{PersonCMID: 4, Year: 2026, SessionCMID: 100})

	g := Build(context.Background(), store, 2026)

	groups := g.DetectFriendGroups(100, 3, 8)
	require.NotEmpty(t, groups)
	assert.ElementsMatch(t, []int{1, 2, 3}, groups[0].Members)
	assert.InDelta(t, 1.0, groups[0].Density, 0.001)
	assert.Greater(t, groups[0].Cohesion, 0.0)
	assert.LessOrEqual(t, groups[0].Cohesion, 1.0)
}

func TestDetectFriendGroups_UnknownSessionReturnsNil(t *testing.T) {
	store := memstore.New()
	g := Build(context.Background(), store, 2026)
	assert.Nil(t, g.DetectFriendGroups(999, 3, 8))
}

func TestSmartResolver_NoAutoResolveWithoutMargin(t *testing.T) {
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100})
	store.PutAttendee(model.Attendee{PersonCMID: 3, Year: 2026, SessionCMID: 100})

	g := Build(context.Background(), store, 2026)
	cfg, err := config.Load("")
	require.NoError(t, err)

	resolver := NewSmartResolver(g, cfg.SmartResolution)
	result, sorted := resolver.Resolve(100, 1, []model.Person{{CMID: 2}, {CMID: 3}}, nil)
	assert.Nil(t, result)
	require.Len(t, sorted, 2)
}
