package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/repository/memstore"
)

func testConfig(t *testing.T) config.StrategyConfidence {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg.Strategy
}

func seedBasicStore(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()
	store.PutPerson(model.Person{CMID: 1, FirstName: "Jake", LastName: "Miller"})
	store.PutPerson(model.Person{CMID: 2, FirstName: "Mike", LastName: "Smith"})
	store.PutPerson(model.Person{CMID: 3, FirstName: "Michael", LastName: "Smith"})
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100})
	store.PutAttendee(model.Attendee{PersonCMID: 3, Year: 2026, SessionCMID: 200})
	return store
}

func TestExactStrategy_ResolveWithContext_UniqueSameSession(t *testing.T) {
	store := seedBasicStore(t)
	strat := NewExactStrategy(store, store)

	candidates := []model.Person{{CMID: 1, FirstName: "Jake", LastName: "Miller"}}
	attendeeInfo := map[int]AttendeeInfo{1: {SessionCMID: 100}}
	sessionCMID := 100

	res, err := strat.ResolveWithContext(context.Background(), "Jake Miller", 99, &sessionCMID, nil, candidates, attendeeInfo, nil)
	require.NoError(t, err)
	require.True(t, res.IsResolved())
	assert.Equal(t, 1, res.Person.CMID)
	assert.InDelta(t, exactUniqueSameSession, res.Confidence, 0.001)
}

func TestExactStrategy_ResolveWithContext_AmbiguousAcrossSessions(t *testing.T) {
	candidates := []model.Person{
		{CMID: 2, FirstName: "Mike", LastName: "Smith"},
		{CMID: 3, FirstName: "Mike", LastName: "Smith"},
	}
	store := seedBasicStore(t)
	strat := NewExactStrategy(store, store)

	attendeeInfo := map[int]AttendeeInfo{2: {SessionCMID: 100}}
	sessionCMID := 999

	res, err := strat.ResolveWithContext(context.Background(), "Mike Smith", 99, &sessionCMID, nil, candidates, attendeeInfo, nil)
	require.NoError(t, err)
	assert.False(t, res.IsResolved())
}

func TestFuzzyStrategy_NicknameMatch(t *testing.T) {
	store := memstore.New()
	store.PutPerson(model.Person{CMID: 1, FirstName: "Michael", LastName: "Johnson"})
	strat := NewFuzzyStrategy(store, store, testConfig(t), nil)

	candidates := []model.Person{{CMID: 1, FirstName: "Michael", LastName: "Johnson"}}
	res, err := strat.ResolveWithContext(context.Background(), "Mike Johnson", 99, nil, nil, candidates, nil, nil)
	require.NoError(t, err)
	require.True(t, res.IsResolved())
	assert.Equal(t, model.MethodFuzzyNickname, res.Method)
}

func TestPhoneticStrategy_SoundexMatch(t *testing.T) {
	store := memstore.New()
	store.PutPerson(model.Person{CMID: 1, FirstName: "Jon", LastName: "Carter"})
	cfg := testConfig(t)
	strat := NewPhoneticStrategy(store, store, cfg)

	allPersons := []model.Person{{CMID: 1, FirstName: "Jon", LastName: "Carter"}}
	res, err := strat.ResolveWithContext(context.Background(), "John Carter", 99, nil, nil, nil, nil, allPersons)
	require.NoError(t, err)
	require.True(t, res.IsResolved())
	assert.Equal(t, model.MethodPhoneticSoundex, res.Method)
}

func TestSchoolDisambiguationStrategy_NarrowsBySchool(t *testing.T) {
	strat := NewSchoolDisambiguationStrategy(nil, nil)

	candidates := []model.Person{
		{CMID: 1, FirstName: "Mike", LastName: "Smith", School: "Lincoln Elementary"},
		{CMID: 2, FirstName: "Mike", LastName: "Smith", School: "Roosevelt Middle"},
	}
	requesterInfo := AttendeeInfo{School: "Lincoln Elementary"}

	res := strat.Disambiguate(candidates, requesterInfo, true)
	require.True(t, res.IsResolved())
	assert.Equal(t, 1, res.Person.CMID)
	assert.InDelta(t, schoolSingleNoGrade, res.Confidence, 0.001)
}

func TestSchoolDisambiguationStrategy_AbbreviatedSchoolName(t *testing.T) {
	strat := NewSchoolDisambiguationStrategy(nil, nil)

	candidates := []model.Person{
		{CMID: 1, FirstName: "Mike", LastName: "Smith", School: "Lincoln MS"},
		{CMID: 2, FirstName: "Mike", LastName: "Smith", School: "Roosevelt HS"},
	}
	requesterInfo := AttendeeInfo{School: "Lincoln Middle School"}

	res := strat.Disambiguate(candidates, requesterInfo, true)
	require.True(t, res.IsResolved())
	assert.Equal(t, 1, res.Person.CMID)
}

func TestSchoolDisambiguationStrategy_GradeBreaksSameSchoolTie(t *testing.T) {
	strat := NewSchoolDisambiguationStrategy(nil, nil)
	grade6 := 6
	grade8 := 8

	candidates := []model.Person{
		{CMID: 1, FirstName: "Mike", LastName: "Smith", School: "Lincoln Elementary", Grade: &grade6},
		{CMID: 2, FirstName: "Mike", LastName: "Smith", School: "Lincoln Elementary", Grade: &grade8},
	}
	requesterInfo := AttendeeInfo{School: "Lincoln Elementary", Grade: &grade6}

	res := strat.Disambiguate(candidates, requesterInfo, true)
	require.True(t, res.IsResolved())
	assert.Equal(t, 1, res.Person.CMID)
	assert.InDelta(t, schoolSameGrade, res.Confidence, 0.001)
}

func TestSchoolDisambiguationStrategy_NoLocationSignal(t *testing.T) {
	strat := NewSchoolDisambiguationStrategy(nil, nil)

	candidates := []model.Person{
		{CMID: 1, FirstName: "Mike", LastName: "Smith"},
		{CMID: 2, FirstName: "Mike", LastName: "Smith"},
	}

	res := strat.Disambiguate(candidates, AttendeeInfo{}, false)
	assert.False(t, res.IsResolved())
	assert.True(t, res.IsAmbiguous())
}

func TestSchoolDisambiguationStrategy_NoRequesterSchoolKeepsAllCandidates(t *testing.T) {
	strat := NewSchoolDisambiguationStrategy(nil, nil)

	candidates := []model.Person{
		{CMID: 1, FirstName: "Mike", LastName: "Smith", School: "Lincoln Elementary"},
		{CMID: 2, FirstName: "Mike", LastName: "Smith", School: "Roosevelt Middle"},
	}

	res := strat.Disambiguate(candidates, AttendeeInfo{}, true)
	assert.False(t, res.IsResolved())
	require.Len(t, res.Candidates, 2)
}

func TestSchoolDisambiguationStrategy_Resolve_SingleExactMatch(t *testing.T) {
	store := memstore.New()
	store.PutPerson(model.Person{CMID: 1, FirstName: "Jake", LastName: "Miller"})
	strat := NewSchoolDisambiguationStrategy(store, store)

	res, err := strat.Resolve(context.Background(), "Jake Miller", 99, nil, nil)
	require.NoError(t, err)
	require.True(t, res.IsResolved())
	assert.Equal(t, 1, res.Person.CMID)
	assert.InDelta(t, schoolSingleExactMatch, res.Confidence, 0.001)
}
