package phase2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/pipeline"
	"github.com/camp/kindred/internal/bunking/repository/memstore"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	p := pipeline.New(store, store)
	return New(p, store, store), store
}

func namedRequest(name string) model.ParsedRequest {
	return model.ParsedRequest{
		RawText:     "I want to bunk with " + name,
		RequestType: model.RequestBunkWith,
		Target:      model.NamedTarget(name),
	}
}

func TestBatchResolve_EmptyInput(t *testing.T) {
	svc, _ := newTestService(t)
	results, err := svc.BatchResolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestBatchResolve_AgePreferencePassesThrough(t *testing.T) {
	svc, _ := newTestService(t)

	pr := model.ParseResult{
		Valid: true,
		Context: model.ParseRequestContext{
			RequesterCMID: 1, SessionCMID: 100, Year: 2026,
		},
		ParsedRequests: []model.ParsedRequest{
			{RequestType: model.RequestAgePreference, Target: model.AgePreferenceTarget(model.AgeOlder)},
		},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Results, 1)
	assert.Equal(t, MethodAgePreference, results[0].Results[0].Method)
	assert.Equal(t, 1.0, results[0].Results[0].Confidence)
	assert.Equal(t, 1, svc.Stats().AgePreferences)
}

func TestBatchResolve_SiblingSentinelPassesThrough(t *testing.T) {
	svc, _ := newTestService(t)

	pr := model.ParseResult{
		Valid:   true,
		Context: model.ParseRequestContext{RequesterCMID: 1, SessionCMID: 100, Year: 2026},
		ParsedRequests: []model.ParsedRequest{
			{RequestType: model.RequestBunkWith, Target: model.SiblingTarget()},
		},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	require.Len(t, results[0].Results, 1)
	assert.Equal(t, model.MethodSibling, results[0].Results[0].Method)
}

func TestBatchResolve_InvalidParseResultGetsFailedPlaceholder(t *testing.T) {
	svc, _ := newTestService(t)

	pr := model.ParseResult{
		Valid:          false,
		ParsedRequests: []model.ParsedRequest{namedRequest("Mike Smith")},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	require.Len(t, results[0].Results, 1)
	assert.Equal(t, MethodInvalidParse, results[0].Results[0].Method)
}

func TestBatchResolve_StaffNameFiltered(t *testing.T) {
	svc, _ := newTestService(t)
	svc.WithStaffNameFilter(func(name string) bool { return name == "Ms. Johnson" })

	pr := model.ParseResult{
		Valid:   true,
		Context: model.ParseRequestContext{RequesterCMID: 1, SessionCMID: 100, Year: 2026},
		ParsedRequests: []model.ParsedRequest{
			namedRequest("Ms. Johnson"),
		},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	require.Len(t, results[0].Results, 1)
	assert.Equal(t, MethodStaffFiltered, results[0].Results[0].Method)
	assert.False(t, results[0].Results[0].IsResolved())
	assert.Equal(t, 1, svc.Stats().StaffFiltered)
}

func TestBatchResolve_PriorBunkmateExactMatch(t *testing.T) {
	svc, store := newTestService(t)

	store.PutPerson(model.Person{CMID: 2, FirstName: "Mike", LastName: "Smith"})
	store.PutBunkAssignment(model.BunkAssignment{PersonCMID: 1, Year: 2025, BunkID: 42})
	store.PutBunkAssignment(model.BunkAssignment{PersonCMID: 2, Year: 2025, BunkID: 42})

	req := namedRequest("Mike Smith")
	req.RawText = "I want to bunk with Mike Smith from last year"
	req.KeywordsFound = []string{"from last year"}

	pr := model.ParseResult{
		Valid:          true,
		Context:        model.ParseRequestContext{RequesterCMID: 1, SessionCMID: 100, Year: 2026},
		ParsedRequests: []model.ParsedRequest{req},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	require.Len(t, results[0].Results, 1)
	got := results[0].Results[0]
	require.True(t, got.IsResolved())
	assert.Equal(t, 2, got.Person.CMID)
	assert.Equal(t, MethodPriorBunkmateExact, got.Method)
	assert.InDelta(t, 0.95, got.Confidence, 0.001)
	assert.Equal(t, 1, svc.Stats().PriorBunkmateResolved)
}

func TestBatchResolve_AIProvidedIDValidated(t *testing.T) {
	svc, store := newTestService(t)
	store.PutPerson(model.Person{CMID: 7, FirstName: "Jordan", LastName: "Lee"})

	req := namedRequest("Jordan Lee")
	req.AIHint = model.AiHint{Kind: model.AiHintSingleID, SingleID: 7}
	req.MatchCertainty = model.MatchExact

	pr := model.ParseResult{
		Valid:          true,
		Context:        model.ParseRequestContext{RequesterCMID: 1, SessionCMID: 100, Year: 2026},
		ParsedRequests: []model.ParsedRequest{req},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	got := results[0].Results[0]
	require.True(t, got.IsResolved())
	assert.Equal(t, 7, got.Person.CMID)
	assert.Equal(t, MethodAIIDValidated, got.Method)
	assert.Equal(t, 1, svc.Stats().AIValidatedResolved)
}

func TestBatchResolve_AIProvidedIDHallucinationFallsThrough(t *testing.T) {
	svc, store := newTestService(t)
	store.PutPerson(model.Person{CMID: 7, FirstName: "Jordan", LastName: "Lee"})

	req := namedRequest("Completely Different Name")
	req.AIHint = model.AiHint{Kind: model.AiHintSingleID, SingleID: 7}
	req.MatchCertainty = model.MatchExact

	pr := model.ParseResult{
		Valid:          true,
		Context:        model.ParseRequestContext{RequesterCMID: 1, SessionCMID: 100, Year: 2026},
		ParsedRequests: []model.ParsedRequest{req},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	got := results[0].Results[0]
	assert.False(t, got.IsResolved())
	assert.Equal(t, 1, svc.Stats().AIHallucinationsDetected)
}

func TestBatchResolve_AICandidateListDisambiguates(t *testing.T) {
	svc, store := newTestService(t)
	store.PutPerson(model.Person{CMID: 10, FirstName: "Sam", LastName: "A", Grade: intPtr(5)})
	store.PutPerson(model.Person{CMID: 11, FirstName: "Sam", LastName: "B", Grade: intPtr(9)})
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100, Grade: intPtr(5)})
	store.PutAttendee(model.Attendee{PersonCMID: 10, Year: 2026, SessionCMID: 100})
	store.PutAttendee(model.Attendee{PersonCMID: 11, Year: 2026, SessionCMID: 200})

	req := namedRequest("Sam")
	req.AIHint = model.AiHint{Kind: model.AiHintCandidateList, CandidateIDs: []int{10, 11}}

	pr := model.ParseResult{
		Valid: true,
		Context: model.ParseRequestContext{
			RequesterCMID: 1, RequesterGrade: intPtr(5), SessionCMID: 100, Year: 2026,
		},
		ParsedRequests: []model.ParsedRequest{req},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	got := results[0].Results[0]
	require.True(t, got.IsResolved())
	assert.Equal(t, 10, got.Person.CMID)
	assert.Equal(t, MethodAICandidateDisambiguated, got.Method)
	assert.LessOrEqual(t, got.Confidence, 0.75)
	assert.Equal(t, 1, svc.Stats().AICandidateResolved)
}

func TestBatchResolve_PreservesPerSubmissionResultCount(t *testing.T) {
	svc, store := newTestService(t)
	store.PutPerson(model.Person{CMID: 2, FirstName: "Mike", LastName: "Smith"})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100})

	pr := model.ParseResult{
		Valid:   true,
		Context: model.ParseRequestContext{RequesterCMID: 1, SessionCMID: 100, Year: 2026},
		ParsedRequests: []model.ParsedRequest{
			namedRequest("Mike Smith"),
			{RequestType: model.RequestAgePreference, Target: model.AgePreferenceTarget(model.AgeYounger)},
			{RequestType: model.RequestBunkWith, Target: model.LastYearBunkmatesTarget()},
		},
	}

	results, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Results, len(pr.ParsedRequests))
}

func TestStats_AccumulateAcrossCalls(t *testing.T) {
	svc, _ := newTestService(t)
	svc.WithStaffNameFilter(func(name string) bool { return true })

	pr := model.ParseResult{
		Valid:          true,
		Context:        model.ParseRequestContext{RequesterCMID: 1, SessionCMID: 100, Year: 2026},
		ParsedRequests: []model.ParsedRequest{namedRequest("Anyone")},
	}

	_, err := svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)
	_, err = svc.BatchResolve(context.Background(), []model.ParseResult{pr})
	require.NoError(t, err)

	assert.Equal(t, 2, svc.Stats().StaffFiltered)

	svc.ResetStats()
	assert.Equal(t, 0, svc.Stats().StaffFiltered)
}

var _ = strPtr
