package confidence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/repository/memstore"
)

func testConfidenceConfig(t *testing.T) config.ConfidenceScoring {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg.ConfidenceScoring
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestScoreAgePreference_UsesOnlyAIConfidence(t *testing.T) {
	s := New(testConfidenceConfig(t), nil, nil, nil)
	req := model.ParsedRequest{RequestType: model.RequestAgePreference, AIConfidence: 0.73}
	assert.InDelta(t, 0.73, s.ScoreParsedRequest(req, nil), 0.001)
}

func TestScoreBunkWith_ExactMatchCurrentYear(t *testing.T) {
	cfg := testConfidenceConfig(t)
	s := New(cfg, nil, nil, nil)

	req := model.ParsedRequest{RequestType: model.RequestBunkWith, AIConfidence: 1.0, Target: model.NamedTarget("Mike Smith")}
	person := model.Person{CMID: 2}
	result := model.NewResolutionResult(&person, 0.95, model.MethodExact, nil, nil)

	signals := s.signalsFromParsedRequest(req, &result)
	signals.FoundInCurrentYear = true
	score := s.scoreBunkWith(signals)

	expected := cfg.BunkWith.Weights.NameMatch*1.0 +
		cfg.BunkWith.Weights.AIParsing*1.0 +
		cfg.BunkWith.Weights.Context*cfg.BunkWith.ContextScores.CurrentYear
	assert.InDelta(t, expected, score, 0.001)
}

func TestScoreResolution_FoundInCurrentYearBeatsPreviousYearOnly(t *testing.T) {
	cfg := testConfidenceConfig(t)
	store := memstore.New()
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100})
	s := New(cfg, store, nil, nil)

	req := model.ParsedRequest{RequestType: model.RequestBunkWith, AIConfidence: 0.9, Target: model.NamedTarget("Mike Smith")}
	person := model.Person{CMID: 2}
	result := model.NewResolutionResult(&person, 0.95, model.MethodExact, nil, nil)

	scoreCurrent := s.ScoreResolution(context.Background(), req, result, 1, 100, 2026)

	emptyStore := memstore.New()
	sNoEnrollment := New(cfg, emptyStore, nil, nil)
	scoreNone := sNoEnrollment.ScoreResolution(context.Background(), req, result, 1, 100, 2026)

	assert.Greater(t, scoreCurrent, scoreNone)
}

func TestScoreResolution_AIProvidedIDAppliesBoost(t *testing.T) {
	cfg := testConfidenceConfig(t)
	s := New(cfg, memstore.New(), nil, nil)

	person := model.Person{CMID: 2}
	result := model.NewResolutionResult(&person, 0.95, model.MethodExact, nil, map[string]any{"ai_provided_person_id": true})
	req := model.ParsedRequest{RequestType: model.RequestBunkWith, AIConfidence: 0.5, Target: model.NamedTarget("Mike Smith")}

	boosted := s.ScoreResolution(context.Background(), req, result, 1, 100, 2026)

	resultNoFlag := model.NewResolutionResult(&person, 0.95, model.MethodExact, nil, nil)
	unboosted := s.ScoreResolution(context.Background(), req, resultNoFlag, 1, 100, 2026)

	assert.InDelta(t, unboosted+cfg.AIBoost, boosted, 0.001)
}

func TestScoreNotBunkWith_WeighsNameMatchMoreHeavily(t *testing.T) {
	cfg := testConfidenceConfig(t)
	s := New(cfg, nil, nil, nil)

	req := model.ParsedRequest{RequestType: model.RequestNotBunkWith, AIConfidence: 0.5}
	person := model.Person{CMID: 2}
	exact := model.NewResolutionResult(&person, 0.95, model.MethodExact, nil, nil)
	ambiguous := model.NewResolutionResult(nil, 0, model.MethodFuzzyNickname, []model.Person{{CMID: 2}, {CMID: 3}}, nil)

	exactScore := s.ScoreParsedRequest(req, &exact)
	ambiguousScore := s.ScoreParsedRequest(req, &ambiguous)

	assert.Greater(t, exactScore, ambiguousScore)
}

func TestSignalsFromResolution_GradeAndAgeProximity(t *testing.T) {
	cfg := testConfidenceConfig(t)
	persons := memstore.New()
	persons.PutPerson(model.Person{CMID: 1, Grade: intPtr(5), BirthDate: strPtr("2015-06-01")})
	target := model.Person{CMID: 2, Grade: intPtr(7), BirthDate: strPtr("2013-06-01")}
	persons.PutPerson(target)

	s := New(cfg, memstore.New(), persons, nil)
	req := model.ParsedRequest{RequestType: model.RequestBunkWith, Target: model.NamedTarget("Mike Smith")}
	result := model.NewResolutionResult(&target, 0.95, model.MethodExact, nil, nil)

	signals := s.signalsFromResolution(context.Background(), req, result, 1, 100, 2026)
	assert.Equal(t, 2, signals.GradeProximity)
	assert.InDelta(t, 2.0, signals.AgeProximity, 0.01)
}

func TestScoreGeneric_AveragesSignals(t *testing.T) {
	s := New(testConfidenceConfig(t), nil, nil, nil)
	signals := model.DefaultConfidenceSignals()
	signals.AIConfidence = 0.6
	signals.MatchCertainty = model.MatchExact
	signals.FoundInCurrentYear = true

	assert.InDelta(t, (0.6+1.0+0.8)/3.0, s.scoreGeneric(signals), 0.001)
}
