package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camp/kindred/internal/bunking/cache"
	"github.com/camp/kindred/internal/bunking/config"
	"github.com/camp/kindred/internal/bunking/model"
	"github.com/camp/kindred/internal/bunking/repository/memstore"
	"github.com/camp/kindred/internal/bunking/strategy"
)

func buildPipeline(t *testing.T) (*Pipeline, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	cfg, err := config.Load("")
	require.NoError(t, err)

	p := New(store, store)
	p.AddStrategy(strategy.NewExactStrategy(store, store))
	p.AddStrategy(strategy.NewFuzzyStrategy(store, store, cfg.Strategy, nil))
	p.AddStrategy(strategy.NewPhoneticStrategy(store, store, cfg.Strategy))
	p.SetCache(cache.NewLRUCache[string, model.ResolutionResult](100, time.Minute))
	return p, store
}

func TestPipeline_Resolve_ExactUniqueMatch(t *testing.T) {
	p, store := buildPipeline(t)
	store.PutPerson(model.Person{CMID: 1, FirstName: "Jake", LastName: "Miller"})
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100})
	store.PutPerson(model.Person{CMID: 99, FirstName: "Sam", LastName: "Requester"})
	store.PutAttendee(model.Attendee{PersonCMID: 99, Year: 2026, SessionCMID: 100})

	year := 2026
	res, err := p.Resolve(context.Background(), "Jake Miller", 99, nil, &year)
	require.NoError(t, err)
	require.True(t, res.IsResolved())
	assert.Equal(t, 1, res.Person.CMID)
}

func TestPipeline_Resolve_CachesResult(t *testing.T) {
	p, store := buildPipeline(t)
	store.PutPerson(model.Person{CMID: 1, FirstName: "Jake", LastName: "Miller"})
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100})

	year := 2026
	first, err := p.Resolve(context.Background(), "Jake Miller", 99, nil, &year)
	require.NoError(t, err)

	store.PutPerson(model.Person{CMID: 2, FirstName: "Jake", LastName: "Miller"})

	second, err := p.Resolve(context.Background(), "Jake Miller", 99, nil, &year)
	require.NoError(t, err)
	assert.Equal(t, first.Person.CMID, second.Person.CMID)
}

func TestPipeline_BatchResolve_PreservesOrderAndLength(t *testing.T) {
	p, store := buildPipeline(t)
	store.PutPerson(model.Person{CMID: 1, FirstName: "Jake", LastName: "Miller"})
	store.PutPerson(model.Person{CMID: 2, FirstName: "Mike", LastName: "Smith"})
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100})
	store.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 100})

	year := 2026
	requests := []Request{
		{Name: "Jake Miller", RequesterCMID: 99, Year: &year},
		{Name: "Mike Smith", RequesterCMID: 99, Year: &year},
		{Name: "Nobody Here", RequesterCMID: 99, Year: &year},
	}

	results, err := p.BatchResolve(context.Background(), requests)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].IsResolved())
	assert.True(t, results[1].IsResolved())
	assert.False(t, results[2].IsResolved())
}

func TestPipeline_MinimumConfidenceDemotesLowConfidenceResult(t *testing.T) {
	p, store := buildPipeline(t)
	p.SetMinimumConfidence(0.99)
	store.PutPerson(model.Person{CMID: 1, FirstName: "Jake", LastName: "Miller"})
	store.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 100})

	year := 2026
	res, err := p.Resolve(context.Background(), "Jake Miller", 99, nil, &year)
	require.NoError(t, err)
	assert.False(t, res.IsResolved())
}
