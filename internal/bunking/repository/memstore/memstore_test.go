package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camp/kindred/internal/bunking/model"
)

func seedStore() *Store {
	s := New()
	s.PutPerson(model.Person{CMID: 1, FirstName: "Mike", LastName: "Smith"})
	s.PutPerson(model.Person{CMID: 2, FirstName: "Michael", LastName: "Smith"})
	s.PutAttendee(model.Attendee{PersonCMID: 1, Year: 2026, SessionCMID: 10})
	s.PutAttendee(model.Attendee{PersonCMID: 2, Year: 2026, SessionCMID: 11})
	s.PutSession(model.Session{CMID: 10, Year: 2026, Name: "Session A", Type: model.SessionMain})
	s.PutSession(model.Session{CMID: 11, Year: 2026, Name: "Session B", Type: model.SessionMain})
	return s
}

func TestStore_FindByName(t *testing.T) {
	ctx := context.Background()
	s := seedStore()

	found, err := s.FindByName(ctx, "Mike", "Smith", 2026)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 1, found[0].CMID)
}

func TestStore_BulkGetSessionsForPersons(t *testing.T) {
	ctx := context.Background()
	s := seedStore()

	sessions, err := s.BulkGetSessionsForPersons(ctx, []int{1, 2, 99}, 2026)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 10, 2: 11}, sessions)
}

func TestStore_BulkFindByCMIDs(t *testing.T) {
	ctx := context.Background()
	s := seedStore()

	found, err := s.BulkFindByCMIDs(ctx, []int{1, 2, 99})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Mike", found[1].FirstName)
	assert.Equal(t, "Michael", found[2].FirstName)
	_, ok := found[99]
	assert.False(t, ok)
}

func TestSessionStore_GetValidBunkingSessionIDs(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	parent := 5
	s.PutSession(model.Session{CMID: 5, Year: 2026, Name: "Main", Type: model.SessionMain})
	s.PutSession(model.Session{CMID: 10, Year: 2026, Name: "Session A", Type: model.SessionEmbedded, ParentCMID: &parent})
	s.PutSession(model.Session{CMID: 12, Year: 2026, Name: "Session C", Type: model.SessionEmbedded, ParentCMID: &parent})

	ids, err := s.Sessions().GetValidBunkingSessionIDs(ctx, 10)
	require.NoError(t, err)
	assert.Contains(t, ids, 10)
	assert.Contains(t, ids, 12)
	assert.Contains(t, ids, 5)
}
